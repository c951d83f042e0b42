package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	eventdomain "eventscout-backend/internal/event/domain"
	"eventscout-backend/pkg/googleauth"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var (
	// ErrUpstreamAuth means the stored credential is invalid or expired
	// and could not be refreshed. The job aborts; refresh is the identity
	// collaborator's problem, not ours.
	ErrUpstreamAuth = errors.New("gmail: credential invalid or unrefreshable")

	// ErrUpstreamUnavailable covers transient network and 5xx failures.
	ErrUpstreamUnavailable = errors.New("gmail: provider unavailable")
)

// Service fetches candidate messages from Gmail for the pipeline.
type Service struct {
	clientID     string
	clientSecret string
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

func (s *Service) newGmailService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh googleauth.TokenUpdateFunc) (*gmail.Service, error) {
	client := googleauth.NewClient(ctx, s.clientID, s.clientSecret, accessToken, refreshToken, onTokenRefresh)
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// FetchCandidates lists messages newer than since (date granularity,
// Gmail's finest for queries) and fetches their full bodies with a
// bounded fan-out. Results come back sorted oldest first so cursor
// tracking is straightforward. Pagination past limit is the caller's
// job: re-enqueue a sync to pick up the rest.
func (s *Service) FetchCandidates(ctx context.Context, accessToken, refreshToken string, since *time.Time, limit int, onTokenRefresh googleauth.TokenUpdateFunc) ([]eventdomain.CandidateEmail, error) {
	srv, err := s.newGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	q := "in:inbox"
	if since != nil {
		q += " after:" + since.UTC().Format("2006/01/02")
	}

	if limit <= 0 {
		limit = 10
	}
	if limit > 500 {
		limit = 500 // Gmail API maximum
	}

	listResp, err := srv.Users.Messages.List("me").Q(q).MaxResults(int64(limit)).Do()
	if err != nil {
		return nil, classifyError(err)
	}

	if len(listResp.Messages) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(listResp.Messages))
	for _, msg := range listResp.Messages {
		ids = append(ids, msg.Id)
	}

	return fetchAll(ids, func(id string) (*eventdomain.CandidateEmail, error) {
		fullMsg, err := srv.Users.Messages.Get("me", id).Format("full").Do()
		if err != nil {
			return nil, err
		}
		return convertMessage(fullMsg), nil
	})
}

// fetchAll pulls every listed message with a bounded fan-out. Any
// single failure fails the whole fetch: a silently skipped message
// would end up behind the cursor once a newer one settles, and the
// unread one would never be fetched again. Failing the run keeps the
// cursor put, and the job retry policy re-triggers the fetch.
func fetchAll(ids []string, get func(id string) (*eventdomain.CandidateEmail, error)) ([]eventdomain.CandidateEmail, error) {
	type fetchResult struct {
		candidate *eventdomain.CandidateEmail
		err       error
	}

	results := make(chan fetchResult, len(ids))
	semaphore := make(chan struct{}, 10) // Max 10 concurrent requests

	for _, id := range ids {
		go func(msgID string) {
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			candidate, err := get(msgID)
			results <- fetchResult{candidate, err}
		}(id)
	}

	candidates := make([]eventdomain.CandidateEmail, 0, len(ids))
	var firstErr error
	for range ids {
		res := <-results
		if res.err != nil {
			log.Printf("[Gmail] Unreadable message fails the fetch: %v", res.err)
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		candidates = append(candidates, *res.candidate)
	}
	if firstErr != nil {
		return nil, classifyError(firstErr)
	}

	// Parallel fetching returns messages in arbitrary order
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ReceivedAt.Before(candidates[j].ReceivedAt)
	})

	return candidates, nil
}

// Watch arms Gmail push notifications for the user's inbox on the given
// Pub/Sub topic.
func (s *Service) Watch(ctx context.Context, accessToken, refreshToken, topicName string, onTokenRefresh googleauth.TokenUpdateFunc) error {
	srv, err := s.newGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return err
	}

	// Clear any existing watch first; Gmail allows only one per user
	_ = srv.Users.Stop("me").Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}

	resp, err := srv.Users.Watch("me", req).Do()
	if err != nil {
		return fmt.Errorf("unable to watch mailbox: %w", classifyError(err))
	}
	log.Printf("[Gmail] Watch started, expiration %d historyId %d", resp.Expiration, resp.HistoryId)

	return nil
}

// StopWatch tears down the push notification channel.
func (s *Service) StopWatch(ctx context.Context, accessToken, refreshToken string, onTokenRefresh googleauth.TokenUpdateFunc) error {
	srv, err := s.newGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return err
	}
	if err := srv.Users.Stop("me").Do(); err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %w", classifyError(err))
	}
	return nil
}

func classifyError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
		case apiErr.Code >= 500 || apiErr.Code == 429:
			return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		return err
	}
	if strings.Contains(err.Error(), "invalid_grant") {
		return fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}
	// Anything non-HTTP (DNS, timeouts) is treated as transient
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}

// Helper functions

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func convertMessage(msg *gmail.Message) *eventdomain.CandidateEmail {
	body, isHTML := extractBody(msg.Payload)
	if isHTML {
		body = htmlTagRe.ReplaceAllString(body, " ")
		body = strings.ReplaceAll(body, "&nbsp;", " ")
		body = strings.ReplaceAll(body, "&lt;", "<")
		body = strings.ReplaceAll(body, "&gt;", ">")
		body = strings.ReplaceAll(body, "&amp;", "&")
		body = strings.ReplaceAll(body, "&quot;", "\"")
	}
	body = strings.Join(strings.Fields(body), " ")

	return &eventdomain.CandidateEmail{
		MessageID:  msg.Id,
		Subject:    getHeader(msg.Payload.Headers, "Subject"),
		BodyText:   body,
		ReceivedAt: time.Unix(msg.InternalDate/1000, 0).UTC(),
	}
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func extractBody(payload *gmail.MessagePart) (string, bool) {
	// If the payload itself is the body
	if payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data), payload.MimeType == "text/html"
		}
	}

	var htmlBody string
	var plainBody string

	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Body != nil && part.Body.Data != "" {
				data, err := base64.URLEncoding.DecodeString(part.Body.Data)
				if err == nil {
					switch part.MimeType {
					case "text/plain":
						plainBody = string(data)
					case "text/html":
						htmlBody = string(data)
					}
				}
			}
			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}
	findBody(payload.Parts)

	// Plain text is what the filters and the LLM want; HTML is a fallback
	if plainBody != "" {
		return plainBody, false
	}
	return htmlBody, true
}
