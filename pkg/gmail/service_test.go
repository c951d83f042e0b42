package gmail

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	eventdomain "eventscout-backend/internal/event/domain"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"401 is auth", &googleapi.Error{Code: 401}, ErrUpstreamAuth},
		{"403 is auth", &googleapi.Error{Code: 403}, ErrUpstreamAuth},
		{"revoked refresh token is auth", errors.New(`oauth2: "invalid_grant"`), ErrUpstreamAuth},
		{"500 is transient", &googleapi.Error{Code: 500}, ErrUpstreamUnavailable},
		{"429 is transient", &googleapi.Error{Code: 429}, ErrUpstreamUnavailable},
		{"network failure is transient", errors.New("dial tcp: i/o timeout"), ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyErrorLeavesOtherAPIErrorsAlone(t *testing.T) {
	err := &googleapi.Error{Code: 404}
	got := classifyError(err)
	if errors.Is(got, ErrUpstreamAuth) || errors.Is(got, ErrUpstreamUnavailable) {
		t.Errorf("404 should not be classified, got %v", got)
	}
}

func TestFetchAllFailsWhenAnyMessageIsUnreadable(t *testing.T) {
	received := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	get := func(id string) (*eventdomain.CandidateEmail, error) {
		if id == "m2" {
			return nil, &googleapi.Error{Code: 500}
		}
		return &eventdomain.CandidateEmail{MessageID: id, ReceivedAt: received}, nil
	}

	_, err := fetchAll([]string{"m1", "m2", "m3"}, get)
	if err == nil {
		t.Fatal("one unreadable message must fail the fetch so the cursor cannot pass it")
	}
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("err = %v, want %v", err, ErrUpstreamUnavailable)
	}
}

func TestFetchAllSortsOldestFirst(t *testing.T) {
	received := map[string]time.Time{
		"m1": time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		"m2": time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		"m3": time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC),
	}
	get := func(id string) (*eventdomain.CandidateEmail, error) {
		return &eventdomain.CandidateEmail{MessageID: id, ReceivedAt: received[id]}, nil
	}

	candidates, err := fetchAll([]string{"m1", "m2", "m3"}, get)
	if err != nil {
		t.Fatalf("fetchAll: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("got %d candidates", len(candidates))
	}
	for i, want := range []string{"m2", "m3", "m1"} {
		if candidates[i].MessageID != want {
			t.Errorf("candidates[%d] = %s, want %s", i, candidates[i].MessageID, want)
		}
	}
}

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestConvertMessagePrefersPlainText(t *testing.T) {
	msg := &gmail.Message{
		Id:           "m1",
		InternalDate: 1767225600000, // 2026-01-01T00:00:00Z
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Team offsite"},
			},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>Join&nbsp;us</p>")}},
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("Join us   at the\noffsite")}},
			},
		},
	}

	c := convertMessage(msg)
	if c.MessageID != "m1" || c.Subject != "Team offsite" {
		t.Errorf("unexpected candidate: %+v", c)
	}
	if c.BodyText != "Join us at the offsite" {
		t.Errorf("body = %q, want whitespace-collapsed plain text", c.BodyText)
	}
	if c.ReceivedAt.Year() != 2026 || c.ReceivedAt.Month() != 1 {
		t.Errorf("received = %v", c.ReceivedAt)
	}
}

func TestConvertMessageStripsHTMLFallback(t *testing.T) {
	msg := &gmail.Message{
		Id:           "m2",
		InternalDate: 1767225600000,
		Payload: &gmail.MessagePart{
			MimeType: "text/html",
			Headers:  []*gmail.MessagePartHeader{{Name: "subject", Value: "Webinar"}},
			Body:     &gmail.MessagePartBody{Data: encode("<div>RSVP &amp; join <b>now</b></div>")},
		},
	}

	c := convertMessage(msg)
	if c.Subject != "Webinar" {
		t.Errorf("header lookup should be case-insensitive, got %q", c.Subject)
	}
	if c.BodyText != "RSVP & join now" {
		t.Errorf("body = %q", c.BodyText)
	}
}
