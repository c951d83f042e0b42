package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	authRepo "eventscout-backend/internal/auth/repository"
	eventdomain "eventscout-backend/internal/event/domain"
	eventRepo "eventscout-backend/internal/event/repository"
	interestRepo "eventscout-backend/internal/interest/repository"
	"eventscout-backend/internal/pipeline/extract"
	"eventscout-backend/internal/pipeline/filter"
	"eventscout-backend/internal/pipeline/queue"
	"eventscout-backend/pkg/gcal"
	"eventscout-backend/pkg/googleauth"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const sourceGmail = "gmail"

// MailFetcher is the slice of pkg/gmail the pipeline uses.
type MailFetcher interface {
	FetchCandidates(ctx context.Context, accessToken, refreshToken string, since *time.Time, limit int, onTokenRefresh googleauth.TokenUpdateFunc) ([]eventdomain.CandidateEmail, error)
}

// CalendarService is the slice of pkg/gcal the materializer uses.
type CalendarService interface {
	CreateEvent(ctx context.Context, accessToken, refreshToken string, input gcal.EventInput, onTokenRefresh googleauth.TokenUpdateFunc) (*gcal.CreatedEvent, error)
}

// Batcher runs extraction chunks; *extract.Extractor satisfies it.
type Batcher interface {
	RunChunks(ctx context.Context, chunks [][]eventdomain.CandidateEmail, interests []string) ([]eventdomain.ProposedEvent, []eventdomain.CandidateEmail)
}

// Enqueuer is how a stage chains the next job.
type Enqueuer interface {
	Enqueue(job queue.Job) bool
}

// PipelineUsecase drives the mailbox-to-calendar pipeline: fetch since
// the cursor, filter, extract, materialize, advance the cursor. All of
// it runs on the single queue worker, so no two runs for any user
// write concurrently.
type PipelineUsecase struct {
	userRepo     authRepo.UserRepository
	interestRepo interestRepo.InterestRepository
	eventRepo    eventRepo.EventRepository
	cursorRepo   eventRepo.SyncCursorRepository

	mail      MailFetcher
	calendar  CalendarService
	relevance *filter.RelevanceFilter
	extractor Batcher
	jobs      Enqueuer

	chunkSize int
}

func NewPipelineUsecase(
	userRepo authRepo.UserRepository,
	interestRepo interestRepo.InterestRepository,
	eventRepo eventRepo.EventRepository,
	cursorRepo eventRepo.SyncCursorRepository,
	mail MailFetcher,
	calendar CalendarService,
	relevance *filter.RelevanceFilter,
	extractor Batcher,
	jobs Enqueuer,
	chunkSize int,
) *PipelineUsecase {
	if chunkSize <= 0 {
		chunkSize = 10
	}
	return &PipelineUsecase{
		userRepo:     userRepo,
		interestRepo: interestRepo,
		eventRepo:    eventRepo,
		cursorRepo:   cursorRepo,
		mail:         mail,
		calendar:     calendar,
		relevance:    relevance,
		extractor:    extractor,
		jobs:         jobs,
		chunkSize:    chunkSize,
	}
}

// HandleJob is the queue worker's dispatch point.
func (u *PipelineUsecase) HandleJob(ctx context.Context, job queue.Job) error {
	switch job.Kind {
	case queue.KindSyncInbox:
		return u.SyncInboxOnce(ctx, job.UserID, job.MaxResults)
	case queue.KindExtract:
		return u.ExtractAndMaterialize(ctx, job.UserID, job.Candidates, job.RejectedAt, job.RejectedID)
	default:
		return fmt.Errorf("pipeline: unknown job kind %q", job.Kind)
	}
}

// SyncInboxOnce fetches messages newer than the user's cursor, runs
// them through the keyword and relevance filters, and chains an
// extraction job for the survivors. When everything was rejected the
// cursor advances right here so the next sync does not refetch.
func (u *PipelineUsecase) SyncInboxOnce(ctx context.Context, userID string, maxResults int) error {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return fmt.Errorf("sync: load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("sync: user %s not found", userID)
	}

	cursor, err := u.cursorRepo.Get(userID)
	if err != nil {
		return fmt.Errorf("sync: load cursor: %w", err)
	}

	var since *time.Time
	if cursor != nil {
		since = cursor.LastProcessedAt
	}

	fetched, err := u.mail.FetchCandidates(ctx, user.AccessToken, user.RefreshToken, since, maxResults, u.tokenSaver(userID))
	if err != nil {
		return fmt.Errorf("sync: fetch: %w", err)
	}

	// The mailbox query is date-granular, so a fetch can return
	// messages the cursor already covers. Drop them before filtering.
	candidates := make([]eventdomain.CandidateEmail, 0, len(fetched))
	for _, c := range fetched {
		if cursorCovers(cursor, c) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		log.Printf("[Pipeline] user %s: nothing new since cursor", userID)
		return nil
	}

	interests, err := u.interestRepo.ListNamesForUser(userID)
	if err != nil {
		log.Printf("[Pipeline] user %s: loading interests failed, filtering without them: %v", userID, err)
		interests = nil
	}

	survivors := make([]eventdomain.CandidateEmail, 0, len(candidates))
	var rejectedAt *time.Time
	var rejectedID string
	reject := func(c eventdomain.CandidateEmail) {
		if rejectedAt == nil || c.ReceivedAt.After(*rejectedAt) || (c.ReceivedAt.Equal(*rejectedAt) && c.MessageID > rejectedID) {
			at := c.ReceivedAt
			rejectedAt = &at
			rejectedID = c.MessageID
		}
	}

	for _, c := range candidates {
		kw := filter.EvaluateKeywords(c.Subject, c.BodyText)
		if !kw.Pass {
			reject(c)
			continue
		}
		if u.relevance != nil {
			rel := u.relevance.Evaluate(ctx, userID, c.Subject+"\n"+c.BodyText, interests)
			if !rel.Pass {
				log.Printf("[Pipeline] user %s: %s filtered by relevance (%s)", userID, c.MessageID, rel.Reason)
				reject(c)
				continue
			}
		}
		survivors = append(survivors, c)
	}

	log.Printf("[Pipeline] user %s: %d fetched, %d new, %d past filters", userID, len(fetched), len(candidates), len(survivors))

	if len(survivors) == 0 {
		if rejectedAt != nil {
			if err := u.cursorRepo.Advance(userID, *rejectedAt, rejectedID); err != nil {
				return fmt.Errorf("sync: advance cursor: %w", err)
			}
		}
		return nil
	}

	ok := u.jobs.Enqueue(queue.Job{
		Kind:       queue.KindExtract,
		UserID:     userID,
		Candidates: survivors,
		RejectedAt: rejectedAt,
		RejectedID: rejectedID,
	})
	if !ok {
		// The cursor stays put, so the next sync sees these again.
		log.Printf("[Pipeline] user %s: extraction job rejected by queue, will retry next sync", userID)
	}
	return nil
}

// ExtractAndMaterialize runs Stage 3 on the survivors and turns the
// extracted records into calendar entries and Event rows. The cursor
// advances once at the end, past everything this run settled: created
// events, records the extractor rejected, and the filter rejections
// carried in from the sync job. Messages in chunks that failed
// extraction, or whose calendar write failed, stay behind the cursor
// and are refetched later; the dedup check keeps replays idempotent.
func (u *PipelineUsecase) ExtractAndMaterialize(ctx context.Context, userID string, candidates []eventdomain.CandidateEmail, rejectedAt *time.Time, rejectedID string) error {
	if len(candidates) == 0 && rejectedAt == nil {
		return nil
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return fmt.Errorf("materialize: load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("materialize: user %s not found", userID)
	}

	interests, err := u.interestRepo.ListNamesForUser(userID)
	if err != nil {
		interests = nil
	}

	chunks := extract.Chunk(candidates, u.chunkSize)
	proposed, processed := u.extractor.RunChunks(ctx, chunks, interests)

	// Anything the batcher did not report processed sat in a chunk that
	// exhausted its retries. Mark those messages failed so the advance
	// walk below stops before the earliest one.
	processedSet := make(map[string]bool, len(processed))
	for _, c := range processed {
		processedSet[c.MessageID] = true
	}
	failed := make(map[string]bool)
	for _, c := range candidates {
		if !processedSet[c.MessageID] {
			failed[c.MessageID] = true
		}
	}

	unattributed := false
	created := 0
	for _, ev := range proposed {
		if ev.SourceMessageID != "" {
			existing, err := u.eventRepo.FindBySource(sourceGmail, ev.SourceMessageID)
			if err != nil {
				return fmt.Errorf("materialize: dedup lookup: %w", err)
			}
			if existing != nil {
				log.Printf("[Pipeline] user %s: event for %s already exists, skipping", userID, ev.SourceMessageID)
				continue
			}
		}

		calEvent, err := u.calendar.CreateEvent(ctx, user.AccessToken, user.RefreshToken, gcal.EventInput{
			Summary:     ev.Title,
			Description: ev.Description,
			Location:    ev.Location,
			Start:       ev.StartTime,
			End:         ev.EndTime,
		}, u.tokenSaver(userID))
		if err != nil {
			log.Printf("[Pipeline] user %s: calendar create for %q failed: %v", userID, ev.Title, err)
			markFailed(failed, ev.SourceMessageID, &unattributed)
			continue
		}

		link := calEvent.Link
		if link == "" {
			link = ev.Link
		}
		event := &eventdomain.Event{
			ID:          uuid.New().String(),
			Title:       ev.Title,
			Description: ev.Description,
			Location:    ev.Location,
			Platform:    "google_calendar",
			Link:        link,
			StartTime:   ev.StartTime,
			EndTime:     ev.EndTime,
			Source:      sourceGmail,
			SourceID:    ev.SourceMessageID,
		}
		if err := u.eventRepo.CreateWithAssociation(event, userID); err != nil {
			log.Printf("[Pipeline] user %s: persisting %q failed: %v", userID, ev.Title, err)
			markFailed(failed, ev.SourceMessageID, &unattributed)
			continue
		}
		created++
	}

	log.Printf("[Pipeline] user %s: %d candidates extracted into %d proposals, %d events created", userID, len(processed), len(proposed), created)

	// A failure we cannot attribute to a message means any advance could
	// skip it. Hold the cursor; the whole run stays refetchable.
	if unattributed {
		log.Printf("[Pipeline] user %s: failure without a source message id, holding cursor", userID)
		return nil
	}

	at, id, ok := advanceTarget(candidates, failed, rejectedAt, rejectedID)
	if !ok {
		return nil
	}
	if err := u.cursorRepo.Advance(userID, at, id); err != nil {
		return fmt.Errorf("materialize: advance cursor: %w", err)
	}
	return nil
}

// markFailed records a materialization failure against its message. A
// proposal the model returned without a source id cannot be pinned to a
// message, so the caller must hold the cursor for the whole run.
func markFailed(failed map[string]bool, sourceMessageID string, unattributed *bool) {
	if sourceMessageID == "" {
		*unattributed = true
		return
	}
	failed[sourceMessageID] = true
}

// advanceTarget picks the new cursor position: walk the run's
// candidates in mailbox order and stop at the first one that failed,
// whether its chunk exhausted extraction retries or its calendar or
// storage write broke. A failed message is never skipped by its own
// run. Filter rejections from the sync stage fold in afterwards.
func advanceTarget(candidates []eventdomain.CandidateEmail, failed map[string]bool, rejectedAt *time.Time, rejectedID string) (time.Time, string, bool) {
	sorted := append([]eventdomain.CandidateEmail(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ReceivedAt.Equal(sorted[j].ReceivedAt) {
			return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt)
		}
		return sorted[i].MessageID < sorted[j].MessageID
	})

	var at time.Time
	var id string
	ok := false
	for _, c := range sorted {
		if failed[c.MessageID] {
			break
		}
		at, id, ok = c.ReceivedAt, c.MessageID, true
	}

	if rejectedAt != nil && (!ok || rejectedAt.After(at)) {
		return *rejectedAt, rejectedID, true
	}
	return at, id, ok
}

// cursorCovers reports whether the cursor already saw this message.
func cursorCovers(cursor *eventdomain.SyncCursor, c eventdomain.CandidateEmail) bool {
	if cursor == nil || cursor.LastProcessedAt == nil {
		return false
	}
	if c.ReceivedAt.Before(*cursor.LastProcessedAt) {
		return true
	}
	if c.ReceivedAt.Equal(*cursor.LastProcessedAt) && c.MessageID <= cursor.LastMessageID {
		return true
	}
	return false
}

// tokenSaver persists refreshed OAuth tokens back onto the user row.
func (u *PipelineUsecase) tokenSaver(userID string) googleauth.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		return u.userRepo.UpdateTokens(userID, token.AccessToken, token.RefreshToken, &token.Expiry)
	}
}
