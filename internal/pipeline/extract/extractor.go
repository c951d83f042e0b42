package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"eventscout-backend/internal/event/domain"
	"eventscout-backend/pkg/gemini"
)

// Generator is the single-turn text generation surface the extractor
// needs. *gemini.Client satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

const (
	attemptsPerKey = 3
	maxCycles      = 6

	defaultAttemptDelay = 2 * time.Second
	defaultCycleDelay   = 30 * time.Second
)

// Extractor turns chunks of candidate emails into proposed events by
// prompting a language model. It holds one client per API key and
// rotates through them on failure: within a cycle every key gets up to
// attemptsPerKey tries, and after a fully failed cycle it waits longer
// and starts over, up to maxCycles cycles.
type Extractor struct {
	pool []Generator

	attemptDelay time.Duration
	cycleDelay   time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

func NewExtractor(pool []Generator) *Extractor {
	return &Extractor{
		pool:         pool,
		attemptDelay: defaultAttemptDelay,
		cycleDelay:   defaultCycleDelay,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ExtractChunk runs one chunk through the retry state machine.
// keyOffset picks which key the rotation starts from so that
// concurrent chunks spread across the pool instead of all hammering
// key zero. The offset is per-call state; nothing is shared between
// chunks.
func (e *Extractor) ExtractChunk(ctx context.Context, keyOffset int, candidates []domain.CandidateEmail, interests []string) ([]domain.ProposedEvent, error) {
	if len(e.pool) == 0 {
		return nil, errors.New("extract: no API keys configured")
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	prompt := buildPrompt(candidates, interests)

	var lastErr error
	for cycle := 0; cycle < maxCycles; cycle++ {
		if cycle > 0 {
			e.sleep(ctx, e.cycleDelay)
		}
		for i := 0; i < len(e.pool); i++ {
			gen := e.pool[(keyOffset+i)%len(e.pool)]
			for attempt := 0; attempt < attemptsPerKey; attempt++ {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if cycle > 0 || i > 0 || attempt > 0 {
					e.sleep(ctx, e.attemptDelay)
				}

				raw, err := gen.GenerateContent(ctx, prompt)
				if err == nil {
					events, perr := parseEvents(raw)
					if perr == nil {
						return e.validate(events), nil
					}
					// Malformed model output is as retryable as a 429.
					err = perr
				}
				lastErr = err

				if !retryable(err) {
					return nil, err
				}
			}
		}
		log.Printf("[Extractor] cycle %d/%d exhausted (%d keys): %v", cycle+1, maxCycles, len(e.pool), lastErr)
	}
	return nil, fmt.Errorf("extract: all %d cycles exhausted: %w", maxCycles, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, gemini.ErrRateLimited) || errors.Is(err, gemini.ErrUnavailable) {
		return true
	}
	var perr *parseError
	return errors.As(err, &perr)
}

type parseError struct {
	cause error
}

func (p *parseError) Error() string { return "extract: unparseable model output: " + p.cause.Error() }
func (p *parseError) Unwrap() error { return p.cause }

// rawEvent mirrors the JSON schema the prompt asks the model for.
type rawEvent struct {
	SourceMessageID   string   `json:"source_message_id"`
	Title             string   `json:"title"`
	Location          string   `json:"location"`
	Summary           string   `json:"summary"`
	Link              string   `json:"link"`
	StartDatetime     string   `json:"start_datetime"`
	EndDatetime       string   `json:"end_datetime"`
	RelevantInterests []string `json:"relevant_interests"`
	Valid             bool     `json:"valid"`
}

func parseEvents(raw string) ([]rawEvent, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var out struct {
		Events []rawEvent `json:"events"`
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, &parseError{cause: err}
	}
	return out.Events, nil
}

// validate drops records the model flagged invalid, records without a
// parseable strictly-future start, and fills a missing end with the
// start. Dropped records are not retried; a log line keeps them
// visible.
func (e *Extractor) validate(events []rawEvent) []domain.ProposedEvent {
	now := e.now()
	out := make([]domain.ProposedEvent, 0, len(events))
	for _, ev := range events {
		if !ev.Valid {
			continue
		}
		if ev.Title == "" {
			continue
		}
		start, err := parseDatetime(ev.StartDatetime)
		if err != nil {
			log.Printf("[Extractor] dropping %q: bad start %q: %v", ev.Title, ev.StartDatetime, err)
			continue
		}
		if !start.After(now) {
			log.Printf("[Extractor] dropping %q: start %s not in the future", ev.Title, start.Format(time.RFC3339))
			continue
		}
		end := start
		if ev.EndDatetime != "" {
			if parsed, err := parseDatetime(ev.EndDatetime); err == nil && parsed.After(start) {
				end = parsed
			}
		}
		out = append(out, domain.ProposedEvent{
			SourceMessageID: ev.SourceMessageID,
			Title:           ev.Title,
			Description:     ev.Summary,
			Location:        ev.Location,
			Link:            ev.Link,
			StartTime:       start,
			EndTime:         &end,
		})
	}
	return out
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty datetime")
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}
