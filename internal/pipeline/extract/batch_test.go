package extract

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"eventscout-backend/pkg/gemini"
)

func TestChunkBalancesSizes(t *testing.T) {
	tests := []struct {
		total int
		size  int
		want  []int
	}{
		{0, 10, nil},
		{3, 10, []int{3}},
		{10, 10, []int{10}},
		{23, 10, []int{8, 8, 7}},
		{11, 10, []int{6, 5}},
		{30, 10, []int{10, 10, 10}},
	}

	for _, tt := range tests {
		chunks := Chunk(sampleCandidates(tt.total), tt.size)
		if len(chunks) != len(tt.want) {
			t.Errorf("Chunk(%d, %d): got %d chunks, want %d", tt.total, tt.size, len(chunks), len(tt.want))
			continue
		}
		seen := 0
		for i, chunk := range chunks {
			if len(chunk) != tt.want[i] {
				t.Errorf("Chunk(%d, %d): chunk %d has %d candidates, want %d", tt.total, tt.size, i, len(chunk), tt.want[i])
			}
			seen += len(chunk)
		}
		if seen != tt.total {
			t.Errorf("Chunk(%d, %d): %d candidates after split", tt.total, tt.size, seen)
		}
	}
}

// selectiveGenerator fails any prompt mentioning a poisoned message id
// and answers every other chunk with one valid event.
type selectiveGenerator struct {
	poisoned string
	calls    int32
}

func (g *selectiveGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	if strings.Contains(prompt, g.poisoned) {
		return "", fmt.Errorf("%w: synthetic outage", gemini.ErrUnavailable)
	}
	first := prompt[strings.Index(prompt, "id: ")+4:]
	first = first[:strings.Index(first, "\n")]
	start := time.Now().Add(72 * time.Hour)
	return fmt.Sprintf(`{"events": [{"source_message_id": %q, "title": "Meetup", "start_datetime": %q, "valid": true}]}`,
		first, start.Format(time.RFC3339)), nil
}

func TestRunChunksOmitsFailedChunk(t *testing.T) {
	candidates := sampleCandidates(4)
	chunks := Chunk(candidates, 2)
	if len(chunks) != 2 {
		t.Fatalf("setup: got %d chunks", len(chunks))
	}

	// The second chunk's first message is poisoned; the first chunk
	// succeeds normally.
	gen := &selectiveGenerator{poisoned: chunks[1][0].MessageID}
	e := newTestExtractor(gen)

	events, processed := e.RunChunks(context.Background(), chunks, nil)

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 from the surviving chunk", len(events))
	}
	if events[0].SourceMessageID != chunks[0][0].MessageID {
		t.Errorf("event came from %s, want %s", events[0].SourceMessageID, chunks[0][0].MessageID)
	}
	if len(processed) != len(chunks[0]) {
		t.Fatalf("processed %d candidates, want %d", len(processed), len(chunks[0]))
	}
	for _, c := range processed {
		if c.MessageID == chunks[1][0].MessageID || c.MessageID == chunks[1][1].MessageID {
			t.Errorf("failed chunk's candidate %s must not be reported processed", c.MessageID)
		}
	}
}

func TestRunChunksAggregatesAll(t *testing.T) {
	gen := &selectiveGenerator{poisoned: "no-such-id"}
	e := newTestExtractor(gen)

	chunks := Chunk(sampleCandidates(6), 2)
	events, processed := e.RunChunks(context.Background(), chunks, nil)

	if len(events) != len(chunks) {
		t.Errorf("got %d events, want one per chunk (%d)", len(events), len(chunks))
	}
	if len(processed) != 6 {
		t.Errorf("processed %d candidates, want 6", len(processed))
	}
}
