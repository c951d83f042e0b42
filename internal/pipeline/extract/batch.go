package extract

import (
	"context"
	"log"
	"sync"

	"eventscout-backend/internal/event/domain"
)

// Chunk splits candidates into balanced chunks of at most size
// messages each. With 23 candidates and size 10 it yields 8+8+7 rather
// than 10+10+3, spreading work evenly across the credential pool.
func Chunk(candidates []domain.CandidateEmail, size int) [][]domain.CandidateEmail {
	if len(candidates) == 0 {
		return nil
	}
	if size <= 0 {
		size = 1
	}
	numChunks := (len(candidates) + size - 1) / size
	base := (len(candidates) + numChunks - 1) / numChunks

	chunks := make([][]domain.CandidateEmail, 0, numChunks)
	for start := 0; start < len(candidates); start += base {
		end := start + base
		if end > len(candidates) {
			end = len(candidates)
		}
		chunks = append(chunks, candidates[start:end])
	}
	return chunks
}

// RunChunks dispatches chunks concurrently, bounded by the pool size,
// each with a different starting key. A chunk that exhausts its
// retries is logged and omitted; its candidates are not part of the
// returned processed slice, so the cursor will not advance past them
// and they stay eligible for a later run.
func (e *Extractor) RunChunks(ctx context.Context, chunks [][]domain.CandidateEmail, interests []string) (events []domain.ProposedEvent, processed []domain.CandidateEmail) {
	if len(chunks) == 0 {
		return nil, nil
	}

	workers := len(e.pool)
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	type chunkResult struct {
		events    []domain.ProposedEvent
		processed []domain.CandidateEmail
	}
	results := make([]chunkResult, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []domain.CandidateEmail) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			evs, err := e.ExtractChunk(ctx, i, chunk, interests)
			if err != nil {
				log.Printf("[Extractor] chunk %d/%d failed, omitting %d candidates: %v", i+1, len(chunks), len(chunk), err)
				return
			}
			results[i] = chunkResult{events: evs, processed: chunk}
		}(i, chunk)
	}
	wg.Wait()

	for _, r := range results {
		events = append(events, r.events...)
		processed = append(processed, r.processed...)
	}
	return events, processed
}
