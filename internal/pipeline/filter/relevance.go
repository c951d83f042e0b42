package filter

import (
	"context"
	"fmt"
	"log"
)

// InterestIndex answers how close a message is to anything the user has
// declared interest in. Backed by the Chroma interest collection in
// production.
type InterestIndex interface {
	NearestDistance(ctx context.Context, userID, text string) (distance float64, ok bool, err error)
}

// RelevanceResult is the outcome of the interest-similarity stage.
type RelevanceResult struct {
	Pass   bool
	Score  float64
	Reason string
}

// neutralScore is reported when the user declared no interests: absence
// of stated interest is not evidence against relevance.
const neutralScore = 0.5

// RelevanceFilter compares message content against the user's interest
// set. It never blocks the pipeline: any internal failure passes the
// message through with the failure recorded.
type RelevanceFilter struct {
	index InterestIndex
}

func NewRelevanceFilter(index InterestIndex) *RelevanceFilter {
	return &RelevanceFilter{index: index}
}

// Evaluate scores body against interests. Fail-open on every error
// path: a message is only rejected by an actual low similarity score.
func (f *RelevanceFilter) Evaluate(ctx context.Context, userID, body string, interests []string) RelevanceResult {
	if len(interests) == 0 {
		return RelevanceResult{Pass: true, Score: neutralScore, Reason: "no declared interests"}
	}
	if f.index == nil {
		return RelevanceResult{Pass: true, Score: neutralScore, Reason: "interest index not configured"}
	}

	distance, ok, err := f.index.NearestDistance(ctx, userID, body)
	if err != nil {
		log.Printf("[RelevanceFilter] index query failed (passing message through): %v", err)
		return RelevanceResult{Pass: true, Score: neutralScore, Reason: fmt.Sprintf("index failure: %v", err)}
	}
	if !ok {
		// Declared interests but nothing indexed yet
		return RelevanceResult{Pass: true, Score: neutralScore, Reason: "no interests indexed"}
	}

	// Cosine distance in [0,2]; closer means more similar
	score := 1.0 - distance/2.0
	if score < 0 {
		score = 0
	}

	threshold := adaptiveThreshold(len(body), len(interests))
	return RelevanceResult{
		Pass:   score >= threshold,
		Score:  score,
		Reason: fmt.Sprintf("similarity %.3f vs threshold %.3f", score, threshold),
	}
}

// adaptiveThreshold lowers the bar as the signal gets richer: a long
// message or a wide interest set needs less margin to count as a match.
func adaptiveThreshold(bodyLen, interestCount int) float64 {
	threshold := 0.35

	if bodyLen > 2000 {
		threshold -= 0.05
	} else if bodyLen > 500 {
		threshold -= 0.03
	}

	discount := 0.01 * float64(interestCount)
	if discount > 0.05 {
		discount = 0.05
	}
	threshold -= discount

	if threshold < 0.2 {
		threshold = 0.2
	}
	return threshold
}
