package filter

import (
	"fmt"
	"strings"
)

// passThreshold is deliberately low: stage one optimizes recall and
// leaves precision to the stages behind it.
const passThreshold = 0.1

// KeywordResult is the outcome of the keyword stage for one message.
type KeywordResult struct {
	Pass    bool
	Score   float64
	Reasons []string
}

// EvaluateKeywords scores a message on keyword heuristics alone. It is a
// pure function: no I/O, no shared state, safe to call from any number
// of goroutines.
func EvaluateKeywords(subject, body string) KeywordResult {
	content := strings.ToLower(subject) + " " + strings.ToLower(body)

	for _, kw := range nonEventKeywords {
		if strings.Contains(content, kw) {
			return KeywordResult{
				Pass:    false,
				Score:   0,
				Reasons: []string{"non-event keyword: " + kw},
			}
		}
	}

	var strong, weak, timeHits []string
	for _, kw := range strongEventKeywords {
		if strings.Contains(content, kw) {
			strong = append(strong, kw)
		}
	}
	for _, kw := range weakEventKeywords {
		if strings.Contains(content, kw) {
			weak = append(weak, kw)
		}
	}
	for _, kw := range timeKeywords {
		if strings.Contains(content, kw) {
			timeHits = append(timeHits, kw)
		}
	}

	score := 0.0
	score += float64(len(strong)) * 0.4
	score += float64(len(weak)) * 0.2
	timeScore := float64(len(timeHits)) * 0.1
	if timeScore > 0.3 {
		timeScore = 0.3
	}
	score += timeScore

	if len(strong) > 0 && len(timeHits) > 0 {
		score += 0.2
	}
	if len(strong) >= 2 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}

	reasons := []string{
		fmt.Sprintf("strong: %v", strong),
		fmt.Sprintf("weak: %v", weak),
		fmt.Sprintf("time: %v", timeHits),
	}

	return KeywordResult{
		Pass:    score > passThreshold,
		Score:   score,
		Reasons: reasons,
	}
}
