package filter

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeIndex struct {
	distance float64
	ok       bool
	err      error
}

func (f *fakeIndex) NearestDistance(ctx context.Context, userID, text string) (float64, bool, error) {
	return f.distance, f.ok, f.err
}

func TestRelevanceNoInterestsPassesNeutral(t *testing.T) {
	f := NewRelevanceFilter(&fakeIndex{err: errors.New("should not be called")})

	res := f.Evaluate(context.Background(), "u1", "some body", nil)
	if !res.Pass {
		t.Error("expected pass when user has no interests")
	}
	if res.Score != neutralScore {
		t.Errorf("score = %.2f, want %.2f", res.Score, neutralScore)
	}
}

func TestRelevanceFailOpenOnIndexError(t *testing.T) {
	f := NewRelevanceFilter(&fakeIndex{err: errors.New("chroma down")})

	res := f.Evaluate(context.Background(), "u1", "some body", []string{"robotics"})
	if !res.Pass {
		t.Error("index failure must fail open")
	}
	if !strings.Contains(res.Reason, "chroma down") {
		t.Errorf("reason should record the failure, got %q", res.Reason)
	}
}

func TestRelevanceFailOpenWithoutIndex(t *testing.T) {
	f := NewRelevanceFilter(nil)

	res := f.Evaluate(context.Background(), "u1", "some body", []string{"robotics"})
	if !res.Pass {
		t.Error("missing index must fail open")
	}
}

func TestRelevanceSimilarityDecision(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		wantPass bool
	}{
		{"close match", 0.4, true},   // score 0.8
		{"borderline", 1.3, true},    // score 0.35, threshold ≤ 0.34
		{"far", 1.9, false},          // score 0.05
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewRelevanceFilter(&fakeIndex{distance: tt.distance, ok: true})
			res := f.Evaluate(context.Background(), "u1", "robotics club meetup announcement", []string{"robotics"})
			if res.Pass != tt.wantPass {
				t.Errorf("pass = %v (score %.2f, %s), want %v", res.Pass, res.Score, res.Reason, tt.wantPass)
			}
		})
	}
}

func TestAdaptiveThresholdLowersWithSignal(t *testing.T) {
	short := adaptiveThreshold(100, 1)
	long := adaptiveThreshold(5000, 1)
	if long >= short {
		t.Errorf("longer body should lower threshold: %.3f vs %.3f", long, short)
	}

	few := adaptiveThreshold(100, 1)
	many := adaptiveThreshold(100, 10)
	if many >= few {
		t.Errorf("more interests should lower threshold: %.3f vs %.3f", many, few)
	}

	if adaptiveThreshold(100000, 100) < 0.2 {
		t.Error("threshold must not drop below floor")
	}
}
