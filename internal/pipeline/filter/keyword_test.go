package filter

import (
	"math"
	"testing"
)

func TestEvaluateKeywordsNonEventAlwaysFails(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
	}{
		{"plain", "Congratulations on your award", "well done"},
		{"with event words", "Congratulations!", "RSVP for the workshop on Friday 3pm"},
		{"in body", "Fees notice", "your bus fare has been updated"},
		{"birthday", "Party!", "happy birthday to our dean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EvaluateKeywords(tt.subject, tt.body)
			if res.Pass {
				t.Errorf("expected reject, got pass with score %.2f", res.Score)
			}
			if res.Score != 0 {
				t.Errorf("expected zero score on non-event reject, got %.2f", res.Score)
			}
		})
	}
}

func TestEvaluateKeywordsScoring(t *testing.T) {
	tests := []struct {
		name      string
		subject   string
		body      string
		wantPass  bool
		wantScore float64
	}{
		{
			name:      "no signal",
			subject:   "Library notice",
			body:      "your book is due back soon",
			wantPass:  false,
			wantScore: 0,
		},
		{
			// strong (0.4) + one time hit (0.1) + strong+time bonus (0.2)
			name:      "strong with time",
			subject:   "Guest lecture",
			body:      "guest lecture happening tomorrow",
			wantPass:  true,
			wantScore: 0.7,
		},
		{
			// time hits capped at 0.3
			name:      "time keywords capped",
			subject:   "",
			body:      "today tomorrow monday tuesday wednesday thursday",
			wantPass:  true,
			wantScore: 0.3,
		},
		{
			// two strong (0.8) + weak (0.2) + time cap (0.3) + both bonuses, capped at 1.0
			name:      "score capped at one",
			subject:   "Conference invitation",
			body:      "rsvp for the workshop session tomorrow morning at 10 am, venue tba",
			wantPass:  true,
			wantScore: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EvaluateKeywords(tt.subject, tt.body)
			if res.Pass != tt.wantPass {
				t.Errorf("pass = %v, want %v (score %.2f)", res.Pass, tt.wantPass, res.Score)
			}
			if math.Abs(res.Score-tt.wantScore) > 1e-9 {
				t.Errorf("score = %.2f, want %.2f", res.Score, tt.wantScore)
			}
		})
	}
}

func TestEvaluateKeywordsDeterministic(t *testing.T) {
	subject := "Workshop invitation"
	body := "Join us for a hands-on session this Friday at 3pm. RSVP by Wednesday."

	first := EvaluateKeywords(subject, body)
	for i := 0; i < 50; i++ {
		res := EvaluateKeywords(subject, body)
		if res.Pass != first.Pass || res.Score != first.Score {
			t.Fatalf("run %d differed: got (%v, %.2f), want (%v, %.2f)", i, res.Pass, res.Score, first.Pass, first.Score)
		}
	}
}

func TestEvaluateKeywordsScenario(t *testing.T) {
	// Two messages: one with a non-event keyword, one real invitation.
	rejected := EvaluateKeywords("Congratulations", "congratulations on winning the bus fare lottery")
	if rejected.Pass {
		t.Error("non-event message should not pass")
	}

	accepted := EvaluateKeywords("Tech talk", "RSVP for the talk this Friday 3pm")
	if !accepted.Pass {
		t.Errorf("invitation should pass, score %.2f", accepted.Score)
	}
}
