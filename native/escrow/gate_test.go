package escrow

import (
	"errors"
	"testing"
)

func TestClassifyBands(t *testing.T) {
	gate := NewGate(DefaultPolicy())
	cases := []struct {
		score int
		want  Outcome
	}{
		{100, OutcomePass},
		{80, OutcomePass},
		{79, OutcomeFeedback},
		{60, OutcomeFeedback},
		{59, OutcomeFail},
		{0, OutcomeFail},
	}
	for _, tc := range cases {
		got, err := gate.Classify(tc.score)
		if err != nil {
			t.Fatalf("classify %d: %v", tc.score, err)
		}
		if got != tc.want {
			t.Fatalf("classify %d: got %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestClassifyOutOfRange(t *testing.T) {
	gate := NewGate(DefaultPolicy())
	for _, score := range []int{-1, 101, 1_000} {
		if _, err := gate.Classify(score); !errors.Is(err, ErrScoreOutOfRange) {
			t.Fatalf("score %d: expected ErrScoreOutOfRange, got %v", score, err)
		}
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	policy := DefaultPolicy()
	policy.PassScore = 90
	policy.FeedbackScore = 50
	gate := NewGate(policy)
	if got, _ := gate.Classify(85); got != OutcomeFeedback {
		t.Fatalf("85 under raised bar: got %s", got)
	}
	if got, _ := gate.Classify(49); got != OutcomeFail {
		t.Fatalf("49 under lowered band: got %s", got)
	}
}
