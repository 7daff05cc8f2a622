package escrow

import (
	"errors"
	"fmt"
)

// ErrScoreOutOfRange rejects verification scores outside 0..100.
var ErrScoreOutOfRange = errors.New("escrow: score out of range")

// Outcome is the verification gate's classification of a score.
type Outcome uint8

const (
	// OutcomePass clears the submission for release.
	OutcomePass Outcome = iota
	// OutcomeFeedback keeps the job submitted so the freelancer can fix
	// and resubmit.
	OutcomeFeedback
	// OutcomeFail sends the job to dispute for low quality.
	OutcomeFail
)

// String returns the canonical name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeFeedback:
		return "feedback"
	case OutcomeFail:
		return "fail"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(o))
	}
}

// Gate maps a verification score to an outcome using fixed thresholds. It is
// stateless; both bounds are inclusive lower bounds, so a score of exactly
// PassScore passes and a score of exactly FeedbackScore stays in feedback.
type Gate struct {
	passScore     int
	feedbackScore int
}

// NewGate builds a gate from the supplied policy thresholds.
func NewGate(policy Policy) Gate {
	return Gate{passScore: policy.PassScore, feedbackScore: policy.FeedbackScore}
}

// Classify returns the outcome for a score, rejecting values outside 0..100.
func (g Gate) Classify(score int) (Outcome, error) {
	if score < 0 || score > 100 {
		return 0, fmt.Errorf("%w: %d", ErrScoreOutOfRange, score)
	}
	switch {
	case score >= g.passScore:
		return OutcomePass, nil
	case score >= g.feedbackScore:
		return OutcomeFeedback, nil
	default:
		return OutcomeFail, nil
	}
}
