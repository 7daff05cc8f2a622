package escrow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy captures the business rules of the escrow lifecycle: the score
// thresholds applied by the verification gate and the slash percentages
// applied when disputes settle. The values are platform-wide; jobs never
// carry their own thresholds.
type Policy struct {
	// PassScore is the inclusive lower bound of a passing verification.
	PassScore int `yaml:"pass_score"`
	// FeedbackScore is the inclusive lower bound of the feedback band;
	// scores below it fail outright.
	FeedbackScore int `yaml:"feedback_score"`
	// MissedDeadlineSlashBps is the share of the freelancer counter-stake
	// forfeited to the client when a deadline is missed.
	MissedDeadlineSlashBps uint32 `yaml:"missed_deadline_slash_bps"`
	// LowQualitySlashBps is the share forfeited on a failing score.
	LowQualitySlashBps uint32 `yaml:"low_quality_slash_bps"`
	// CounterStakeBps sizes the default counter-stake required to accept a
	// directly posted job, as a share of the principal.
	CounterStakeBps uint32 `yaml:"counter_stake_bps"`
}

// DefaultPolicy returns the platform defaults: pass at 80, feedback band
// from 60, 30% deadline slash, full low-quality slash, counter-stake at half
// the principal.
func DefaultPolicy() Policy {
	return Policy{
		PassScore:              80,
		FeedbackScore:          60,
		MissedDeadlineSlashBps: 3_000,
		LowQualitySlashBps:     10_000,
		CounterStakeBps:        5_000,
	}
}

// Validate rejects inverted thresholds and out-of-range percentages.
func (p Policy) Validate() error {
	if p.PassScore < 0 || p.PassScore > 100 {
		return fmt.Errorf("escrow: pass score %d out of range", p.PassScore)
	}
	if p.FeedbackScore < 0 || p.FeedbackScore > 100 {
		return fmt.Errorf("escrow: feedback score %d out of range", p.FeedbackScore)
	}
	if p.FeedbackScore > p.PassScore {
		return fmt.Errorf("escrow: feedback score %d above pass score %d", p.FeedbackScore, p.PassScore)
	}
	if p.MissedDeadlineSlashBps > 10_000 {
		return fmt.Errorf("escrow: missed deadline slash bps %d out of range", p.MissedDeadlineSlashBps)
	}
	if p.LowQualitySlashBps > 10_000 {
		return fmt.Errorf("escrow: low quality slash bps %d out of range", p.LowQualitySlashBps)
	}
	if p.CounterStakeBps > 10_000 {
		return fmt.Errorf("escrow: counter stake bps %d out of range", p.CounterStakeBps)
	}
	return nil
}

// LoadPolicy reads a policy override from a YAML file on disk. Fields left
// at zero fall back to the defaults.
func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("open policy: %w", err)
	}
	policy := DefaultPolicy()
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}
