package escrow

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPolicyValid(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestPolicyValidateRejects(t *testing.T) {
	for name, mutate := range map[string]func(*Policy){
		"pass below feedback": func(p *Policy) { p.PassScore = 50 },
		"pass above 100":      func(p *Policy) { p.PassScore = 101 },
		"negative feedback":   func(p *Policy) { p.FeedbackScore = -1 },
		"slash over 100%":     func(p *Policy) { p.MissedDeadlineSlashBps = 10_001 },
		"bond over 100%":      func(p *Policy) { p.CounterStakeBps = 10_001 },
	} {
		policy := DefaultPolicy()
		mutate(&policy)
		if err := policy.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadPolicyOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	body := "pass_score: 90\nmissed_deadline_slash_bps: 2000\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if policy.PassScore != 90 || policy.MissedDeadlineSlashBps != 2_000 {
		t.Fatalf("overrides not applied: %+v", policy)
	}
	// Untouched fields keep their defaults.
	if policy.FeedbackScore != DefaultPolicy().FeedbackScore {
		t.Fatalf("defaults lost: %+v", policy)
	}
}

func TestLoadPolicyRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("pass_score: 10\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("expected error for pass below feedback threshold")
	}
}
