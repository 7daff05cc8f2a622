package escrow

import (
	"strings"
	"testing"
)

func TestJobStatusRoundTrip(t *testing.T) {
	for status := range jobStatusNames {
		parsed, err := ParseJobStatus(status.String())
		if err != nil {
			t.Fatalf("parse %s: %v", status, err)
		}
		if parsed != status {
			t.Fatalf("round trip %s: got %s", status, parsed)
		}
	}
	if _, err := ParseJobStatus("nonsense"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := map[JobStatus]bool{
		JobCompleted: true,
		JobRefunded:  true,
		JobSlashed:   true,
	}
	for status := range jobStatusNames {
		if status.Terminal() != terminal[status] {
			t.Fatalf("%s: terminal=%v", status, status.Terminal())
		}
	}
}

func TestSanitizeJobScoreConsistency(t *testing.T) {
	score := 85
	job := &Job{ID: "j1", Client: "c", Stake: 1_000, Status: JobInProgress, Score: &score}
	if _, err := SanitizeJob(job); err == nil {
		t.Fatal("expected error: score set before submission")
	}
	job.Status = JobSubmitted
	if _, err := SanitizeJob(job); err != nil {
		t.Fatalf("sanitize submitted: %v", err)
	}
	bad := 101
	job.Score = &bad
	if _, err := SanitizeJob(job); err == nil {
		t.Fatal("expected error: score out of range")
	}
}

func TestCloneIsDeep(t *testing.T) {
	score := 90
	job := &Job{ID: "j1", Client: "c", Files: []string{"a"}, Score: &score, Status: JobSubmitted}
	clone := job.Clone()
	clone.Files[0] = "b"
	*clone.Score = 10
	if job.Files[0] != "a" || *job.Score != 90 {
		t.Fatal("clone shares backing storage")
	}
}

func TestManifestDigestOrderSensitive(t *testing.T) {
	a := ManifestDigest([]string{"one", "two"})
	b := ManifestDigest([]string{"two", "one"})
	if a == b {
		t.Fatal("digest should depend on order")
	}
	// Separator keeps concatenation ambiguity out of the digest.
	c := ManifestDigest([]string{"onetwo"})
	if a == c {
		t.Fatal("digest should distinguish boundaries")
	}
	if a != ManifestDigest([]string{"one", "two"}) {
		t.Fatal("digest should be deterministic")
	}
}

func TestContractAddressShape(t *testing.T) {
	addr := ContractAddress("client", "freelancer", "job-1")
	if !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
		t.Fatalf("unexpected address: %s", addr)
	}
	if addr != ContractAddress("client", "freelancer", "job-1") {
		t.Fatal("address should be deterministic")
	}
	if addr == ContractAddress("client", "freelancer", "job-2") {
		t.Fatal("address should depend on job id")
	}
}

func TestSanitizeOfferRejectsBadInput(t *testing.T) {
	base := JobOffer{ID: "o1", Client: "c", Stake: 1_000, Required: 500, DurationDays: 7}
	if _, err := SanitizeOffer(&base); err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	for name, mutate := range map[string]func(*JobOffer){
		"empty id":       func(o *JobOffer) { o.ID = " " },
		"empty client":   func(o *JobOffer) { o.Client = "" },
		"zero stake":     func(o *JobOffer) { o.Stake = 0 },
		"negative bond":  func(o *JobOffer) { o.Required = -1 },
		"zero duration":  func(o *JobOffer) { o.DurationDays = 0 },
	} {
		offer := base
		mutate(&offer)
		if _, err := SanitizeOffer(&offer); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
