package escrow

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"
)

// JobStatus represents the lifecycle states of an escrowed job.
type JobStatus uint8

const (
	JobOpen JobStatus = iota
	JobInProgress
	JobSubmitted
	JobAIVerified
	JobDisputed
	JobCompleted
	JobRefunded
	JobSlashed
)

var jobStatusNames = map[JobStatus]string{
	JobOpen:       "open",
	JobInProgress: "in_progress",
	JobSubmitted:  "submitted",
	JobAIVerified: "ai_verified",
	JobDisputed:   "disputed",
	JobCompleted:  "completed",
	JobRefunded:   "refunded",
	JobSlashed:    "slashed",
}

// String returns the canonical lowercase name of the status.
func (s JobStatus) String() string {
	if name, ok := jobStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// Valid reports whether the status value is within the supported range.
func (s JobStatus) Valid() bool {
	_, ok := jobStatusNames[s]
	return ok
}

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobRefunded, JobSlashed:
		return true
	default:
		return false
	}
}

// ParseJobStatus resolves a canonical status name back to its value.
func ParseJobStatus(name string) (JobStatus, error) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	for status, candidate := range jobStatusNames {
		if candidate == trimmed {
			return status, nil
		}
	}
	return 0, fmt.Errorf("escrow: unknown job status %q", name)
}

// DisputeReason records why a job entered the disputed state. The reason
// chooses the settlement rule applied by ResolveDispute.
type DisputeReason string

const (
	DisputeMissedDeadline DisputeReason = "missed_deadline"
	DisputeLowQuality     DisputeReason = "low_quality"
	DisputeManual         DisputeReason = "manual"
)

// Valid reports whether the reason is one of the supported values.
func (r DisputeReason) Valid() bool {
	switch r {
	case DisputeMissedDeadline, DisputeLowQuality, DisputeManual:
		return true
	default:
		return false
	}
}

// Job is a single unit of escrowed work. The identifier is immutable once
// created; the file manifest is append-only while the job is in progress.
type Job struct {
	ID           string
	Title        string
	Requirements string
	Description  string
	Client       string
	Freelancer   string
	Stake        btcutil.Amount
	CounterStake btcutil.Amount
	Deadline     int64
	CreatedAt    int64
	SubmittedAt  int64
	Files        []string
	Manifest     [32]byte
	Score        *int
	Notes        string
	Status       JobStatus
	Reason       DisputeReason
	ContractID   string
}

// Clone returns a deep copy so callers can mutate the copy without affecting
// the stored instance.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	clone := *j
	clone.Files = append([]string(nil), j.Files...)
	if j.Score != nil {
		score := *j.Score
		clone.Score = &score
	}
	return &clone
}

// SanitizeJob validates the supplied job and returns a normalised clone. The
// status/score consistency rule is enforced here: a score may only be present
// once the job has reached the submitted stage.
func SanitizeJob(j *Job) (*Job, error) {
	if j == nil {
		return nil, fmt.Errorf("escrow: nil job")
	}
	clone := j.Clone()
	clone.Client = strings.TrimSpace(clone.Client)
	clone.Freelancer = strings.TrimSpace(clone.Freelancer)
	if strings.TrimSpace(clone.ID) == "" {
		return nil, fmt.Errorf("escrow: job id required")
	}
	if clone.Client == "" {
		return nil, fmt.Errorf("escrow: job client required")
	}
	if clone.Stake < 0 || clone.CounterStake < 0 {
		return nil, fmt.Errorf("escrow: job stake must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("escrow: invalid job status: %d", clone.Status)
	}
	if clone.Score != nil {
		if *clone.Score < 0 || *clone.Score > 100 {
			return nil, fmt.Errorf("escrow: score %d out of range", *clone.Score)
		}
		switch clone.Status {
		case JobSubmitted, JobAIVerified, JobCompleted, JobDisputed, JobRefunded, JobSlashed:
		default:
			return nil, fmt.Errorf("escrow: score set while job is %s", clone.Status)
		}
	}
	if clone.Reason != "" && !clone.Reason.Valid() {
		return nil, fmt.Errorf("escrow: invalid dispute reason %q", clone.Reason)
	}
	return clone, nil
}

// ManifestDigest computes the deterministic digest of a submitted file
// manifest. Order matters: the manifest is append-only, so the same uploads
// in the same order always produce the same digest.
func ManifestDigest(files []string) [32]byte {
	h := blake3.New(32, nil)
	for _, name := range files {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// JobOffer is an unaccepted proposal published by a client. Accepting an
// offer converts it into a Job atomically; the offer then ceases to exist.
type JobOffer struct {
	ID           string
	Title        string
	Client       string
	Stake        btcutil.Amount
	Required     btcutil.Amount
	DurationDays int64
	Skills       []string
	Description  string
	CreatedAt    int64
}

// Clone returns a deep copy of the offer.
func (o *JobOffer) Clone() *JobOffer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Skills = append([]string(nil), o.Skills...)
	return &clone
}

// SanitizeOffer validates and normalises an offer definition.
func SanitizeOffer(o *JobOffer) (*JobOffer, error) {
	if o == nil {
		return nil, fmt.Errorf("escrow: nil offer")
	}
	clone := o.Clone()
	clone.Client = strings.TrimSpace(clone.Client)
	if strings.TrimSpace(clone.ID) == "" {
		return nil, fmt.Errorf("escrow: offer id required")
	}
	if clone.Client == "" {
		return nil, fmt.Errorf("escrow: offer client required")
	}
	if clone.Stake <= 0 {
		return nil, fmt.Errorf("escrow: offer stake must be positive")
	}
	if clone.Required < 0 {
		return nil, fmt.Errorf("escrow: offer counter-stake must be non-negative")
	}
	if clone.DurationDays <= 0 {
		return nil, fmt.Errorf("escrow: offer duration must be positive")
	}
	return clone, nil
}

// ContractStatus mirrors the job lifecycle for the anchoring record.
type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractCompleted ContractStatus = "completed"
	ContractDisputed  ContractStatus = "disputed"
)

// Contract anchors one escrow instance. It is a thin ledger-anchoring record,
// not a state machine of its own; its status follows the job it belongs to.
type Contract struct {
	ID        string
	Address   string
	JobID     string
	CreatedAt int64
	Status    ContractStatus
}

// Clone returns a copy of the contract record.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ContractAddress derives the deterministic address of a job's escrow
// contract from its participants and identifier.
func ContractAddress(client, freelancer, jobID string) string {
	sum := ethcrypto.Keccak256([]byte(client), []byte(freelancer), []byte(jobID))
	return "0x" + hex.EncodeToString(sum[12:])
}

// VerificationResult is the grader's one-shot verdict for a submission. The
// engine consumes the score to drive a transition and discards the rest;
// feedback lists exist for display only and are never re-read afterwards.
type VerificationResult struct {
	Score           int      `json:"score"`
	Issues          []string `json:"issues,omitempty"`
	Strengths       []string `json:"strengths,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}
