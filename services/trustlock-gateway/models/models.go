package models

import (
	"time"

	"github.com/google/uuid"
)

// Role enumerations for persistence.
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleArbiter    = "arbiter"
)

// Job is the persisted form of an escrowed job. Monetary columns are
// satoshis; the engine owns every state transition and the gateway only
// writes rows through the engine's state adapter.
type Job struct {
	ID           string `gorm:"primaryKey;size:64"`
	Title        string `gorm:"size:256"`
	Requirements string
	Description  string
	Client       string `gorm:"index;size:128"`
	Freelancer   string `gorm:"index;size:128"`
	StakeSats    int64  `gorm:"not null"`
	CounterSats  int64  `gorm:"not null"`
	Deadline     int64  `gorm:"index"`
	CreatedAt    int64
	SubmittedAt  int64
	Files        string `gorm:"type:text"`
	Manifest     string `gorm:"size:64"`
	Score        *int
	Notes        string
	Status       string `gorm:"index;size:32"`
	Reason       string `gorm:"size:32"`
	ContractID   string `gorm:"index;size:64"`
	UpdatedAt    time.Time
}

// Offer is a published job offer awaiting acceptance.
type Offer struct {
	ID           string `gorm:"primaryKey;size:64"`
	Title        string `gorm:"size:256"`
	Client       string `gorm:"index;size:128"`
	StakeSats    int64  `gorm:"not null"`
	RequiredSats int64  `gorm:"not null"`
	DurationDays int64
	Skills       string `gorm:"type:text"`
	Description  string
	CreatedAt    int64
	UpdatedAt    time.Time
}

// Contract anchors one escrow instance to its deterministic address.
type Contract struct {
	ID        string `gorm:"primaryKey;size:64"`
	Address   string `gorm:"uniqueIndex;size:64"`
	JobID     string `gorm:"index;size:64"`
	CreatedAt int64
	Status    string `gorm:"index;size:32"`
	UpdatedAt time.Time
}

// WalletAccount snapshots one actor's ledger position. The in-memory ledger
// is authoritative while the process runs; rows are rewritten after every
// settling transition so a restart can rebuild the ledger.
type WalletAccount struct {
	Actor      string `gorm:"primaryKey;size:128"`
	Balance    int64  `gorm:"not null"`
	StakeTotal int64  `gorm:"not null"`
	AtRisk     int64  `gorm:"not null"`
	Locked     int64  `gorm:"not null"`
	UpdatedAt  time.Time
}

// IdempotencyKey caches the response of a completed mutation so replays
// return the original outcome instead of re-executing. RequestHash pins the
// key to the request that first used it; reuse with a different request is
// rejected rather than replayed.
type IdempotencyKey struct {
	Key         string    `gorm:"primaryKey;size:128"`
	RequestID   string    `gorm:"size:64"`
	Method      string    `gorm:"size:16"`
	Path        string    `gorm:"size:256"`
	RequestHash string    `gorm:"size:64"`
	Status      int       `gorm:"not null"`
	Response    string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"index"`
}

// SettlementRecord is an append-only audit row written whenever a job
// reaches a terminal state. The reconciliation exporter reads these.
type SettlementRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobID          string    `gorm:"index;size:64"`
	Client         string    `gorm:"size:128"`
	Freelancer     string    `gorm:"size:128"`
	Outcome        string    `gorm:"index;size:32"`
	Reason         string    `gorm:"size:32"`
	StakeSats      int64
	CounterSats    int64
	ClientSats     int64
	FreelancerSats int64
	SettledAt      time.Time `gorm:"index"`
}

// All returns every model registered for migration.
func All() []any {
	return []any{
		&Job{},
		&Offer{},
		&Contract{},
		&WalletAccount{},
		&IdempotencyKey{},
		&SettlementRecord{},
	}
}
