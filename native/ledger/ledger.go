// Package ledger tracks per-actor BTC balances and stake buckets for the
// escrow engine. Funds move between a free balance, an at-risk bucket
// (committed to an active job) and a locked bucket (earned on completion);
// every mutation preserves the stake invariant total == atRisk + locked.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcutil"
)

var (
	// ErrInsufficientBalance is returned when a commit exceeds the actor's
	// free balance. The triggering operation leaves the ledger untouched.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrInsufficientStake is returned when a release or slash exceeds the
	// actor's at-risk stake.
	ErrInsufficientStake = errors.New("ledger: insufficient at-risk stake")
	// ErrNegativeAmount rejects negative amounts before any state is read.
	ErrNegativeAmount = errors.New("ledger: negative amount")
)

// Bucket identifies the destination of a stake release.
type Bucket string

const (
	// BucketFree returns at-risk funds to the actor's spendable balance.
	BucketFree Bucket = "free"
	// BucketLocked marks at-risk funds as earned; they stay counted in the
	// actor's stake total but can no longer be forfeited.
	BucketLocked Bucket = "locked"
)

// Valid reports whether the bucket is a supported release destination.
func (b Bucket) Valid() bool {
	return b == BucketFree || b == BucketLocked
}

// Account aggregates an actor's balance and stake buckets.
type Account struct {
	Balance    btcutil.Amount `json:"balance"`
	StakeTotal btcutil.Amount `json:"stakeTotal"`
	AtRisk     btcutil.Amount `json:"atRisk"`
	Locked     btcutil.Amount `json:"locked"`
}

func (a Account) checkInvariant() error {
	if a.Balance < 0 || a.StakeTotal < 0 || a.AtRisk < 0 || a.Locked < 0 {
		return fmt.Errorf("ledger: negative bucket: %+v", a)
	}
	if a.StakeTotal != a.AtRisk+a.Locked {
		return fmt.Errorf("ledger: stake total %d != atRisk %d + locked %d", a.StakeTotal, a.AtRisk, a.Locked)
	}
	return nil
}

// Ledger is the in-memory authority for actor balances. All operations are
// serialized under a single mutex so cross-actor movements (slashes, payouts)
// are atomic with respect to the stake invariant.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{accounts: make(map[string]*Account)}
}

func (l *Ledger) account(actor string) *Account {
	acc, ok := l.accounts[actor]
	if !ok {
		acc = &Account{}
		l.accounts[actor] = acc
	}
	return acc
}

// Deposit credits the actor's free balance. Deposits originate from the
// external wallet layer once an on-chain funding transaction confirms.
func (l *Ledger) Deposit(actor string, amount btcutil.Amount) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.account(actor).Balance += amount
	return nil
}

// Commit moves funds from the actor's free balance into the at-risk bucket.
// A commit that would drive the balance negative is rejected outright.
func (l *Ledger) Commit(actor string, amount btcutil.Amount) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.account(actor)
	if acc.Balance < amount {
		return fmt.Errorf("%w: %s has %s free, need %s", ErrInsufficientBalance, actor, acc.Balance, amount)
	}
	next := *acc
	next.Balance -= amount
	next.AtRisk += amount
	next.StakeTotal += amount
	if err := next.checkInvariant(); err != nil {
		return err
	}
	*acc = next
	return nil
}

// Release moves at-risk funds back to the actor, either into the free balance
// (refund) or into the locked bucket (earned stake).
func (l *Ledger) Release(actor string, amount btcutil.Amount, dest Bucket) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if !dest.Valid() {
		return fmt.Errorf("ledger: invalid release bucket %q", dest)
	}
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.account(actor)
	if acc.AtRisk < amount {
		return fmt.Errorf("%w: %s has %s at risk, need %s", ErrInsufficientStake, actor, acc.AtRisk, amount)
	}
	next := *acc
	next.AtRisk -= amount
	switch dest {
	case BucketFree:
		next.StakeTotal -= amount
		next.Balance += amount
	case BucketLocked:
		next.Locked += amount
	}
	if err := next.checkInvariant(); err != nil {
		return err
	}
	*acc = next
	return nil
}

// Slash moves at-risk funds from the actor directly to the beneficiary's free
// balance, bypassing the locked bucket. The same movement settles both
// penalty slashes and principal payouts to the counterparty.
func (l *Ledger) Slash(actor string, amount btcutil.Amount, beneficiary string) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.account(actor)
	if acc.AtRisk < amount {
		return fmt.Errorf("%w: %s has %s at risk, need %s", ErrInsufficientStake, actor, acc.AtRisk, amount)
	}
	nextFrom := *acc
	nextFrom.AtRisk -= amount
	nextFrom.StakeTotal -= amount
	if err := nextFrom.checkInvariant(); err != nil {
		return err
	}
	*acc = nextFrom
	l.account(beneficiary).Balance += amount
	return nil
}

// MoveKind selects the movement a Move applies.
type MoveKind uint8

const (
	// MoveRelease returns at-risk funds to the actor's Dest bucket.
	MoveRelease MoveKind = iota + 1
	// MoveSlash forfeits at-risk funds to the beneficiary's balance.
	MoveSlash
)

// Move is one bucket movement inside a Settle batch.
type Move struct {
	Kind        MoveKind
	Actor       string
	Amount      btcutil.Amount
	Dest        Bucket // MoveRelease destination
	Beneficiary string // MoveSlash recipient
}

// Settle applies a batch of movements atomically. Each movement is staged
// against copies of the touched accounts and validated in order; the ledger
// is only assigned once the whole batch checks out, so a rejected batch
// leaves every account untouched.
func (l *Ledger) Settle(moves ...Move) error {
	for _, m := range moves {
		if m.Amount < 0 {
			return ErrNegativeAmount
		}
		if m.Kind == MoveRelease && !m.Dest.Valid() {
			return fmt.Errorf("ledger: invalid release bucket %q", m.Dest)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	staged := make(map[string]*Account, len(moves))
	stage := func(actor string) *Account {
		acc, ok := staged[actor]
		if !ok {
			copied := *l.account(actor)
			acc = &copied
			staged[actor] = acc
		}
		return acc
	}
	for _, m := range moves {
		if m.Amount == 0 {
			continue
		}
		acc := stage(m.Actor)
		if acc.AtRisk < m.Amount {
			return fmt.Errorf("%w: %s has %s at risk, need %s", ErrInsufficientStake, m.Actor, acc.AtRisk, m.Amount)
		}
		switch m.Kind {
		case MoveRelease:
			acc.AtRisk -= m.Amount
			switch m.Dest {
			case BucketFree:
				acc.StakeTotal -= m.Amount
				acc.Balance += m.Amount
			case BucketLocked:
				acc.Locked += m.Amount
			}
		case MoveSlash:
			acc.AtRisk -= m.Amount
			acc.StakeTotal -= m.Amount
			stage(m.Beneficiary).Balance += m.Amount
		default:
			return fmt.Errorf("ledger: unknown move kind %d", m.Kind)
		}
		if err := acc.checkInvariant(); err != nil {
			return err
		}
	}
	for actor, acc := range staged {
		*l.account(actor) = *acc
	}
	return nil
}

// Account returns a copy of the actor's aggregate position.
func (l *Ledger) Account(actor string) (Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[actor]
	if !ok {
		return Account{}, false
	}
	return *acc, true
}

// Snapshot returns a copy of every account, keyed by actor.
func (l *Ledger) Snapshot() map[string]Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Account, len(l.accounts))
	for actor, acc := range l.accounts {
		out[actor] = *acc
	}
	return out
}

// Restore replaces the ledger contents with a previously captured snapshot.
// Accounts violating the stake invariant are rejected before any mutation.
func (l *Ledger) Restore(accounts map[string]Account) error {
	for actor, acc := range accounts {
		if err := acc.checkInvariant(); err != nil {
			return fmt.Errorf("restore %s: %w", actor, err)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts = make(map[string]*Account, len(accounts))
	for actor, acc := range accounts {
		copied := acc
		l.accounts[actor] = &copied
	}
	return nil
}
