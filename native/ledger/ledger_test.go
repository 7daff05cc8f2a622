package ledger

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcutil"
)

func TestDepositAndCommit(t *testing.T) {
	l := New()
	if err := l.Deposit("alice", 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := l.Commit("alice", 400); err != nil {
		t.Fatalf("commit: %v", err)
	}
	acct, ok := l.Account("alice")
	if !ok {
		t.Fatalf("account missing")
	}
	if acct.Balance != 600 || acct.AtRisk != 400 || acct.StakeTotal != 400 {
		t.Fatalf("unexpected account: %+v", acct)
	}
}

func TestCommitInsufficientBalance(t *testing.T) {
	l := New()
	if err := l.Deposit("alice", 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	err := l.Commit("alice", 200)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	acct, _ := l.Account("alice")
	if acct.Balance != 100 || acct.AtRisk != 0 {
		t.Fatalf("failed commit mutated account: %+v", acct)
	}
}

func TestReleaseToFree(t *testing.T) {
	l := New()
	mustDeposit(t, l, "alice", 1_000)
	mustCommit(t, l, "alice", 500)
	if err := l.Release("alice", 500, BucketFree); err != nil {
		t.Fatalf("release: %v", err)
	}
	acct, _ := l.Account("alice")
	if acct.Balance != 1_000 || acct.AtRisk != 0 || acct.StakeTotal != 0 {
		t.Fatalf("unexpected account: %+v", acct)
	}
}

func TestReleaseToLocked(t *testing.T) {
	l := New()
	mustDeposit(t, l, "alice", 1_000)
	mustCommit(t, l, "alice", 500)
	if err := l.Release("alice", 500, BucketLocked); err != nil {
		t.Fatalf("release: %v", err)
	}
	acct, _ := l.Account("alice")
	if acct.Locked != 500 || acct.AtRisk != 0 {
		t.Fatalf("unexpected account: %+v", acct)
	}
	// Moving at-risk to locked keeps the stake committed.
	if acct.StakeTotal != 500 {
		t.Fatalf("stake total changed: %+v", acct)
	}
	if acct.StakeTotal != acct.AtRisk+acct.Locked {
		t.Fatalf("stake invariant broken: %+v", acct)
	}
}

func TestReleaseMoreThanAtRisk(t *testing.T) {
	l := New()
	mustDeposit(t, l, "alice", 1_000)
	mustCommit(t, l, "alice", 300)
	err := l.Release("alice", 400, BucketFree)
	if !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("expected ErrInsufficientStake, got %v", err)
	}
}

func TestSlashMovesToBeneficiary(t *testing.T) {
	l := New()
	mustDeposit(t, l, "alice", 1_000)
	mustCommit(t, l, "alice", 600)
	if err := l.Slash("alice", 600, "bob"); err != nil {
		t.Fatalf("slash: %v", err)
	}
	alice, _ := l.Account("alice")
	if alice.AtRisk != 0 || alice.StakeTotal != 0 || alice.Balance != 400 {
		t.Fatalf("unexpected slashed account: %+v", alice)
	}
	bob, _ := l.Account("bob")
	if bob.Balance != 600 {
		t.Fatalf("beneficiary did not receive funds: %+v", bob)
	}
}

func TestSlashInsufficientStake(t *testing.T) {
	l := New()
	mustDeposit(t, l, "alice", 1_000)
	mustCommit(t, l, "alice", 100)
	err := l.Slash("alice", 200, "bob")
	if !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("expected ErrInsufficientStake, got %v", err)
	}
	if _, ok := l.Account("bob"); ok {
		t.Fatalf("beneficiary credited on failed slash")
	}
}

func TestNegativeAmountsRejected(t *testing.T) {
	l := New()
	if err := l.Deposit("alice", -1); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("deposit: expected ErrNegativeAmount, got %v", err)
	}
	if err := l.Commit("alice", -1); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("commit: expected ErrNegativeAmount, got %v", err)
	}
	if err := l.Slash("alice", -1, "bob"); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("slash: expected ErrNegativeAmount, got %v", err)
	}
}

func TestZeroAmountNoOp(t *testing.T) {
	l := New()
	if err := l.Commit("ghost", 0); err != nil {
		t.Fatalf("zero commit should no-op: %v", err)
	}
	if err := l.Release("ghost", 0, BucketFree); err != nil {
		t.Fatalf("zero release should no-op: %v", err)
	}
	if _, ok := l.Account("ghost"); ok {
		t.Fatalf("zero op materialised an account")
	}
}

func TestSnapshotRestore(t *testing.T) {
	l := New()
	mustDeposit(t, l, "alice", 1_000)
	mustCommit(t, l, "alice", 250)
	snap := l.Snapshot()

	if err := l.Slash("alice", 250, "bob"); err != nil {
		t.Fatalf("slash: %v", err)
	}
	l.Restore(snap)

	acct, _ := l.Account("alice")
	if acct.AtRisk != 250 || acct.Balance != 750 {
		t.Fatalf("restore did not revert: %+v", acct)
	}
	if _, ok := l.Account("bob"); ok {
		t.Fatalf("restore kept beneficiary account")
	}
}

func mustDeposit(t *testing.T, l *Ledger, actor string, amount btcutil.Amount) {
	t.Helper()
	if err := l.Deposit(actor, amount); err != nil {
		t.Fatalf("deposit %s: %v", actor, err)
	}
}

func mustCommit(t *testing.T, l *Ledger, actor string, amount btcutil.Amount) {
	t.Helper()
	if err := l.Commit(actor, amount); err != nil {
		t.Fatalf("commit %s: %v", actor, err)
	}
}

func TestSettleAppliesBatchAtomically(t *testing.T) {
	l := New()
	mustDeposit(t, l, "alice", 1_000)
	mustDeposit(t, l, "bob", 500)
	mustCommit(t, l, "alice", 400)
	mustCommit(t, l, "bob", 200)

	if err := l.Settle(
		Move{Kind: MoveSlash, Actor: "alice", Amount: 400, Beneficiary: "bob"},
		Move{Kind: MoveRelease, Actor: "bob", Amount: 200, Dest: BucketLocked},
	); err != nil {
		t.Fatalf("settle: %v", err)
	}
	alice, _ := l.Account("alice")
	if alice.Balance != 600 || alice.AtRisk != 0 || alice.StakeTotal != 0 {
		t.Fatalf("unexpected alice: %+v", alice)
	}
	bob, _ := l.Account("bob")
	if bob.Balance != 700 || bob.AtRisk != 0 || bob.Locked != 200 || bob.StakeTotal != 200 {
		t.Fatalf("unexpected bob: %+v", bob)
	}
}

func TestSettleRejectedBatchLeavesAccountsUntouched(t *testing.T) {
	l := New()
	mustDeposit(t, l, "alice", 1_000)
	mustDeposit(t, l, "bob", 500)
	mustCommit(t, l, "alice", 400)

	// The second move exceeds bob's at-risk stake; the slash staged before it
	// must not land either.
	err := l.Settle(
		Move{Kind: MoveSlash, Actor: "alice", Amount: 400, Beneficiary: "bob"},
		Move{Kind: MoveRelease, Actor: "bob", Amount: 200, Dest: BucketFree},
	)
	if !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("expected ErrInsufficientStake, got %v", err)
	}
	alice, _ := l.Account("alice")
	if alice.Balance != 600 || alice.AtRisk != 400 {
		t.Fatalf("rejected batch mutated alice: %+v", alice)
	}
	bob, _ := l.Account("bob")
	if bob.Balance != 500 || bob.AtRisk != 0 {
		t.Fatalf("rejected batch mutated bob: %+v", bob)
	}
}

func TestSettleSeesEarlierMovesInBatch(t *testing.T) {
	l := New()
	mustDeposit(t, l, "alice", 1_000)
	mustCommit(t, l, "alice", 400)

	// Both releases draw from the same staged account; together they consume
	// exactly the at-risk bucket.
	if err := l.Settle(
		Move{Kind: MoveRelease, Actor: "alice", Amount: 300, Dest: BucketFree},
		Move{Kind: MoveRelease, Actor: "alice", Amount: 100, Dest: BucketFree},
	); err != nil {
		t.Fatalf("settle: %v", err)
	}
	acct, _ := l.Account("alice")
	if acct.Balance != 1_000 || acct.AtRisk != 0 || acct.StakeTotal != 0 {
		t.Fatalf("unexpected account: %+v", acct)
	}
}
