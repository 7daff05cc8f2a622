package escrow

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcutil"
)

func TestSplitConservesTotal(t *testing.T) {
	cases := []struct {
		principal btcutil.Amount
		ratio     float64
	}{
		{10_000_000, 0.4},
		{15_000_000, 0.5},
		{1, 0.5},
		{3, 0.333333},
		{7_777_777, 0.1},
		{5_000_000, 0},
		{5_000_000, 1},
	}
	for _, tc := range cases {
		client, freelancer, err := Split(tc.principal, tc.ratio)
		if err != nil {
			t.Fatalf("split %d @ %f: %v", tc.principal, tc.ratio, err)
		}
		if client+freelancer != tc.principal {
			t.Fatalf("split %d @ %f: %d + %d != total", tc.principal, tc.ratio, client, freelancer)
		}
		if client < 0 || freelancer < 0 {
			t.Fatalf("split %d @ %f produced negative share", tc.principal, tc.ratio)
		}
	}
}

func TestSplitFloorsClientShare(t *testing.T) {
	// 1 satoshi at 50%: the floor gives the client 0 and the remainder,
	// the full satoshi, goes to the freelancer.
	client, freelancer, err := Split(1, 0.5)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if client != 0 || freelancer != 1 {
		t.Fatalf("got client=%d freelancer=%d", client, freelancer)
	}
}

func TestSplitRejectsBadRatio(t *testing.T) {
	for _, ratio := range []float64{-0.1, 1.01, 2} {
		if _, _, err := Split(1_000, ratio); !errors.Is(err, ErrInvalidRatio) {
			t.Fatalf("ratio %f: expected ErrInvalidRatio, got %v", ratio, err)
		}
	}
}

func TestSlashPortion(t *testing.T) {
	cases := []struct {
		amount btcutil.Amount
		bps    uint32
		want   btcutil.Amount
	}{
		{7_500_000, 3_000, 2_250_000},
		{7_500_000, 10_000, 7_500_000},
		{10_000_000, 5_000, 5_000_000},
		{1, 3_000, 0},
		{0, 10_000, 0},
		{3, 3_333, 0},
	}
	for _, tc := range cases {
		if got := slashPortion(tc.amount, tc.bps); got != tc.want {
			t.Fatalf("slashPortion(%d, %d): got %d, want %d", tc.amount, tc.bps, got, tc.want)
		}
	}
}
