package escrow

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcutil"
)

// ErrInvalidRatio rejects dispute split ratios outside [0, 1].
var ErrInvalidRatio = errors.New("escrow: client share ratio out of range")

// Split divides a disputed principal between the client and the freelancer
// according to an externally arbitrated ratio. The client receives
// floor(principal * ratio) and the freelancer the remainder, so the two
// shares always reconstruct the principal exactly with no rounding loss.
func Split(principal btcutil.Amount, clientShareRatio float64) (btcutil.Amount, btcutil.Amount, error) {
	if principal < 0 {
		return 0, 0, fmt.Errorf("escrow: principal must be non-negative")
	}
	if clientShareRatio < 0 || clientShareRatio > 1 {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidRatio, clientShareRatio)
	}
	ratio := new(big.Rat).SetFloat64(clientShareRatio)
	if ratio == nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidRatio, clientShareRatio)
	}
	scaled := new(big.Int).Mul(big.NewInt(int64(principal)), ratio.Num())
	scaled.Quo(scaled, ratio.Denom())
	clientAmount := btcutil.Amount(scaled.Int64())
	return clientAmount, principal - clientAmount, nil
}

// slashPortion computes floor(amount * bps / 10000) using integer math, the
// same basis-point division applied to escrow fees.
func slashPortion(amount btcutil.Amount, bps uint32) btcutil.Amount {
	portion := new(big.Int).Mul(big.NewInt(int64(amount)), new(big.Int).SetUint64(uint64(bps)))
	portion.Quo(portion, big.NewInt(10_000))
	return btcutil.Amount(portion.Int64())
}
