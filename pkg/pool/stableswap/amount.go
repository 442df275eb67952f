package stableswap

import (
	"fmt"

	"cosmossdk.io/math"
)

// NormalizeAmount converts a caller-supplied amount into the fixed-width
// wire representation. Negative values and values that do not fit in 64
// bits are rejected before any encoding happens.
func NormalizeAmount(name string, v math.Int) (uint64, error) {
	if v.IsNil() {
		return 0, fmt.Errorf("%w: %s is nil", ErrValueOutOfRange, name)
	}
	if v.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative (%s)", ErrValueOutOfRange, name, v)
	}
	big := v.BigInt()
	if !big.IsUint64() {
		return 0, fmt.Errorf("%w: %s exceeds 2^64-1 (%s)", ErrValueOutOfRange, name, v)
	}
	return big.Uint64(), nil
}
