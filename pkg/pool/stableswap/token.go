package stableswap

import (
	"encoding/binary"
	"fmt"
)

// ParseTokenAccountBalance extracts the u64 balance from a raw SPL token
// account record.
func ParseTokenAccountBalance(data []byte) (uint64, error) {
	if len(data) < tokenAccountMinLen {
		return 0, fmt.Errorf("%w: token account data too short (%d bytes)", ErrMalformedAccount, len(data))
	}
	return binary.LittleEndian.Uint64(data[tokenAccountAmountOffset : tokenAccountAmountOffset+8]), nil
}
