package stableswap

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Layout is the decoded persistent pool account record. The field order
// mirrors the program's struct layout and must not be rearranged.
type Layout struct {
	IsInitialized  bool
	PoolTokenMint  solana.PublicKey
	TokenAccountA  solana.PublicKey
	TokenAccountB  solana.PublicKey
	MintA          solana.PublicKey
	MintB          solana.PublicKey
	TokenProgramID solana.PublicKey
	AmpFactor      uint64
	FeeNumerator   uint64
	FeeDenominator uint64
}

// DecodeLayout parses a fetched pool account blob. The blob must be exactly
// StateSpan bytes and carry a recognized boolean init flag; anything else is
// rejected as malformed.
func DecodeLayout(data []byte) (*Layout, error) {
	if len(data) != StateSpan {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedAccount, StateSpan, len(data))
	}

	l := &Layout{}
	offset := 0

	switch data[offset] {
	case 0:
		l.IsInitialized = false
	case 1:
		l.IsInitialized = true
	default:
		return nil, fmt.Errorf("%w: unrecognized init flag byte 0x%02x", ErrMalformedAccount, data[offset])
	}
	offset++

	copy(l.PoolTokenMint[:], data[offset:offset+32])
	offset += 32
	copy(l.TokenAccountA[:], data[offset:offset+32])
	offset += 32
	copy(l.TokenAccountB[:], data[offset:offset+32])
	offset += 32
	copy(l.MintA[:], data[offset:offset+32])
	offset += 32
	copy(l.MintB[:], data[offset:offset+32])
	offset += 32
	copy(l.TokenProgramID[:], data[offset:offset+32])
	offset += 32

	l.AmpFactor = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	l.FeeNumerator = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	l.FeeDenominator = binary.LittleEndian.Uint64(data[offset : offset+8])

	return l, nil
}
