package stableswap

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"stableswap/pkg"
)

// Pool is a point-in-time snapshot of an on-chain StableSwap pool together
// with its identity. It is immutable once constructed; reload to observe
// post-transaction state.
type Pool struct {
	Layout

	PoolId    solana.PublicKey
	ProgramId solana.PublicKey
	Authority solana.PublicKey
	Nonce     uint8
}

var _ pkg.Pool = (*Pool)(nil)

func (p *Pool) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameStableSwap
}

func (p *Pool) GetProgramID() solana.PublicKey {
	return p.ProgramId
}

func (p *Pool) GetID() string {
	return p.PoolId.String()
}

func (p *Pool) GetTokens() (string, string) {
	return p.MintA.String(), p.MintB.String()
}

// Decode hydrates the pool record from raw account bytes and rebinds the
// derived authority. PoolId and ProgramId must already be set.
func (p *Pool) Decode(data []byte) error {
	layout, err := DecodeLayout(data)
	if err != nil {
		return err
	}
	p.Layout = *layout

	authority, nonce, err := DeriveAuthority(p.PoolId, p.ProgramId)
	if err != nil {
		return fmt.Errorf("derive authority for pool %s: %w", p.PoolId, err)
	}
	p.Authority = authority
	p.Nonce = nonce
	return nil
}

// DeriveAuthority computes the program-derived address with exclusive rights
// over the pool's token accounts. The derivation is deterministic over the
// pool account address and program id; the returned nonce is the bump that
// forced the address off the ed25519 curve.
func DeriveAuthority(poolAddress, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{poolAddress.Bytes()}, programID)
}
