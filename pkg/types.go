package pkg

import (
	"github.com/gagliardetto/solana-go"
)

type ProtocolName string

const (
	ProtocolNameStableSwap ProtocolName = "stableswap"
)

// Pool is the minimal surface a decoded on-chain pool exposes to callers
// that do not care about the concrete protocol.
type Pool interface {
	ProtocolName() ProtocolName
	GetProgramID() solana.PublicKey
	GetID() string
	GetTokens() (string, string)
	Decode(data []byte) error
}
