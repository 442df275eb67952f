package stableswap

import "github.com/gagliardetto/solana-go"

// StableSwap Program ID
const (
	STABLE_SWAP_PROGRAM_ID = "SSwpkEEcbUqx4vtoEByFjSkhKdCT862DNVb52nZg1UZ"
	TOKEN_PROGRAM_ID       = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

var (
	StableSwapProgramID = solana.MustPublicKeyFromBase58(STABLE_SWAP_PROGRAM_ID)
	TokenProgramID      = solana.MustPublicKeyFromBase58(TOKEN_PROGRAM_ID)
)

// Instruction tags understood by the program dispatcher.
const (
	InstructionInitialize uint8 = 0
	InstructionSwap       uint8 = 1
	InstructionDeposit    uint8 = 2
	InstructionWithdraw   uint8 = 3
)

// StateSpan is the exact size of the persistent pool account record:
// init flag (1) + six 32-byte public keys + three 8-byte LE integers.
const StateSpan = 1 + 6*32 + 3*8

// Token account balance location inside an SPL token account record.
const (
	tokenAccountAmountOffset = 64
	tokenAccountMinLen       = 72
)
