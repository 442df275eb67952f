package stableswap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"cosmossdk.io/math"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// The account-reference order and writability flags below are part of the
// wire contract with the program dispatcher. Changing either corrupts the
// dispatch, not just the payload.

// InitializeInstruction creates a pool record in an already-allocated
// account owned by the program.
type InitializeInstruction struct {
	bin.BaseVariant
	Nonce          uint8
	AmpFactor      uint64
	FeeNumerator   uint64
	FeeDenominator uint64

	programID               solana.PublicKey
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

func NewInitializeInstruction(
	programID solana.PublicKey,
	poolAccount solana.PublicKey,
	authority solana.PublicKey,
	tokenAccountA solana.PublicKey,
	tokenAccountB solana.PublicKey,
	poolTokenMint solana.PublicKey,
	destinationPoolTokenAccount solana.PublicKey,
	tokenProgramID solana.PublicKey,
	nonce uint8,
	ampFactor math.Int,
	feeNumerator math.Int,
	feeDenominator math.Int,
) (*InitializeInstruction, error) {
	amp, err := NormalizeAmount("ampFactor", ampFactor)
	if err != nil {
		return nil, err
	}
	feeNum, err := NormalizeAmount("feeNumerator", feeNumerator)
	if err != nil {
		return nil, err
	}
	feeDen, err := NormalizeAmount("feeDenominator", feeDenominator)
	if err != nil {
		return nil, err
	}

	inst := &InitializeInstruction{
		Nonce:          nonce,
		AmpFactor:      amp,
		FeeNumerator:   feeNum,
		FeeDenominator: feeDen,
		programID:      programID,
	}
	inst.BaseVariant = bin.BaseVariant{Impl: inst}
	inst.AccountMetaSlice = make(solana.AccountMetaSlice, 7)
	inst.AccountMetaSlice[0] = solana.NewAccountMeta(poolAccount, true, false)
	inst.AccountMetaSlice[1] = solana.NewAccountMeta(authority, false, false)
	inst.AccountMetaSlice[2] = solana.NewAccountMeta(tokenAccountA, false, false)
	inst.AccountMetaSlice[3] = solana.NewAccountMeta(tokenAccountB, false, false)
	inst.AccountMetaSlice[4] = solana.NewAccountMeta(poolTokenMint, true, false)
	inst.AccountMetaSlice[5] = solana.NewAccountMeta(destinationPoolTokenAccount, true, false)
	inst.AccountMetaSlice[6] = solana.NewAccountMeta(tokenProgramID, false, false)
	return inst, nil
}

func (inst *InitializeInstruction) ProgramID() solana.PublicKey {
	return inst.programID
}

func (inst *InitializeInstruction) Accounts() []*solana.AccountMeta {
	return inst.Impl.(solana.AccountsGettable).GetAccounts()
}

func (inst *InitializeInstruction) Data() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(InstructionInitialize)
	buf.WriteByte(inst.Nonce)

	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint64(inst.AmpFactor, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode amp factor: %w", err)
	}
	if err := enc.WriteUint64(inst.FeeNumerator, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode fee numerator: %w", err)
	}
	if err := enc.WriteUint64(inst.FeeDenominator, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode fee denominator: %w", err)
	}
	return buf.Bytes(), nil
}

// SwapInstruction exchanges a fixed input amount for at least
// MinimumAmountOut of the other asset. The slippage bound is enforced
// on-chain; this side only transports it.
type SwapInstruction struct {
	bin.BaseVariant
	AmountIn         uint64
	MinimumAmountOut uint64

	programID               solana.PublicKey
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

func NewSwapInstruction(
	programID solana.PublicKey,
	pool solana.PublicKey,
	authority solana.PublicKey,
	userSource solana.PublicKey,
	poolSource solana.PublicKey,
	poolDestination solana.PublicKey,
	userDestination solana.PublicKey,
	tokenProgramID solana.PublicKey,
	amountIn math.Int,
	minimumAmountOut math.Int,
) (*SwapInstruction, error) {
	in, err := NormalizeAmount("amountIn", amountIn)
	if err != nil {
		return nil, err
	}
	minOut, err := NormalizeAmount("minimumAmountOut", minimumAmountOut)
	if err != nil {
		return nil, err
	}

	inst := &SwapInstruction{
		AmountIn:         in,
		MinimumAmountOut: minOut,
		programID:        programID,
	}
	inst.BaseVariant = bin.BaseVariant{Impl: inst}
	inst.AccountMetaSlice = make(solana.AccountMetaSlice, 7)
	inst.AccountMetaSlice[0] = solana.NewAccountMeta(pool, false, false)
	inst.AccountMetaSlice[1] = solana.NewAccountMeta(authority, false, false)
	inst.AccountMetaSlice[2] = solana.NewAccountMeta(userSource, true, false)
	inst.AccountMetaSlice[3] = solana.NewAccountMeta(poolSource, true, false)
	inst.AccountMetaSlice[4] = solana.NewAccountMeta(poolDestination, true, false)
	inst.AccountMetaSlice[5] = solana.NewAccountMeta(userDestination, true, false)
	inst.AccountMetaSlice[6] = solana.NewAccountMeta(tokenProgramID, false, false)
	return inst, nil
}

func (inst *SwapInstruction) ProgramID() solana.PublicKey {
	return inst.programID
}

func (inst *SwapInstruction) Accounts() []*solana.AccountMeta {
	return inst.Impl.(solana.AccountsGettable).GetAccounts()
}

func (inst *SwapInstruction) Data() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(InstructionSwap)

	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint64(inst.AmountIn, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode amount in: %w", err)
	}
	if err := enc.WriteUint64(inst.MinimumAmountOut, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode minimum amount out: %w", err)
	}
	return buf.Bytes(), nil
}

// DepositInstruction adds both assets to the pool in exchange for at least
// MinimumPoolTokenAmount of the liquidity mint.
type DepositInstruction struct {
	bin.BaseVariant
	TokenAmountA           uint64
	TokenAmountB           uint64
	MinimumPoolTokenAmount uint64

	programID               solana.PublicKey
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

func NewDepositInstruction(
	programID solana.PublicKey,
	pool solana.PublicKey,
	authority solana.PublicKey,
	userAccountA solana.PublicKey,
	userAccountB solana.PublicKey,
	poolTokenAccountA solana.PublicKey,
	poolTokenAccountB solana.PublicKey,
	poolTokenMint solana.PublicKey,
	destinationPoolAccount solana.PublicKey,
	tokenProgramID solana.PublicKey,
	tokenAmountA math.Int,
	tokenAmountB math.Int,
	minimumPoolTokenAmount math.Int,
) (*DepositInstruction, error) {
	amountA, err := NormalizeAmount("tokenAmountA", tokenAmountA)
	if err != nil {
		return nil, err
	}
	amountB, err := NormalizeAmount("tokenAmountB", tokenAmountB)
	if err != nil {
		return nil, err
	}
	minPool, err := NormalizeAmount("minimumPoolTokenAmount", minimumPoolTokenAmount)
	if err != nil {
		return nil, err
	}

	inst := &DepositInstruction{
		TokenAmountA:           amountA,
		TokenAmountB:           amountB,
		MinimumPoolTokenAmount: minPool,
		programID:              programID,
	}
	inst.BaseVariant = bin.BaseVariant{Impl: inst}
	inst.AccountMetaSlice = make(solana.AccountMetaSlice, 9)
	inst.AccountMetaSlice[0] = solana.NewAccountMeta(pool, false, false)
	inst.AccountMetaSlice[1] = solana.NewAccountMeta(authority, false, false)
	inst.AccountMetaSlice[2] = solana.NewAccountMeta(userAccountA, true, false)
	inst.AccountMetaSlice[3] = solana.NewAccountMeta(userAccountB, true, false)
	inst.AccountMetaSlice[4] = solana.NewAccountMeta(poolTokenAccountA, true, false)
	inst.AccountMetaSlice[5] = solana.NewAccountMeta(poolTokenAccountB, true, false)
	inst.AccountMetaSlice[6] = solana.NewAccountMeta(poolTokenMint, true, false)
	inst.AccountMetaSlice[7] = solana.NewAccountMeta(destinationPoolAccount, true, false)
	inst.AccountMetaSlice[8] = solana.NewAccountMeta(tokenProgramID, false, false)
	return inst, nil
}

func (inst *DepositInstruction) ProgramID() solana.PublicKey {
	return inst.programID
}

func (inst *DepositInstruction) Accounts() []*solana.AccountMeta {
	return inst.Impl.(solana.AccountsGettable).GetAccounts()
}

func (inst *DepositInstruction) Data() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(InstructionDeposit)

	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint64(inst.TokenAmountA, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode token amount a: %w", err)
	}
	if err := enc.WriteUint64(inst.TokenAmountB, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode token amount b: %w", err)
	}
	if err := enc.WriteUint64(inst.MinimumPoolTokenAmount, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode minimum pool token amount: %w", err)
	}
	return buf.Bytes(), nil
}

// WithdrawInstruction burns PoolTokenAmount of the liquidity mint and pays
// out both assets, bounded below by the two minimums.
type WithdrawInstruction struct {
	bin.BaseVariant
	PoolTokenAmount uint64
	MinimumTokenA   uint64
	MinimumTokenB   uint64

	programID               solana.PublicKey
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

func NewWithdrawInstruction(
	programID solana.PublicKey,
	pool solana.PublicKey,
	authority solana.PublicKey,
	poolTokenMint solana.PublicKey,
	sourcePoolAccount solana.PublicKey,
	poolTokenAccountA solana.PublicKey,
	poolTokenAccountB solana.PublicKey,
	userAccountA solana.PublicKey,
	userAccountB solana.PublicKey,
	tokenProgramID solana.PublicKey,
	poolTokenAmount math.Int,
	minimumTokenA math.Int,
	minimumTokenB math.Int,
) (*WithdrawInstruction, error) {
	poolAmount, err := NormalizeAmount("poolTokenAmount", poolTokenAmount)
	if err != nil {
		return nil, err
	}
	minA, err := NormalizeAmount("minimumTokenA", minimumTokenA)
	if err != nil {
		return nil, err
	}
	minB, err := NormalizeAmount("minimumTokenB", minimumTokenB)
	if err != nil {
		return nil, err
	}

	inst := &WithdrawInstruction{
		PoolTokenAmount: poolAmount,
		MinimumTokenA:   minA,
		MinimumTokenB:   minB,
		programID:       programID,
	}
	inst.BaseVariant = bin.BaseVariant{Impl: inst}
	inst.AccountMetaSlice = make(solana.AccountMetaSlice, 9)
	inst.AccountMetaSlice[0] = solana.NewAccountMeta(pool, false, false)
	inst.AccountMetaSlice[1] = solana.NewAccountMeta(authority, false, false)
	inst.AccountMetaSlice[2] = solana.NewAccountMeta(poolTokenMint, true, false)
	inst.AccountMetaSlice[3] = solana.NewAccountMeta(sourcePoolAccount, true, false)
	inst.AccountMetaSlice[4] = solana.NewAccountMeta(poolTokenAccountA, true, false)
	inst.AccountMetaSlice[5] = solana.NewAccountMeta(poolTokenAccountB, true, false)
	inst.AccountMetaSlice[6] = solana.NewAccountMeta(userAccountA, true, false)
	inst.AccountMetaSlice[7] = solana.NewAccountMeta(userAccountB, true, false)
	inst.AccountMetaSlice[8] = solana.NewAccountMeta(tokenProgramID, false, false)
	return inst, nil
}

func (inst *WithdrawInstruction) ProgramID() solana.PublicKey {
	return inst.programID
}

func (inst *WithdrawInstruction) Accounts() []*solana.AccountMeta {
	return inst.Impl.(solana.AccountsGettable).GetAccounts()
}

func (inst *WithdrawInstruction) Data() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(InstructionWithdraw)

	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint64(inst.PoolTokenAmount, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode pool token amount: %w", err)
	}
	if err := enc.WriteUint64(inst.MinimumTokenA, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode minimum token a: %w", err)
	}
	if err := enc.WriteUint64(inst.MinimumTokenB, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode minimum token b: %w", err)
	}
	return buf.Bytes(), nil
}
