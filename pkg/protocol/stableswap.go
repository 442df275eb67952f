package protocol

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"go.uber.org/zap"
	"stableswap/pkg/pool/stableswap"
	"stableswap/pkg/sol"
	"stableswap/pkg/subscription"
)

// StableSwap is the client for one on-chain StableSwap pool. It holds a
// point-in-time descriptor snapshot; operations never refresh it, reload
// with LoadStableSwap to observe post-transaction state.
type StableSwap struct {
	SolClient sol.Transport
	Pool      *stableswap.Pool
	FeePayer  solana.PrivateKey

	submitCfg sol.SubmitConfig
	waiter    sol.ConfirmationWaiter
	submitter *sol.Submitter
	logger    *zap.Logger
}

func newStableSwap(transport sol.Transport, pool *stableswap.Pool, feePayer solana.PrivateKey) *StableSwap {
	s := &StableSwap{
		SolClient: transport,
		Pool:      pool,
		FeePayer:  feePayer,
		submitCfg: sol.DefaultSubmitConfig(),
		logger:    zap.NewNop(),
	}
	s.rebuildSubmitter()
	return s
}

// rebuildSubmitter recreates the submitter from the stored config, logger
// and waiter so the With* chain composes in any order.
func (s *StableSwap) rebuildSubmitter() {
	s.submitter = sol.NewSubmitter(s.SolClient, s.submitCfg, s.logger)
	if s.waiter != nil {
		s.submitter.WithConfirmationWaiter(s.waiter)
	}
}

// WithSubmitConfig replaces the submit/confirm bounds.
func (s *StableSwap) WithSubmitConfig(cfg sol.SubmitConfig) *StableSwap {
	s.submitCfg = cfg
	s.rebuildSubmitter()
	return s
}

// WithLogger attaches a logger to the client and its submitter.
func (s *StableSwap) WithLogger(logger *zap.Logger) *StableSwap {
	if logger == nil {
		return s
	}
	s.logger = logger
	s.rebuildSubmitter()
	return s
}

// WithConfirmationWaiter switches confirmation from polling to push.
func (s *StableSwap) WithConfirmationWaiter(w sol.ConfirmationWaiter) *StableSwap {
	s.waiter = w
	s.submitter.WithConfirmationWaiter(w)
	return s
}

// LoadStableSwap fetches and decodes an existing pool account and binds its
// derived authority. The returned client is a snapshot; it does not track
// later on-chain changes.
func LoadStableSwap(
	ctx context.Context,
	transport sol.Transport,
	poolAddress solana.PublicKey,
	programID solana.PublicKey,
	feePayer solana.PrivateKey,
) (*StableSwap, error) {
	data, err := transport.FetchAccount(ctx, poolAddress)
	if err != nil {
		return nil, fmt.Errorf("load pool %s: %w", poolAddress, err)
	}

	pool := &stableswap.Pool{PoolId: poolAddress, ProgramId: programID}
	if err := pool.Decode(data); err != nil {
		return nil, fmt.Errorf("load pool %s: %w", poolAddress, err)
	}
	if !pool.IsInitialized {
		return nil, fmt.Errorf("load pool %s: %w", poolAddress, stableswap.ErrPoolNotInitialized)
	}

	return newStableSwap(transport, pool, feePayer), nil
}

// CreateParams carries everything needed to allocate and initialize a new
// pool account.
type CreateParams struct {
	PoolAccount                 solana.PrivateKey // fresh keypair for the pool record
	Authority                   solana.PublicKey
	Nonce                       uint8
	TokenAccountA               solana.PublicKey
	TokenAccountB               solana.PublicKey
	PoolTokenMint               solana.PublicKey
	MintA                       solana.PublicKey
	MintB                       solana.PublicKey
	DestinationPoolTokenAccount solana.PublicKey
	ProgramID                   solana.PublicKey
	TokenProgramID              solana.PublicKey
	AmpFactor                   math.Int
	FeeNumerator                math.Int
	FeeDenominator              math.Int
}

// CreateStableSwap allocates the pool account (sized to the record span,
// owned by the program) and initializes it in the same transaction. The
// returned client wraps a descriptor built from the arguments; it is not
// re-fetched from the ledger.
func CreateStableSwap(
	ctx context.Context,
	transport sol.Transport,
	feePayer solana.PrivateKey,
	params CreateParams,
) (*StableSwap, error) {
	poolAddress := params.PoolAccount.PublicKey()

	authority, nonce, err := stableswap.DeriveAuthority(poolAddress, params.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("create pool %s: derive authority: %w", poolAddress, err)
	}
	if !params.Authority.IsZero() && !authority.Equals(params.Authority) {
		return nil, fmt.Errorf("create pool %s: authority %s does not match derivation %s",
			poolAddress, params.Authority, authority)
	}

	rent, err := transport.MinimumBalanceForRentExemption(ctx, stableswap.StateSpan)
	if err != nil {
		return nil, fmt.Errorf("create pool %s: %w", poolAddress, err)
	}

	createIx := system.NewCreateAccountInstruction(
		rent,
		stableswap.StateSpan,
		params.ProgramID,
		feePayer.PublicKey(),
		poolAddress,
	).Build()

	initIx, err := stableswap.NewInitializeInstruction(
		params.ProgramID,
		poolAddress,
		authority,
		params.TokenAccountA,
		params.TokenAccountB,
		params.PoolTokenMint,
		params.DestinationPoolTokenAccount,
		params.TokenProgramID,
		nonce,
		params.AmpFactor,
		params.FeeNumerator,
		params.FeeDenominator,
	)
	if err != nil {
		return nil, fmt.Errorf("create pool %s: %w", poolAddress, err)
	}

	pool := &stableswap.Pool{
		PoolId:    poolAddress,
		ProgramId: params.ProgramID,
		Authority: authority,
		Nonce:     nonce,
	}
	pool.Layout = stableswap.Layout{
		IsInitialized:  true,
		PoolTokenMint:  params.PoolTokenMint,
		TokenAccountA:  params.TokenAccountA,
		TokenAccountB:  params.TokenAccountB,
		MintA:          params.MintA,
		MintB:          params.MintB,
		TokenProgramID: params.TokenProgramID,
	}
	pool.AmpFactor = initIx.AmpFactor
	pool.FeeNumerator = initIx.FeeNumerator
	pool.FeeDenominator = initIx.FeeDenominator

	client := newStableSwap(transport, pool, feePayer)
	_, err = client.submitter.Submit(ctx, "createStableSwap",
		[]solana.Instruction{createIx, initIx},
		feePayer,
		[]solana.PrivateKey{params.PoolAccount},
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// PoolRentExemption returns the lamports a pool account must hold to be
// rent exempt at the fixed record span.
func PoolRentExemption(ctx context.Context, transport sol.Transport) (uint64, error) {
	return transport.MinimumBalanceForRentExemption(ctx, stableswap.StateSpan)
}

// Swap exchanges amountIn units drawn from userSource for at least
// minimumAmountOut units credited to userDestination. poolSource and
// poolDestination pick the direction and must be the pool's own token
// accounts.
func (s *StableSwap) Swap(
	ctx context.Context,
	userSource solana.PublicKey,
	poolSource solana.PublicKey,
	poolDestination solana.PublicKey,
	userDestination solana.PublicKey,
	amountIn math.Int,
	minimumAmountOut math.Int,
) (solana.Signature, error) {
	inst, err := stableswap.NewSwapInstruction(
		s.Pool.ProgramId,
		s.Pool.PoolId,
		s.Pool.Authority,
		userSource,
		poolSource,
		poolDestination,
		userDestination,
		s.Pool.TokenProgramID,
		amountIn,
		minimumAmountOut,
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("swap on pool %s: %w", s.Pool.PoolId, err)
	}
	return s.submitter.Submit(ctx, "swap", []solana.Instruction{inst}, s.FeePayer, nil)
}

// Deposit adds both assets and mints pool tokens to destinationPoolAccount.
func (s *StableSwap) Deposit(
	ctx context.Context,
	userAccountA solana.PublicKey,
	userAccountB solana.PublicKey,
	destinationPoolAccount solana.PublicKey,
	tokenAmountA math.Int,
	tokenAmountB math.Int,
	minimumPoolTokenAmount math.Int,
) (solana.Signature, error) {
	inst, err := stableswap.NewDepositInstruction(
		s.Pool.ProgramId,
		s.Pool.PoolId,
		s.Pool.Authority,
		userAccountA,
		userAccountB,
		s.Pool.TokenAccountA,
		s.Pool.TokenAccountB,
		s.Pool.PoolTokenMint,
		destinationPoolAccount,
		s.Pool.TokenProgramID,
		tokenAmountA,
		tokenAmountB,
		minimumPoolTokenAmount,
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("deposit to pool %s: %w", s.Pool.PoolId, err)
	}
	return s.submitter.Submit(ctx, "deposit", []solana.Instruction{inst}, s.FeePayer, nil)
}

// Withdraw burns pool tokens from sourcePoolAccount and pays out both
// assets to the user accounts.
func (s *StableSwap) Withdraw(
	ctx context.Context,
	sourcePoolAccount solana.PublicKey,
	userAccountA solana.PublicKey,
	userAccountB solana.PublicKey,
	poolTokenAmount math.Int,
	minimumTokenA math.Int,
	minimumTokenB math.Int,
) (solana.Signature, error) {
	inst, err := stableswap.NewWithdrawInstruction(
		s.Pool.ProgramId,
		s.Pool.PoolId,
		s.Pool.Authority,
		s.Pool.PoolTokenMint,
		sourcePoolAccount,
		s.Pool.TokenAccountA,
		s.Pool.TokenAccountB,
		userAccountA,
		userAccountB,
		s.Pool.TokenProgramID,
		poolTokenAmount,
		minimumTokenA,
		minimumTokenB,
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("withdraw from pool %s: %w", s.Pool.PoolId, err)
	}
	return s.submitter.Submit(ctx, "withdraw", []solana.Instruction{inst}, s.FeePayer, nil)
}

// Reserves fetches the current balances of the pool's two token accounts.
func (s *StableSwap) Reserves(ctx context.Context) (math.Int, math.Int, error) {
	zero := math.ZeroInt()

	dataA, err := s.SolClient.FetchAccount(ctx, s.Pool.TokenAccountA)
	if err != nil {
		return zero, zero, fmt.Errorf("reserve A %s: %w", s.Pool.TokenAccountA, err)
	}
	balanceA, err := stableswap.ParseTokenAccountBalance(dataA)
	if err != nil {
		return zero, zero, fmt.Errorf("reserve A %s: %w", s.Pool.TokenAccountA, err)
	}

	dataB, err := s.SolClient.FetchAccount(ctx, s.Pool.TokenAccountB)
	if err != nil {
		return zero, zero, fmt.Errorf("reserve B %s: %w", s.Pool.TokenAccountB, err)
	}
	balanceB, err := stableswap.ParseTokenAccountBalance(dataB)
	if err != nil {
		return zero, zero, fmt.Errorf("reserve B %s: %w", s.Pool.TokenAccountB, err)
	}

	return math.NewIntFromUint64(balanceA), math.NewIntFromUint64(balanceB), nil
}

// WatchState subscribes to the pool account and invokes handler with each
// decoded record. Malformed updates are dropped. Returns the subscription
// id for UnsubscribeAccount.
func (s *StableSwap) WatchState(ws *subscription.WebSocketClient, handler func(*stableswap.Layout, uint64)) (uint64, error) {
	return ws.SubscribeAccount(s.Pool.PoolId.String(), func(address string, data []byte, slot uint64) {
		layout, err := stableswap.DecodeLayout(data)
		if err != nil {
			s.logger.Warn("pool update decode failed", zap.String("pool", address), zap.Error(err))
			return
		}
		handler(layout, slot)
	})
}
