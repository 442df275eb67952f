package sol

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	jitorpc "github.com/jito-labs/jito-go-rpc"
	"golang.org/x/time/rate"
)

// TxState is the coarse confirmation state of a submitted transaction.
type TxState int

const (
	TxPending TxState = iota
	TxConfirmed
	TxFailed
)

// SignatureStatus reports the ledger's view of one signature. ProgramErr is
// the rendered on-chain error when State is TxFailed.
type SignatureStatus struct {
	State      TxState
	ProgramErr string
}

// Transport is the ledger surface the client library depends on. *Client
// implements it over JSON-RPC; tests substitute fakes.
type Transport interface {
	FetchAccount(ctx context.Context, address solana.PublicKey) ([]byte, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	ConfirmationStatus(ctx context.Context, sig solana.Signature) (SignatureStatus, error)
	MinimumBalanceForRentExemption(ctx context.Context, span uint64) (uint64, error)
}

// Client is a rate-limited Solana RPC client with an optional Jito
// block-engine send path.
type Client struct {
	rpcClient *rpc.Client
	jito      *jitorpc.JitoJsonRpcClient
	limiter   *rate.Limiter
	endpoint  string
}

// NewClient creates a client for a single RPC endpoint. jitoRpc may be empty
// to send through the regular RPC path. reqLimitPerSecond bounds outgoing
// requests across all methods.
func NewClient(ctx context.Context, endpoint string, jitoRpc string, reqLimitPerSecond int) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("rpc endpoint is required")
	}
	if reqLimitPerSecond <= 0 {
		reqLimitPerSecond = 10
	}

	c := &Client{
		rpcClient: rpc.New(endpoint),
		limiter:   rate.NewLimiter(rate.Limit(reqLimitPerSecond), reqLimitPerSecond),
		endpoint:  endpoint,
	}
	if jitoRpc != "" {
		c.jito = jitorpc.NewJitoJsonRpcClient(jitoRpc, "")
	}
	return c, nil
}

// Endpoint returns the RPC URL this client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// FetchAccount returns the raw data bytes of an account, or
// ErrAccountNotFound when the ledger has no record at the address.
func (c *Client) FetchAccount(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := c.rpcClient.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if err == rpc.ErrNotFound {
			return nil, fmt.Errorf("account %s: %w", address, ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to fetch account %s: %w", address, err)
	}
	if result == nil || result.Value == nil {
		return nil, fmt.Errorf("account %s: %w", address, ErrAccountNotFound)
	}
	return result.Value.Data.GetBinary(), nil
}

// FetchAccounts returns the raw data of several accounts in one request.
// A nil entry marks a missing account.
func (c *Client) FetchAccounts(ctx context.Context, addresses []solana.PublicKey) ([][]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := c.rpcClient.GetMultipleAccountsWithOpts(ctx, addresses, &rpc.GetMultipleAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	out := make([][]byte, len(addresses))
	for i, v := range result.Value {
		if v == nil {
			continue
		}
		out[i] = v.Data.GetBinary()
	}
	return out, nil
}

func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return solana.Hash{}, err
	}
	result, err := c.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	return result.Value.Blockhash, nil
}

// SendTransaction broadcasts a signed transaction. When a Jito endpoint is
// configured the transaction goes through the block engine instead of the
// regular RPC path.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return solana.Signature{}, err
	}
	if c.jito != nil {
		return c.sendViaJito(tx)
	}
	sig, err := c.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

func (c *Client) sendViaJito(tx *solana.Transaction) (solana.Signature, error) {
	serialized, err := tx.ToBase64()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	payload := map[string]interface{}{
		"tx":            serialized,
		"skipPreflight": true,
	}
	result, err := c.jito.SendTxn(payload, false)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("jito send failed: %w", err)
	}
	var sigStr string
	if err := json.Unmarshal(result, &sigStr); err != nil {
		return solana.Signature{}, fmt.Errorf("unexpected jito response: %w", err)
	}
	sig, err := solana.SignatureFromBase58(sigStr)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid signature in jito response: %w", err)
	}
	return sig, nil
}

func (c *Client) ConfirmationStatus(ctx context.Context, sig solana.Signature) (SignatureStatus, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return SignatureStatus{}, err
	}
	result, err := c.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return SignatureStatus{}, fmt.Errorf("failed to get signature status: %w", err)
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return SignatureStatus{State: TxPending}, nil
	}
	status := result.Value[0]
	if status.Err != nil {
		return SignatureStatus{State: TxFailed, ProgramErr: fmt.Sprintf("%v", status.Err)}, nil
	}
	if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		return SignatureStatus{State: TxConfirmed}, nil
	}
	return SignatureStatus{State: TxPending}, nil
}

func (c *Client) MinimumBalanceForRentExemption(ctx context.Context, span uint64) (uint64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	lamports, err := c.rpcClient.GetMinimumBalanceForRentExemption(ctx, span, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get rent exemption for %d bytes: %w", span, err)
	}
	return lamports, nil
}
