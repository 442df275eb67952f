package sol

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// AttemptState tracks one transaction attempt through its lifecycle.
type AttemptState int

const (
	StateBuilt AttemptState = iota
	StateSigned
	StateSubmitted
	StateConfirmed
	StateFailed
)

func (s AttemptState) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SubmitConfig bounds the submit and confirmation loops. Both loops are
// always bounded; a zero value falls back to the defaults.
type SubmitConfig struct {
	// SendRetries is the number of additional submission attempts after a
	// transport-level send failure. Each retry rebuilds and re-signs.
	SendRetries int
	// PollInterval is the delay between confirmation status polls.
	PollInterval time.Duration
	// MaxPollAttempts bounds the confirmation polling per submission.
	MaxPollAttempts int
}

func DefaultSubmitConfig() SubmitConfig {
	return SubmitConfig{
		SendRetries:     3,
		PollInterval:    500 * time.Millisecond,
		MaxPollAttempts: 30,
	}
}

func (c SubmitConfig) withDefaults() SubmitConfig {
	d := DefaultSubmitConfig()
	if c.SendRetries <= 0 {
		c.SendRetries = d.SendRetries
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = d.MaxPollAttempts
	}
	return c
}

// ConfirmationWaiter blocks until a signature reaches a terminal state or
// the context is cancelled. The default is status polling over the
// transport; a websocket watcher can be plugged in instead.
type ConfirmationWaiter interface {
	WaitForSignature(ctx context.Context, sig solana.Signature) (SignatureStatus, error)
}

// Attempt is one pass through build → sign → submit → confirm. A fresh
// attempt is created per resend: an identical signed payload is never
// replayed, so a resend cannot race its predecessor on the ledger.
type Attempt struct {
	Label     string
	State     AttemptState
	Signature solana.Signature
	tx        *solana.Transaction
}

// Submitter drives instruction sets to a confirmed or failed terminal state.
type Submitter struct {
	transport Transport
	cfg       SubmitConfig
	waiter    ConfirmationWaiter
	logger    *zap.Logger
}

func NewSubmitter(transport Transport, cfg SubmitConfig, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		transport: transport,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// WithConfirmationWaiter replaces confirmation polling with a push-based
// watcher (e.g. a websocket signature subscription).
func (s *Submitter) WithConfirmationWaiter(w ConfirmationWaiter) *Submitter {
	s.waiter = w
	return s
}

// Submit assembles, signs, broadcasts and confirms one transaction. The
// label is for diagnostics only. feePayer funds the transaction and always
// signs; extraSigners cover any additional required signatures (e.g. a new
// account keypair).
//
// Transport failures before ledger acceptance are retried up to
// SendRetries times with a rebuilt, re-signed transaction, then surface as
// ErrSubmitFailed. After acceptance there is no automatic retry: an
// unconfirmed outcome surfaces as ErrConfirmationTimeout and an on-chain
// rejection as ErrProgramRejected.
func (s *Submitter) Submit(
	ctx context.Context,
	label string,
	instructions []solana.Instruction,
	feePayer solana.PrivateKey,
	extraSigners []solana.PrivateKey,
) (solana.Signature, error) {
	if len(instructions) == 0 {
		return solana.Signature{}, fmt.Errorf("%s: no instructions to submit", label)
	}

	var lastErr error
	for attemptNo := 0; attemptNo <= s.cfg.SendRetries; attemptNo++ {
		attempt, err := s.buildAndSign(ctx, label, instructions, feePayer, extraSigners)
		if err != nil {
			return solana.Signature{}, err
		}

		sig, err := s.transport.SendTransaction(ctx, attempt.tx)
		if err != nil {
			attempt.State = StateFailed
			lastErr = err
			s.logger.Warn("send failed",
				zap.String("label", label),
				zap.Int("attempt", attemptNo+1),
				zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		attempt.State = StateSubmitted
		attempt.Signature = sig
		s.logger.Info("transaction submitted",
			zap.String("label", label),
			zap.String("signature", sig.String()))

		return s.confirm(ctx, attempt)
	}

	return solana.Signature{}, fmt.Errorf("%s: %w: %v", label, ErrSubmitFailed, lastErr)
}

func (s *Submitter) buildAndSign(
	ctx context.Context,
	label string,
	instructions []solana.Instruction,
	feePayer solana.PrivateKey,
	extraSigners []solana.PrivateKey,
) (*Attempt, error) {
	blockhash, err := s.transport.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get recent blockhash: %w", label, err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(feePayer.PublicKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build transaction: %w", label, err)
	}
	attempt := &Attempt{Label: label, State: StateBuilt, tx: tx}

	signers := append([]solana.PrivateKey{feePayer}, extraSigners...)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to sign transaction: %w", label, err)
	}
	attempt.State = StateSigned
	return attempt, nil
}

func (s *Submitter) confirm(ctx context.Context, attempt *Attempt) (solana.Signature, error) {
	var status SignatureStatus
	var err error
	if s.waiter != nil {
		status, err = s.waitPush(ctx, attempt.Signature)
	} else {
		status, err = s.waitPoll(ctx, attempt.Signature)
	}
	if err != nil {
		attempt.State = StateFailed
		return solana.Signature{}, fmt.Errorf("%s (%s): %w", attempt.Label, attempt.Signature, err)
	}

	switch status.State {
	case TxConfirmed:
		attempt.State = StateConfirmed
		s.logger.Info("transaction confirmed",
			zap.String("label", attempt.Label),
			zap.String("signature", attempt.Signature.String()))
		return attempt.Signature, nil
	case TxFailed:
		attempt.State = StateFailed
		return solana.Signature{}, fmt.Errorf("%s (%s): %w: %s",
			attempt.Label, attempt.Signature, ErrProgramRejected, status.ProgramErr)
	default:
		attempt.State = StateFailed
		return solana.Signature{}, fmt.Errorf("%s (%s): %w",
			attempt.Label, attempt.Signature, ErrConfirmationTimeout)
	}
}

func (s *Submitter) waitPush(ctx context.Context, sig solana.Signature) (SignatureStatus, error) {
	status, err := s.waiter.WaitForSignature(ctx, sig)
	if err != nil {
		// The transaction is already accepted; a broken watch leaves the
		// outcome unknown, not failed. Report pending so the caller sees
		// ErrConfirmationTimeout rather than an unclassified error.
		s.logger.Warn("confirmation watch failed",
			zap.String("signature", sig.String()),
			zap.Error(err))
		return SignatureStatus{State: TxPending}, nil
	}
	return status, nil
}

func (s *Submitter) waitPoll(ctx context.Context, sig solana.Signature) (SignatureStatus, error) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for polls := 0; polls < s.cfg.MaxPollAttempts; polls++ {
		select {
		case <-ctx.Done():
			// Caller cutoff. The transaction may still land.
			return SignatureStatus{State: TxPending}, nil
		case <-ticker.C:
		}

		status, err := s.transport.ConfirmationStatus(ctx, sig)
		if err != nil {
			s.logger.Debug("status poll failed", zap.String("signature", sig.String()), zap.Error(err))
			continue
		}
		if status.State != TxPending {
			return status, nil
		}
	}
	return SignatureStatus{State: TxPending}, nil
}
