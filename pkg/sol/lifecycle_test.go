package sol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
)

type fakeTransport struct {
	mu sync.Mutex

	accounts map[solana.PublicKey][]byte

	sendErr        error
	sends          int
	blockhashCalls int

	statuses    []SignatureStatus
	statusCalls int

	rent uint64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		accounts: make(map[solana.PublicKey][]byte),
		rent:     2039280,
	}
}

func (f *fakeTransport) FetchAccount(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.accounts[address]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", address, ErrAccountNotFound)
	}
	return data, nil
}

func (f *fakeTransport) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockhashCalls++
	var hash solana.Hash
	hash[0] = byte(f.blockhashCalls)
	return hash, nil
}

func (f *fakeTransport) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	return tx.Signatures[0], nil
}

func (f *fakeTransport) ConfirmationStatus(ctx context.Context, sig solana.Signature) (SignatureStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return SignatureStatus{State: TxPending}, nil
	}
	status := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	f.statusCalls++
	return status, nil
}

func (f *fakeTransport) MinimumBalanceForRentExemption(ctx context.Context, span uint64) (uint64, error) {
	return f.rent, nil
}

func testInstruction() solana.Instruction {
	program := solana.MustPublicKeyFromBase58("SSwpkEEcbUqx4vtoEByFjSkhKdCT862DNVb52nZg1UZ")
	var target solana.PublicKey
	target[0] = 42
	return solana.NewInstruction(program, solana.AccountMetaSlice{
		solana.NewAccountMeta(target, true, false),
	}, []byte{1, 2, 3})
}

func fastConfig() SubmitConfig {
	return SubmitConfig{
		SendRetries:     2,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 3,
	}
}

func TestSubmitConfirms(t *testing.T) {
	transport := newFakeTransport()
	transport.statuses = []SignatureStatus{{State: TxConfirmed}}

	payer := solana.NewWallet().PrivateKey
	submitter := NewSubmitter(transport, fastConfig(), nil)

	sig, err := submitter.Submit(context.Background(), "test",
		[]solana.Instruction{testInstruction()}, payer, nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if sig.IsZero() {
		t.Errorf("expected a signature")
	}
	if transport.sends != 1 {
		t.Errorf("expected 1 send, got %d", transport.sends)
	}
}

func TestSubmitRetriesTransportFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.sendErr = errors.New("connection refused")

	payer := solana.NewWallet().PrivateKey
	submitter := NewSubmitter(transport, fastConfig(), nil)

	_, err := submitter.Submit(context.Background(), "test",
		[]solana.Instruction{testInstruction()}, payer, nil)
	if !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("expected ErrSubmitFailed, got %v", err)
	}

	wantSends := fastConfig().SendRetries + 1
	if transport.sends != wantSends {
		t.Errorf("expected %d sends, got %d", wantSends, transport.sends)
	}
	// every resend is rebuilt against a fresh blockhash
	if transport.blockhashCalls != wantSends {
		t.Errorf("expected %d blockhash fetches, got %d", wantSends, transport.blockhashCalls)
	}
}

func TestSubmitProgramRejection(t *testing.T) {
	transport := newFakeTransport()
	transport.statuses = []SignatureStatus{{State: TxFailed, ProgramErr: "custom program error: 0x1"}}

	payer := solana.NewWallet().PrivateKey
	submitter := NewSubmitter(transport, fastConfig(), nil)

	_, err := submitter.Submit(context.Background(), "test",
		[]solana.Instruction{testInstruction()}, payer, nil)
	if !errors.Is(err, ErrProgramRejected) {
		t.Fatalf("expected ErrProgramRejected, got %v", err)
	}
	if errors.Is(err, ErrConfirmationTimeout) || errors.Is(err, ErrSubmitFailed) {
		t.Errorf("rejection must be distinguishable from other failures: %v", err)
	}
	// logical rejection is terminal, never resent
	if transport.sends != 1 {
		t.Errorf("expected 1 send, got %d", transport.sends)
	}
}

func TestSubmitConfirmationTimeout(t *testing.T) {
	transport := newFakeTransport() // always pending

	payer := solana.NewWallet().PrivateKey
	submitter := NewSubmitter(transport, fastConfig(), nil)

	_, err := submitter.Submit(context.Background(), "test",
		[]solana.Instruction{testInstruction()}, payer, nil)
	if !errors.Is(err, ErrConfirmationTimeout) {
		t.Fatalf("expected ErrConfirmationTimeout, got %v", err)
	}
	if transport.sends != 1 {
		t.Errorf("timeout after acceptance must not resend, got %d sends", transport.sends)
	}
}

func TestSubmitCallerCutoff(t *testing.T) {
	transport := newFakeTransport()

	payer := solana.NewWallet().PrivateKey
	cfg := fastConfig()
	cfg.PollInterval = 50 * time.Millisecond
	cfg.MaxPollAttempts = 1000
	submitter := NewSubmitter(transport, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := submitter.Submit(ctx, "test",
		[]solana.Instruction{testInstruction()}, payer, nil)
	if !errors.Is(err, ErrConfirmationTimeout) {
		t.Fatalf("expected ErrConfirmationTimeout on caller cutoff, got %v", err)
	}
}

type stubWaiter struct {
	status SignatureStatus
	err    error
	calls  int
}

func (w *stubWaiter) WaitForSignature(ctx context.Context, sig solana.Signature) (SignatureStatus, error) {
	w.calls++
	return w.status, w.err
}

func TestSubmitPushConfirms(t *testing.T) {
	transport := newFakeTransport()
	waiter := &stubWaiter{status: SignatureStatus{State: TxConfirmed}}

	submitter := NewSubmitter(transport, fastConfig(), nil).WithConfirmationWaiter(waiter)
	sig, err := submitter.Submit(context.Background(), "test",
		[]solana.Instruction{testInstruction()}, solana.NewWallet().PrivateKey, nil)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if sig.IsZero() {
		t.Errorf("expected a signature")
	}
	if waiter.calls != 1 {
		t.Errorf("expected 1 waiter call, got %d", waiter.calls)
	}
	if transport.statusCalls != 0 {
		t.Errorf("push confirmation must not poll, got %d polls", transport.statusCalls)
	}
}

func TestSubmitPushRejection(t *testing.T) {
	transport := newFakeTransport()
	waiter := &stubWaiter{status: SignatureStatus{State: TxFailed, ProgramErr: "custom program error: 0x1"}}

	submitter := NewSubmitter(transport, fastConfig(), nil).WithConfirmationWaiter(waiter)
	_, err := submitter.Submit(context.Background(), "test",
		[]solana.Instruction{testInstruction()}, solana.NewWallet().PrivateKey, nil)
	if !errors.Is(err, ErrProgramRejected) {
		t.Fatalf("expected ErrProgramRejected, got %v", err)
	}
}

func TestSubmitPushWatchFailureIsTimeout(t *testing.T) {
	transport := newFakeTransport()
	waiter := &stubWaiter{err: errors.New("websocket: broken pipe")}

	submitter := NewSubmitter(transport, fastConfig(), nil).WithConfirmationWaiter(waiter)
	_, err := submitter.Submit(context.Background(), "test",
		[]solana.Instruction{testInstruction()}, solana.NewWallet().PrivateKey, nil)
	// the transaction was accepted, so a broken watch is an unknown outcome,
	// not a retryable submit failure
	if !errors.Is(err, ErrConfirmationTimeout) {
		t.Fatalf("expected ErrConfirmationTimeout, got %v", err)
	}
	if errors.Is(err, ErrSubmitFailed) {
		t.Errorf("watch failure after acceptance must not look retryable: %v", err)
	}
	if transport.sends != 1 {
		t.Errorf("watch failure after acceptance must not resend, got %d sends", transport.sends)
	}
}

func TestSubmitNoInstructions(t *testing.T) {
	submitter := NewSubmitter(newFakeTransport(), fastConfig(), nil)
	_, err := submitter.Submit(context.Background(), "test", nil, solana.NewWallet().PrivateKey, nil)
	if err == nil {
		t.Fatal("expected error for empty instruction set")
	}
}
