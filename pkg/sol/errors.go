package sol

import "errors"

var (
	// ErrAccountNotFound is returned by FetchAccount when the ledger holds
	// no record at the requested address.
	ErrAccountNotFound = errors.New("account not found")

	// ErrSubmitFailed marks a transport-level failure before the ledger
	// accepted the transaction. Safe to retry with a freshly rebuilt and
	// freshly signed transaction.
	ErrSubmitFailed = errors.New("transaction submission failed")

	// ErrConfirmationTimeout marks an accepted transaction whose finality
	// was not observed within the configured bound. The outcome is
	// ambiguous: check on-chain state before resending.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")

	// ErrProgramRejected marks a logical rejection by the on-chain program.
	// Resending the same request will fail the same way.
	ErrProgramRejected = errors.New("program rejected transaction")
)
