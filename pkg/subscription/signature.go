package subscription

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"stableswap/pkg/sol"
)

// SignatureWaiter adapts a websocket signature subscription to the
// submitter's ConfirmationWaiter contract, replacing status polling with a
// push notification.
type SignatureWaiter struct {
	ws *WebSocketClient
}

func NewSignatureWaiter(ws *WebSocketClient) *SignatureWaiter {
	return &SignatureWaiter{ws: ws}
}

func (w *SignatureWaiter) WaitForSignature(ctx context.Context, sig solana.Signature) (sol.SignatureStatus, error) {
	ch, err := w.ws.SubscribeSignature(sig.String())
	if err != nil {
		return sol.SignatureStatus{}, err
	}

	select {
	case <-ctx.Done():
		return sol.SignatureStatus{State: sol.TxPending}, nil
	case result := <-ch:
		if result.Failed {
			return sol.SignatureStatus{State: sol.TxFailed, ProgramErr: result.Err}, nil
		}
		return sol.SignatureStatus{State: sol.TxConfirmed}, nil
	}
}
