package subscription

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"stableswap/pkg/sol"
)

var upgrader = websocket.Upgrader{}

type serverConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *serverConn) send(t *testing.T, v interface{}) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(v); err != nil {
		t.Errorf("server write failed: %v", err)
	}
}

type subscribeRequest struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// startServer runs an in-process pubsub node that hands every parsed
// request to handle. Returns the ws:// URL to dial.
func startServer(t *testing.T, handle func(sc *serverConn, req subscribeRequest)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sc := &serverConn{conn: conn}
		defer conn.Close()
		for {
			var req subscribeRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			handle(sc, req)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// acceptThenNotify acknowledges the subscription and immediately pushes
// one notification carrying result for it.
func acceptThenNotify(t *testing.T, method string, result interface{}) func(sc *serverConn, req subscribeRequest) {
	return func(sc *serverConn, req subscribeRequest) {
		subID := req.ID + 100
		sc.send(t, map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  subID,
		})
		sc.send(t, map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  method,
			"params": map[string]interface{}{
				"result":       result,
				"subscription": subID,
			},
		})
	}
}

func newTestClient(t *testing.T, url string) *WebSocketClient {
	t.Helper()
	client, err := NewWebSocketClient(context.Background(), url)
	if err != nil {
		t.Fatalf("NewWebSocketClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSubscribeSignatureConfirmed(t *testing.T) {
	url := startServer(t, acceptThenNotify(t, "signatureNotification",
		map[string]interface{}{"value": map[string]interface{}{"err": nil}}))
	client := newTestClient(t, url)

	ch, err := client.SubscribeSignature(solana.Signature{}.String())
	if err != nil {
		t.Fatalf("SubscribeSignature failed: %v", err)
	}

	select {
	case result := <-ch:
		if result.Failed {
			t.Errorf("expected success, got failure %q", result.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no signature notification received")
	}
}

func TestSubscribeSignatureProgramFailure(t *testing.T) {
	url := startServer(t, acceptThenNotify(t, "signatureNotification",
		map[string]interface{}{"value": map[string]interface{}{
			"err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
		}}))
	client := newTestClient(t, url)

	ch, err := client.SubscribeSignature(solana.Signature{}.String())
	if err != nil {
		t.Fatalf("SubscribeSignature failed: %v", err)
	}

	select {
	case result := <-ch:
		if !result.Failed {
			t.Error("expected failure")
		}
		if result.Err == "" {
			t.Error("expected the rendered on-chain error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no signature notification received")
	}
}

func TestSubscribeAccountDecodesPayload(t *testing.T) {
	record := []byte{1, 2, 3, 4, 5}
	url := startServer(t, acceptThenNotify(t, "accountNotification",
		map[string]interface{}{
			"context": map[string]interface{}{"slot": 42},
			"value": map[string]interface{}{
				"data": []interface{}{base64.StdEncoding.EncodeToString(record), "base64"},
			},
		}))
	client := newTestClient(t, url)

	type update struct {
		data []byte
		slot uint64
	}
	updates := make(chan update, 1)
	address := solana.PublicKey{}.String()
	if _, err := client.SubscribeAccount(address, func(addr string, data []byte, slot uint64) {
		if addr != address {
			t.Errorf("handler got address %s, want %s", addr, address)
		}
		updates <- update{data: data, slot: slot}
	}); err != nil {
		t.Fatalf("SubscribeAccount failed: %v", err)
	}

	select {
	case got := <-updates:
		if string(got.data) != string(record) {
			t.Errorf("handler got %v, want decoded %v", got.data, record)
		}
		if got.slot != 42 {
			t.Errorf("handler got slot %d, want 42", got.slot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no account notification received")
	}
}

func TestSignatureWaiterConfirmed(t *testing.T) {
	url := startServer(t, acceptThenNotify(t, "signatureNotification",
		map[string]interface{}{"value": map[string]interface{}{"err": nil}}))
	waiter := NewSignatureWaiter(newTestClient(t, url))

	status, err := waiter.WaitForSignature(context.Background(), solana.Signature{})
	if err != nil {
		t.Fatalf("WaitForSignature failed: %v", err)
	}
	if status.State != sol.TxConfirmed {
		t.Errorf("expected TxConfirmed, got %v", status.State)
	}
}

func TestSignatureWaiterRejection(t *testing.T) {
	url := startServer(t, acceptThenNotify(t, "signatureNotification",
		map[string]interface{}{"value": map[string]interface{}{
			"err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
		}}))
	waiter := NewSignatureWaiter(newTestClient(t, url))

	status, err := waiter.WaitForSignature(context.Background(), solana.Signature{})
	if err != nil {
		t.Fatalf("WaitForSignature failed: %v", err)
	}
	if status.State != sol.TxFailed {
		t.Errorf("expected TxFailed, got %v", status.State)
	}
	if status.ProgramErr == "" {
		t.Error("expected the rendered on-chain error")
	}
}

func TestSignatureWaiterCallerCutoff(t *testing.T) {
	// acknowledge the subscription but never notify
	url := startServer(t, func(sc *serverConn, req subscribeRequest) {
		sc.send(t, map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  req.ID + 100,
		})
	})
	waiter := NewSignatureWaiter(newTestClient(t, url))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	status, err := waiter.WaitForSignature(ctx, solana.Signature{})
	if err != nil {
		t.Fatalf("cutoff must report pending, not an error: %v", err)
	}
	if status.State != sol.TxPending {
		t.Errorf("expected TxPending on cutoff, got %v", status.State)
	}
}

func TestDroppedConnectionIsObserved(t *testing.T) {
	url := startServer(t, func(sc *serverConn, req subscribeRequest) {})
	client := newTestClient(t, url)

	if !client.IsConnected() {
		t.Fatal("expected an initial connection")
	}

	// killing the socket must flip the client to disconnected without the
	// read loop spinning on the dead conn
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()
	conn.Close()

	deadline := time.After(2 * time.Second)
	for client.IsConnected() {
		select {
		case <-deadline:
			t.Fatal("client never observed the dropped connection")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
