package subscription

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketClient is a JSON-RPC pubsub connection to a Solana node. It
// carries long-lived account subscriptions and one-shot signature
// subscriptions over the same socket.
type WebSocketClient struct {
	url       string
	conn      *websocket.Conn
	mu        sync.RWMutex
	nextID    uint64
	accounts  map[uint64]*accountSub
	sigWaits  map[uint64]*sigWait
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// AccountUpdateHandler receives the decoded account bytes on every update.
type AccountUpdateHandler func(address string, data []byte, slot uint64)

type accountSub struct {
	id      uint64
	address string
	subID   uint64 // node-side subscription id
	handler AccountUpdateHandler
}

// SignatureResult is the terminal notification for one signature. Err is
// the rendered program error, empty on success.
type sigWait struct {
	id    uint64
	subID uint64
	ch    chan SignatureResult
}

type SignatureResult struct {
	Failed bool
	Err    string
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type notificationMessage struct {
	Method string `json:"method"`
	Params struct {
		Result       json.RawMessage `json:"result"`
		Subscription uint64          `json:"subscription"`
	} `json:"params"`
}

type accountNotification struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Data []interface{} `json:"data"` // [base64 payload, encoding]
	} `json:"value"`
}

type signatureNotification struct {
	Value struct {
		Err interface{} `json:"err"`
	} `json:"value"`
}

// NewWebSocketClient dials the pubsub endpoint and starts the read loop.
func NewWebSocketClient(ctx context.Context, wsURL string) (*WebSocketClient, error) {
	clientCtx, cancel := context.WithCancel(ctx)

	client := &WebSocketClient{
		url:      wsURL,
		accounts: make(map[uint64]*accountSub),
		sigWaits: make(map[uint64]*sigWait),
		ctx:      clientCtx,
		cancel:   cancel,
		nextID:   1,
	}

	if err := client.connect(); err != nil {
		cancel()
		return nil, err
	}

	go client.readMessages()
	go client.handleReconnection()

	return client, nil
}

func (c *WebSocketClient) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	c.conn = conn
	c.connected = true
	return nil
}

// SubscribeAccount registers a handler for updates to one account.
func (c *WebSocketClient) SubscribeAccount(address string, handler AccountUpdateHandler) (uint64, error) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.accounts[id] = &accountSub{id: id, address: address, handler: handler}
	c.mu.Unlock()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "accountSubscribe",
		Params: []interface{}{
			address,
			map[string]interface{}{
				"encoding":   "base64",
				"commitment": "confirmed",
			},
		},
	}
	if err := c.sendRequest(req); err != nil {
		c.mu.Lock()
		delete(c.accounts, id)
		c.mu.Unlock()
		return 0, err
	}
	return id, nil
}

// UnsubscribeAccount removes an account subscription.
func (c *WebSocketClient) UnsubscribeAccount(id uint64) error {
	c.mu.Lock()
	sub, exists := c.accounts[id]
	if !exists {
		c.mu.Unlock()
		return fmt.Errorf("subscription not found: %d", id)
	}
	subID := sub.subID
	delete(c.accounts, id)
	c.mu.Unlock()

	if subID == 0 {
		return nil
	}
	return c.sendRequest(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "accountUnsubscribe",
		Params:  []interface{}{subID},
	})
}

// SubscribeSignature registers a one-shot watch on a signature. The node
// fires the notification once the signature reaches confirmed commitment
// and removes the subscription itself.
func (c *WebSocketClient) SubscribeSignature(signature string) (<-chan SignatureResult, error) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	wait := &sigWait{id: id, ch: make(chan SignatureResult, 1)}
	c.sigWaits[id] = wait
	c.mu.Unlock()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]interface{}{
				"commitment": "confirmed",
			},
		},
	}
	if err := c.sendRequest(req); err != nil {
		c.mu.Lock()
		delete(c.sigWaits, id)
		c.mu.Unlock()
		return nil, err
	}
	return wait.ch, nil
}

func (c *WebSocketClient) sendRequest(req rpcRequest) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WebSocketClient) readMessages() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			// Drop the dead conn so the loop idles on the nil check above
			// instead of spinning on ReadMessage until the reconnect tick.
			c.mu.Lock()
			c.connected = false
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			continue
		}
		c.handleMessage(message)
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var notification notificationMessage
	if err := json.Unmarshal(data, &notification); err == nil && notification.Method != "" {
		switch notification.Method {
		case "accountNotification":
			c.handleAccountNotification(&notification)
		case "signatureNotification":
			c.handleSignatureNotification(&notification)
		}
		return
	}

	var response rpcResponse
	if err := json.Unmarshal(data, &response); err != nil {
		log.Printf("Failed to parse WebSocket message: %v", err)
		return
	}
	c.handleResponse(response)
}

func (c *WebSocketClient) handleResponse(response rpcResponse) {
	if response.Error != nil {
		log.Printf("RPC error: %s", response.Error.Message)
		return
	}

	var subID uint64
	if err := json.Unmarshal(response.Result, &subID); err != nil {
		return
	}

	c.mu.Lock()
	if sub, exists := c.accounts[response.ID]; exists {
		sub.subID = subID
	}
	if wait, exists := c.sigWaits[response.ID]; exists {
		wait.subID = subID
	}
	c.mu.Unlock()
}

func (c *WebSocketClient) handleAccountNotification(notification *notificationMessage) {
	c.mu.RLock()
	var sub *accountSub
	for _, s := range c.accounts {
		if s.subID == notification.Params.Subscription {
			sub = s
			break
		}
	}
	c.mu.RUnlock()

	if sub == nil {
		return
	}

	var payload accountNotification
	if err := json.Unmarshal(notification.Params.Result, &payload); err != nil {
		return
	}
	if len(payload.Value.Data) < 1 {
		return
	}
	encoded, ok := payload.Value.Data[0].(string)
	if !ok {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return
	}
	sub.handler(sub.address, raw, payload.Context.Slot)
}

func (c *WebSocketClient) handleSignatureNotification(notification *notificationMessage) {
	c.mu.Lock()
	var wait *sigWait
	for id, w := range c.sigWaits {
		if w.subID == notification.Params.Subscription {
			wait = w
			delete(c.sigWaits, id)
			break
		}
	}
	c.mu.Unlock()

	if wait == nil {
		return
	}

	var payload signatureNotification
	result := SignatureResult{}
	if err := json.Unmarshal(notification.Params.Result, &payload); err == nil && payload.Value.Err != nil {
		result.Failed = true
		result.Err = fmt.Sprintf("%v", payload.Value.Err)
	}
	wait.ch <- result
}

func (c *WebSocketClient) handleReconnection() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			connected := c.connected
			c.mu.RUnlock()

			if !connected {
				if err := c.reconnect(); err != nil {
					log.Printf("WebSocket reconnection failed: %v", err)
				}
			}
		}
	}
}

// reconnect re-dials and restores account subscriptions. Pending signature
// waits are not replayed; their callers time out and fall back to polling.
func (c *WebSocketClient) reconnect() error {
	if err := c.connect(); err != nil {
		return err
	}

	c.mu.RLock()
	subs := make([]*accountSub, 0, len(c.accounts))
	for _, sub := range c.accounts {
		subs = append(subs, sub)
	}
	c.mu.RUnlock()

	for _, sub := range subs {
		req := rpcRequest{
			JSONRPC: "2.0",
			ID:      sub.id,
			Method:  "accountSubscribe",
			Params: []interface{}{
				sub.address,
				map[string]interface{}{
					"encoding":   "base64",
					"commitment": "confirmed",
				},
			},
		}
		if err := c.sendRequest(req); err != nil {
			log.Printf("Failed to resubscribe to %s: %v", sub.address, err)
		}
	}
	return nil
}

// Close shuts down the connection and the background goroutines.
func (c *WebSocketClient) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected reports whether the socket is currently up.
func (c *WebSocketClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
