package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/faceworth/internal/tron"
)

const (
	DefaultHelloTimeout = 2 * time.Second

	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// ErrBridgeClosed is returned for requests made after the bridge went away.
var ErrBridgeClosed = errors.New("wallet bridge closed")

// BridgeWallet is a Wallet served by a remote signer over a websocket.
type BridgeWallet struct {
	conn   *websocket.Conn
	send   chan *Message
	logger *log.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	address   tron.Address
	ready     bool
	endpoint  string
	pending   map[string]chan SignResultData
	listeners map[int]func(tron.Address)
	nextID    int
	closeOnce sync.Once
}

// BridgeProbe dials bridgeURL; an unreachable bridge counts as not installed.
func BridgeProbe(bridgeURL string, logger *log.Logger) Probe {
	return func(ctx context.Context) (Wallet, error) {
		if bridgeURL == "" {
			return nil, ErrNotInstalled
		}
		w, err := DialBridge(ctx, bridgeURL, logger, DefaultHelloTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
		}
		return w, nil
	}
}

// DialBridge connects to a signer and waits for its hello.
func DialBridge(ctx context.Context, bridgeURL string, logger *log.Logger, helloTimeout time.Duration) (*BridgeWallet, error) {
	u, err := url.Parse(bridgeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if helloTimeout <= 0 {
		helloTimeout = DefaultHelloTimeout
	}
	_ = conn.SetReadDeadline(time.Now().Add(helloTimeout))
	var hello Message
	if err := conn.ReadJSON(&hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read hello: %w", err)
	}
	if hello.Type != MessageTypeHello {
		_ = conn.Close()
		return nil, fmt.Errorf("expected hello, got %q", hello.Type)
	}
	var data HelloData
	if err := json.Unmarshal(hello.Data, &data); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("decode hello: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	bctx, cancel := context.WithCancel(context.Background())
	b := &BridgeWallet{
		conn:      conn,
		send:      make(chan *Message, 64),
		logger:    logger.WithPrefix("bridge"),
		ctx:       bctx,
		cancel:    cancel,
		address:   data.Address,
		ready:     data.Ready && !data.Address.IsZero(),
		endpoint:  data.Endpoint,
		pending:   make(map[string]chan SignResultData),
		listeners: make(map[int]func(tron.Address)),
	}

	go b.readPump()
	go b.writePump()

	b.logger.Info("Connected to wallet bridge", "url", u.String(), "ready", b.ready, "address", b.address)
	return b, nil
}

// Ready is false once the bridge connection is gone.
func (b *BridgeWallet) Ready() bool {
	if b.ctx.Err() != nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

func (b *BridgeWallet) Address() tron.Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.address
}

func (b *BridgeWallet) Endpoint() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.endpoint
}

func (b *BridgeWallet) OnAddressChanged(fn func(tron.Address)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// SignTransaction asks the signer for a signature and copies it onto tx.
func (b *BridgeWallet) SignTransaction(ctx context.Context, tx *tron.Transaction) error {
	if b.ctx.Err() != nil {
		return ErrBridgeClosed
	}

	id := uuid.NewString()
	msg, err := NewMessage(MessageTypeSignRequest, id, SignRequestData{Transaction: tx})
	if err != nil {
		return err
	}

	result := make(chan SignResultData, 1)
	b.mu.Lock()
	b.pending[id] = result
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	select {
	case b.send <- msg:
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return ErrBridgeClosed
	}

	select {
	case res := <-result:
		if res.Error != "" {
			return fmt.Errorf("signer rejected %s: %s", tx.TxID, res.Error)
		}
		if res.Transaction == nil || res.Transaction.TxID != tx.TxID || !res.Transaction.Signed() {
			return fmt.Errorf("signer returned an invalid transaction for %s", tx.TxID)
		}
		tx.Signature = res.Transaction.Signature
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return ErrBridgeClosed
	}
}

// Close disconnects from the signer.
func (b *BridgeWallet) Close() error {
	b.closeOnce.Do(func() {
		b.cancel()
		_ = b.conn.Close()
		b.logger.Debug("Disconnected from wallet bridge")
	})
	return nil
}

func (b *BridgeWallet) readPump() {
	defer b.cancel()

	for {
		var msg Message
		if err := b.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				b.logger.Error("WebSocket error", "error", err)
			}
			if b.ctx.Err() == nil {
				b.logger.Warn("Wallet bridge disconnected, signing disabled")
			}
			return
		}

		b.logger.Debug("Received message", "type", msg.Type, "id", msg.ID)
		b.handleMessage(&msg)
	}
}

func (b *BridgeWallet) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeHello, MessageTypeAddressChanged:
		var data AddressChangedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			b.logger.Warn("Malformed address update", "error", err)
			return
		}
		b.setAddress(data.Address)

	case MessageTypeSignResult:
		var data SignResultData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			data = SignResultData{Error: fmt.Sprintf("malformed sign result: %v", err)}
		}
		b.mu.RLock()
		ch, ok := b.pending[msg.ID]
		b.mu.RUnlock()
		if !ok {
			b.logger.Debug("Sign result for unknown request", "id", msg.ID)
			return
		}
		select {
		case ch <- data:
		default:
		}

	default:
		b.logger.Debug("No handler for message type", "type", msg.Type)
	}
}

func (b *BridgeWallet) setAddress(addr tron.Address) {
	b.mu.Lock()
	changed := addr != b.address || b.ready == addr.IsZero()
	b.address = addr
	b.ready = !addr.IsZero()
	listeners := make([]func(tron.Address), 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	if !changed || addr.IsZero() {
		return
	}
	for _, fn := range listeners {
		fn(addr)
	}
}

func (b *BridgeWallet) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = b.conn.Close()
	}()

	for {
		select {
		case msg := <-b.send:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := b.conn.WriteJSON(msg); err != nil {
				b.logger.Error("Failed to write message", "error", err)
				b.cancel()
				return
			}

		case <-ticker.C:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := b.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				b.cancel()
				return
			}

		case <-b.ctx.Done():
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = b.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
