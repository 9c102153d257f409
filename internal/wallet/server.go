package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/faceworth/internal/tron"
)

// Signer is the account a BridgeServer signs with.
type Signer interface {
	Address() tron.Address
	SignTransaction(ctx context.Context, tx *tron.Transaction) error
}

// BridgeServer exposes a Signer to BridgeWallet clients. A server without a
// signer is locked: it reports no address and rejects sign requests.
type BridgeServer struct {
	upgrader websocket.Upgrader
	endpoint string
	logger   *log.Logger

	mu    sync.RWMutex
	conns map[*bridgeConn]bool
	// signer is nil while locked
	signer Signer
}

// NewBridgeServer creates a signer bridge. endpoint is advertised to clients
// as the node they should use.
func NewBridgeServer(signer Signer, endpoint string, logger *log.Logger) *BridgeServer {
	return &BridgeServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The bridge is meant to listen on loopback only
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		endpoint: endpoint,
		logger:   logger.WithPrefix("signer"),
		conns:    make(map[*bridgeConn]bool),
		signer:   signer,
	}
}

// Handler returns the bridge's HTTP routes.
func (s *BridgeServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "OK")
	})
	return mux
}

// SetSigner swaps the signing account and notifies connected clients.
func (s *BridgeServer) SetSigner(signer Signer) {
	s.mu.Lock()
	s.signer = signer
	conns := make([]*bridgeConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	addr := s.address()
	msg, err := NewMessage(MessageTypeAddressChanged, "", AddressChangedData{Address: addr})
	if err != nil {
		s.logger.Error("Failed to build address update", "error", err)
		return
	}
	for _, c := range conns {
		c.write(msg)
	}
	s.logger.Info("Signer changed", "address", addr, "clients", len(conns))
}

// Close disconnects all clients.
func (s *BridgeServer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.conn.Close()
	}
}

func (s *BridgeServer) address() tron.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer == nil {
		return tron.Address{}
	}
	return s.signer.Address()
}

func (s *BridgeServer) currentSigner() Signer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signer
}

func (s *BridgeServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	c := &bridgeConn{conn: conn, logger: s.logger}
	s.mu.Lock()
	s.conns[c] = true
	total := len(s.conns)
	s.mu.Unlock()
	s.logger.Info("Client connected", "total", total)

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = conn.Close()
		s.logger.Info("Client disconnected")
	}()

	addr := s.address()
	hello, err := NewMessage(MessageTypeHello, "", HelloData{
		Address:  addr,
		Ready:    !addr.IsZero(),
		Endpoint: s.endpoint,
	})
	if err != nil {
		return
	}
	if !c.write(hello) {
		return
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket error", "error", err)
			}
			return
		}
		if msg.Type != MessageTypeSignRequest {
			s.logger.Debug("Ignoring message", "type", msg.Type)
			continue
		}
		c.write(s.sign(r.Context(), &msg))
	}
}

func (s *BridgeServer) sign(ctx context.Context, msg *Message) *Message {
	var req SignRequestData
	result := SignResultData{}
	switch err := json.Unmarshal(msg.Data, &req); {
	case err != nil:
		result.Error = fmt.Sprintf("malformed request: %v", err)
	case req.Transaction == nil:
		result.Error = "missing transaction"
	default:
		signer := s.currentSigner()
		if signer == nil {
			result.Error = "wallet locked"
			break
		}
		if err := signer.SignTransaction(ctx, req.Transaction); err != nil {
			result.Error = err.Error()
			break
		}
		result.Transaction = req.Transaction
		s.logger.Info("Signed transaction", "txid", req.Transaction.TxID)
	}

	reply, err := NewMessage(MessageTypeSignResult, msg.ID, result)
	if err != nil {
		reply = &Message{Type: MessageTypeSignResult, ID: msg.ID, Data: json.RawMessage(`{"error":"internal error"}`), Timestamp: time.Now()}
	}
	return reply
}

type bridgeConn struct {
	conn   *websocket.Conn
	logger *log.Logger
	mu     sync.Mutex
}

func (c *bridgeConn) write(msg *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("Failed to write message", "error", err)
		return false
	}
	return true
}
