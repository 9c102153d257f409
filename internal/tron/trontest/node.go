// Package trontest provides an in-memory TRON node for tests.
package trontest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/lox/faceworth/internal/tron"
)

// ConstantFunc answers a constant call for one function selector given the
// ABI encoded parameters.
type ConstantFunc func(owner tron.Address, params []byte) ([]byte, error)

// Node is a fake full node speaking the subset of the HTTP API the client uses.
type Node struct {
	server *httptest.Server

	mu            sync.Mutex
	constants     map[string]ConstantFunc
	triggers      []tron.TriggerRequest
	broadcasts    []*tron.Transaction
	broadcastErr  *tron.NodeError
	triggerErr    *tron.NodeError
	balances      map[tron.Address]int64
	block         tron.Block
	events        []tron.Event
	eventsFailing bool
	eventQueries  int
}

// NewNode starts a fake node that is closed when the test ends.
func NewNode(t testing.TB) *Node {
	t.Helper()
	n := &Node{
		constants: make(map[string]ConstantFunc),
		balances:  make(map[tron.Address]int64),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/wallet/triggerconstantcontract", n.handleConstant)
	mux.HandleFunc("/wallet/triggersmartcontract", n.handleTrigger)
	mux.HandleFunc("/wallet/broadcasttransaction", n.handleBroadcast)
	mux.HandleFunc("/wallet/getaccount", n.handleAccount)
	mux.HandleFunc("/wallet/getnowblock", n.handleBlock)
	mux.HandleFunc("/v1/contracts/", n.handleEvents)

	n.server = httptest.NewServer(mux)
	t.Cleanup(n.server.Close)
	return n
}

// URL returns the node base URL.
func (n *Node) URL() string {
	return n.server.URL
}

// HandleConstant registers the answer for a function selector such as "stake()".
func (n *Node) HandleConstant(selector string, fn ConstantFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.constants[selector] = fn
}

// SetBalance sets an account balance in SUN.
func (n *Node) SetBalance(addr tron.Address, sun int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[addr] = sun
}

// SetBlock sets the block returned by getnowblock.
func (n *Node) SetBlock(number uint64, timestamp int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.block = tron.Block{ID: fmt.Sprintf("%064x", number), Number: number, Timestamp: timestamp}
}

// AddEvent appends an event to the contract log.
func (n *Node) AddEvent(e tron.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

// FailEvents makes event queries fail until called with false.
func (n *Node) FailEvents(fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.eventsFailing = fail
}

// EventQueries returns how many event queries were served.
func (n *Node) EventQueries() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eventQueries
}

// FailBroadcast makes every broadcast fail with the given code.
func (n *Node) FailBroadcast(code, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcastErr = &tron.NodeError{Code: code, Message: message}
}

// FailTrigger makes every triggersmartcontract call fail with the given code.
func (n *Node) FailTrigger(code, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.triggerErr = &tron.NodeError{Code: code, Message: message}
}

// Triggers returns the state-changing calls received so far.
func (n *Node) Triggers() []tron.TriggerRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]tron.TriggerRequest, len(n.triggers))
	copy(out, n.triggers)
	return out
}

// Broadcasts returns the signed transactions received so far.
func (n *Node) Broadcasts() []*tron.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*tron.Transaction, len(n.broadcasts))
	copy(out, n.broadcasts)
	return out
}

func (n *Node) handleConstant(w http.ResponseWriter, r *http.Request) {
	var req tron.TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	fn, ok := n.constants[req.FunctionSelector]
	n.mu.Unlock()
	if !ok {
		writeJSON(w, map[string]any{"result": map[string]any{"code": "CONTRACT_VALIDATE_ERROR", "message": hex.EncodeToString([]byte("unknown selector " + req.FunctionSelector))}})
		return
	}

	params, err := hex.DecodeString(req.Parameter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, err := fn(req.OwnerAddress, params)
	if err != nil {
		writeJSON(w, map[string]any{"result": map[string]any{"code": "REVERT", "message": hex.EncodeToString([]byte(err.Error()))}})
		return
	}
	writeJSON(w, map[string]any{
		"result":          map[string]any{"result": true},
		"constant_result": []string{hex.EncodeToString(out)},
	})
}

func (n *Node) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req tron.TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	if n.triggerErr != nil {
		e := n.triggerErr
		n.mu.Unlock()
		writeJSON(w, map[string]any{"result": map[string]any{"code": e.Code, "message": hex.EncodeToString([]byte(e.Message))}})
		return
	}
	n.triggers = append(n.triggers, req)
	seq := len(n.triggers)
	n.mu.Unlock()

	rawData, _ := json.Marshal(map[string]any{
		"seq":      seq,
		"selector": req.FunctionSelector,
		"owner":    req.OwnerAddress.Hex(),
		"value":    req.CallValue,
	})
	sum := sha256.Sum256(rawData)
	writeJSON(w, map[string]any{
		"result": map[string]any{"result": true},
		"transaction": tron.Transaction{
			TxID:       hex.EncodeToString(sum[:]),
			RawData:    rawData,
			RawDataHex: hex.EncodeToString(rawData),
			Visible:    true,
		},
	})
}

func (n *Node) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var tx tron.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.broadcastErr != nil {
		writeJSON(w, map[string]any{"code": n.broadcastErr.Code, "message": hex.EncodeToString([]byte(n.broadcastErr.Message))})
		return
	}
	if len(tx.Signature) == 0 {
		writeJSON(w, map[string]any{"code": "SIGERROR", "message": hex.EncodeToString([]byte("missing signature"))})
		return
	}
	n.broadcasts = append(n.broadcasts, &tx)
	writeJSON(w, map[string]any{"result": true, "txid": tx.TxID})
}

func (n *Node) handleAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address tron.Address `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	balance, ok := n.balances[req.Address]
	n.mu.Unlock()
	if !ok {
		writeJSON(w, map[string]any{})
		return
	}
	writeJSON(w, map[string]any{"address": req.Address.Base58(), "balance": balance})
}

func (n *Node) handleBlock(w http.ResponseWriter, _ *http.Request) {
	n.mu.Lock()
	b := n.block
	n.mu.Unlock()
	writeJSON(w, map[string]any{
		"blockID": b.ID,
		"block_header": map[string]any{
			"raw_data": map[string]any{"number": b.Number, "timestamp": b.Timestamp},
		},
	})
}

func (n *Node) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/events") {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	name := q.Get("event_name")
	since, _ := strconv.ParseInt(q.Get("min_block_timestamp"), 10, 64)

	n.mu.Lock()
	n.eventQueries++
	if n.eventsFailing {
		n.mu.Unlock()
		writeJSON(w, map[string]any{"success": false, "error": "event server unavailable"})
		return
	}
	var data []tron.Event
	for _, e := range n.events {
		if name != "" && e.EventName != name {
			continue
		}
		if e.BlockTimestamp < since {
			continue
		}
		data = append(data, e)
	}
	n.mu.Unlock()

	writeJSON(w, map[string]any{"success": true, "data": data, "meta": map[string]any{}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
