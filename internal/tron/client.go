package tron

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
)

// DefaultTimeout bounds a single node request.
const DefaultTimeout = 10 * time.Second

// Client talks to a TRON full node over its HTTP API (TronGrid compatible).
type Client struct {
	endpoint      string
	eventEndpoint string
	apiKey        string
	http          *http.Client
	logger        *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEventEndpoint sets the base URL of the event query API. Defaults to the
// node endpoint.
func WithEventEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.eventEndpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithAPIKey sets the TRON-PRO-API-KEY header sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient creates a node client for endpoint, e.g. https://api.shasta.trongrid.io.
func NewClient(endpoint string, logger *log.Logger, opts ...Option) *Client {
	endpoint = strings.TrimRight(endpoint, "/")
	c := &Client{
		endpoint:      endpoint,
		eventEndpoint: endpoint,
		http:          &http.Client{Timeout: DefaultTimeout},
		logger:        logger.WithPrefix("tron"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the node base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// NodeError is a rejection reported by the node in a successful HTTP response.
type NodeError struct {
	Code    string
	Message string
}

func (e *NodeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("node error: %s", e.Code)
	}
	return fmt.Sprintf("node error: %s: %s", e.Code, e.Message)
}

// TriggerRequest describes a contract invocation. Addresses are sent in
// base58 form (visible=true).
type TriggerRequest struct {
	OwnerAddress     Address `json:"owner_address"`
	ContractAddress  Address `json:"contract_address"`
	FunctionSelector string  `json:"function_selector"`
	Parameter        string  `json:"parameter,omitempty"`
	FeeLimit         int64   `json:"fee_limit,omitempty"`
	CallValue        int64   `json:"call_value,omitempty"`
	Visible          bool    `json:"visible"`
}

type returnInfo struct {
	Result  bool   `json:"result"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r returnInfo) err() error {
	if r.Result {
		return nil
	}
	code := r.Code
	if code == "" {
		code = "FAILED"
	}
	return &NodeError{Code: code, Message: decodeMessage(r.Message)}
}

type triggerResponse struct {
	Result         returnInfo   `json:"result"`
	ConstantResult []string     `json:"constant_result"`
	Transaction    *Transaction `json:"transaction"`
}

// TriggerConstant executes a read-only contract call and returns the raw ABI
// encoded output.
func (c *Client) TriggerConstant(ctx context.Context, req TriggerRequest) ([]byte, error) {
	req.Visible = true
	var resp triggerResponse
	if err := c.post(ctx, "/wallet/triggerconstantcontract", req, &resp); err != nil {
		return nil, fmt.Errorf("trigger constant %s: %w", req.FunctionSelector, err)
	}
	if err := resp.Result.err(); err != nil {
		return nil, fmt.Errorf("trigger constant %s: %w", req.FunctionSelector, err)
	}
	if len(resp.ConstantResult) == 0 {
		return nil, fmt.Errorf("trigger constant %s: empty result", req.FunctionSelector)
	}
	out, err := hex.DecodeString(resp.ConstantResult[0])
	if err != nil {
		return nil, fmt.Errorf("trigger constant %s: invalid result: %w", req.FunctionSelector, err)
	}
	return out, nil
}

// TriggerSmartContract asks the node to build an unsigned transaction for a
// state-changing call.
func (c *Client) TriggerSmartContract(ctx context.Context, req TriggerRequest) (*Transaction, error) {
	req.Visible = true
	var resp triggerResponse
	if err := c.post(ctx, "/wallet/triggersmartcontract", req, &resp); err != nil {
		return nil, fmt.Errorf("trigger %s: %w", req.FunctionSelector, err)
	}
	if err := resp.Result.err(); err != nil {
		return nil, fmt.Errorf("trigger %s: %w", req.FunctionSelector, err)
	}
	if resp.Transaction == nil || resp.Transaction.RawDataHex == "" {
		return nil, fmt.Errorf("trigger %s: node returned no transaction", req.FunctionSelector)
	}
	return resp.Transaction, nil
}

type broadcastResponse struct {
	Result  bool   `json:"result"`
	TxID    string `json:"txid"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Broadcast submits a signed transaction and returns its id.
func (c *Client) Broadcast(ctx context.Context, tx *Transaction) (string, error) {
	if !tx.Signed() {
		return "", fmt.Errorf("broadcast %s: transaction is not signed", tx.TxID)
	}
	var resp broadcastResponse
	if err := c.post(ctx, "/wallet/broadcasttransaction", tx, &resp); err != nil {
		return "", fmt.Errorf("broadcast %s: %w", tx.TxID, err)
	}
	if !resp.Result {
		return "", fmt.Errorf("broadcast %s: %w", tx.TxID, &NodeError{Code: resp.Code, Message: decodeMessage(resp.Message)})
	}
	if resp.TxID == "" {
		return tx.TxID, nil
	}
	return resp.TxID, nil
}

// GetBalance returns the account balance in SUN. Unactivated accounts have a
// zero balance.
func (c *Client) GetBalance(ctx context.Context, addr Address) (int64, error) {
	req := struct {
		Address Address `json:"address"`
		Visible bool    `json:"visible"`
	}{addr, true}

	var resp struct {
		Balance int64 `json:"balance"`
	}
	if err := c.post(ctx, "/wallet/getaccount", req, &resp); err != nil {
		return 0, fmt.Errorf("get balance %s: %w", addr, err)
	}
	return resp.Balance, nil
}

// Block is the subset of a block header the client uses.
type Block struct {
	ID        string
	Number    uint64
	Timestamp int64
}

// GetCurrentBlock returns the latest block.
func (c *Client) GetCurrentBlock(ctx context.Context) (Block, error) {
	var resp struct {
		BlockID     string `json:"blockID"`
		BlockHeader struct {
			RawData struct {
				Number    uint64 `json:"number"`
				Timestamp int64  `json:"timestamp"`
			} `json:"raw_data"`
		} `json:"block_header"`
	}
	if err := c.post(ctx, "/wallet/getnowblock", struct{}{}, &resp); err != nil {
		return Block{}, fmt.Errorf("get current block: %w", err)
	}
	return Block{
		ID:        resp.BlockID,
		Number:    resp.BlockHeader.RawData.Number,
		Timestamp: resp.BlockHeader.RawData.Timestamp,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("Node request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeMessage turns the node's hex encoded error messages into text.
func decodeMessage(msg string) string {
	raw, err := hex.DecodeString(msg)
	if err != nil || len(raw) == 0 {
		return msg
	}
	for _, r := range string(raw) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return msg
		}
	}
	return string(raw)
}
