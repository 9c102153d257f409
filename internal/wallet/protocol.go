package wallet

import (
	"encoding/json"
	"time"

	"github.com/lox/faceworth/internal/tron"
)

// MessageType identifies a bridge message.
type MessageType string

const (
	// Signer -> client
	MessageTypeHello          MessageType = "hello"
	MessageTypeAddressChanged MessageType = "address_changed"
	MessageTypeSignResult     MessageType = "sign_result"

	// Client -> signer
	MessageTypeSignRequest MessageType = "sign_request"
)

// Message is the websocket envelope exchanged with a wallet bridge.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(messageType MessageType, id string, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		ID:        id,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

type HelloData struct {
	Address  tron.Address `json:"address"`
	Ready    bool         `json:"ready"`
	Endpoint string       `json:"endpoint,omitempty"`
}

type AddressChangedData struct {
	Address tron.Address `json:"address"`
}

type SignRequestData struct {
	Transaction *tron.Transaction `json:"transaction"`
}

type SignResultData struct {
	Transaction *tron.Transaction `json:"transaction,omitempty"`
	Error       string            `json:"error,omitempty"`
}
