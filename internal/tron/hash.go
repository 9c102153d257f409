package tron

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Hash is a 32 byte keccak256 digest, the representation of bytes32 values
// such as poll ids and face hashes.
type Hash [32]byte

// Sha3 hashes the UTF-8 bytes of s with keccak256, matching TronWeb's
// sha3(s, true): the result is 0x-prefixed lowercase hex.
func Sha3(s string) string {
	return Keccak([]byte(s)).Hex()
}

// Keccak hashes b with keccak256.
func Keccak(b []byte) Hash {
	return Hash(crypto.Keccak256Hash(b))
}

// ParseHash decodes a 32 byte hex value with or without 0x prefix.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("invalid hash %q: length %d", s, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// Hex returns the 0x-prefixed hex form.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// IsZero reports whether the hash is unset.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
