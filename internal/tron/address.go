package tron

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58/base58"
)

// AddressPrefix is the mainnet/testnet address version byte.
const AddressPrefix byte = 0x41

// AddressLength is the length of a raw address including the prefix byte.
const AddressLength = 21

// Address is a TRON account or contract address: a version byte followed by
// the 20 byte account id shared with the EVM representation.
type Address [AddressLength]byte

// ParseAddress accepts the base58check form ("T..."), the 21 byte hex form
// ("41...") and the 20 byte EVM hex form ("0x...").
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimSpace(s)
	if s == "" {
		return a, fmt.Errorf("empty address")
	}

	if strings.HasPrefix(s, "T") && len(s) == 34 {
		decoded, err := base58.Decode(s)
		if err != nil {
			return a, fmt.Errorf("invalid base58 address %q: %w", s, err)
		}
		if len(decoded) != AddressLength+4 {
			return a, fmt.Errorf("invalid base58 address %q: length %d", s, len(decoded))
		}
		payload, sum := decoded[:AddressLength], decoded[AddressLength:]
		if !bytes.Equal(checksum(payload), sum) {
			return a, fmt.Errorf("invalid base58 address %q: checksum mismatch", s)
		}
		copy(a[:], payload)
		return a, nil
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return a, fmt.Errorf("invalid hex address %q: %w", s, err)
	}
	switch len(raw) {
	case AddressLength:
		if raw[0] != AddressPrefix {
			return a, fmt.Errorf("invalid address %q: prefix %#x", s, raw[0])
		}
		copy(a[:], raw)
	case common.AddressLength:
		a[0] = AddressPrefix
		copy(a[1:], raw)
	default:
		return a, fmt.Errorf("invalid address %q: length %d", s, len(raw))
	}
	return a, nil
}

// MustParseAddress is ParseAddress for constants; it panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromEVM converts a 20 byte EVM address into a TRON address.
func AddressFromEVM(evm common.Address) Address {
	var a Address
	a[0] = AddressPrefix
	copy(a[1:], evm[:])
	return a
}

// EVM returns the 20 byte account id used inside ABI encoded data.
func (a Address) EVM() common.Address {
	return common.BytesToAddress(a[1:])
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Hex returns the 21 byte hex form without 0x prefix.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// Base58 returns the base58check form.
func (a Address) Base58() string {
	payload := make([]byte, 0, AddressLength+4)
	payload = append(payload, a[:]...)
	payload = append(payload, checksum(a[:])...)
	return base58.Encode(payload)
}

func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	return a.Base58()
}

// Short renders the address as "TWiWt...B5xzg" for narrow displays.
func (a Address) Short() string {
	return Shorten(a.String())
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// Shorten keeps the first and last five characters of s.
func Shorten(s string) string {
	if len(s) <= 13 {
		return s
	}
	return s[:5] + "..." + s[len(s)-5:]
}
