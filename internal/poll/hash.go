// Package poll holds the client-side view of FaceWorth polls: the creation
// form, the book of observed polls and the stage-gated commit/reveal actions.
package poll

import (
	"math/rand/v2"
	"strconv"

	"github.com/lox/faceworth/internal/tron"
)

const (
	// DefaultSalt is mixed into every committed worth.
	DefaultSalt = "random"

	// MaxScore bounds the placeholder score handed out to observed polls.
	MaxScore = 6
)

// FaceHash derives the face hash submitted for a photo. Empty text has an
// empty hash.
func FaceHash(photo string) string {
	if photo == "" {
		return ""
	}
	return tron.Sha3(photo)
}

// SaltedWorthHash is the commitment for score: keccak256(salt + decimal(score)).
func SaltedWorthHash(salt string, score uint8) tron.Hash {
	return tron.Keccak([]byte(salt + strconv.Itoa(int(score))))
}

// RandomScore draws a placeholder score uniformly from [0, MaxScore).
func RandomScore() uint8 {
	return uint8(rand.IntN(MaxScore))
}
