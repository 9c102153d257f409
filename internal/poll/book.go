package poll

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/faceworth/internal/contract"
	"github.com/lox/faceworth/internal/tron"
)

// ObservedPoll is a poll learned from a creation event.
type ObservedPoll struct {
	Hash              tron.Hash
	Creator           tron.Address
	FaceHash          tron.Hash
	StartingBlock     uint64
	CommitEndingBlock uint64
	RevealEndingBlock uint64
	// Score is a client-side placeholder, not read from the contract.
	Score uint8
	TxID  string
}

// Book is the append-only, ordered list of observed polls. It is a cache:
// stages recorded here are never used to gate a commit or reveal.
type Book struct {
	logger *log.Logger
	score  func() uint8

	mu        sync.RWMutex
	polls     []ObservedPoll
	stages    map[tron.Hash]contract.Stage
	listeners []func(ObservedPoll)
}

type BookOption func(*Book)

// WithScorer replaces RandomScore as the source of placeholder scores.
func WithScorer(fn func() uint8) BookOption {
	return func(b *Book) {
		b.score = fn
	}
}

func NewBook(logger *log.Logger, opts ...BookOption) *Book {
	b := &Book{
		logger: logger.WithPrefix("book"),
		score:  RandomScore,
		stages: make(map[tron.Hash]contract.Stage),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append records a created poll and returns the stored record.
func (b *Book) Append(created contract.PollCreated) ObservedPoll {
	p := ObservedPoll{
		Hash:              created.Hash,
		Creator:           created.Creator,
		FaceHash:          created.FaceHash,
		StartingBlock:     created.StartingBlock,
		CommitEndingBlock: created.CommitEndingBlock,
		RevealEndingBlock: created.RevealEndingBlock,
		Score:             b.score(),
		TxID:              created.TxID,
	}

	b.mu.Lock()
	b.polls = append(b.polls, p)
	listeners := append([]func(ObservedPoll){}, b.listeners...)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(p)
	}
	return p
}

// OnAppend registers fn to run after each Append.
func (b *Book) OnAppend(fn func(ObservedPoll)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// HandlePollCreated is the watcher callback for FaceWorthPollCreated.
func (b *Book) HandlePollCreated(e tron.Event) {
	created, err := contract.DecodePollCreated(e)
	if err != nil {
		b.logger.Error("Failed to decode poll", "txid", e.TransactionID, "error", err)
		return
	}
	p := b.Append(created)
	b.logger.Info("Detected new poll", "hash", p.Hash, "creator", p.Creator, "score", p.Score)
}

// HandleStageChange is the watcher callback for StageChange. Winner
// notification is not implemented; the stage is only remembered.
func (b *Book) HandleStageChange(e tron.Event) {
	change, err := contract.DecodeStageChange(e)
	if err != nil {
		b.logger.Error("Failed to decode stage change", "txid", e.TransactionID, "error", err)
		return
	}
	b.MarkStage(change.Hash, change.Stage)
	b.logger.Info("Stage changed", "hash", change.Hash, "from", change.Previous, "to", change.Stage)
}

// MarkStage remembers the last observed stage of a poll.
func (b *Book) MarkStage(hash tron.Hash, stage contract.Stage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stages[hash] = stage
}

// LastStage returns the last stage observed for a poll, if any.
func (b *Book) LastStage(hash tron.Hash) (contract.Stage, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.stages[hash]
	return s, ok
}

// Snapshot returns the polls in the order they were observed.
func (b *Book) Snapshot() []ObservedPoll {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]ObservedPoll(nil), b.polls...)
}

// Hashes returns the hash of every observed poll, in order.
func (b *Book) Hashes() []tron.Hash {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]tron.Hash, len(b.polls))
	for i, p := range b.polls {
		out[i] = p.Hash
	}
	return out
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.polls)
}

// Find returns the first observed poll with the given hash.
func (b *Book) Find(hash tron.Hash) (ObservedPoll, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.polls {
		if p.Hash == hash {
			return p, true
		}
	}
	return ObservedPoll{}, false
}
