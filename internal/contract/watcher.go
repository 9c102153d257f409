package contract

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	lru "github.com/hashicorp/golang-lru"

	"github.com/lox/faceworth/internal/tron"
)

// Event names emitted by FaceWorthPollFactory.
const (
	EventFaceWorthPollCreated = "FaceWorthPollCreated"
	EventStageChange          = "StageChange"
)

const (
	// DefaultWatchInterval is how often the event API is polled.
	DefaultWatchInterval = 3 * time.Second
	seenCacheSize        = 4096
)

// EventSource is the event query API of a node.
type EventSource interface {
	ContractEvents(ctx context.Context, contract tron.Address, q tron.EventQuery) ([]tron.Event, error)
}

// Watcher maintains standing subscriptions to contract events. Each event is
// handed to its subscriber once, in block order.
type Watcher struct {
	source   EventSource
	contract tron.Address
	clock    quartz.Clock
	interval time.Duration
	since    time.Time
	logger   *log.Logger
	seen     *lru.Cache
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithReplayFrom delivers events from t instead of from subscription time.
func WithReplayFrom(t time.Time) WatcherOption {
	return func(w *Watcher) {
		w.since = t
	}
}

// NewWatcher creates a watcher for the events of contract.
func NewWatcher(source EventSource, contract tron.Address, clock quartz.Clock, logger *log.Logger, opts ...WatcherOption) (*Watcher, error) {
	seen, err := lru.New(seenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create event cache: %w", err)
	}
	w := &Watcher{
		source:   source,
		contract: contract,
		clock:    clock,
		interval: DefaultWatchInterval,
		logger:   logger.WithPrefix("events"),
		seen:     seen,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Subscription is a running watch for one event name.
type Subscription struct {
	name   string
	waiter quartz.Waiter

	mu     sync.Mutex
	cursor int64
}

// Wait blocks until the subscription's context ends.
func (s *Subscription) Wait() error {
	err := s.waiter.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Subscribe starts polling for name and returns immediately. Query errors are
// logged and never end the subscription; only ctx does.
func (w *Watcher) Subscribe(ctx context.Context, name string, handler func(tron.Event)) *Subscription {
	since := w.since
	if since.IsZero() {
		since = w.clock.Now()
	}
	sub := &Subscription{name: name, cursor: since.UnixMilli()}

	sub.waiter = w.clock.TickerFunc(ctx, w.interval, func() error {
		w.poll(ctx, sub, handler)
		return nil
	}, "watcher", name)

	w.logger.Debug("Subscribed", "event", name, "since", since)
	return sub
}

func (w *Watcher) poll(ctx context.Context, sub *Subscription, handler func(tron.Event)) {
	sub.mu.Lock()
	cursor := sub.cursor
	sub.mu.Unlock()

	events, err := w.source.ContractEvents(ctx, w.contract, tron.EventQuery{
		EventName:   sub.name,
		SinceMillis: cursor,
	})
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Failed to query events", "event", sub.name, "error", err)
		}
		return
	}

	for _, e := range events {
		if e.BlockTimestamp > cursor {
			cursor = e.BlockTimestamp
		}
		if seen, _ := w.seen.ContainsOrAdd(e.Key(), struct{}{}); seen {
			continue
		}
		w.logger.Debug("Event", "event", e.EventName, "tx", e.TransactionID, "block", e.BlockNumber)
		handler(e)
	}

	sub.mu.Lock()
	sub.cursor = cursor
	sub.mu.Unlock()
}

// PollCreated is a decoded FaceWorthPollCreated event.
type PollCreated struct {
	Hash              tron.Hash
	Creator           tron.Address
	FaceHash          tron.Hash
	StartingBlock     uint64
	CommitEndingBlock uint64
	RevealEndingBlock uint64
	TxID              string
	BlockNumber       uint64
}

// DecodePollCreated decodes the event arguments of a FaceWorthPollCreated log.
func DecodePollCreated(e tron.Event) (PollCreated, error) {
	var (
		p   = PollCreated{TxID: e.TransactionID, BlockNumber: e.BlockNumber}
		err error
	)
	if p.Hash, err = hashField(e, "hash"); err != nil {
		return p, err
	}
	if p.Creator, err = tron.ParseAddress(e.Result["creator"]); err != nil {
		return p, fmt.Errorf("%s creator: %w", e.EventName, err)
	}
	if p.FaceHash, err = hashField(e, "faceHash"); err != nil {
		return p, err
	}
	if p.StartingBlock, err = uintField(e, "startingBlock"); err != nil {
		return p, err
	}
	if p.CommitEndingBlock, err = uintField(e, "commitEndingBlock"); err != nil {
		return p, err
	}
	if p.RevealEndingBlock, err = uintField(e, "revealEndingBlock"); err != nil {
		return p, err
	}
	return p, nil
}

// StageChanged is a decoded StageChange event.
type StageChanged struct {
	Hash     tron.Hash
	Stage    Stage
	Previous Stage
	TxID     string
}

// DecodeStageChange decodes the event arguments of a StageChange log.
func DecodeStageChange(e tron.Event) (StageChanged, error) {
	s := StageChanged{TxID: e.TransactionID}
	h, err := hashField(e, "hash")
	if err != nil {
		return s, err
	}
	s.Hash = h

	next, err := uintField(e, "newStage")
	if err != nil {
		return s, err
	}
	s.Stage = Stage(next)

	if _, ok := e.Result["oldStage"]; ok {
		prev, err := uintField(e, "oldStage")
		if err != nil {
			return s, err
		}
		s.Previous = Stage(prev)
	}
	return s, nil
}

func hashField(e tron.Event, name string) (tron.Hash, error) {
	h, err := tron.ParseHash(e.Result[name])
	if err != nil {
		return h, fmt.Errorf("%s %s: %w", e.EventName, name, err)
	}
	return h, nil
}

func uintField(e tron.Event, name string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(e.Result[name]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", e.EventName, name, err)
	}
	return v, nil
}
