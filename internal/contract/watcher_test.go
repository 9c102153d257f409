package contract

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/faceworth/internal/tron"
)

type fakeEvents struct {
	mu      sync.Mutex
	events  []tron.Event
	failing bool
	queries []tron.EventQuery
}

func (f *fakeEvents) add(e tron.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeEvents) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *fakeEvents) ContractEvents(_ context.Context, _ tron.Address, q tron.EventQuery) ([]tron.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.failing {
		return nil, errors.New("event server unavailable")
	}
	var out []tron.Event
	for _, e := range f.events {
		if e.EventName == q.EventName && e.BlockTimestamp >= q.SinceMillis {
			out = append(out, e)
		}
	}
	return out, nil
}

func createdEvent(t *testing.T, n int, timestamp int64) tron.Event {
	t.Helper()
	return tron.Event{
		EventName:      EventFaceWorthPollCreated,
		BlockTimestamp: timestamp,
		BlockNumber:    uint64(100 + n),
		TransactionID:  tron.Keccak([]byte{byte(n)}).Hex()[2:],
		Result: tron.EventResult{
			"hash":              tron.Keccak([]byte{byte(n), 1}).Hex(),
			"creator":           testAddr(byte(n)).Hex(),
			"faceHash":          tron.Keccak([]byte{byte(n), 2}).Hex()[2:],
			"startingBlock":     "100",
			"commitEndingBlock": "110",
			"revealEndingBlock": "120",
		},
	}
}

func TestWatcherDeliversEachEventOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := quartz.NewMock(t)
	source := &fakeEvents{}
	w, err := NewWatcher(source, testAddr(99), clock, quietLogger())
	require.NoError(t, err)

	start := clock.Now().UnixMilli()
	var got []tron.Event
	sub := w.Subscribe(ctx, EventFaceWorthPollCreated, func(e tron.Event) {
		got = append(got, e)
	})

	// Events before the subscription started are not delivered.
	source.add(createdEvent(t, 0, start-1000))
	source.add(createdEvent(t, 1, start+10))

	clock.Advance(DefaultWatchInterval).MustWait(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, createdEvent(t, 1, 0).TransactionID, got[0].TransactionID)

	// The cursor is inclusive, so the same event comes back and is dropped.
	source.add(createdEvent(t, 2, start+20))
	clock.Advance(DefaultWatchInterval).MustWait(ctx)
	require.Len(t, got, 2)
	assert.Equal(t, createdEvent(t, 2, 0).TransactionID, got[1].TransactionID)

	clock.Advance(DefaultWatchInterval).MustWait(ctx)
	assert.Len(t, got, 2)

	source.mu.Lock()
	assert.Equal(t, start+20, source.queries[len(source.queries)-1].SinceMillis)
	source.mu.Unlock()

	cancel()
	assert.NoError(t, sub.Wait())
}

func TestWatcherSurvivesQueryErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := quartz.NewMock(t)
	source := &fakeEvents{}
	w, err := NewWatcher(source, testAddr(99), clock, quietLogger(), WithReplayFrom(time.UnixMilli(0)))
	require.NoError(t, err)

	var got int
	w.Subscribe(ctx, EventStageChange, func(tron.Event) { got++ })

	source.setFailing(true)
	source.add(tron.Event{EventName: EventStageChange, BlockTimestamp: 5, TransactionID: "aa"})
	clock.Advance(DefaultWatchInterval).MustWait(ctx)
	assert.Zero(t, got)

	source.setFailing(false)
	clock.Advance(DefaultWatchInterval).MustWait(ctx)
	assert.Equal(t, 1, got)
}

func TestDecodePollCreated(t *testing.T) {
	e := createdEvent(t, 3, 1)

	p, err := DecodePollCreated(e)
	require.NoError(t, err)
	assert.Equal(t, tron.Keccak([]byte{3, 1}), p.Hash)
	assert.Equal(t, testAddr(3), p.Creator)
	assert.Equal(t, tron.Keccak([]byte{3, 2}), p.FaceHash)
	assert.Equal(t, uint64(100), p.StartingBlock)
	assert.Equal(t, uint64(110), p.CommitEndingBlock)
	assert.Equal(t, uint64(120), p.RevealEndingBlock)

	delete(e.Result, "revealEndingBlock")
	_, err = DecodePollCreated(e)
	assert.Error(t, err)
}

func TestDecodeStageChange(t *testing.T) {
	e := tron.Event{
		EventName: EventStageChange,
		Result: tron.EventResult{
			"hash":     tron.Keccak([]byte("p")).Hex(),
			"newStage": "4",
			"oldStage": "2",
		},
	}
	s, err := DecodeStageChange(e)
	require.NoError(t, err)
	assert.Equal(t, Ended, s.Stage)
	assert.Equal(t, Reveal, s.Previous)
	assert.True(t, s.Stage.Finished())
	assert.False(t, s.Previous.Finished())
}
