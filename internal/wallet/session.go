package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/faceworth/internal/tron"
)

const (
	DefaultDetectInterval = 100 * time.Millisecond
	DefaultDetectTries    = 10

	// FallbackEndpoint is the public node used when no wallet is found.
	FallbackEndpoint = "https://api.shasta.trongrid.io"
	// FoundationAddress is the anonymous identity used for read calls until
	// a wallet logs in.
	FoundationAddress = "TWiWt5SEDzaEqS6kE5gandWMNfxR2B5xzg"
)

// BootstrapConfig controls wallet detection.
type BootstrapConfig struct {
	Interval          time.Duration
	MaxTries          int
	FoundationAddress tron.Address
	// NodeEndpoint is used with a wallet that does not name its own node.
	NodeEndpoint string
	// FallbackEndpoint is used when no wallet is found.
	FallbackEndpoint string
}

func (c *BootstrapConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultDetectInterval
	}
	if c.MaxTries < 0 {
		c.MaxTries = 0
	}
	if c.FallbackEndpoint == "" {
		c.FallbackEndpoint = FallbackEndpoint
	}
	if c.NodeEndpoint == "" {
		c.NodeEndpoint = c.FallbackEndpoint
	}
}

// Session is the outcome of bootstrap: the wallet (if any), its status and
// the default address used for contract calls.
type Session struct {
	logger *log.Logger

	mu        sync.RWMutex
	status    Status
	wallet    Wallet
	address   tron.Address
	endpoint  string
	listeners []func(Status)
	unwatch   func()
}

// Bootstrap detects a wallet. It probes once, then every cfg.Interval until
// cfg.MaxTries further probes have failed, at which point the session falls
// back to a read-only client. A missing wallet is not an error. A probe
// failing for any other reason, such as a malformed private key, is returned
// at once, as is ctx cancellation.
func Bootstrap(ctx context.Context, probe Probe, cfg BootstrapConfig, clock quartz.Clock, logger *log.Logger) (*Session, error) {
	cfg.applyDefaults()
	logger = logger.WithPrefix("wallet")

	w, err := probe(ctx)
	if err != nil && !errors.Is(err, ErrNotInstalled) {
		return nil, fmt.Errorf("wallet probe failed: %w", err)
	}
	if w == nil {
		logger.Debug("Wallet not found on first probe")
		w, err = detect(ctx, probe, cfg, clock)
		if err != nil {
			return nil, err
		}
	}

	s := &Session{logger: logger}
	if w == nil {
		s.status = Status{Installed: false, LoggedIn: false}
		s.endpoint = cfg.FallbackEndpoint
		logger.Warn("No wallet detected, using read-only client", "endpoint", s.endpoint)
	} else {
		s.wallet = w
		s.status = Status{Installed: true, LoggedIn: w.Ready()}
		s.endpoint = w.Endpoint()
		if s.endpoint == "" {
			s.endpoint = cfg.NodeEndpoint
		}
	}

	if s.status.LoggedIn {
		s.address = w.Address()
		logger.Info("Wallet logged in", "address", s.address)
		return s, nil
	}

	s.address = cfg.FoundationAddress
	if w != nil {
		var once sync.Once
		s.unwatch = w.OnAddressChanged(func(addr tron.Address) {
			once.Do(func() { s.login(addr) })
		})
		logger.Info("Wallet installed but locked, waiting for login")
	}
	return s, nil
}

func detect(ctx context.Context, probe Probe, cfg BootstrapConfig, clock quartz.Clock) (Wallet, error) {
	ticker := clock.NewTicker(cfg.Interval, "wallet", "detect")
	defer ticker.Stop()

	tries := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		if tries >= cfg.MaxTries {
			return nil, nil
		}

		w, err := probe(ctx)
		if err == nil && w != nil {
			return w, nil
		}
		if err != nil && !errors.Is(err, ErrNotInstalled) {
			return nil, fmt.Errorf("wallet probe failed: %w", err)
		}
		tries++
	}
}

func (s *Session) login(addr tron.Address) {
	s.mu.Lock()
	if s.status.LoggedIn {
		s.mu.Unlock()
		return
	}
	s.status = Status{Installed: true, LoggedIn: true}
	if !addr.IsZero() {
		s.address = addr
	}
	status := s.status
	listeners := append([]func(Status){}, s.listeners...)
	s.mu.Unlock()

	s.logger.Info("Wallet logged in", "address", addr)
	for _, fn := range listeners {
		fn(status)
	}
}

// Status returns the current wallet status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// CanSign reports whether a logged in wallet is still able to sign. It turns
// false when, for example, the wallet bridge disconnects.
func (s *Session) CanSign() bool {
	s.mu.RLock()
	w, loggedIn := s.wallet, s.status.LoggedIn
	s.mu.RUnlock()
	return loggedIn && w != nil && w.Ready()
}

// DefaultAddress is the identity used as owner of contract calls.
func (s *Session) DefaultAddress() tron.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

// Endpoint is the node URL the session's chain client should use.
func (s *Session) Endpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoint
}

// OnStatusChange registers fn to be called when the wallet logs in.
func (s *Session) OnStatusChange(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SignTransaction signs with the wallet, or fails with ErrReadOnly.
func (s *Session) SignTransaction(ctx context.Context, tx *tron.Transaction) error {
	s.mu.RLock()
	w, loggedIn := s.wallet, s.status.LoggedIn
	s.mu.RUnlock()

	if w == nil || !loggedIn {
		return ErrReadOnly
	}
	return w.SignTransaction(ctx, tx)
}

// Close releases the wallet connection.
func (s *Session) Close() error {
	s.mu.Lock()
	w, unwatch := s.wallet, s.unwatch
	s.unwatch = nil
	s.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	if w != nil {
		return w.Close()
	}
	return nil
}
