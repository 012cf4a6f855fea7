// Package monitor drives the acquisition pipeline: it owns the daemon
// state machine and the poll loop of request, decode, store update, alert
// evaluation and drift-compensated sleep.
package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/kmatveev/upsmon/pkg/alerts"
	"github.com/kmatveev/upsmon/pkg/models"
	"github.com/kmatveev/upsmon/pkg/protocol"
	"github.com/kmatveev/upsmon/pkg/telemetry"
	"github.com/kmatveev/upsmon/pkg/transport"
)

const (
	defaultInterval    = 30 * time.Second
	defaultMaxErrors   = 5
	defaultTimeout     = 2 * time.Second
	defaultBaseBackoff = 1 * time.Second
	defaultMaxBackoff  = 60 * time.Second

	// updateBuffer sizes the snapshot fan-out channel. Slow publishers
	// drop updates rather than stall the poll loop.
	updateBuffer = 8
)

var errTooManyFailures = errors.New("consecutive poll failures reached threshold")

// LinkOpener produces a fresh transport link. The monitor calls it on
// startup and again after every forced reconnect.
type LinkOpener func() (transport.Link, error)

// Config holds the scheduler's runtime settings.
type Config struct {
	Interval    time.Duration
	Timeout     time.Duration
	MaxErrors   int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}

	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	if c.MaxErrors <= 0 {
		c.MaxErrors = defaultMaxErrors
	}

	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaultBaseBackoff
	}

	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
}

// Monitor is the polling scheduler. Run executes on a single goroutine
// that is the only writer of the daemon state, the link handle and the
// telemetry store.
type Monitor struct {
	cfg    Config
	opener LinkOpener
	store  *telemetry.Store

	mu                sync.RWMutex
	state             models.DaemonState
	consecutiveErrors int

	updates chan models.Snapshot
}

func New(cfg Config, store *telemetry.Store, opener LinkOpener) *Monitor {
	cfg.setDefaults()

	return &Monitor{
		cfg:     cfg,
		opener:  opener,
		store:   store,
		state:   models.StateConnecting,
		updates: make(chan models.Snapshot, updateBuffer),
	}
}

// Updates returns the channel on which every fresh snapshot is published.
func (m *Monitor) Updates() <-chan models.Snapshot {
	return m.updates
}

// Health reports the scheduler state for health endpoints.
func (m *Monitor) Health() models.Health {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return models.Health{
		State:             m.state,
		Uptime:            models.FormatUptime(time.Since(m.store.StartedAt())),
		ConsecutiveErrors: m.consecutiveErrors,
	}
}

// State returns the current daemon state.
func (m *Monitor) State() models.DaemonState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// Run executes the daemon loop until ctx is canceled. Recoverable
// transport and decode errors never end the loop; the only exit is the
// shutdown signal.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.setState(models.StateStopped)

	backoff := m.cfg.BaseBackoff

	for {
		if ctx.Err() != nil {
			return nil
		}

		m.setState(models.StateConnecting)
		m.store.MarkConnecting()

		link, err := m.opener()
		if err != nil {
			log.Printf("Failed to open UPS link: %v (retrying in %s)", err, backoff)

			if !sleepContext(ctx, backoff) {
				return nil
			}

			backoff = nextBackoff(backoff, m.cfg.MaxBackoff)

			continue
		}

		backoff = m.cfg.BaseBackoff

		// A fresh link starts with a clean error budget; the count that
		// forced the previous reconnect does not carry over.
		m.resetFailures()

		err = m.pollLoop(ctx, link)

		if cerr := link.Close(); cerr != nil {
			log.Printf("Error closing UPS link: %v", cerr)
		}

		if !errors.Is(err, errTooManyFailures) {
			// Shutdown requested.
			return nil
		}

		log.Printf("Reconnecting to UPS after %d consecutive poll failures", m.cfg.MaxErrors)
	}
}

// pollLoop runs cycles over one open link. It returns errTooManyFailures
// when the error threshold forces a reconnect, or ctx.Err() on shutdown.
func (m *Monitor) pollLoop(ctx context.Context, link transport.Link) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()

		if err := m.pollOnce(ctx, link); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			failures := m.recordFailure()
			m.store.MarkDegraded()
			log.Printf("Poll cycle failed (%d/%d): %v", failures, m.cfg.MaxErrors, err)

			if failures >= m.cfg.MaxErrors {
				m.setState(models.StateReconnecting)
				m.store.MarkReconnecting()

				return errTooManyFailures
			}
		} else {
			m.recordSuccess()
		}

		// Subtract the cycle duration so drift does not compound.
		if !sleepContext(ctx, m.cfg.Interval-time.Since(start)) {
			return ctx.Err()
		}
	}
}

// pollOnce performs one full cycle: request, exchange, decode, store
// update, alert evaluation, publish.
func (m *Monitor) pollOnce(ctx context.Context, link transport.Link) error {
	cctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	raw, err := link.Exchange(cctx, protocol.BuildPollRequest(), protocol.ResponseLength)
	if err != nil {
		return err
	}

	reading, err := protocol.Decode(raw)
	if err != nil {
		return err
	}

	reading.CapturedAt = time.Now()
	alarmSet := alerts.Evaluate(reading)

	m.store.Update(reading, alarmSet)

	snap := m.store.Snapshot()
	select {
	case m.updates <- snap:
	default:
		log.Printf("Snapshot channel full, dropping update")
	}

	for _, alarm := range alarmSet {
		log.Printf("Alarm: %s (%s=%.1f)", alarm.Condition, alarm.Metric, alarm.Value)
	}

	return nil
}

func (m *Monitor) recordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = models.StatePolling
	m.consecutiveErrors = 0
}

func (m *Monitor) recordFailure() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consecutiveErrors++
	m.state = models.StateDegraded

	return m.consecutiveErrors
}

func (m *Monitor) resetFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consecutiveErrors = 0
}

func (m *Monitor) setState(state models.DaemonState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = state
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		next = maxBackoff
	}

	return next
}

// sleepContext waits for d or until ctx is canceled. It returns false when
// the wait was interrupted by cancellation.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
