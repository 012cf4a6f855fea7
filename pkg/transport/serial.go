// Package transport owns the physical serial connection to the UPS:
// open, timed request/response exchange, and teardown.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/goburrow/serial"
)

const (
	defaultBaudRate = 9600
	defaultTimeout  = 2 * time.Second

	// readGranularity bounds each port read so the overall deadline and
	// ctx cancellation are checked frequently while waiting for bytes.
	readGranularity = 100 * time.Millisecond

	// maxDrainReads caps the post-failure drain so a chattering device
	// cannot stall the link.
	maxDrainReads = 32

	// Pauses between wakeup probes and after the last one, matching what
	// the device needs before it answers polls reliably.
	wakeupPause  = 300 * time.Millisecond
	wakeupSettle = 500 * time.Millisecond
)

// Config describes the serial link. The UPS line settings are fixed at
// 9600 8N1; only the device path and exchange timeout vary.
// WakeupFrames are opaque byte sequences written once after the port
// opens; the link does not interpret them.
type Config struct {
	Path         string
	BaudRate     int
	Timeout      time.Duration
	WakeupFrames [][]byte
}

type serialLink struct {
	mu    sync.Mutex
	cfg   Config
	port  serial.Port
	dirty bool
}

// Open opens the serial device. A missing or unreadable path fails
// immediately; retry policy belongs to the caller.
func Open(cfg Config) (Link, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = defaultBaudRate
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	port, err := serial.Open(&serial.Config{
		Address:  cfg.Path,
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  readGranularity,
	})
	if err != nil {
		return nil, &TransportError{Op: "open", Path: cfg.Path, Wrapped: classifyOpenError(err)}
	}

	l := &serialLink{cfg: cfg, port: port}
	l.wake()

	return l, nil
}

// wake writes the configured probe frames, pausing after each and
// discarding whatever the device answers. The device may stay silent on
// some probes; that is not an error.
func (l *serialLink) wake() {
	if len(l.cfg.WakeupFrames) == 0 {
		return
	}

	scratch := make([]byte, 128)

	for _, frame := range l.cfg.WakeupFrames {
		if _, err := l.port.Write(frame); err != nil {
			return
		}

		time.Sleep(wakeupPause)

		_, _ = l.port.Read(scratch)
	}

	// Let the device settle, then clear any late probe responses so they
	// cannot prefix the first poll.
	time.Sleep(wakeupSettle)
	l.drain()
}

func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ErrDeviceNotFound
	case errors.Is(err, os.ErrPermission):
		return ErrPermissionDenied
	default:
		return err
	}
}

// Exchange implements Link. Any failure marks the link dirty: before the
// next request the device's pending bytes are drained, so a stale partial
// frame can never be prefixed onto the next read.
func (l *serialLink) Exchange(ctx context.Context, frame []byte, respLen int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return nil, &TransportError{Op: "write", Path: l.cfg.Path, Wrapped: ErrDisconnected}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.dirty {
		l.drain()
		l.dirty = false
	}

	if _, err := l.port.Write(frame); err != nil {
		l.dirty = true

		return nil, &TransportError{Op: "write", Path: l.cfg.Path, Wrapped: classifyIOError(err)}
	}

	buf := make([]byte, respLen)
	deadline := time.Now().Add(l.cfg.Timeout)

	read := 0
	for read < respLen {
		if err := ctx.Err(); err != nil {
			l.dirty = true

			return nil, err
		}

		if !time.Now().Before(deadline) {
			l.dirty = true

			return nil, &TransportError{Op: "read", Path: l.cfg.Path, Wrapped: ErrTimeout}
		}

		n, err := l.port.Read(buf[read:])
		read += n

		if err != nil {
			if errors.Is(err, serial.ErrTimeout) {
				// Granularity tick; keep waiting until the deadline.
				continue
			}

			l.dirty = true

			return nil, &TransportError{Op: "read", Path: l.cfg.Path, Wrapped: classifyIOError(err)}
		}
	}

	return buf, nil
}

func classifyIOError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return ErrDisconnected
	}

	return fmt.Errorf("%w: %w", ErrIO, err)
}

// drain discards whatever the device still has buffered after a failed
// exchange. Bounded by maxDrainReads; each read returns within the port's
// read granularity.
func (l *serialLink) drain() {
	scratch := make([]byte, 256)

	for i := 0; i < maxDrainReads; i++ {
		n, err := l.port.Read(scratch)
		if err != nil || n == 0 {
			return
		}
	}
}

// Close implements Link.
func (l *serialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return nil
	}

	err := l.port.Close()
	l.port = nil

	return err
}
