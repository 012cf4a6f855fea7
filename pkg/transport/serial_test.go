package transport

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/goburrow/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(Config{Path: "/dev/upsmon-test-does-not-exist"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	var terr *TransportError

	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "open", terr.Op)
	assert.Equal(t, "/dev/upsmon-test-does-not-exist", terr.Path)
}

func TestClassifyOpenError(t *testing.T) {
	assert.ErrorIs(t, classifyOpenError(os.ErrNotExist), ErrDeviceNotFound)
	assert.ErrorIs(t, classifyOpenError(os.ErrPermission), ErrPermissionDenied)

	other := errors.New("device busy")
	assert.Equal(t, other, classifyOpenError(other))
}

func TestClassifyIOError(t *testing.T) {
	assert.ErrorIs(t, classifyIOError(io.EOF), ErrDisconnected)
	assert.ErrorIs(t, classifyIOError(os.ErrClosed), ErrDisconnected)
	assert.ErrorIs(t, classifyIOError(errors.New("input/output error")), ErrIO)
}

func TestTransportErrorFormat(t *testing.T) {
	err := &TransportError{Op: "read", Path: "/dev/ttyUSB0", Wrapped: ErrTimeout}

	assert.Contains(t, err.Error(), "read")
	assert.Contains(t, err.Error(), "/dev/ttyUSB0")
	assert.ErrorIs(t, err, ErrTimeout)
}

// fakePort scripts the device side of an exchange. Chunks in reads are
// readable immediately (stale bytes); chunks in onWrite become readable
// only after the next request is written, like a real device answering.
type fakePort struct {
	reads    [][]byte
	onWrite  [][]byte
	readErrs []error
	written  [][]byte
	writeErr error
	closed   bool
}

func (p *fakePort) Open(_ *serial.Config) error {
	return nil
}

func (p *fakePort) Read(buf []byte) (int, error) {
	var chunk []byte

	if len(p.reads) > 0 {
		chunk = p.reads[0]
		p.reads = p.reads[1:]
	}

	var err error

	if len(p.readErrs) > 0 {
		err = p.readErrs[0]
		p.readErrs = p.readErrs[1:]
	}

	if chunk == nil && err == nil {
		return 0, serial.ErrTimeout
	}

	return copy(buf, chunk), err
}

func (p *fakePort) Write(buf []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}

	p.written = append(p.written, append([]byte{}, buf...))
	p.reads = append(p.reads, p.onWrite...)
	p.onWrite = nil

	return len(buf), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func newTestLink(port serial.Port, timeout time.Duration) *serialLink {
	return &serialLink{
		cfg:  Config{Path: "/dev/test", Timeout: timeout},
		port: port,
	}
}

func TestWakeWritesProbesAndDiscardsResponses(t *testing.T) {
	frames := [][]byte{{0x01, 0x03, 0xAA}, {0x0A, 0x03, 0xBB}}
	port := &fakePort{reads: [][]byte{{0xDE, 0xAD}}}

	link := &serialLink{
		cfg:  Config{Path: "/dev/test", Timeout: time.Second, WakeupFrames: frames},
		port: port,
	}
	link.wake()

	assert.Equal(t, frames, port.written)
	// Probe responses were consumed, not left for the first exchange.
	assert.Empty(t, port.reads)
}

func TestWakeWithoutFramesIsNoop(t *testing.T) {
	port := &fakePort{}
	link := newTestLink(port, time.Second)

	link.wake()
	assert.Empty(t, port.written)
}

func TestExchangeReassemblesChunkedResponse(t *testing.T) {
	port := &fakePort{onWrite: [][]byte{{0x01, 0x02}, {0x03}, {0x04, 0x05}}}
	link := newTestLink(port, time.Second)

	resp, err := link.Exchange(context.Background(), []byte{0xAA}, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05}, resp)
	require.Len(t, port.written, 1)
	assert.Equal(t, []byte{0xAA}, port.written[0])
}

func TestExchangeTimeoutDiscardsPartialRead(t *testing.T) {
	// The device answers two bytes and then goes silent.
	port := &fakePort{onWrite: [][]byte{{0x01, 0x02}}}
	link := newTestLink(port, 50*time.Millisecond)

	_, err := link.Exchange(context.Background(), []byte{0xAA}, 5)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, link.dirty)

	// The next exchange drains before writing; the stale bytes queued on
	// the port are consumed, not prefixed onto the new response.
	port.reads = [][]byte{{0xDE, 0xAD}}
	port.onWrite = [][]byte{{0x10, 0x20, 0x30}}

	resp, err := link.Exchange(context.Background(), []byte{0xBB}, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x20, 0x30}, resp)
	assert.False(t, link.dirty)
}

func TestExchangeDisconnect(t *testing.T) {
	port := &fakePort{onWrite: [][]byte{{0x01}}, readErrs: []error{nil, io.EOF}}
	link := newTestLink(port, time.Second)

	_, err := link.Exchange(context.Background(), []byte{0xAA}, 5)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestExchangeWriteFailure(t *testing.T) {
	port := &fakePort{writeErr: errors.New("input/output error")}
	link := newTestLink(port, time.Second)

	_, err := link.Exchange(context.Background(), []byte{0xAA}, 5)
	assert.ErrorIs(t, err, ErrIO)
	assert.True(t, link.dirty)
}

func TestExchangeObservesContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	link := newTestLink(&fakePort{}, time.Second)

	_, err := link.Exchange(ctx, []byte{0xAA}, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExchangeAfterClose(t *testing.T) {
	port := &fakePort{}
	link := newTestLink(port, time.Second)

	require.NoError(t, link.Close())
	assert.True(t, port.closed)

	_, err := link.Exchange(context.Background(), []byte{0xAA}, 5)
	assert.ErrorIs(t, err, ErrDisconnected)

	// Closing twice is safe.
	assert.NoError(t, link.Close())
}
