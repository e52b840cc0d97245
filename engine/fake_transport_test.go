package engine

import (
	"context"
	"io"
	"sync"
)

// fakeTransport is an in-memory transport.Endpoints used to drive the
// engine through handshake, dispatch, and teardown scenarios without a
// real debuggee process.
type fakeTransport struct {
	toEngine   chan []byte
	fromEngine chan []byte
	closed     chan struct{}
	once       sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		toEngine:   make(chan []byte, 64),
		fromEngine: make(chan []byte, 64),
		closed:     make(chan struct{}),
	}
}

func (f *fakeTransport) Read(ctx context.Context, p []byte) (int, error) {
	select {
	case b, ok := <-f.toEngine:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, b), nil
	case <-f.closed:
		return 0, io.EOF
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *fakeTransport) Write(ctx context.Context, p []byte) error {
	cp := append([]byte(nil), p...)
	select {
	case f.fromEngine <- cp:
		return nil
	case <-f.closed:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// push delivers one pre-encoded frame as a single Read-sized chunk.
func (f *fakeTransport) push(b []byte) {
	f.toEngine <- b
}
