// Package transport abstracts the duplex byte channel between the engine
// and a debuggee process. Two named, unidirectional endpoints make up a
// session's transport: InPipe carries program-to-engine bytes, OutPipe
// carries engine-to-program bytes. Two platform backends satisfy the same
// Endpoints contract: Windows named pipes (pipe_windows.go) and POSIX
// FIFOs (pipe_unix.go).
package transport

import (
	"context"
	"io"
	"time"

	"github.com/purebasic-tools/pbdebug/pberr"
)

// DefaultConnectTimeout is used when callers do not override it via
// ListenOptions.
const DefaultConnectTimeout = 10 * time.Second

// Endpoints is the connected transport pair for one session. Reads from
// In and writes to Out are independent and may be driven concurrently by
// separate pump goroutines, but only one goroutine may call each method
// at a time — Endpoints provides no internal synchronization.
type Endpoints interface {
	// Read blocks until at least one byte arrives on InPipe, the context
	// is cancelled, or the peer disconnects.
	Read(ctx context.Context, p []byte) (int, error)
	// Write delivers p to OutPipe atomically; short writes are retried
	// internally so callers never see a partial write without an error.
	Write(ctx context.Context, p []byte) error
	// Close tears down both pipe ends and removes any filesystem nodes
	// the backend created.
	Close() error
}

// ListenOptions configures how a backend waits for the debuggee to
// connect.
type ListenOptions struct {
	// ConnectTimeout bounds how long Accept may wait for the peer to
	// connect before failing with KindTransportTimeout.
	ConnectTimeout time.Duration
	// RetryBackoff and RetryMax bound the POSIX backend's non-blocking
	// open retry loop; ignored on Windows, where named-pipe connection is
	// event-driven rather than poll-driven.
	RetryBackoff time.Duration
	RetryMax     time.Duration
}

func (o ListenOptions) withDefaults() ListenOptions {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 20 * time.Millisecond
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 500 * time.Millisecond
	}
	return o
}

// Names returns the two pipe paths a given pipe id resolves to on the
// current platform. It never creates anything; it is used both by the
// transport backend and by the launcher to compute the
// PB_DEBUGGER_Communication environment variable.
func Names(pipeID string) (inPath, outPath string) {
	return platformNames(pipeID)
}

// Listener is the prepared-but-not-yet-connected server side of a
// transport pair. Splitting preparation from connection lets the
// launcher create the pipe nodes (or named-pipe server instances) before
// spawning the debuggee, then spawn, then wait — matching "the engine
// listens before spawning the debuggee; the debuggee connects after
// spawn."
type Listener interface {
	// Accept blocks until the debuggee has connected both ends or the
	// deadline in opts/ctx elapses, returning KindTransportTimeout on
	// expiry.
	Accept(ctx context.Context, opts ListenOptions) (Endpoints, error)
	// Close releases the listener without ever having accepted a peer
	// (e.g. because the debuggee failed to spawn).
	Close() error
}

// Prepare creates both endpoint nodes for pipeID without blocking for a
// peer. Callers spawn the debuggee after Prepare returns and before
// calling Accept.
func Prepare(pipeID string) (Listener, error) {
	return platformPrepare(pipeID)
}

// Listen is a convenience that prepares and immediately accepts; it is
// useful for tests and for the standalone "attach to an already-running
// debuggee" flow where there is no separate spawn step to interleave.
func Listen(ctx context.Context, pipeID string, opts ListenOptions) (Endpoints, error) {
	l, err := Prepare(pipeID)
	if err != nil {
		return nil, err
	}
	ep, err := l.Accept(ctx, opts.withDefaults())
	if err != nil {
		closeQuietly(l)
		return nil, err
	}
	return ep, nil
}

// wrapBroken and wrapTimeout centralize the two transport error kinds so
// every backend reports them identically.
func wrapTimeout(op string, err error) error {
	return pberr.Wrap(op, pberr.KindTransportTimeout, err, "peer did not connect before the deadline")
}

func wrapBroken(op string, err error) error {
	return pberr.Wrap(op, pberr.KindTransportBroken, err, "peer disconnected")
}

// closeQuietly closes c and discards the result, used for best-effort
// cleanup on an error path where the original error matters more.
func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
