//go:build !windows

package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/purebasic-tools/pbdebug/pberr"
)

// platformNames returns the two FIFO node paths for pipeID, following the
// spec's POSIX naming: two FIFO nodes under the system temp dir.
func platformNames(pipeID string) (inPath, outPath string) {
	dir := os.TempDir()
	return filepath.Join(dir, "pb-debug-in-"+pipeID), filepath.Join(dir, "pb-debug-out-"+pipeID)
}

type fifoEndpoints struct {
	inPath, outPath string
	in              *os.File
	out             *os.File
}

// fifoListener holds the in-fifo's already-opened read end (opening it
// read-only non-blocking never blocks on a peer) until Accept retries
// opening the out-fifo's write end, which fails with ENXIO until the
// debuggee opens its read end.
type fifoListener struct {
	inPath, outPath string
	in              *os.File
}

// platformPrepare creates both FIFO nodes and opens InPipe read-only
// non-blocking immediately. It performs no operation that can block on
// the peer, so it is safe to call before the debuggee exists.
func platformPrepare(pipeID string) (Listener, error) {
	inPath, outPath := platformNames(pipeID)

	if err := mkfifo(inPath); err != nil {
		return nil, pberr.Wrap("transport.Prepare", pberr.KindConfiguration, err, "create in-fifo")
	}
	if err := mkfifo(outPath); err != nil {
		os.Remove(inPath)
		return nil, pberr.Wrap("transport.Prepare", pberr.KindConfiguration, err, "create out-fifo")
	}

	in, err := os.OpenFile(inPath, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		os.Remove(inPath)
		os.Remove(outPath)
		return nil, pberr.Wrap("transport.Prepare", pberr.KindConfiguration, err, "open in-fifo")
	}

	return &fifoListener{inPath: inPath, outPath: outPath, in: in}, nil
}

// Accept retries opening OutPipe write-only non-blocking with bounded
// backoff until the debuggee has opened its read end.
func (l *fifoListener) Accept(ctx context.Context, opts ListenOptions) (Endpoints, error) {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.ConnectTimeout)
	backoff := opts.RetryBackoff
	var out *os.File
	var err error
	for {
		out, err = os.OpenFile(l.outPath, os.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.ENXIO) {
			return nil, pberr.Wrap("transport.Accept", pberr.KindTransportBroken, err, "open out-fifo")
		}
		select {
		case <-ctx.Done():
			return nil, wrapTimeout("transport.Accept", ctx.Err())
		default:
		}
		if time.Now().After(deadline) {
			return nil, wrapTimeout("transport.Accept", fmt.Errorf("debuggee never opened %s", l.outPath))
		}
		time.Sleep(backoff)
		if backoff < opts.RetryMax {
			backoff *= 2
			if backoff > opts.RetryMax {
				backoff = opts.RetryMax
			}
		}
	}

	return &fifoEndpoints{inPath: l.inPath, outPath: l.outPath, in: l.in, out: out}, nil
}

// Close releases the listener's held resources without ever having
// accepted a peer.
func (l *fifoListener) Close() error {
	err := l.in.Close()
	os.Remove(l.inPath)
	os.Remove(l.outPath)
	return err
}

func mkfifo(path string) error {
	os.Remove(path)
	return unix.Mkfifo(path, 0600)
}

func (e *fifoEndpoints) Read(ctx context.Context, p []byte) (int, error) {
	for {
		if dl, ok := ctx.Deadline(); ok {
			e.in.SetReadDeadline(dl)
		} else {
			e.in.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		}
		n, err := e.in.Read(p)
		if n > 0 {
			return n, nil
		}
		if err == nil {
			continue
		}
		if isTimeoutErr(err) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			default:
				continue
			}
		}
		return 0, wrapBroken("transport.Read", err)
	}
}

func (e *fifoEndpoints) Write(ctx context.Context, p []byte) error {
	for len(p) > 0 {
		if dl, ok := ctx.Deadline(); ok {
			e.out.SetWriteDeadline(dl)
		} else {
			e.out.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		}
		n, err := e.out.Write(p)
		p = p[n:]
		if err != nil {
			if isTimeoutErr(err) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
					continue
				}
			}
			return wrapBroken("transport.Write", err)
		}
	}
	return nil
}

func (e *fifoEndpoints) Close() error {
	err1 := e.in.Close()
	err2 := e.out.Close()
	os.Remove(e.inPath)
	os.Remove(e.outPath)
	if err1 != nil {
		return err1
	}
	return err2
}

func isTimeoutErr(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
