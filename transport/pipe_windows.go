//go:build windows

package transport

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/windows"

	"github.com/purebasic-tools/pbdebug/pberr"
)

// platformNames returns the two named-pipe paths for pipeID:
// PureBasic_DebuggerPipeA_<ID> for InPipe and
// PureBasic_DebuggerPipeB_<ID> for OutPipe.
func platformNames(pipeID string) (inPath, outPath string) {
	return `\\.\pipe\PureBasic_DebuggerPipeA_` + pipeID, `\\.\pipe\PureBasic_DebuggerPipeB_` + pipeID
}

const (
	pipeBufSize = 64 * 1024
)

type namedPipeEndpoints struct {
	in  windows.Handle
	out windows.Handle
}

// namedPipeListener holds both freshly created, not-yet-connected
// named-pipe server instances until Accept waits for the debuggee to
// dial in.
type namedPipeListener struct {
	in, out windows.Handle
}

// platformPrepare creates both named-pipe server instances without
// waiting for a peer, so the launcher can spawn the debuggee only after
// the pipes exist for it to dial into.
func platformPrepare(pipeID string) (Listener, error) {
	inPath, outPath := platformNames(pipeID)

	in, err := createServerPipe(inPath, windows.PIPE_ACCESS_INBOUND)
	if err != nil {
		return nil, pberr.Wrap("transport.Prepare", pberr.KindConfiguration, err, "create in-pipe")
	}
	out, err := createServerPipe(outPath, windows.PIPE_ACCESS_OUTBOUND)
	if err != nil {
		windows.CloseHandle(in)
		return nil, pberr.Wrap("transport.Prepare", pberr.KindConfiguration, err, "create out-pipe")
	}

	return &namedPipeListener{in: in, out: out}, nil
}

// Accept waits for the debuggee to connect to both pipe instances,
// bounded by ctx's deadline when it has one and by opts.ConnectTimeout
// otherwise.
func (l *namedPipeListener) Accept(ctx context.Context, opts ListenOptions) (Endpoints, error) {
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		deadline = time.Now().Add(opts.ConnectTimeout)
	}

	if err := connectWithDeadline(ctx, l.in, deadline); err != nil {
		return nil, wrapTimeout("transport.Accept", err)
	}
	if err := connectWithDeadline(ctx, l.out, deadline); err != nil {
		return nil, wrapTimeout("transport.Accept", err)
	}

	return &namedPipeEndpoints{in: l.in, out: l.out}, nil
}

// Close releases both pipe instances without ever having accepted a
// peer.
func (l *namedPipeListener) Close() error {
	err1 := windows.CloseHandle(l.in)
	err2 := windows.CloseHandle(l.out)
	if err1 != nil {
		return err1
	}
	return err2
}

func createServerPipe(path string, direction uint32) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	h, err := windows.CreateNamedPipe(
		p,
		direction|windows.FILE_FLAG_OVERLAPPED,
		windows.PIPE_TYPE_BYTE|windows.PIPE_READMODE_BYTE|windows.PIPE_WAIT,
		1,
		pipeBufSize,
		pipeBufSize,
		0,
		nil,
	)
	if err != nil {
		return 0, err
	}
	return h, nil
}

// connectWithDeadline performs an overlapped ConnectNamedPipe, which lets
// us race the connection against ctx cancellation and the deadline
// instead of blocking indefinitely inside the kernel call.
func connectWithDeadline(ctx context.Context, h windows.Handle, deadline time.Time) error {
	overlapped := &windows.Overlapped{}
	event, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(event)
	overlapped.HEvent = event

	err = windows.ConnectNamedPipe(h, overlapped)
	if err != nil && err != windows.ERROR_IO_PENDING && err != windows.ERROR_PIPE_CONNECTED {
		return err
	}
	if err == windows.ERROR_PIPE_CONNECTED {
		return nil
	}

	timeout := time.Until(deadline)
	if timeout < 0 {
		timeout = 0
	}
	waitResult, err := windows.WaitForSingleObject(event, uint32(timeout.Milliseconds()))
	if err != nil {
		return err
	}
	switch waitResult {
	case windows.WAIT_OBJECT_0:
		return nil
	case uint32(windows.WAIT_TIMEOUT):
		windows.CancelIo(h)
		return fmt.Errorf("timed out waiting for pipe connection")
	default:
		return fmt.Errorf("unexpected wait result %d", waitResult)
	}
}

func (e *namedPipeEndpoints) Read(ctx context.Context, p []byte) (int, error) {
	done := make(chan struct{})
	var n int
	var err error
	go func() {
		n, err = readFile(e.in, p)
		close(done)
	}()
	select {
	case <-done:
		if err != nil {
			return 0, wrapBroken("transport.Read", err)
		}
		return n, nil
	case <-ctx.Done():
		windows.CancelIoEx(e.in, nil)
		<-done
		return 0, ctx.Err()
	}
}

func (e *namedPipeEndpoints) Write(ctx context.Context, p []byte) error {
	done := make(chan error, 1)
	go func() {
		done <- writeAll(e.out, p)
	}()
	select {
	case err := <-done:
		if err != nil {
			return wrapBroken("transport.Write", err)
		}
		return nil
	case <-ctx.Done():
		windows.CancelIoEx(e.out, nil)
		<-done
		return ctx.Err()
	}
}

func (e *namedPipeEndpoints) Close() error {
	windows.DisconnectNamedPipe(e.in)
	windows.DisconnectNamedPipe(e.out)
	err1 := windows.CloseHandle(e.in)
	err2 := windows.CloseHandle(e.out)
	if err1 != nil {
		return err1
	}
	return err2
}

func readFile(h windows.Handle, p []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(h, p, &n, nil)
	return int(n), err
}

func writeAll(h windows.Handle, p []byte) error {
	for len(p) > 0 {
		var n uint32
		if err := windows.WriteFile(h, p, &n, nil); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}
