// Package launcher allocates a pipe identifier, prepares the transport
// endpoints, spawns the debuggee with the environment it expects, and
// watches for exit. It owns no session state: the caller feeds the
// returned Handle into a session and the protocol engine from there.
package launcher

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/purebasic-tools/pbdebug/pberr"
	"github.com/purebasic-tools/pbdebug/transport"
)

// Options configures a debuggee launch.
type Options struct {
	// ExePath is the compiled debuggee binary to run.
	ExePath string
	// WorkDir is the process working directory; empty means the
	// launcher's own working directory.
	WorkDir string
	// ExtraEnv is appended after the debugger's own PB_DEBUGGER_* and
	// the inherited environment, letting a project inject its own
	// variables (e.g. PB_TOOL_PATH) without the launcher needing to
	// know about them.
	ExtraEnv []string
	// Unicode, StopOnEntry, StopOnEnd, and BigEndian become the four
	// flags of PB_DEBUGGER_Options, in that order.
	Unicode     bool
	StopOnEntry bool
	StopOnEnd   bool
	BigEndian   bool
	// ConnectTimeout bounds how long Accept waits for the debuggee to
	// connect both pipe ends after spawn.
	ConnectTimeout time.Duration
	// PipeRetryBackoff and PipeRetryMax bound the POSIX backend's
	// non-blocking open retry loop; zero means the transport package's
	// own defaults apply. Ignored on Windows.
	PipeRetryBackoff time.Duration
	PipeRetryMax     time.Duration
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = transport.DefaultConnectTimeout
	}
	// The PureBasic debugger's documented default is 1;1;0;0.
	if !o.Unicode && !o.StopOnEntry && !o.StopOnEnd && !o.BigEndian {
		o.Unicode = true
		o.StopOnEntry = true
	}
	return o
}

// Handle is a launched debuggee: its process and its connected
// transport. Callers build a session.Session around PipeID/InPipePath/
// OutPipePath and drive Endpoints through the protocol engine.
type Handle struct {
	PipeID      string
	InPipePath  string
	OutPipePath string
	Endpoints   transport.Endpoints
	Process     *exec.Cmd

	// Exited is closed once the debuggee process has exited; ExitErr
	// is valid to read only after it closes.
	Exited  chan struct{}
	ExitErr error
}

// NewPipeID returns a collision-resistant, ≥8 hex-digit uppercase pipe
// identifier, drawn from a cryptographic random source rather than
// merely made process-unique.
func NewPipeID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", pberr.Wrap("launcher.NewPipeID", pberr.KindConfiguration, err, "read random bytes")
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Launch allocates a pipe id, prepares the transport, spawns the
// debuggee with the required environment, and waits for it to connect.
// The transport is always prepared before the process is spawned, so
// the debuggee never races the engine to create the pipe nodes.
func Launch(ctx context.Context, opts Options) (*Handle, error) {
	opts = opts.withDefaults()

	if err := checkExecutable(opts.ExePath); err != nil {
		return nil, err
	}

	pipeID, err := NewPipeID()
	if err != nil {
		return nil, err
	}
	inPath, outPath := transport.Names(pipeID)

	listener, err := transport.Prepare(pipeID)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(opts.ExePath)
	cmd.Dir = opts.WorkDir
	cmd.Env = append(append([]string{}, os.Environ()...), buildEnv(pipeID, inPath, outPath, opts)...)
	cmd.Env = append(cmd.Env, opts.ExtraEnv...)
	// The transport is not stdio; the debuggee's own stdio is left
	// detached from the launcher so debug output flows only over
	// OutPipe.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		closeQuietly(listener)
		return nil, pberr.Wrap("launcher.Launch", pberr.KindLauncherFailed, err, "spawn debuggee")
	}

	exited := make(chan struct{})
	handle := &Handle{
		PipeID:      pipeID,
		InPipePath:  inPath,
		OutPipePath: outPath,
		Process:     cmd,
		Exited:      exited,
	}
	go func() {
		err := cmd.Wait()
		handle.ExitErr = err
		close(exited)
	}()

	acceptCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	type acceptResult struct {
		ep  transport.Endpoints
		err error
	}
	resultCh := make(chan acceptResult, 1)
	go func() {
		ep, err := listener.Accept(acceptCtx, transport.ListenOptions{
			ConnectTimeout: opts.ConnectTimeout,
			RetryBackoff:   opts.PipeRetryBackoff,
			RetryMax:       opts.PipeRetryMax,
		})
		resultCh <- acceptResult{ep, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			killAndWait(cmd)
			return nil, wrapLaunchFailedIfExited(r.err, handle)
		}
		handle.Endpoints = r.ep
		return handle, nil
	case <-exited:
		cancel()
		<-resultCh
		return nil, pberr.New("launcher.Launch", pberr.KindLauncherFailed,
			fmt.Sprintf("debuggee exited before connecting transport: %v", handle.ExitErr))
	}
}

// wrapLaunchFailedIfExited reclassifies a transport timeout as
// LauncherFailed when the debuggee has already exited, since the root
// cause is the process dying, not a slow peer.
func wrapLaunchFailedIfExited(err error, h *Handle) error {
	select {
	case <-h.Exited:
		return pberr.New("launcher.Launch", pberr.KindLauncherFailed,
			fmt.Sprintf("debuggee exited before connecting transport: %v", h.ExitErr))
	default:
		return err
	}
}

func killAndWait(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func closeQuietly(l transport.Listener) {
	if l != nil {
		_ = l.Close()
	}
}

// checkExecutable fails fast with LauncherFailed when the compiled
// binary is missing or not executable, instead of letting exec.Command
// return an opaque ENOENT later.
func checkExecutable(path string) error {
	if path == "" {
		return pberr.New("launcher.Launch", pberr.KindConfiguration, "exe path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return pberr.Wrap("launcher.Launch", pberr.KindLauncherFailed, err, "stat debuggee executable")
	}
	if info.IsDir() {
		return pberr.New("launcher.Launch", pberr.KindLauncherFailed, path+" is a directory")
	}
	if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
		return pberr.New("launcher.Launch", pberr.KindLauncherFailed, path+" is not executable")
	}
	return nil
}

// buildEnv constructs PB_DEBUGGER_Communication and PB_DEBUGGER_Options
// exactly as documented: the POSIX backend always uses the explicit
// FifoFiles triple since there is no fixed-prefix shorthand for FIFOs,
// while Windows uses the explicit NamedPipes triple so the debuggee
// never has to re-derive paths from the bare id.
func buildEnv(pipeID, inPath, outPath string, opts Options) []string {
	var communication string
	if runtime.GOOS == "windows" {
		communication = fmt.Sprintf("NamedPipes;%s;%s", inPath, outPath)
	} else {
		communication = fmt.Sprintf("FifoFiles;%s;%s", inPath, outPath)
	}
	options := fmt.Sprintf("%s;%s;%s;%s",
		boolFlag(opts.Unicode), boolFlag(opts.StopOnEntry), boolFlag(opts.StopOnEnd), boolFlag(opts.BigEndian))
	return []string{
		"PB_DEBUGGER_Communication=" + communication,
		"PB_DEBUGGER_Options=" + options,
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// CompileAndLaunch shells out to the PureBasic compiler as an opaque
// subprocess, then launches the executable it produces. Compiling
// itself is not this package's concern; it is invoked exactly as an
// editor would invoke any external build tool before a debug run.
func CompileAndLaunch(ctx context.Context, compilerPath, srcPath, outPath string, compilerArgs []string, opts Options) (*Handle, error) {
	args := append(append([]string{}, compilerArgs...), "/EXE", outPath, srcPath)
	build := exec.CommandContext(ctx, compilerPath, args...)
	output, err := build.CombinedOutput()
	if err != nil {
		return nil, pberr.Wrap("launcher.CompileAndLaunch", pberr.KindLauncherFailed, err,
			"compile failed: "+string(output))
	}
	opts.ExePath = outPath
	return Launch(ctx, opts)
}
