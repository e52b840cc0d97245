// Package engine implements the protocol conversation: the handshake,
// run/step dispatch, breakpoint bookkeeping, and inbound event
// classification described by the wire protocol. A single goroutine
// owns all session mutation; two further goroutines pump bytes across
// the transport. This generalizes the single-OS-thread-owns-ptrace-state
// pattern (a dedicated goroutine draining a channel of closures, with an
// unbuffered result channel guaranteeing rendezvous) to "a dedicated
// goroutine owns the one write-capable transport handle."
package engine

import (
	"context"
	"time"

	"github.com/purebasic-tools/pbdebug/frame"
	"github.com/purebasic-tools/pbdebug/internal/config"
	"github.com/purebasic-tools/pbdebug/internal/logging"
	"github.com/purebasic-tools/pbdebug/pberr"
	"github.com/purebasic-tools/pbdebug/session"
	"github.com/purebasic-tools/pbdebug/transport"
)

// Engine drives one Session's wire conversation to completion. Create
// one per launched debuggee; Run blocks until the session reaches
// Terminated or ctx is cancelled.
type Engine struct {
	sess *session.Session
	ep   transport.Endpoints
	dec  *frame.Decoder
	cfg  config.Config
	log  logging.Logger

	exeFlags frame.ExeModeFlags

	cmdCh    chan Command
	eventsCh chan Event

	// writeFc/writeEc serialize every outbound write through a single
	// dedicated goroutine, mirroring ptraceRun's fc/ec rendezvous
	// pattern: the caller blocks until its own write has completed,
	// never another caller's.
	writeFc chan func() error
	writeEc chan error
}

// New constructs an Engine for an already-accepted transport pair. sess
// must be freshly created (state Idle).
func New(sess *session.Session, ep transport.Endpoints, cfg config.Config, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		sess:     sess,
		ep:       ep,
		dec:      frame.NewDecoder(cfg.MaxFrameSize),
		cfg:      cfg,
		log:      log,
		cmdCh:    make(chan Command),
		eventsCh: make(chan Event, 16),
		writeFc:  make(chan func() error),
		writeEc:  make(chan error),
	}
}

// Events returns the channel the caller must drain for the engine's
// lifetime; events are delivered in exact wire order.
func (e *Engine) Events() <-chan Event {
	return e.eventsCh
}

// Session exposes the underlying session for read-only inspection
// (state, breakpoints) by callers that do not mutate it directly.
func (e *Engine) Session() *session.Session {
	return e.sess
}

// Submit hands a command to the engine's single task and waits for it
// to complete. Cancelling ctx before the command is accepted leaves
// session state untouched; cancelling after it is accepted returns
// Cancelled but the engine may already have begun a wire write, in
// which case the session transitions to Terminated and a terminal
// event follows on Events().
func (e *Engine) Submit(ctx context.Context, cmd Command) error {
	cmd.ctx = ctx
	reply := make(chan error, 1)
	cmd.reply = reply
	select {
	case e.cmdCh <- cmd:
	case <-ctx.Done():
		return pberr.New("engine.Submit", pberr.KindCancelled, "cancelled before the command was accepted")
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return pberr.New("engine.Submit", pberr.KindCancelled, "cancelled while the command was in flight")
	}
}

// Run drives the handshake and then the main dispatch loop until the
// session reaches Terminated, the transport breaks, or ctx is
// cancelled. It always closes the transport before returning.
func (e *Engine) Run(ctx context.Context) error {
	defer closeQuietly(e.ep)

	inboundCh := make(chan frame.Frame)
	inboundErrCh := make(chan error, 1)
	pumpCtx, cancelPump := context.WithCancel(ctx)
	defer cancelPump()
	go e.readPump(pumpCtx, inboundCh, inboundErrCh)
	go e.writePump(pumpCtx)

	if err := e.sess.Transition(session.EventLaunch); err != nil {
		return err
	}

	if err := e.handshake(ctx, inboundCh, inboundErrCh); err != nil {
		return err
	}

	return e.dispatchLoop(ctx, inboundCh, inboundErrCh)
}

// handshake waits for Init followed by ExeMode within
// cfg.HandshakeTimeout.
func (e *Engine) handshake(ctx context.Context, inboundCh <-chan frame.Frame, inboundErrCh <-chan error) error {
	deadline := time.NewTimer(e.cfg.HandshakeTimeout)
	defer deadline.Stop()

	var gotInit bool
	for {
		select {
		case f := <-inboundCh:
			switch {
			case f.Command == frame.CmdInit && !gotInit:
				gotInit = true
			case f.Command == frame.CmdExeMode && gotInit:
				e.exeFlags = frame.ExeModeFlags(f.Value1)
				if err := e.sess.Transition(session.EventTransportConnected); err != nil {
					return e.fail(session.EventLaunchFailed, pberr.KindHandshakeFailed, "unexpected handshake state: "+err.Error())
				}
				e.emit(Event{Kind: EventInitialized})
				return nil
			default:
				return e.fail(session.EventLaunchFailed, pberr.KindHandshakeFailed,
					"unexpected frame during handshake before Init/ExeMode completed")
			}
		case err := <-inboundErrCh:
			return e.fail(session.EventLaunchFailed, pberr.KindHandshakeFailed, "transport failed during handshake: "+err.Error())
		case <-deadline.C:
			return e.fail(session.EventLaunchTimeout, pberr.KindHandshakeFailed, "Init/ExeMode not received before the handshake deadline")
		case <-ctx.Done():
			return e.fail(session.EventLaunchFailed, pberr.KindCancelled, "handshake cancelled")
		case cmd := <-e.cmdCh:
			// No command is legal before the handshake completes; reject
			// immediately rather than leaving the submitter blocked.
			cmd.reply <- pberr.New("engine.handshake", pberr.KindInvalidState,
				"command submitted before the handshake completed").WithSession(e.sess.ID)
		}
	}
}

// fail transitions the session to Terminated via ev, emits exactly one
// terminal event, and returns a *pberr.Error of kind k.
func (e *Engine) fail(ev session.Event, k pberr.Kind, msg string) error {
	_ = e.sess.Transition(ev)
	perr := pberr.New("engine", k, msg).WithSession(e.sess.ID)
	e.emit(Event{Kind: EventErrorEvent, Message: msg})
	return perr
}

func (e *Engine) emit(ev Event) {
	e.eventsCh <- ev
}

// dispatchLoop is the engine's single task: it serializes every state
// mutation, whether triggered by an inbound frame or an outbound
// command, behind one select loop.
func (e *Engine) dispatchLoop(ctx context.Context, inboundCh <-chan frame.Frame, inboundErrCh <-chan error) error {
	for {
		if e.sess.State() == session.Terminated {
			return nil
		}
		select {
		case f := <-inboundCh:
			e.handleInbound(f)
		case err := <-inboundErrCh:
			_ = e.sess.Transition(session.EventTransportClosed)
			e.emit(Event{Kind: EventErrorEvent, Message: "transport closed: " + err.Error()})
			return pberr.Wrap("engine.dispatchLoop", pberr.KindTransportBroken, err, "transport closed").WithSession(e.sess.ID)
		case cmd := <-e.cmdCh:
			e.handleCommand(ctx, cmd, inboundCh, inboundErrCh)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleInbound classifies one decoded frame and applies its effect to
// session state, in the exact order frames arrived.
func (e *Engine) handleInbound(f frame.Frame) {
	switch f.Command {
	case frame.CmdOutput:
		e.emit(Event{
			Kind:    EventOutput,
			Channel: decodeOutputChannel(f.Value1),
			Text:    decodeSourceString(f.Data, e.exeFlags.Unicode()),
		})
	case frame.CmdStopped:
		fileIndex, line0 := f.Value1, f.Value2
		reason := ReasonStep
		if e.sess.HasBreakpoint(session.BreakpointKey{FileIndex: fileIndex, Line: line0 + 1}) {
			reason = ReasonBreakpoint
		}
		ev := session.EventStoppedReceived
		if reason == ReasonBreakpoint {
			ev = session.EventBreakpointHitReceived
		}
		if err := e.sess.Transition(ev); err != nil {
			e.log.Warnw("stopped frame rejected by state machine", "state", e.sess.State().String())
			return
		}
		e.sess.LastPC = session.PC{FileIndex: fileIndex, Line: line0 + 1, Valid: true}
		e.emit(Event{Kind: EventStopped, Reason: reason, FileIndex: fileIndex, Line: line0 + 1})
	case frame.CmdError:
		if err := e.sess.Transition(session.EventErrorReceived); err != nil {
			e.log.Warnw("error frame rejected by state machine", "state", e.sess.State().String())
		}
		e.emit(Event{Kind: EventErrorEvent, Message: decodeSourceString(f.Data, e.exeFlags.Unicode())})
	case frame.CmdExited:
		_ = e.sess.Transition(session.EventExitedReceived)
		e.emit(Event{Kind: EventExited, Code: f.Value1})
	default:
		e.emit(Event{Kind: EventUnknown, Unknown: &UnknownFrame{
			Command: f.Command, Value1: f.Value1, Value2: f.Value2, Data: f.Data,
		}})
	}
}

// handleCommand validates and executes one adapter-issued command. A
// command rejected by the state machine performs no wire I/O.
func (e *Engine) handleCommand(ctx context.Context, cmd Command, inboundCh <-chan frame.Frame, inboundErrCh <-chan error) {
	select {
	case <-cmd.ctx.Done():
		cmd.reply <- pberr.New("engine.handleCommand", pberr.KindCancelled, "cancelled before dispatch")
		return
	default:
	}

	if cmd.Kind != CmdTerminate && !session.CommandAllowed(e.sess.State(), cmd.Kind.sessionCommand()) {
		cmd.reply <- pberr.New("engine.handleCommand", pberr.KindInvalidState,
			"command not allowed in state "+e.sess.State().String()).WithSession(e.sess.ID)
		return
	}
	if cmd.Kind == CmdTerminate && e.sess.State() == session.Terminated {
		cmd.reply <- nil
		return
	}

	switch cmd.Kind {
	case CmdRun:
		cmd.reply <- e.writeAndTransition(cmd.ctx, frame.Encode(frame.CmdRun, 0, 0, wireTimestamp(), nil), session.EventRun)
	case CmdStepInto:
		cmd.reply <- e.writeAndTransition(cmd.ctx, frame.Encode(frame.CmdStepInto, 0, 0, wireTimestamp(), nil), session.EventStep)
	case CmdStepOver:
		cmd.reply <- e.writeAndTransition(cmd.ctx, frame.Encode(frame.CmdStepOver, 0, 0, wireTimestamp(), nil), session.EventStep)
	case CmdStepOut:
		cmd.reply <- e.writeAndTransition(cmd.ctx, frame.Encode(frame.CmdStepOut, 0, 0, wireTimestamp(), nil), session.EventStep)
	case CmdSetBreakpoint:
		cmd.reply <- e.handleSetBreakpoint(cmd)
	case CmdTerminate:
		cmd.reply <- e.handleTerminate(cmd, inboundCh, inboundErrCh)
	}
}

func (e *Engine) handleSetBreakpoint(cmd Command) error {
	line0 := cmd.Line - 1
	v2, ok := frame.EncodeBreakpointValue2(cmd.FileIndex, line0)
	if !ok {
		return pberr.New("engine.SetBreakpoint", pberr.KindOutOfRange,
			"file index or line exceeds the wire bit-field width").WithSession(e.sess.ID)
	}
	key := session.BreakpointKey{FileIndex: cmd.FileIndex, Line: cmd.Line}

	var changed bool
	var op uint32
	if cmd.Enabled {
		changed = e.sess.AddBreakpoint(key)
		op = frame.BreakpointAdd
	} else {
		changed = e.sess.RemoveBreakpoint(key)
		op = frame.BreakpointRemove
	}
	if !changed {
		// Idempotent: no wire traffic for a no-op edit.
		return nil
	}
	_, err := e.write(cmd.ctx, frame.Encode(frame.CmdBreakpointEdit, op, v2, wireTimestamp(), nil))
	return err
}

// handleTerminate writes the Terminate frame, then keeps draining
// inbound frames for up to cfg.TeardownTimeout waiting for the
// debuggee's Exited acknowledgment, delivering any frame that arrives
// in the meantime exactly as dispatchLoop would. If the deadline
// elapses without an Exited frame, the engine forces Terminated and
// treats the transport as torn down.
func (e *Engine) handleTerminate(cmd Command, inboundCh <-chan frame.Frame, inboundErrCh <-chan error) error {
	if started, err := e.write(cmd.ctx, frame.Encode(frame.CmdTerminate, 0, 0, wireTimestamp(), nil)); err != nil {
		if started {
			_ = e.sess.Transition(session.EventTransportClosed)
		}
		return err
	}

	deadline := time.NewTimer(e.cfg.TeardownTimeout)
	defer deadline.Stop()
	for {
		select {
		case f := <-inboundCh:
			e.handleInbound(f)
			if e.sess.State() == session.Terminated {
				return nil
			}
		case err := <-inboundErrCh:
			_ = e.sess.Transition(session.EventTransportClosed)
			e.emit(Event{Kind: EventErrorEvent, Message: "transport closed while awaiting teardown: " + err.Error()})
			return nil
		case <-deadline.C:
			_ = e.sess.Transition(session.EventTerminate)
			e.emit(Event{Kind: EventErrorEvent, Message: "teardown deadline elapsed before Exited acknowledgment"})
			return nil
		}
	}
}

// writeAndTransition writes b and, only if the write succeeds,
// transitions the session via ev. A write failure moves the session to
// Terminated only if the write was actually handed to the transport
// owner; a write cancelled before that handoff never touched the
// transport, so the session is left exactly as it was.
func (e *Engine) writeAndTransition(ctx context.Context, b []byte, ev session.Event) error {
	started, err := e.write(ctx, b)
	if err != nil {
		if started {
			_ = e.sess.Transition(session.EventTransportClosed)
		}
		return err
	}
	return e.sess.Transition(ev)
}

// write submits b to the dedicated write goroutine and waits for the
// result, serializing every outbound frame through a single owner.
// started reports whether the write was actually handed off to that
// goroutine: false means ctx was cancelled before the handoff and the
// transport was never touched; true means the transport's state must
// be treated as no longer trustworthy regardless of the error, since
// the write may have partially landed or the caller could no longer
// observe its outcome.
func (e *Engine) write(ctx context.Context, b []byte) (started bool, err error) {
	select {
	case e.writeFc <- func() error { return e.ep.Write(ctx, b) }:
	case <-ctx.Done():
		return false, pberr.New("engine.write", pberr.KindCancelled, "write never reached the transport owner").WithSession(e.sess.ID)
	}
	select {
	case werr := <-e.writeEc:
		if werr != nil {
			return true, pberr.Wrap("engine.write", pberr.KindTransportBroken, werr, "write failed").WithSession(e.sess.ID)
		}
		return true, nil
	case <-ctx.Done():
		// The write was already handed to the owner goroutine and will
		// complete regardless; the caller must treat the transport as
		// compromised from here since it can no longer observe the
		// outcome.
		go func() { <-e.writeEc }()
		return true, pberr.New("engine.write", pberr.KindCancelled, "write cancelled in flight").WithSession(e.sess.ID)
	}
}

// writePump is the single goroutine permitted to call ep.Write,
// generalizing ptraceRun's "one goroutine, unbuffered fc/ec channels"
// shape from exclusive ptrace access to exclusive write access.
func (e *Engine) writePump(ctx context.Context) {
	for {
		select {
		case f := <-e.writeFc:
			e.writeEc <- f()
		case <-ctx.Done():
			return
		}
	}
}

// readPump feeds bytes from the transport into the frame decoder and
// publishes each complete frame, in order, on inboundCh. Because
// inboundCh is unbuffered, a slow consumer applies backpressure here
// rather than letting frames queue without bound.
func (e *Engine) readPump(ctx context.Context, inboundCh chan<- frame.Frame, errCh chan<- error) {
	buf := make([]byte, 64*1024)
	for {
		n, err := e.ep.Read(ctx, buf)
		if n > 0 {
			frames, ferr := e.dec.Feed(buf[:n])
			for _, f := range frames {
				select {
				case inboundCh <- f:
				case <-ctx.Done():
					return
				}
			}
			if ferr != nil {
				select {
				case errCh <- ferr:
				case <-ctx.Done():
				}
				return
			}
		}
		if err != nil {
			select {
			case errCh <- err:
			case <-ctx.Done():
			}
			return
		}
	}
}

func closeQuietly(ep transport.Endpoints) {
	if ep != nil {
		_ = ep.Close()
	}
}

// wireTimestamp is informational only; no receiver may rely on it for
// ordering. Wall-clock seconds matches what a real debuggee proxy would
// stamp.
func wireTimestamp() uint32 {
	return uint32(time.Now().Unix())
}
