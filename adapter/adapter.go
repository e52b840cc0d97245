// Package adapter exposes the small, stable command vocabulary an
// editor uses to drive a debug session — Launch, SetBreakpoint, Run,
// Step{Into,Over,Out}, Terminate — and multiplexes any number of
// concurrent sessions, each backed by its own engine.Engine. The
// adapter never touches a transport or frame directly; it only
// composes protocol-engine operations.
package adapter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/purebasic-tools/pbdebug/engine"
	"github.com/purebasic-tools/pbdebug/internal/config"
	"github.com/purebasic-tools/pbdebug/internal/logging"
	"github.com/purebasic-tools/pbdebug/launcher"
	"github.com/purebasic-tools/pbdebug/pberr"
	"github.com/purebasic-tools/pbdebug/session"
)

// LaunchRequest is the payload of an adapter Launch command.
type LaunchRequest struct {
	ExePath     string
	WorkDir     string
	ExtraEnv    []string
	Unicode     bool
	StopOnEntry bool
	StopOnEnd   bool
	BigEndian   bool
}

// Adapter multiplexes concurrent debug sessions behind the editor
// command vocabulary. The registry is guarded only by a registration
// mutex; per-session state is owned exclusively by that session's
// engine task, with no state shared between sessions.
type Adapter struct {
	cfg config.Config
	log logging.Logger

	mu       sync.Mutex
	sessions map[string]*registeredSession

	events  chan Event
	nextReq uint64
}

type registeredSession struct {
	eng    *engine.Engine
	cancel context.CancelFunc
}

// New constructs an Adapter. cfg governs every launched session's
// timeouts and frame-size limit.
func New(cfg config.Config, log logging.Logger) *Adapter {
	if log == nil {
		log = logging.Nop()
	}
	return &Adapter{
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*registeredSession),
		events:   make(chan Event, 64),
	}
}

// Events returns the channel every session's events are funneled onto,
// each tagged with its SessionID. The adapter never closes this
// channel; callers drain it for the adapter's lifetime.
func (a *Adapter) Events() <-chan Event {
	return a.events
}

// NextRequestID returns a fresh per-process correlation id for a
// request the caller is about to issue. Ordering, not global
// uniqueness, is the contract the wire/adapter boundary needs, so a
// monotonic counter is used rather than a UUID (see DESIGN.md).
func (a *Adapter) NextRequestID() uint64 {
	return atomic.AddUint64(&a.nextReq, 1)
}

// Launch starts a new debuggee and returns its session id. The
// returned id is a human-debuggable UUID, distinct from the pipe id
// the transport uses internally.
func (a *Adapter) Launch(ctx context.Context, req LaunchRequest) (string, error) {
	sessionID := uuid.New().String()

	handle, err := launcher.Launch(ctx, launcher.Options{
		ExePath:          req.ExePath,
		WorkDir:          req.WorkDir,
		ExtraEnv:         req.ExtraEnv,
		Unicode:          req.Unicode,
		StopOnEntry:      req.StopOnEntry,
		StopOnEnd:        req.StopOnEnd,
		BigEndian:        req.BigEndian,
		ConnectTimeout:   a.cfg.TransportConnectTimeout,
		PipeRetryBackoff: a.cfg.PipeRetryBackoff,
		PipeRetryMax:     a.cfg.PipeRetryMax,
	})
	if err != nil {
		return "", err
	}

	sess := session.New(sessionID, handle.PipeID, handle.InPipePath, handle.OutPipePath)
	eng := engine.New(sess, handle.Endpoints, a.cfg, a.log)

	runCtx, cancel := context.WithCancel(context.Background())
	entry := &registeredSession{eng: eng, cancel: cancel}

	a.mu.Lock()
	a.sessions[sessionID] = entry
	a.mu.Unlock()

	go a.pumpEvents(sessionID, eng.Events())
	go func() {
		if err := eng.Run(runCtx); err != nil {
			a.log.Warnw("session ended", "session", sessionID, "error", err.Error())
		}
		a.mu.Lock()
		delete(a.sessions, sessionID)
		a.mu.Unlock()
	}()

	return sessionID, nil
}

// pumpEvents relays one engine's events onto the adapter's shared
// channel, tagging each with its originating session so a multiplexed
// caller can demultiplex them; this is the only place a session
// boundary is crossed, and it only ever forwards, never mutates.
func (a *Adapter) pumpEvents(sessionID string, src <-chan engine.Event) {
	for ev := range src {
		a.events <- toAdapterEvent(sessionID, ev)
	}
}

func (a *Adapter) lookup(sessionID string) (*engine.Engine, error) {
	a.mu.Lock()
	entry, ok := a.sessions[sessionID]
	a.mu.Unlock()
	if !ok {
		return nil, pberr.New("adapter", pberr.KindConfiguration, fmt.Sprintf("unknown session %q", sessionID)).WithSession(sessionID)
	}
	return entry.eng, nil
}

// SetBreakpoint enables or disables a breakpoint at (fileIndex, line)
// (1-based) in the named session.
func (a *Adapter) SetBreakpoint(ctx context.Context, sessionID string, fileIndex, line uint32, enabled bool) error {
	eng, err := a.lookup(sessionID)
	if err != nil {
		return err
	}
	return eng.Submit(ctx, engine.Command{Kind: engine.CmdSetBreakpoint, FileIndex: fileIndex, Line: line, Enabled: enabled})
}

// Run resumes a stopped session.
func (a *Adapter) Run(ctx context.Context, sessionID string) error {
	eng, err := a.lookup(sessionID)
	if err != nil {
		return err
	}
	return eng.Submit(ctx, engine.Command{Kind: engine.CmdRun})
}

// StepInto, StepOver, and StepOut submit the corresponding step
// command.
func (a *Adapter) StepInto(ctx context.Context, sessionID string) error { return a.step(ctx, sessionID, engine.CmdStepInto) }
func (a *Adapter) StepOver(ctx context.Context, sessionID string) error { return a.step(ctx, sessionID, engine.CmdStepOver) }
func (a *Adapter) StepOut(ctx context.Context, sessionID string) error  { return a.step(ctx, sessionID, engine.CmdStepOut) }

func (a *Adapter) step(ctx context.Context, sessionID string, kind engine.CommandKind) error {
	eng, err := a.lookup(sessionID)
	if err != nil {
		return err
	}
	return eng.Submit(ctx, engine.Command{Kind: kind})
}

// Terminate ends a session. It is idempotent: terminating an already
// terminated or unknown session is not an error.
func (a *Adapter) Terminate(ctx context.Context, sessionID string) error {
	eng, err := a.lookup(sessionID)
	if err != nil {
		return nil
	}
	defer func() {
		a.mu.Lock()
		if entry, ok := a.sessions[sessionID]; ok {
			entry.cancel()
		}
		a.mu.Unlock()
	}()
	return eng.Submit(ctx, engine.Command{Kind: engine.CmdTerminate})
}

// Sessions returns the currently registered session ids, for
// diagnostics.
func (a *Adapter) Sessions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.sessions))
	for id := range a.sessions {
		ids = append(ids, id)
	}
	return ids
}
