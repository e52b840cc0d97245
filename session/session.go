package session

import (
	"os/exec"
	"sync/atomic"
)

// BreakpointKey identifies a breakpoint by compilation-unit file index
// and 1-based line number, as the adapter names it (the wire carries the
// line 0-based; it is converted only at the frame-encoding boundary).
type BreakpointKey struct {
	FileIndex uint32
	Line      uint32
}

// PC is the last observed program counter: a (file index, line) pair.
type PC struct {
	FileIndex uint32
	Line      uint32
	Valid     bool
}

// Session is the authoritative per-debug-session state. It is created by
// the adapter from a launcher Handle, mutated only by the protocol
// engine's single task, and destroyed on Terminated or transport failure.
type Session struct {
	// ID is the session id the adapter generates and hands to the editor.
	ID string
	// PipeID is the generated hex pipe identifier used to name the
	// transport endpoints.
	PipeID string
	InPipePath, OutPipePath string

	Process *exec.Cmd

	state State

	// LastPC is the most recently observed program counter.
	LastPC PC

	breakpoints map[BreakpointKey]struct{}

	correlation uint64
}

// New creates a Session in the Idle state with an empty breakpoint
// table.
func New(id, pipeID, inPath, outPath string) *Session {
	return &Session{
		ID:          id,
		PipeID:      pipeID,
		InPipePath:  inPath,
		OutPipePath: outPath,
		state:       Idle,
		breakpoints: make(map[BreakpointKey]struct{}),
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Transition applies e to the session's state machine, updating state
// only on success. It never performs I/O; callers decide whether to
// write to the wire based on the returned error.
func (s *Session) Transition(e Event) error {
	next, err := Next(s.state, e)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// NextCorrelationID returns a fresh, monotonically increasing
// request-correlation id for an outbound adapter request.
func (s *Session) NextCorrelationID() uint64 {
	return atomic.AddUint64(&s.correlation, 1)
}

// HasBreakpoint reports whether a breakpoint is currently tracked at key.
func (s *Session) HasBreakpoint(key BreakpointKey) bool {
	_, ok := s.breakpoints[key]
	return ok
}

// AddBreakpoint records key in the table and reports whether it was
// newly added. A false return means the breakpoint was already present
// and the caller must not emit a wire frame — breakpoint idempotence is
// enforced here, not by the caller re-checking.
func (s *Session) AddBreakpoint(key BreakpointKey) bool {
	if _, ok := s.breakpoints[key]; ok {
		return false
	}
	s.breakpoints[key] = struct{}{}
	return true
}

// RemoveBreakpoint deletes key from the table and reports whether it was
// present. A false return means there was nothing to remove and the
// caller must not emit a wire frame.
func (s *Session) RemoveBreakpoint(key BreakpointKey) bool {
	if _, ok := s.breakpoints[key]; !ok {
		return false
	}
	delete(s.breakpoints, key)
	return true
}

// Breakpoints returns a snapshot of every tracked breakpoint key. The
// debuggee is driven to match this table; it is never inferred from
// events.
func (s *Session) Breakpoints() []BreakpointKey {
	out := make([]BreakpointKey, 0, len(s.breakpoints))
	for k := range s.breakpoints {
		out = append(out, k)
	}
	return out
}
