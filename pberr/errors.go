// Package pberr defines the error taxonomy shared by every component of
// the debugger-protocol engine. Errors are represented as a single
// structured type carrying a stable machine-readable Kind rather than
// sentinel values, so callers can both log a human message and branch on
// Kind with errors.As.
package pberr

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error category. Values are part of
// the adapter-facing contract: editors branch on Kind, not on message text.
type Kind string

const (
	// KindConfiguration covers missing executables, bad environment, or an
	// invalid pipe id.
	KindConfiguration Kind = "configuration"
	// KindLauncherFailed covers a failed spawn or a debuggee that exited
	// before completing the handshake.
	KindLauncherFailed Kind = "launcher_failed"
	// KindTransportTimeout means the peer never connected within the deadline.
	KindTransportTimeout Kind = "transport_timeout"
	// KindTransportBroken means a connected peer disconnected unexpectedly.
	KindTransportBroken Kind = "transport_broken"
	// KindMalformedFrame means data_size exceeded the configured limit.
	KindMalformedFrame Kind = "malformed_frame"
	// KindHandshakeFailed means Init/ExeMode were missing, out of order, or
	// carried an unsupported version.
	KindHandshakeFailed Kind = "handshake_failed"
	// KindInvalidState means a command was submitted in a state that forbids it.
	KindInvalidState Kind = "invalid_state"
	// KindOutOfRange means a breakpoint encoding exceeded a bit-field width.
	KindOutOfRange Kind = "out_of_range"
	// KindCancelled means the adapter interrupted a pending operation.
	KindCancelled Kind = "cancelled"
)

// Error is the structured error type returned by every exported operation
// in this module. Op identifies the failing operation, SessionID (when
// non-empty) identifies the session involved, and Inner carries the
// underlying cause, if any.
type Error struct {
	Op        string
	Kind      Kind
	SessionID string
	Msg       string
	Inner     error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Inner != nil {
		msg = e.Inner.Error()
	}
	switch {
	case e.Op != "" && e.SessionID != "":
		return fmt.Sprintf("pbdebug: %s: session=%s: %s: %s", e.Op, e.SessionID, e.Kind, msg)
	case e.Op != "":
		return fmt.Sprintf("pbdebug: %s: %s: %s", e.Op, e.Kind, msg)
	default:
		return fmt.Sprintf("pbdebug: %s: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparisons against another *Error by Kind alone,
// so callers can write errors.Is(err, &pberr.Error{Kind: pberr.KindInvalidState}).
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	if te.Kind == "" {
		return false
	}
	return e.Kind == te.Kind
}

// New constructs an Error with no wrapped cause.
func New(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// Wrap constructs an Error that wraps an existing cause. If inner is
// already a *Error, its Kind is preserved and only Op/Msg are refreshed,
// mirroring how a higher layer re-tags a lower layer's failure without
// losing the original classification.
func Wrap(op string, kind Kind, inner error, msg string) *Error {
	if inner == nil {
		return nil
	}
	if pe, ok := inner.(*Error); ok {
		return &Error{
			Op:        op,
			Kind:      pe.Kind,
			SessionID: pe.SessionID,
			Msg:       msg,
			Inner:     pe,
		}
	}
	return &Error{Op: op, Kind: kind, Msg: msg, Inner: inner}
}

// WithSession returns a copy of e tagged with the given session id.
func (e *Error) WithSession(id string) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.SessionID = id
	return &cp
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
