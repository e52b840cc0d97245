// Package session defines the authoritative per-session state: the state
// machine gating which commands are legal, and the Session value holding
// identity, the breakpoint table, and the last observed program counter.
// A Session is owned exclusively by the protocol engine's single task;
// no other component mutates it.
package session

import "github.com/purebasic-tools/pbdebug/pberr"

// State is one node of the session lifecycle.
type State int

const (
	Idle State = iota
	Launching
	Stopped
	Running
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Launching:
		return "launching"
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Event is a state-machine trigger: either a command the adapter asked
// the engine to perform, or something observed on the wire.
type Event int

const (
	EventLaunch Event = iota
	EventTransportConnected
	EventLaunchTimeout
	EventLaunchFailed
	EventRun
	EventStep
	EventTerminate
	EventStoppedReceived
	EventBreakpointHitReceived
	EventErrorReceived
	EventExitedReceived
	EventTransportClosed
)

// Next computes the legal state transition for (s, e). It returns
// pberr.KindInvalidState when there is no legal transition; the caller
// must not perform any wire I/O in that case.
func Next(s State, e Event) (State, error) {
	switch s {
	case Idle:
		if e == EventLaunch {
			return Launching, nil
		}
	case Launching:
		switch e {
		case EventTransportConnected:
			return Stopped, nil
		case EventLaunchTimeout, EventLaunchFailed:
			return Terminated, nil
		}
	case Stopped:
		switch e {
		case EventRun, EventStep:
			return Running, nil
		case EventTerminate:
			return Terminated, nil
		case EventStoppedReceived, EventBreakpointHitReceived:
			// Idempotent: a Stopped event while already stopped is
			// accepted and only updates PC.
			return Stopped, nil
		case EventExitedReceived, EventTransportClosed:
			return Terminated, nil
		case EventErrorReceived:
			return Stopped, nil
		}
	case Running:
		switch e {
		case EventStoppedReceived, EventBreakpointHitReceived, EventErrorReceived:
			return Stopped, nil
		case EventExitedReceived, EventTransportClosed:
			return Terminated, nil
		case EventTerminate:
			return Terminated, nil
		}
	case Terminated:
		// Sink state: no event has a legal transition.
	}
	return s, pberr.New("session.Next", pberr.KindInvalidState,
		s.String()+" does not accept this event")
}

// CommandAllowed reports whether cmd may be submitted while the session
// is in state s, independent of the state machine's event-driven
// transitions. Terminate is legal in every state but Terminated; every
// other command requires Stopped.
func CommandAllowed(s State, cmd Command) bool {
	if cmd == CmdTerminate {
		return s != Terminated
	}
	return s == Stopped
}

// Command names the adapter-facing command vocabulary for gating
// purposes; it mirrors, but is distinct from, the wire-level frame
// commands in package frame.
type Command int

const (
	CmdRun Command = iota
	CmdStepInto
	CmdStepOver
	CmdStepOut
	CmdSetBreakpoint
	CmdTerminate
)
