package engine

import "github.com/purebasic-tools/pbdebug/frame"

// EventKind tags a decoded occurrence the engine surfaces to whatever
// composes it (directly, or through the adapter).
type EventKind int

const (
	EventInitialized EventKind = iota
	EventStopped
	EventOutput
	EventErrorEvent
	EventExited
	EventUnknown
)

func (k EventKind) String() string {
	switch k {
	case EventInitialized:
		return "initialized"
	case EventStopped:
		return "stopped"
	case EventOutput:
		return "output"
	case EventErrorEvent:
		return "error"
	case EventExited:
		return "exited"
	case EventUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// StopReason classifies why the debuggee reported Stopped.
type StopReason int

const (
	ReasonBreakpoint StopReason = iota
	ReasonStep
)

func (r StopReason) String() string {
	if r == ReasonBreakpoint {
		return "breakpoint"
	}
	return "step"
}

// OutputChannel distinguishes the debugger proxy's own debug/log channel
// from a mirror of the program's own stdout, recovered from the low bit
// of an Output frame's value1. The field already exists on the wire and
// every comparable PureBasic debugger proxy surfaces this distinction.
type OutputChannel int

const (
	ChannelDebug OutputChannel = iota
	ChannelProgram
)

func (c OutputChannel) String() string {
	if c == ChannelProgram {
		return "program"
	}
	return "debug"
}

const outputChannelBit = 1 << 0

func decodeOutputChannel(v1 uint32) OutputChannel {
	if v1&outputChannelBit != 0 {
		return ChannelProgram
	}
	return ChannelDebug
}

// UnknownFrame preserves an inbound frame whose command the engine does
// not recognize, so callers can log or ignore it without the engine
// having to guess at its meaning.
type UnknownFrame struct {
	Command frame.Command
	Value1  uint32
	Value2  uint32
	Data    []byte
}

// Event is what the engine emits upward. Exactly one of the payload
// fields is meaningful, selected by Kind.
type Event struct {
	Kind EventKind

	// EventStopped
	Reason    StopReason
	FileIndex uint32
	Line      uint32 // 1-based

	// EventOutput
	Channel OutputChannel
	Text    string

	// EventErrorEvent
	Message string

	// EventExited
	Code uint32

	// EventUnknown
	Unknown *UnknownFrame
}
