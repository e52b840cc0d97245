package adapter

import "github.com/purebasic-tools/pbdebug/engine"

// Event is what the adapter surfaces to the editor: engine.Event
// tagged with the session it came from. Events the protocol itself
// does not correlate to a request (program output, breakpoint hits)
// carry no RequestID; a response to an explicit request would, but
// this layer's requests (Launch/SetBreakpoint/Run/Step/Terminate) are
// synchronous Go calls, so correlation is only meaningful across the
// JSON boundary cmd/pbdebugd adds on top.
type Event struct {
	SessionID string
	Kind      string

	Reason    string
	FileIndex uint32
	Line      uint32

	Channel string
	Text    string

	Message string

	Code uint32
}

func toAdapterEvent(sessionID string, ev engine.Event) Event {
	out := Event{SessionID: sessionID, Kind: ev.Kind.String()}
	switch ev.Kind {
	case engine.EventStopped:
		out.Reason = ev.Reason.String()
		out.FileIndex = ev.FileIndex
		out.Line = ev.Line
	case engine.EventOutput:
		out.Channel = ev.Channel.String()
		out.Text = ev.Text
	case engine.EventErrorEvent:
		out.Message = ev.Message
	case engine.EventExited:
		out.Code = ev.Code
	}
	return out
}
