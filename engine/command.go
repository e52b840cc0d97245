package engine

import (
	"context"

	"github.com/purebasic-tools/pbdebug/session"
)

// CommandKind is the engine-facing command vocabulary. It mirrors
// session.Command for gating purposes and additionally carries the
// breakpoint edit payload.
type CommandKind int

const (
	CmdRun CommandKind = iota
	CmdStepInto
	CmdStepOver
	CmdStepOut
	CmdSetBreakpoint
	CmdTerminate
)

func (k CommandKind) sessionCommand() session.Command {
	switch k {
	case CmdRun:
		return session.CmdRun
	case CmdStepInto:
		return session.CmdStepInto
	case CmdStepOver:
		return session.CmdStepOver
	case CmdStepOut:
		return session.CmdStepOut
	case CmdSetBreakpoint:
		return session.CmdSetBreakpoint
	default:
		return session.CmdTerminate
	}
}

// Command is a single request submitted to the engine's task. Only
// Kind is required for Run/Step/Terminate; FileIndex/Line/Enabled are
// only meaningful for CmdSetBreakpoint.
type Command struct {
	Kind CommandKind

	FileIndex uint32
	Line      uint32 // 1-based, as the adapter names it
	Enabled   bool

	ctx   context.Context
	reply chan error
}
