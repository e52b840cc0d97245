package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purebasic-tools/pbdebug/pberr"
)

// TestExhaustiveTransitionTable drives every (state, event) pair and
// checks that the result matches the legal-transition table below, with
// every other combination rejected as InvalidState.
func TestExhaustiveTransitionTable(t *testing.T) {
	legal := map[State]map[Event]State{
		Idle: {
			EventLaunch: Launching,
		},
		Launching: {
			EventTransportConnected: Stopped,
			EventLaunchTimeout:      Terminated,
			EventLaunchFailed:       Terminated,
		},
		Stopped: {
			EventRun:                   Running,
			EventStep:                  Running,
			EventTerminate:             Terminated,
			EventStoppedReceived:       Stopped,
			EventBreakpointHitReceived: Stopped,
			EventErrorReceived:         Stopped,
			EventExitedReceived:        Terminated,
			EventTransportClosed:       Terminated,
		},
		Running: {
			EventStoppedReceived:       Stopped,
			EventBreakpointHitReceived: Stopped,
			EventErrorReceived:         Stopped,
			EventExitedReceived:        Terminated,
			EventTransportClosed:       Terminated,
			EventTerminate:             Terminated,
		},
		Terminated: {},
	}

	allStates := []State{Idle, Launching, Stopped, Running, Terminated}
	allEvents := []Event{
		EventLaunch, EventTransportConnected, EventLaunchTimeout, EventLaunchFailed,
		EventRun, EventStep, EventTerminate, EventStoppedReceived,
		EventBreakpointHitReceived, EventErrorReceived, EventExitedReceived,
		EventTransportClosed,
	}

	for _, s := range allStates {
		for _, e := range allEvents {
			want, ok := legal[s][e]
			got, err := Next(s, e)
			if ok {
				require.NoErrorf(t, err, "state=%v event=%v", s, e)
				assert.Equalf(t, want, got, "state=%v event=%v", s, e)
			} else {
				require.Errorf(t, err, "state=%v event=%v should be invalid", s, e)
				assert.True(t, pberr.Is(err, pberr.KindInvalidState))
				assert.Equal(t, s, got, "state must be unchanged on rejection")
			}
		}
	}
}

func TestCommandAllowed(t *testing.T) {
	assert.True(t, CommandAllowed(Stopped, CmdRun))
	assert.False(t, CommandAllowed(Running, CmdRun))
	assert.False(t, CommandAllowed(Idle, CmdSetBreakpoint))
	assert.True(t, CommandAllowed(Stopped, CmdTerminate))
	assert.True(t, CommandAllowed(Running, CmdTerminate))
	assert.False(t, CommandAllowed(Terminated, CmdTerminate))
}
