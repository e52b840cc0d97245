//go:build !windows

package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purebasic-tools/pbdebug/internal/config"
	"github.com/purebasic-tools/pbdebug/internal/logging"
)

// writeFakeDebuggee writes a shell script that hand-crafts raw wire
// frames (Init, ExeMode, then Exited) onto the pipe paths it is told
// about via PB_DEBUGGER_Communication, standing in for a compiled
// PureBasic debuggee.
func writeFakeDebuggee(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-debuggee.sh")
	script := `#!/bin/sh
comm=$PB_DEBUGGER_Communication
in=$(echo "$comm" | cut -d';' -f2)
out=$(echo "$comm" | cut -d';' -f3)
exec 3>"$in"
exec 4<"$out"
printf '\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x03\x00\x00\x00\x00\x00\x00\x00' >&3
printf '\x01\x00\x00\x00\x00\x00\x00\x00\x03\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00' >&3
sleep 0.3
printf '\x0d\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00' >&3
sleep 0.3
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestAdapterLaunchHandshakesAndRegistersSession(t *testing.T) {
	exe := writeFakeDebuggee(t)
	a := New(config.Default(), logging.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sessionID, err := a.Launch(ctx, LaunchRequest{ExePath: exe, Unicode: true, StopOnEntry: true})
	require.NoError(t, err)
	assert.Contains(t, a.Sessions(), sessionID)

	var sawInitialized, sawExited bool
	deadline := time.After(3 * time.Second)
	for !sawExited {
		select {
		case ev := <-a.Events():
			assert.Equal(t, sessionID, ev.SessionID)
			switch ev.Kind {
			case "initialized":
				sawInitialized = true
			case "exited":
				sawExited = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for session lifecycle events")
		}
	}
	assert.True(t, sawInitialized)
}

func TestAdapterSetBreakpointOnUnknownSessionFails(t *testing.T) {
	a := New(config.Default(), logging.Nop())
	err := a.SetBreakpoint(context.Background(), "no-such-session", 1, 1, true)
	require.Error(t, err)
}

func TestAdapterTerminateOnUnknownSessionIsIdempotent(t *testing.T) {
	a := New(config.Default(), logging.Nop())
	err := a.Terminate(context.Background(), "no-such-session")
	assert.NoError(t, err)
}
