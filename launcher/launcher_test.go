//go:build !windows

package launcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purebasic-tools/pbdebug/pberr"
)

// writeFakeDebuggee writes body as an executable shell script. It stands
// in for a compiled PureBasic debuggee so the launcher's spawn/connect
// sequencing can be exercised without a real compiler; each test's body
// decides whether the script opens the pipes or exits early.
func writeFakeDebuggee(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-debuggee.sh")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestBuildEnvFormatsPosixTriple(t *testing.T) {
	env := buildEnv("ABCDEF01", "/tmp/pb-debug-in-X", "/tmp/pb-debug-out-X", Options{
		Unicode: true, StopOnEntry: true,
	})
	assert.Contains(t, env, "PB_DEBUGGER_Communication=FifoFiles;/tmp/pb-debug-in-X;/tmp/pb-debug-out-X")
	assert.Contains(t, env, "PB_DEBUGGER_Options=1;1;0;0")
}

func TestLaunchFailsForMissingExecutable(t *testing.T) {
	_, err := Launch(context.Background(), Options{ExePath: "/no/such/binary"})
	require.Error(t, err)
	assert.True(t, pberr.Is(err, pberr.KindLauncherFailed))
}

func TestLaunchFailsForEmptyExePath(t *testing.T) {
	_, err := Launch(context.Background(), Options{})
	require.Error(t, err)
	assert.True(t, pberr.Is(err, pberr.KindConfiguration))
}

// TestLaunchConnectsBothPipes runs a fake debuggee that parses its own
// communication variable and dials both pipe ends, confirming the
// launcher prepares the transport before spawn and completes Accept
// once the debuggee connects.
func TestLaunchConnectsBothPipes(t *testing.T) {
	script := `
comm=$PB_DEBUGGER_Communication
in=$(echo "$comm" | cut -d';' -f2)
out=$(echo "$comm" | cut -d';' -f3)
# Open in-pipe for writing (engine reads), out-pipe for reading (engine writes).
exec 3>"$in"
exec 4<"$out"
echo -n "hello" >&3
sleep 0.2
`
	exe := writeFakeDebuggee(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	h, err := Launch(ctx, Options{ExePath: exe, ConnectTimeout: 2 * time.Second})
	require.NoError(t, err)
	require.NotNil(t, h.Endpoints)
	defer h.Endpoints.Close()

	buf := make([]byte, 5)
	n, err := h.Endpoints.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	select {
	case <-h.Exited:
	case <-time.After(2 * time.Second):
		t.Fatal("fake debuggee never exited")
	}
}

func TestLaunchReportsLauncherFailedWhenDebuggeeExitsFirst(t *testing.T) {
	exe := writeFakeDebuggee(t, "exit 1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Launch(ctx, Options{ExePath: exe, ConnectTimeout: 1 * time.Second})
	require.Error(t, err)
	assert.True(t, pberr.Is(err, pberr.KindLauncherFailed))
}

func TestNewPipeIDIsUppercaseHexAtLeast8Chars(t *testing.T) {
	id, err := NewPipeID()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(id), 8)
	for _, r := range id {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F'))
	}
}
