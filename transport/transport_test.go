//go:build !windows

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purebasic-tools/pbdebug/pberr"
)

func newPipeID(t *testing.T) string {
	t.Helper()
	return uuid.New().String()[:8]
}

func TestListenTimesOutWithoutPeer(t *testing.T) {
	id := newPipeID(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := Listen(ctx, id, ListenOptions{
		ConnectTimeout: 100 * time.Millisecond,
		RetryBackoff:   5 * time.Millisecond,
		RetryMax:       20 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, pberr.Is(err, pberr.KindTransportTimeout))
}

func TestPrepareThenAcceptMirrorsLauncherOrdering(t *testing.T) {
	id := newPipeID(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Prepare must succeed with no peer present at all, since the
	// launcher calls it before the debuggee process exists.
	l, err := Prepare(id)
	require.NoError(t, err)

	inPath, outPath := Names(id)

	type result struct {
		ep  Endpoints
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		ep, err := l.Accept(ctx, ListenOptions{ConnectTimeout: 2 * time.Second})
		resultCh <- result{ep, err}
	}()

	peer, err := dialFIFOPeer(t, inPath, outPath)
	require.NoError(t, err)
	defer peer.Close()

	r := <-resultCh
	require.NoError(t, r.err)
	defer r.ep.Close()

	require.NoError(t, r.ep.Write(ctx, []byte("ok")))
	buf := make([]byte, 2)
	n, err := peer.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(buf[:n]))
}

func TestListenAndRoundTrip(t *testing.T) {
	id := newPipeID(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	inPath, outPath := Names(id)

	type result struct {
		ep  Endpoints
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		ep, err := Listen(ctx, id, ListenOptions{ConnectTimeout: 2 * time.Second})
		resultCh <- result{ep, err}
	}()

	// Give the engine side time to create the FIFO nodes before the
	// simulated debuggee dials in, mirroring "the engine listens before
	// spawning the debuggee."
	time.Sleep(50 * time.Millisecond)

	peer, err := dialFIFOPeer(t, inPath, outPath)
	require.NoError(t, err)
	defer peer.Close()

	r := <-resultCh
	require.NoError(t, r.err)
	ep := r.ep
	defer ep.Close()

	require.NoError(t, ep.Write(ctx, []byte("ping")))
	buf := make([]byte, 4)
	n, err := peer.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	_, err = peer.Write([]byte("pong"))
	require.NoError(t, err)
	got := make([]byte, 4)
	n, err = ep.Read(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(got[:n]))
}
