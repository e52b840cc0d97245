package frame

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purebasic-tools/pbdebug/pberr"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		cmd  Command
		v1   uint32
		v2   uint32
		ts   uint32
		data []byte
	}{
		{"empty payload", CmdRun, 0, 0, 12345, nil},
		{"breakpoint add", CmdBreakpointEdit, 1, 0x00000008, 99, nil},
		{"output payload", CmdOutput, 0, 0, 1, []byte("hello world")},
		{"max-ish payload", CmdError, 7, 8, 9, make([]byte, 1<<16)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wire := Encode(tc.cmd, tc.v1, tc.v2, tc.ts, tc.data)
			require.Len(t, wire, HeaderSize+len(tc.data))

			dec := NewDecoder(0)
			frames, err := dec.Feed(wire)
			require.NoError(t, err)
			require.Len(t, frames, 1)

			got := frames[0]
			assert.Equal(t, tc.cmd, got.Command)
			assert.Equal(t, tc.v1, got.Value1)
			assert.Equal(t, tc.v2, got.Value2)
			assert.Equal(t, tc.ts, got.Timestamp)
			if len(tc.data) == 0 {
				assert.Empty(t, got.Data)
			} else {
				assert.Equal(t, tc.data, got.Data)
			}
			assert.Zero(t, dec.Pending())
		})
	}
}

func TestFeedReassemblesAcrossArbitraryChunking(t *testing.T) {
	var want []Frame
	var wire []byte
	for i := 0; i < 20; i++ {
		cmd := Command(i % 14)
		data := make([]byte, i*3)
		rand.New(rand.NewSource(int64(i))).Read(data)
		f := Frame{Command: cmd, Value1: uint32(i), Value2: uint32(i * 2), Timestamp: uint32(i), Data: data}
		want = append(want, f)
		wire = append(wire, Encode(cmd, f.Value1, f.Value2, f.Timestamp, data)...)
	}

	dec := NewDecoder(0)
	var got []Frame
	r := rand.New(rand.NewSource(42))
	for len(wire) > 0 {
		n := 1 + r.Intn(7)
		if n > len(wire) {
			n = len(wire)
		}
		chunk := wire[:n]
		wire = wire[n:]
		fs, err := dec.Feed(chunk)
		require.NoError(t, err)
		got = append(got, fs...)
	}
	require.Zero(t, dec.Pending())
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Command, got[i].Command)
		assert.Equal(t, want[i].Value1, got[i].Value1)
		assert.Equal(t, want[i].Value2, got[i].Value2)
		if len(want[i].Data) == 0 {
			assert.Empty(t, got[i].Data)
		} else {
			assert.Equal(t, want[i].Data, got[i].Data)
		}
	}
}

func TestFeedSplitAcrossHeaderBoundary(t *testing.T) {
	wire := Encode(CmdOutput, 0, 0, 0, []byte("hello world"))
	dec := NewDecoder(0)

	fs, err := dec.Feed(wire[:10])
	require.NoError(t, err)
	assert.Empty(t, fs)

	fs, err = dec.Feed(wire[10:25])
	require.NoError(t, err)
	assert.Empty(t, fs)

	fs, err = dec.Feed(wire[25:])
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "hello world", string(fs[0].Data))
	assert.Zero(t, dec.Pending())
}

func TestFeedRejectsOversizeDataSize(t *testing.T) {
	header := make([]byte, HeaderSize)
	header[4] = 0x00
	header[5] = 0x00
	header[6] = 0x00
	header[7] = 0x80 // data_size = 2^31, little-endian

	dec := NewDecoder(0)
	_, err := dec.Feed(header)
	require.Error(t, err)
	assert.True(t, pberr.Is(err, pberr.KindMalformedFrame))
}

func TestDecoderHonorsConfiguredMax(t *testing.T) {
	wire := Encode(CmdOutput, 0, 0, 0, make([]byte, 100))
	dec := NewDecoder(50)
	_, err := dec.Feed(wire)
	require.Error(t, err)
	assert.True(t, pberr.Is(err, pberr.KindMalformedFrame))
}
