// Package frame implements the wire codec for the debugger protocol: a
// fixed 20-byte little-endian header followed by a variable-length
// payload. The codec performs no I/O; it only turns byte slices into
// Frame values and back. Callers pull decoded frames from the codec
// rather than the codec pushing them through callbacks.
package frame

import (
	"encoding/binary"

	"github.com/purebasic-tools/pbdebug/pberr"
)

// HeaderSize is the fixed size, in bytes, of every frame header.
const HeaderSize = 20

// DefaultMaxDataSize is the default ceiling on a single frame's payload.
const DefaultMaxDataSize = 64 << 20

// Command identifies the wire-stable meaning of a frame. The integer
// values are part of the bit-exact wire contract and must never change.
type Command uint32

const (
	CmdInit            Command = 0
	CmdExeMode         Command = 1
	CmdRun             Command = 2
	CmdBreakpointEdit  Command = 3
	CmdStepInto        Command = 4
	CmdStepOver        Command = 5
	CmdStepOut         Command = 6
	CmdTerminate       Command = 7
	CmdOutput          Command = 10
	CmdStopped         Command = 11
	CmdError           Command = 12
	CmdExited          Command = 13
)

// Frame is one decoded wire unit.
type Frame struct {
	Command   Command
	Value1    uint32
	Value2    uint32
	Timestamp uint32
	Data      []byte
}

// Encode serializes a frame to exactly HeaderSize+len(data) bytes.
// Timestamp is set by the caller; the codec does not stamp it itself so
// that callers which must not rely on wall-clock ordering can supply a
// fixed value in tests.
func Encode(cmd Command, v1, v2, timestamp uint32, data []byte) []byte {
	buf := make([]byte, HeaderSize+len(data))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(cmd))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(data)))
	binary.LittleEndian.PutUint32(buf[8:12], v1)
	binary.LittleEndian.PutUint32(buf[12:16], v2)
	binary.LittleEndian.PutUint32(buf[16:20], timestamp)
	copy(buf[20:], data)
	return buf
}

// Decoder reassembles a byte stream into complete frames. It holds an
// internal buffer across calls to Feed; partial headers or partial
// payloads remain buffered until more bytes arrive.
type Decoder struct {
	buf        []byte
	maxDataSz  uint32
}

// NewDecoder returns a Decoder that rejects any frame whose declared
// data_size exceeds maxDataSize. A maxDataSize of 0 selects
// DefaultMaxDataSize.
func NewDecoder(maxDataSize uint32) *Decoder {
	if maxDataSize == 0 {
		maxDataSize = DefaultMaxDataSize
	}
	return &Decoder{maxDataSz: maxDataSize}
}

// Feed appends bytes to the decoder's internal buffer and returns every
// frame that is now complete, in wire order. A reader must never consume
// across frame boundaries: Feed only ever returns whole frames, and
// leaves a trailing partial frame buffered for the next call.
//
// Feed fails with a *pberr.Error of KindMalformedFrame only when a
// header's declared data_size exceeds the configured maximum; any other
// byte pattern is legal at this layer.
func (d *Decoder) Feed(b []byte) ([]Frame, error) {
	d.buf = append(d.buf, b...)

	var frames []Frame
	for {
		if len(d.buf) < HeaderSize {
			break
		}
		dataSize := binary.LittleEndian.Uint32(d.buf[4:8])
		if dataSize > d.maxDataSz {
			return frames, pberr.New("frame.Feed", pberr.KindMalformedFrame,
				"data_size exceeds configured maximum")
		}
		total := HeaderSize + int(dataSize)
		if len(d.buf) < total {
			break
		}
		f := Frame{
			Command:   Command(binary.LittleEndian.Uint32(d.buf[0:4])),
			Value1:    binary.LittleEndian.Uint32(d.buf[8:12]),
			Value2:    binary.LittleEndian.Uint32(d.buf[12:16]),
			Timestamp: binary.LittleEndian.Uint32(d.buf[16:20]),
		}
		if dataSize > 0 {
			f.Data = append([]byte(nil), d.buf[HeaderSize:total]...)
		}
		frames = append(frames, f)
		d.buf = d.buf[total:]
	}
	return frames, nil
}

// Pending reports how many bytes are buffered waiting for the rest of a
// frame. Useful for tests asserting no bytes leak across calls.
func (d *Decoder) Pending() int {
	return len(d.buf)
}
