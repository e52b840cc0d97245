package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExeModeFlagsRoundTrip(t *testing.T) {
	f := NewExeModeFlags(true, true, false, false)
	assert.True(t, f.Unicode())
	assert.True(t, f.StopOnEntry())
	assert.False(t, f.StopOnEnd())
	assert.False(t, f.BigEndian())
	assert.Equal(t, uint32(0b0011), uint32(f))
}

func TestEncodeBreakpointValue2(t *testing.T) {
	v2, ok := EncodeBreakpointValue2(3, 41)
	assert.True(t, ok)
	file, line := DecodeBreakpointValue2(v2)
	assert.Equal(t, uint32(3), file)
	assert.Equal(t, uint32(41), line)
}

func TestEncodeBreakpointValue2RejectsOutOfRange(t *testing.T) {
	_, ok := EncodeBreakpointValue2(1<<12, 0)
	assert.False(t, ok, "file index exceeding 12 bits must be rejected")

	_, ok = EncodeBreakpointValue2(0, 1<<20)
	assert.False(t, ok, "line exceeding 20 bits must be rejected")
}
