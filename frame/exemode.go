package frame

// ExeModeFlags wraps the four ExeMode bit flags (unicode, stop-on-entry,
// stop-on-end, big-endian) carried in value1, giving named accessors
// instead of scattering bit arithmetic through the engine.
type ExeModeFlags uint32

const (
	flagUnicode     ExeModeFlags = 1 << 0
	flagStopOnEntry ExeModeFlags = 1 << 1
	flagStopOnEnd   ExeModeFlags = 1 << 2
	flagBigEndian   ExeModeFlags = 1 << 3
)

// NewExeModeFlags packs the four named flags into the wire value1 layout.
func NewExeModeFlags(unicode, stopOnEntry, stopOnEnd, bigEndian bool) ExeModeFlags {
	var f ExeModeFlags
	if unicode {
		f |= flagUnicode
	}
	if stopOnEntry {
		f |= flagStopOnEntry
	}
	if stopOnEnd {
		f |= flagStopOnEnd
	}
	if bigEndian {
		f |= flagBigEndian
	}
	return f
}

func (f ExeModeFlags) Unicode() bool     { return f&flagUnicode != 0 }
func (f ExeModeFlags) StopOnEntry() bool { return f&flagStopOnEntry != 0 }
func (f ExeModeFlags) StopOnEnd() bool   { return f&flagStopOnEnd != 0 }
func (f ExeModeFlags) BigEndian() bool   { return f&flagBigEndian != 0 }

// Breakpoint operation tags carried in a BreakpointEdit frame's value1.
const (
	BreakpointRemove uint32 = 0
	BreakpointAdd    uint32 = 1
)

const (
	breakpointLineBits = 20
	breakpointLineMask = 1<<breakpointLineBits - 1
	breakpointFileBits = 12
	breakpointMaxFile  = 1<<breakpointFileBits - 1
	breakpointMaxLine  = breakpointLineMask
)

// EncodeBreakpointValue2 packs fileIndex (12 bits) and a 0-based line (20
// bits) into value2, matching the wire layout
// (file_index<<20)|(line_zero_based&0xFFFFF). It returns ok=false
// rather than silently truncating either field; the engine surfaces that
// as OutOfRange.
func EncodeBreakpointValue2(fileIndex, lineZeroBased uint32) (uint32, bool) {
	if fileIndex > breakpointMaxFile || lineZeroBased > breakpointMaxLine {
		return 0, false
	}
	return fileIndex<<breakpointLineBits | (lineZeroBased & breakpointLineMask), true
}

// DecodeBreakpointValue2 is the inverse of EncodeBreakpointValue2, used
// only to interpret an outbound BreakpointEdit frame's own value2 (e.g.
// in tests). Inbound Stopped/BreakpointHit frames do not use this
// packing: they carry file_index in value1 and line directly in value2.
func DecodeBreakpointValue2(v2 uint32) (fileIndex, lineZeroBased uint32) {
	return v2 >> breakpointLineBits, v2 & breakpointLineMask
}
