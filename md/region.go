package md

// Region represents the console timing region (NTSC or PAL)
type Region int

const (
	RegionNTSC Region = iota
	RegionPAL
)

func (r Region) String() string {
	switch r {
	case RegionNTSC:
		return "NTSC"
	case RegionPAL:
		return "PAL"
	default:
		return "Unknown"
	}
}

// RegionTiming holds the per-region constants the frame scheduler drives from.
// CPU clocks are exposed for callers converting CPU-side cycle counts into
// line budgets; mdcore's own CPU interpreters are out of scope (spec.md §1),
// so these are informational rather than used to step an internal core.
type RegionTiming struct {
	M68KClockHz int
	Z80ClockHz  int
	LinesTotal  int // 262 NTSC, 313 PAL
	VDPHeight   int // 224 or 240 active lines
	FPS         int
}

// NTSCTiming: 7.670442 MHz (68k), 3.579545 MHz (Z80), 262 lines, 60 Hz.
var NTSCTiming = RegionTiming{
	M68KClockHz: 7670442,
	Z80ClockHz:  3579545,
	LinesTotal:  262,
	VDPHeight:   224,
	FPS:         60,
}

// PALTiming: 7.600489 MHz (68k), 3.546893 MHz (Z80), 313 lines, 50 Hz.
var PALTiming = RegionTiming{
	M68KClockHz: 7600489,
	Z80ClockHz:  3546893,
	LinesTotal:  313,
	VDPHeight:   240,
	FPS:         50,
}

// GetTimingForRegion returns the timing constants for a region.
func GetTimingForRegion(r Region) RegionTiming {
	if r == RegionPAL {
		return PALTiming
	}
	return NTSCTiming
}

// DefaultRegion returns the default region (NTSC).
func DefaultRegion() Region {
	return RegionNTSC
}
