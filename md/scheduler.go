package md

// CPU is the only contract mdcore places on the 68000 and Z80 interpreters
// it drives — concrete CPU cores are named out-of-scope external
// collaborators (spec.md §1). RunUntil executes until the CPU's own cycle
// counter reaches target, returning the counter's new value; it may return
// early to honor an IRQ edge or a DMA stall (spec.md §5, "suspension
// points" — only CPU-step functions may do this).
type CPU interface {
	RunUntil(target int) int
}

// M68K additionally exposes the 68000's 3-bit IRQ level, set by the VDP's
// HINT (level 4) and VINT (level 6).
type M68K interface {
	CPU
	SetIRQLevel(level int)
	Reset()
}

// Z80 exposes the single maskable IRQ line the Z80 honors for VINT
// forwarding (spec.md §4.3 step 4d, "assert Z80 IRQ").
type Z80 interface {
	CPU
	SetIRQLine(asserted bool)
}

const (
	hintEarlyOutCycles = 36 // spec.md §4.3 step 4b
	vintM68KDelay      = 84 // spec.md §4.3 step 4d
	vintZ80Remainder   = 39
)

// Scheduler is C3: the per-line algorithm interleaving CPU cycle budgets,
// VDP HINT/VINT, DMA advance, sprite pre-parse, and per-line rendering.
// Generalized from the teacher's EmulatorBase.runScanlines (emu/emulator.go)
// to two CPU clock domains and the Genesis's HINT/VINT ordering.
type Scheduler struct {
	VDP    *VDP
	CPU68K M68K
	CPUZ80 Z80
	// SVP is Virtua Racing's DSP coprocessor, an optional third CPU-like
	// collaborator (spec.md §4.3 step 6). Left nil for titles that don't
	// carry one.
	SVP CPU

	region Region
	timing RegionTiming

	m68kCyclesPerLineFP int // 16.16 fixed point, matches the teacher's scanline timing technique
	z80CyclesPerLineFP  int

	countM68K, countZ80 int
	aimM68KFP           int
	aimZ80FP            int

	hintCounter  int
	hintPending  bool
	vintPending  bool
	z80IRQRaised bool

	oddFrame      bool
	lastIM2       bool
	viewportDirty bool

	// ResetLine, when >= 0, is the scanline at which a pending soft-reset
	// request (polled via ResetRequested) is honored.
	ResetLine       int
	ResetRequested  func() bool
	PollInput       func(line int)
	SVPCyclesPerLine int
}

// NewScheduler builds a frame scheduler for the given region. CPU68K and
// CPUZ80 must be supplied by the caller (spec.md §1: mdcore does not ship
// CPU interpreters).
func NewScheduler(region Region, vdp *VDP, cpu68k M68K, cpuZ80 Z80) *Scheduler {
	timing := GetTimingForRegion(region)
	s := &Scheduler{
		VDP:       vdp,
		CPU68K:    cpu68k,
		CPUZ80:    cpuZ80,
		region:    region,
		timing:    timing,
		ResetLine: -1,
	}
	s.applyTiming()
	vdp.SetTiming(timing.LinesTotal, timing.VDPHeight)
	return s
}

func (s *Scheduler) applyTiming() {
	s.m68kCyclesPerLineFP = (s.timing.M68KClockHz * 65536) / s.timing.FPS / s.timing.LinesTotal
	s.z80CyclesPerLineFP = (s.timing.Z80ClockHz * 65536) / s.timing.FPS / s.timing.LinesTotal
}

// SetRegion reconfigures timing for a region change between frames.
func (s *Scheduler) SetRegion(region Region) {
	s.region = region
	s.timing = GetTimingForRegion(region)
	s.applyTiming()
	s.VDP.SetTiming(s.timing.LinesTotal, s.timing.VDPHeight)
}

func (s *Scheduler) Region() Region       { return s.region }
func (s *Scheduler) Timing() RegionTiming { return s.timing }

// RunFrame drives exactly one video frame: lines_per_frame scanlines,
// each advancing both CPUs' cycle budgets, servicing HINT/VINT, DMA, and
// sprite pre-parsing, and rendering every active-display line through the
// VDP (spec.md §4.3).
func (s *Scheduler) RunFrame() {
	v := s.VDP
	vdpHeight := s.timing.VDPHeight

	// Seed the sprite double-buffer with line 0's sprites before the loop,
	// so RenderScanline(0) has a populated spriteCur.
	v.ParseSprites(0)
	v.SwapSpriteLists()

	for line := 0; line < s.timing.LinesTotal; line++ {
		v.SetVCounterLine(line)
		if s.PollInput != nil {
			s.PollInput(line)
		}

		s.aimM68KFP += s.m68kCyclesPerLineFP
		s.aimZ80FP += s.z80CyclesPerLineFP

		if line == s.ResetLine && s.ResetRequested != nil && s.ResetRequested() {
			s.CPU68K.Reset()
		}

		if line <= vdpHeight {
			s.serviceHInt()

			if v.DMAInProgress() {
				v.AdvanceDMA(s.dmaSharePerLine())
			}

			switch {
			case line == vdpHeight:
				v.RenderOverscan(line)
				v.SetVBlank(true)
				s.CPUZ80.SetIRQLine(true)
				s.z80IRQRaised = true

				lineStartM68K := s.countM68K
				s.countM68K = s.CPU68K.RunUntil(lineStartM68K + vintM68KDelay)
				lineStartZ80 := s.countZ80
				s.countZ80 = s.CPUZ80.RunUntil(lineStartZ80 + vintZ80Remainder)

				s.vintPending = true
				if v.VIntEnabled() {
					s.CPU68K.SetIRQLevel(6)
				}
			default:
				v.RenderScanline(line)
				v.ParseSprites(line + 1)
				v.SwapSpriteLists()
			}
		} else {
			if v.DMAInProgress() {
				v.AdvanceDMA(s.dmaSharePerLine())
			}
			v.RenderOverscan(line)
			if s.z80IRQRaised {
				s.CPUZ80.SetIRQLine(false)
				s.z80IRQRaised = false
			}
		}

		s.countM68K = s.CPU68K.RunUntil(s.aimM68KFP >> 16)
		s.countZ80 = s.CPUZ80.RunUntil(s.aimZ80FP >> 16)
		if s.SVP != nil && s.SVPCyclesPerLine > 0 {
			s.SVP.RunUntil(s.countM68K + s.SVPCyclesPerLine)
		}
	}

	im2 := v.IM2()
	if im2 != s.lastIM2 {
		s.viewportDirty = true
	}
	s.lastIM2 = im2

	s.oddFrame = !s.oddFrame
	if im2 {
		v.SetOddFrame(s.oddFrame)
	}
}

// serviceHInt decrements the horizontal-interrupt counter, reloading and
// raising HINT on underflow, and shortens the current line's 68k budget by
// the hardware's HINT-before-render early-out when it fires at line start
// (spec.md §4.3 step 4a/4b, tested by §8 scenario S6).
func (s *Scheduler) serviceHInt() {
	s.hintCounter--
	if s.hintCounter < 0 {
		s.hintCounter = int(s.VDP.HIntReload())
		s.hintPending = true
		if s.VDP.HIntEnabled() {
			s.CPU68K.SetIRQLevel(4)
		}
		s.aimM68KFP -= hintEarlyOutCycles << 16
	}
}

// dmaSharePerLine is the portion of an in-progress DMA's remaining length
// advanced per scanline. mdcore has no bus-contention model to derive this
// from (that glue is out of scope, per spec.md §1); one byte per line is a
// deliberately conservative, easily overridden constant — see DESIGN.md.
func (s *Scheduler) dmaSharePerLine() int { return 1 }

// ViewportDirty reports whether IM2 toggled since the last RunFrame call,
// telling a host renderer its output buffer dimensions need re-deriving.
func (s *Scheduler) ViewportDirty() bool { return s.viewportDirty }

// AckViewportDirty clears the dirty flag once the host has resized.
func (s *Scheduler) AckViewportDirty() { s.viewportDirty = false }

// OddFrame reports the current frame's parity, which status bit 4 carries
// when IM2 is active (spec.md §4.3 "Interlace").
func (s *Scheduler) OddFrame() bool { return s.oddFrame }
