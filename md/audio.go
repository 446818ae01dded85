package md

import (
	"encoding/binary"

	"github.com/user-none/go-chip-sn76489"
)

// FM is the YM2612-class FM synth's sample-generation seam. Its internal
// oscillator bank is out of scope (spec.md §1); mdcore only needs stereo
// sample output per frame, so callers plug in whatever FM core they have.
type FM interface {
	// GenerateSamples fills stereo int32 accumulators, n samples.
	GenerateSamples(n int) (left, right []int32)
	// GenerateSamplesFloat is used when HQ-FM sample-rate conversion is on.
	GenerateSamplesFloat(n int) (left, right []float32)
}

// PSGChip is the seam go-chip-sn76489's SN76489 satisfies directly.
type PSGChip interface {
	Write(value uint8)
	GenerateSamples(clocks int)
	GetBuffer() ([]float32, int)
}

// Mixer is C5: per-frame FM+PSG+CD-DA mix, one-pole filter, clipping, and
// output framing into a host ring buffer (spec.md §4.5).
type Mixer struct {
	PSG PSGChip
	FM  FM
	CDD *CDD

	sampleRate int
	vdpRate    float64
	bufferSize int
	psgClockHz int

	psgPreamp int // percent
	fmPreamp  int // percent
	boost     int
	filter    bool
	hqFM      bool
	srcRatio  float64

	lastL, lastR int32

	out []byte // interleaved 16-bit LE stereo, one frame's worth
}

// NewMixer sizes the output ring per spec.md §3's Audio Frame Buffer:
// ceil(rate/vdpRate) + 8.
func NewMixer(sampleRate int, timing RegionTiming, psg PSGChip, fm FM, cdd *CDD) *Mixer {
	bufferSize := (sampleRate+timing.FPS-1)/timing.FPS + 8
	return &Mixer{
		PSG:        psg,
		FM:         fm,
		CDD:        cdd,
		sampleRate: sampleRate,
		vdpRate:    float64(timing.FPS),
		bufferSize: bufferSize,
		psgClockHz: timing.Z80ClockHz,
		psgPreamp:  100,
		fmPreamp:   100,
		boost:      1,
		filter:     true,
		out:        make([]byte, bufferSize*4),
	}
}

func (m *Mixer) SetPreamps(psgPreamp, fmPreamp int) { m.psgPreamp, m.fmPreamp = psgPreamp, fmPreamp }
func (m *Mixer) SetBoost(boost int)                 { m.boost = boost }
func (m *Mixer) SetFilterEnabled(enabled bool)      { m.filter = enabled }
func (m *Mixer) SetHQFM(enabled bool, srcRatio float64) {
	m.hqFM = enabled
	m.srcRatio = srcRatio
}

// frameSize is size = rate/vdp_rate + ε, rounded up (spec.md §4.5's opening
// line), clamped to the allocated buffer.
func (m *Mixer) frameSize() int {
	size := int(float64(m.sampleRate)/m.vdpRate) + 1
	if size > m.bufferSize {
		size = m.bufferSize
	}
	return size
}

// MixFrame runs one video frame's worth of FM+PSG+CD-DA mixing and returns
// the interleaved 16-bit stereo byte slice ready for the host ring buffer.
func (m *Mixer) MixFrame() []byte {
	size := m.frameSize()

	var fmL, fmR []int32
	switch {
	case m.FM == nil:
		fmL = make([]int32, size)
		fmR = make([]int32, size)
	case m.hqFM:
		srcSamples := int(float64(size)/m.srcRatio) + 1
		fL, fR := m.FM.GenerateSamplesFloat(srcSamples)
		fmL, fmR = resampleLinear(fL, size), resampleLinear(fR, size)
	default:
		fmL, fmR = m.FM.GenerateSamples(size)
	}

	m.PSG.GenerateSamples(m.psgClocksForSamples(size))
	psgBuf, psgCount := m.PSG.GetBuffer()

	// ReadAudioSamples returns per-sample deltas; they are summed back into
	// levels starting from the fader's output before this read (int16
	// wraparound in the deltas cancels out in the int16 sum).
	var cddL, cddR []int16
	var cddLevelL, cddLevelR int16
	if m.CDD != nil {
		cddLevelL, cddLevelR = m.CDD.fader.LastOutput()
		cddL, cddR = m.CDD.ReadAudioSamples(size)
	}

	for i := 0; i < size; i++ {
		var psgSample int32
		if i < psgCount {
			psgSample = int32(psgBuf[i] * 32767)
		}

		l := (psgSample * int32(m.psgPreamp)) / 100
		r := l

		if i < len(fmL) {
			l += (fmL[i] * int32(m.fmPreamp)) / 100
			r += (fmR[i] * int32(m.fmPreamp)) / 100
		}

		if i < len(cddL) {
			cddLevelL += cddL[i]
			cddLevelR += cddR[i]
			l += int32(cddLevelL)
			r += int32(cddLevelR)
		}

		if m.filter {
			l = (m.lastL + l) >> 1
			r = (m.lastR + r) >> 1
		}
		m.lastL, m.lastR = l, r

		l *= int32(m.boost)
		r *= int32(m.boost)

		binary.LittleEndian.PutUint16(m.out[i*4:], uint16(clipInt16(l)))
		binary.LittleEndian.PutUint16(m.out[i*4+2:], uint16(clipInt16(r)))
	}

	return m.out[:size*4]
}

func clipInt16(v int32) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}

// psgClocksForSamples derives the PSG input-clock count needed to produce
// `samples` output samples at the configured host sample rate, honoring the
// chip's own internal /16 divider (see go-chip-sn76489's Clock). The PSG
// shares the Z80's clock on both NTSC and PAL Genesis hardware.
func (m *Mixer) psgClocksForSamples(samples int) int {
	return samples * m.psgClockHz / m.sampleRate
}

// resampleLinear implements the LINEAR sample-rate-conversion mode spec.md
// §4.5 names as an alternative to SINC; good enough for HQ-FM's coarse
// upsampling since the one-pole filter downstream removes imaging.
func resampleLinear(src []float32, outLen int) []int32 {
	out := make([]int32, outLen)
	if len(src) == 0 {
		return out
	}
	if len(src) == 1 {
		for i := range out {
			out[i] = int32(src[0] * 32767)
		}
		return out
	}
	step := float64(len(src)-1) / float64(outLen)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(src)-1 {
			idx = len(src) - 2
		}
		frac := pos - float64(idx)
		sample := src[idx]*float32(1-frac) + src[idx+1]*float32(frac)
		out[i] = int32(sample * 32767)
	}
	return out
}

// NewPSGChip constructs the real SN76489 implementation for production
// wiring (spec.md §1's "we specify only the sample-generation interface").
func NewPSGChip(clockHz, sampleRate, bufferSize int) *sn76489.SN76489 {
	return sn76489.New(clockHz, sampleRate, bufferSize, sn76489.Sega)
}
