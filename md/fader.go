package md

// Fader is the CD-DA fader (spec.md §4.4 "CD-DA fader"): a non-uniform
// volume ramp reproducing the LC7883 fader chip's lower-step curve, plus
// delta-against-previous-output framing (the form a band-limited synthesis
// buffer consumes; Mixer.MixFrame sums the deltas back into levels). Grounded on
// original_source/core/cd_hw/cdd.c's cdd_read_audio.
type Fader struct {
	curVol   int16 // current fader volume, 0-1024
	endVol   int16 // target volume, set by the Set Volume register write
	lastL    int16
	lastR    int16
}

// NewFader starts at full volume, matching cdd_init's reset value.
func NewFader() *Fader {
	return &Fader{curVol: 0x400, endVol: 0x400}
}

// SetTarget sets the fader's target volume from register 0x34's upper
// 12 bits (`reg[0x34].w >> 4`).
func (f *Fader) SetTarget(endVol int16) { f.endVol = endVol }

// faderMultiplier reproduces the LC7883's non-uniform lower steps:
// {0,1,2,3,4,8,12,16,20,...,1020,1024}, per spec.md §4.4's literal formula.
func faderMultiplier(curVol int16) int16 {
	if curVol&0x7FC != 0 {
		return curVol & 0x7FC
	}
	return curVol & 0x03
}

// Process applies the fader to one stereo sample pair, returning the delta
// against the previous DAC output for each channel (the representation a
// band-limited synthesis buffer consumes) and stepping curVol one unit
// toward endVol. It returns done=true once both curVol and endVol are zero,
// signaling the caller to stop processing further samples in this block
// (spec.md §4.4: "when both are zero, mute and break").
func (f *Fader) Process(sampleL, sampleR int16) (deltaL, deltaR int16, done bool) {
	mul := faderMultiplier(f.curVol)

	newL := int16((int32(sampleL) * int32(mul)) / 1024)
	newR := int16((int32(sampleR) * int32(mul)) / 1024)
	deltaL = newL - f.lastL
	deltaR = newR - f.lastR
	f.lastL = newL
	f.lastR = newR

	switch {
	case f.curVol < f.endVol:
		f.curVol++
	case f.curVol > f.endVol:
		f.curVol--
	case f.curVol == 0:
		done = true
	}
	return
}

// Drain emits a single delta back to zero for each channel, avoiding an
// audible click when playback stops with residual DAC level (spec.md
// §4.4's last sentence).
func (f *Fader) Drain() (deltaL, deltaR int16) {
	deltaL, deltaR = -f.lastL, -f.lastR
	f.lastL, f.lastR = 0, 0
	return
}

func (f *Fader) LastOutput() (l, r int16) { return f.lastL, f.lastR }
