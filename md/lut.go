package md

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Output viewport widths, selected by the VDP's H40 mode bit (register 12 bit 0).
const (
	ScreenWidthH32 = 256
	ScreenWidthH40 = 320
	MaxScreenWidth = ScreenWidthH40
	MaxScreenHeight = 240 // PAL's 240-line active display is the tallest mode
)

// Intensity levels produced by the Shadow/Highlight priority LUTs.
const (
	IntensityNormal    = 0
	IntensityShadow    = 1
	IntensityHighlight = 2
)

// Sprite palette-entry magic values that force an intensity override on the
// background pixel beneath an otherwise-opaque sprite pixel under S/H mode.
// Grounded on tags/genplusgx-1.4.0/source/render.c's DRAW_COLUMN shadow/highlight
// checks: (sf & 0x3E) == 0x3E selects forced shadow (0x3E) or highlight (0x3F);
// sf == 0x0E || 0x1E || 0x2E forces normal intensity.
const (
	shMagicShadow    = 0x3E
	shMagicHighlight = 0x3F
)

var shMagicNormal = map[uint8]bool{0x0E: true, 0x1E: true, 0x2E: true}

// packLayer encodes one background-or-sprite pixel as the 8-bit "layer byte"
// described in spec.md §3: [S P cccc] with palette bits folded into the upper
// nibble ([S P pp cccc] in our concrete 2-bit-palette layout).
func packLayer(sprite, priority bool, palette, color uint8) uint8 {
	b := color & 0x0F
	b |= (palette & 0x03) << 4
	if priority {
		b |= 0x40
	}
	if sprite {
		b |= 0x80
	}
	return b
}

func unpackLayer(b uint8) (sprite, priority bool, palette, color uint8) {
	return b&0x80 != 0, b&0x40 != 0, (b >> 4) & 0x03, b & 0x0F
}

// packResolved encodes a fully-composited pixel ready for CRAM lookup: a
// 2-bit intensity tag (normal/shadow/highlight) plus the winning palette and
// color index.
func packResolved(intensity, palette, color uint8) uint8 {
	return (intensity&0x03)<<6 | (palette&0x03)<<4 | (color & 0x0F)
}

func unpackResolved(b uint8) (intensity, palette, color uint8) {
	return (b >> 6) & 0x03, (b >> 4) & 0x03, b & 0x0F
}

// combinedIndex is the sprite's full 6-bit palette*16+color value, the index
// space the magic shadow/highlight/normal sprite colors live in.
func combinedIndex(palette, color uint8) uint8 {
	return (palette&0x03)<<4 | (color & 0x0F)
}

// LUTEngine is C1: the pattern/color LUT engine. Five priority-merge tables
// and the pattern cache live here, process-wide and initialized once, per
// spec.md §3's "Pattern cache and LUTs live process-wide, initialized once."
type LUTEngine struct {
	// bgMerge resolves two background layer bytes (A over B when A is
	// non-zero or A-priority set) into a layer byte carrying the winner's
	// priority, so it composes again with a sprite layer.
	bgMerge [65536]uint8

	// spriteOverBG resolves (bg layer byte, sprite layer byte) into a final
	// resolved byte for non-S/H rendering.
	spriteOverBG [65536]uint8

	// bgMergeSH is bgMerge's S/H-mode twin; kept as a separate table (per
	// spec.md §4.1's five distinct LUTs) even though the merge rule is
	// identical — only its consumer (spriteOverBGSH) differs.
	bgMergeSH [65536]uint8

	// spriteOverBGSH resolves (bg layer byte, sprite layer byte) into a final
	// resolved byte under S/H mode for ordinary (non-magic) sprite pixels:
	// sprite wins at normal intensity if it has priority, otherwise the bg
	// pixel's own priority selects shadow (no priority) or highlight.
	spriteOverBGSH [65536]uint8

	// shMagic is the 64-entry sprite-palette-entry decode table: given a
	// sprite's combined 6-bit (palette<<4|color) index, it reports whether
	// that index is one of the magic shadow/highlight/normal overrides, and
	// which.
	shMagic [64]shMagicEntry

	patterns patternCache
	colors   *ColorTables
}

type shMagicEntry struct {
	IsMagic   bool
	Intensity uint8 // only meaningful when IsMagic
}

// NewLUTEngine builds the color-expansion tables first, then the five
// priority LUTs (four 64 KiB tables plus the 64-entry shMagic) concurrently —
// each LUT is independent of the others, so their construction fans out
// across an errgroup bounded by GOMAXPROCS rather than a serial loop.
func NewLUTEngine() *LUTEngine {
	e := &LUTEngine{}
	e.patterns.reset()
	e.colors = buildColorTables()

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))

	g.Go(func() error { e.buildBGMerge(&e.bgMerge); return nil })
	g.Go(func() error { e.buildBGMerge(&e.bgMergeSH); return nil })
	g.Go(func() error { e.buildSpriteOverBG(); return nil })
	g.Go(func() error { e.buildSpriteOverBGSH(); return nil })
	g.Go(func() error { e.buildSHMagic(); return nil })

	if err := g.Wait(); err != nil {
		// Table construction is pure and allocation-free; a failure here
		// would indicate LUT allocation failed, a fatal condition per
		// spec.md §7.
		panic(err)
	}
	return e
}

func (e *LUTEngine) buildBGMerge(table *[65536]uint8) {
	for a := 0; a < 256; a++ {
		_, aPri, aPal, aCol := unpackLayer(uint8(a))
		for b := 0; b < 256; b++ {
			_, bPri, bPal, bCol := unpackLayer(uint8(b))
			idx := (b << 8) | a
			if aCol != 0 || aPri {
				table[idx] = packLayer(false, aPri, aPal, aCol)
			} else {
				table[idx] = packLayer(false, bPri, bPal, bCol)
			}
		}
	}
}

func (e *LUTEngine) buildSpriteOverBG() {
	for bg := 0; bg < 256; bg++ {
		_, bgPri, bgPal, bgCol := unpackLayer(uint8(bg))
		for sp := 0; sp < 256; sp++ {
			_, spPri, spPal, spCol := unpackLayer(uint8(sp))
			idx := (bg << 8) | sp
			if spCol == 0 {
				e.spriteOverBG[idx] = packResolved(IntensityNormal, bgPal, bgCol)
				continue
			}
			if spPri || bgCol == 0 || !bgPri {
				e.spriteOverBG[idx] = packResolved(IntensityNormal, spPal, spCol)
			} else {
				e.spriteOverBG[idx] = packResolved(IntensityNormal, bgPal, bgCol)
			}
		}
	}
}

func (e *LUTEngine) buildSpriteOverBGSH() {
	for bg := 0; bg < 256; bg++ {
		_, bgPri, bgPal, bgCol := unpackLayer(uint8(bg))
		bgIntensity := uint8(IntensityShadow)
		if bgPri {
			bgIntensity = IntensityHighlight
		}
		for sp := 0; sp < 256; sp++ {
			_, spPri, spPal, spCol := unpackLayer(uint8(sp))
			idx := (bg << 8) | sp
			if spCol == 0 {
				e.spriteOverBGSH[idx] = packResolved(bgIntensity, bgPal, bgCol)
				continue
			}
			if spPri || bgCol == 0 || !bgPri {
				intensity := bgIntensity
				if spPri {
					intensity = IntensityNormal
				}
				e.spriteOverBGSH[idx] = packResolved(intensity, spPal, spCol)
			} else {
				e.spriteOverBGSH[idx] = packResolved(bgIntensity, bgPal, bgCol)
			}
		}
	}
}

func (e *LUTEngine) buildSHMagic() {
	for i := 0; i < 64; i++ {
		ci := uint8(i)
		switch {
		case ci&0x3E == shMagicShadow && ci == shMagicShadow:
			e.shMagic[i] = shMagicEntry{IsMagic: true, Intensity: IntensityShadow}
		case ci&0x3E == shMagicShadow && ci == shMagicHighlight:
			e.shMagic[i] = shMagicEntry{IsMagic: true, Intensity: IntensityHighlight}
		case shMagicNormal[ci]:
			e.shMagic[i] = shMagicEntry{IsMagic: true, Intensity: IntensityNormal}
		}
	}
}

// MergeBG composes two background layer bytes (plane A over plane B) using
// the non-S/H priority LUT.
func (e *LUTEngine) MergeBG(a, b uint8) uint8 {
	return e.bgMerge[(uint16(b)<<8)|uint16(a)]
}

// MergeBGUnderSH composes two background layer bytes under S/H mode.
func (e *LUTEngine) MergeBGUnderSH(a, b uint8) uint8 {
	return e.bgMergeSH[(uint16(b)<<8)|uint16(a)]
}

// ComposeSprite resolves a sprite layer byte over an already bg-merged layer
// byte into a final CRAM-indexable resolved byte (non-S/H mode).
func (e *LUTEngine) ComposeSprite(bg, sprite uint8) uint8 {
	return e.spriteOverBG[(uint16(bg)<<8)|uint16(sprite)]
}

// ComposeSpriteUnderSH resolves a sprite layer byte over a bg-merged layer
// byte under S/H mode, honoring the sprite's magic palette-entry overrides
// (spec.md §4.1 item 5) before falling back to normal S/H composition.
func (e *LUTEngine) ComposeSpriteUnderSH(bg, sprite uint8) uint8 {
	_, _, spPal, spCol := unpackLayer(sprite)
	if spCol != 0 {
		if m := e.shMagic[combinedIndex(spPal, spCol)]; m.IsMagic {
			_, _, bgPal, bgCol := unpackLayer(bg)
			return packResolved(m.Intensity, bgPal, bgCol)
		}
	}
	return e.spriteOverBGSH[(uint16(bg)<<8)|uint16(sprite)]
}

// ResolveColor turns a final resolved byte (intensity|palette|color) plus a
// CRAM bank (64 words, one per Genesis palette of 16 colors) into RGB.
func (e *LUTEngine) ResolveColor(resolved uint8, cram []uint16, r0bit2 bool) rgbVariant {
	intensity, palette, color := unpackResolved(resolved)
	word := cram[uint16(palette)*16+uint16(color)]
	word = gateSMSMask(word, r0bit2)
	return e.colors.Resolve(word, intensity)
}
