package md

import "testing"

func newTestVDP() *VDP {
	return NewVDP(NewLUTEngine())
}

func TestVDP_RegisterReadWrite(t *testing.T) {
	v := newTestVDP()
	v.SetRegister(5, 0x7E)
	if got := v.Register(5); got != 0x7E {
		t.Errorf("Register(5) = 0x%02X, want 0x7E", got)
	}
}

func TestVDP_RegisterOutOfRangeIsIgnored(t *testing.T) {
	v := newTestVDP()
	v.SetRegister(100, 0xFF) // must not panic
	if got := v.Register(100); got != 0 {
		t.Errorf("Register(100) = 0x%02X, want 0", got)
	}
}

func TestVDP_H40SelectsWideViewport(t *testing.T) {
	v := newTestVDP()
	if v.H40() {
		t.Error("H40 should be false before register 12 bit 0 is set")
	}
	if got := v.Width(); got != ScreenWidthH32 {
		t.Errorf("Width() = %d, want %d", got, ScreenWidthH32)
	}

	v.SetRegister(12, 0x01)
	if !v.H40() {
		t.Error("H40 should be true after setting register 12 bit 0")
	}
	if got := v.Width(); got != ScreenWidthH40 {
		t.Errorf("Width() = %d, want %d", got, ScreenWidthH40)
	}
}

func TestVDP_IM2AndShadowHighlightFlags(t *testing.T) {
	v := newTestVDP()
	v.SetRegister(12, 0x02)
	if !v.IM2() {
		t.Error("IM2 should be true with register 12 bit 1 set")
	}
	if v.ShadowHighlight() {
		t.Error("ShadowHighlight should be false without bit 3 set")
	}

	v.SetRegister(12, 0x08)
	if !v.ShadowHighlight() {
		t.Error("ShadowHighlight should be true with register 12 bit 3 set")
	}
}

func TestVDP_CRAMWriteMasksTo9Bits(t *testing.T) {
	v := newTestVDP()
	v.WriteCRAMWord(0, 0xFFFF)
	if got := v.CRAMWord(0); got != 0x1FF {
		t.Errorf("CRAMWord(0) = 0x%04X, want 0x01FF", got)
	}
}

func TestVDP_VSRAMWriteMasksTo10Bits(t *testing.T) {
	v := newTestVDP()
	v.WriteVSRAMWord(0, 0xFFFF)
	if got := v.VSRAMWord(0); got != 0x3FF {
		t.Errorf("VSRAMWord(0) = 0x%04X, want 0x03FF", got)
	}
}

func TestVDP_WriteVRAMByteMarksPatternDirty(t *testing.T) {
	v := newTestVDP()
	v.lut.patterns.dirty[0] = false

	v.WriteVRAMByte(0, 0xAB)
	if !v.lut.patterns.dirty[0] {
		t.Error("writing VRAM byte 0 should mark pattern 0 dirty")
	}
}

func TestVDP_VBlankSetsStatusBit(t *testing.T) {
	v := newTestVDP()
	v.SetVBlank(true)
	if v.Status()&statusVBlank == 0 {
		t.Error("SetVBlank(true) should set the VBlank status bit")
	}
	v.SetVBlank(false)
	if v.Status()&statusVBlank != 0 {
		t.Error("SetVBlank(false) should clear the VBlank status bit")
	}
}

func TestVDP_DMATracking(t *testing.T) {
	v := newTestVDP()
	if v.DMAInProgress() {
		t.Error("DMA should not be in progress initially")
	}

	v.StartDMA(100)
	if !v.DMAInProgress() {
		t.Error("DMA should be in progress after StartDMA")
	}

	v.AdvanceDMA(40)
	if !v.DMAInProgress() {
		t.Error("DMA should still be in progress after a partial advance")
	}

	v.AdvanceDMA(100)
	if v.DMAInProgress() {
		t.Error("DMA should complete once advanced past its length")
	}
}

func TestVDP_HIntReloadReadsRegister10(t *testing.T) {
	v := newTestVDP()
	v.SetRegister(10, 0xAB)
	if got := v.HIntReload(); got != 0xAB {
		t.Errorf("HIntReload() = 0x%02X, want 0xAB", got)
	}
}

// TestVDP_SpriteMasking_RequiresPriorNonzeroX verifies spec.md §8 scenario
// S5: sprites A@xpos=40, B@xpos=0, C@xpos=80 in SAT order. A draws normally;
// B (xpos==0 after a prior xpos>0 sprite) triggers masking; C is then
// skipped even though it has a non-zero xpos of its own.
func TestVDP_SpriteMasking_RequiresPriorNonzeroX(t *testing.T) {
	v := newTestVDP()
	v.WriteVRAMByte(0, 0x10) // pattern 0, row 0 col 0 = color 1 (opaque)

	v.spriteCur = []spriteEntry{
		{X: 40, Y: 0, Name: 0, Width: 1, Height: 1},
		{X: 0, Y: 0, Name: 0, Width: 1, Height: 1},
		{X: 80, Y: 0, Name: 0, Width: 1, Height: 1},
	}
	v.DrawSprites(0)

	if !v.spriteMasked {
		t.Error("expected masking to trigger once an xpos==0 sprite follows an xpos>0 sprite")
	}
	if v.lineSprite[40] == 0 {
		t.Error("sprite A at xpos=40 should have drawn before masking triggered")
	}
	if v.lineSprite[80] != 0 {
		t.Error("sprite C at xpos=80 should not draw once masking has triggered")
	}
}

// TestVDP_SpriteMasking_NoPriorNonzeroXNeverMasks verifies the case the
// original spr_over flag (only set for xpos!=0) distinguishes: two sprites
// both at xpos==0, with no xpos>0 sprite ever seen, must not mask each
// other, even though both contribute to spritePixelCount.
func TestVDP_SpriteMasking_NoPriorNonzeroXNeverMasks(t *testing.T) {
	v := newTestVDP()
	v.WriteVRAMByte(0, 0x10)

	v.spriteCur = []spriteEntry{
		{X: 0, Y: 0, Name: 0, Width: 1, Height: 1},
		{X: 0, Y: 0, Name: 0, Width: 1, Height: 1},
	}
	v.DrawSprites(0)

	if v.spriteMasked {
		t.Error("masking should not trigger when no prior sprite had xpos>0")
	}
	if v.lineSprite[0] == 0 {
		t.Error("sprite at xpos=0 should draw when masking never triggers")
	}
}

// TestVDP_RenderScanline_BackdropOnEmptyPlanes verifies that with no pattern
// data and no sprites, RenderScanline fills the line with the backdrop
// color derived from register 7's color index.
func TestVDP_RenderScanline_BackdropOnEmptyPlanes(t *testing.T) {
	v := newTestVDP()
	v.SetRegister(1, 0x40) // display enabled, so the (empty) planes are rendered
	v.SetRegister(7, 0) // backdrop = palette 0, color 0
	v.WriteCRAMWord(0, 0x0E0) // non-black backdrop so 0 is distinguishable

	v.RenderScanline(0)

	want := v.backdropColor()
	got := v.Framebuffer()[0]
	if got != want {
		t.Errorf("pixel 0 = %+v, want backdrop %+v", got, want)
	}
}
