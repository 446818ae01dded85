package md

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// PixelFormat selects one of the host pixel depths spec.md §6 "Pixel output"
// names: 8-bpp 3:3:2, 15-bpp 5:5:5, 16-bpp 5:6:5 (with green-channel dither),
// 32-bpp 8:8:8.
type PixelFormat int

const (
	PixelFormat8bpp332 PixelFormat = iota
	PixelFormat15bpp555
	PixelFormat16bpp565
	PixelFormat32bpp888
)

// BytesPerPixel returns the packed size of one host pixel in the given format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormat8bpp332:
		return 1
	case PixelFormat15bpp555, PixelFormat16bpp565:
		return 2
	default:
		return 4
	}
}

// dither4to6 maps a 4-bit value to a 6-bit one using a fixed fractional
// carry, reproducing the green-channel dither spec.md §6 calls out for
// 16-bpp 5:6:5 output ("a 4-bit→6-bit dither in green channel is applied by
// formula"): replicate the top bits into the low bits rather than padding
// with zero, so full-white 4-bit input (0xF) maps to full-white 6-bit (0x3F).
func dither4to6(v4 uint8) uint8 {
	return v4<<2 | v4>>2
}

// RemapLine packs one row of the VDP's internal rgbVariant framebuffer into
// the host pixel format, writing BytesPerPixel(format)*len(src) bytes to dst.
// dst is grown if undersized. This is the "remap the 8-bit line to the host
// pixel format" step of spec.md §4.2's output-remap stage.
func RemapLine(dst []byte, src []rgbVariant, format PixelFormat) []byte {
	need := len(src) * format.BytesPerPixel()
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]

	switch format {
	case PixelFormat8bpp332:
		for i, c := range src {
			dst[i] = (c.R&0xE0 | (c.G>>3)&0x1C | c.B>>6)
		}
	case PixelFormat15bpp555:
		for i, c := range src {
			r5 := uint16(c.R >> 3)
			g5 := uint16(c.G >> 3)
			b5 := uint16(c.B >> 3)
			v := r5<<10 | g5<<5 | b5
			dst[i*2+0] = byte(v)
			dst[i*2+1] = byte(v >> 8)
		}
	case PixelFormat16bpp565:
		for i, c := range src {
			r5 := uint16(c.R >> 3)
			g4 := c.G >> 4
			g6 := uint16(dither4to6(g4))
			b5 := uint16(c.B >> 3)
			v := r5<<11 | g6<<5 | b5
			dst[i*2+0] = byte(v)
			dst[i*2+1] = byte(v >> 8)
		}
	case PixelFormat32bpp888:
		for i, c := range src {
			dst[i*4+0] = c.B
			dst[i*4+1] = c.G
			dst[i*4+2] = c.R
			dst[i*4+3] = 0xFF
		}
	}
	return dst
}

// FrameToRGBA converts the VDP's internal framebuffer (row-major at
// MaxScreenWidth stride) into a standard image.RGBA cropped to the active
// viewport, so NTSC-filter-style blitting (spec.md §4.2 "optionally through
// NTSC-filter blitters") can operate on a standard image.Image.
func FrameToRGBA(fb []rgbVariant, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		srcRow := fb[y*MaxScreenWidth : y*MaxScreenWidth+width]
		dstRow := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x, c := range srcRow {
			dstRow[x*4+0] = c.R
			dstRow[x*4+1] = c.G
			dstRow[x*4+2] = c.B
			dstRow[x*4+3] = 0xFF
		}
	}
	return img
}

// ScaleFrame blits src into an image the size of outW x outH using bilinear
// filtering, the MD-variant "NTSC-filter blitter" spec.md §4.2 names as
// optional. SMS-variant (nearest-neighbor, blockier) callers should use
// xdraw.NearestNeighbor directly instead of this helper.
func ScaleFrame(src *image.RGBA, outW, outH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
