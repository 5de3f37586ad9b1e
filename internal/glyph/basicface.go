package glyph

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// basicFace adapts golang.org/x/image/font/basicfont.Face7x13 — a
// fixed, monospace, ecosystem-provided bitmap face — to the Face
// contract. It ignores pixelSize since basicfont ships one size only.
type basicFace struct {
	f *basicfont.Face
}

// NewBasicFace returns the default Face used when no other collaborator
// is wired in: golang.org/x/image's bundled 7x13 bitmap font.
func NewBasicFace() Face {
	return basicFace{f: basicfont.Face7x13}
}

func (b basicFace) Metrics(int) Metrics {
	m := b.f.Metrics()
	return Metrics{
		CellW:    b.f.Width,
		CellH:    m.Height.Ceil(),
		Ascender: m.Ascent.Ceil(),
	}
}

func (b basicFace) Glyph(r rune, _ int) (Bitmap, int, int, int, bool) {
	dr, mask, maskp, advance, ok := b.f.Glyph(fixed.Point26_6{}, r)
	if !ok || dr.Empty() {
		return Bitmap{}, 0, 0, 0, false
	}

	w, h := dr.Dx(), dr.Dy()
	out := Bitmap{Width: w, Height: h, Stride: w, Pix: make([]uint8, w*h)}

	alpha, isAlpha := mask.(*image.Alpha)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var cov uint8
			if isAlpha {
				cov = alpha.AlphaAt(maskp.X+x, maskp.Y+y).A
			} else {
				_, _, _, a := mask.At(maskp.X+x, maskp.Y+y).RGBA()
				cov = uint8(a >> 8)
			}
			out.Pix[y*out.Stride+x] = cov
		}
	}

	// basicfont's dr is already positioned relative to the baseline dot
	// (which we passed as the zero point), so dr.Min is the bearing.
	return out, advance.Round(), dr.Min.X, -dr.Min.Y, true
}

var _ font.Face = (*basicfont.Face)(nil)
