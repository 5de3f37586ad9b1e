// Package raster implements C2, the Rasterizer: idempotent two-pass
// cell rendering (background, then glyph), tab-bar and pane-border
// painting, into a display surface's shadow buffer.
package raster

import (
	"github.com/hinshun/vt10x"

	"github.com/opalaayan/vtdeck/internal/display"
	"github.com/opalaayan/vtdeck/internal/glyph"
	"github.com/opalaayan/vtdeck/internal/session"
)

// RGB is a 24-bit color, 0xRRGGBB.
type RGB uint32

func (c RGB) r() uint32 { return uint32(c>>16) & 0xFF }
func (c RGB) g() uint32 { return uint32(c>>8) & 0xFF }
func (c RGB) b() uint32 { return uint32(c) & 0xFF }

// Theme collects every color the rasterizer paints with. Foreground
// and Background are the emulator's default colors (from
// internal/config); the rest are vtdeck's own chrome.
type Theme struct {
	Foreground    RGB
	Background    RGB
	CursorFG      RGB
	CursorBG      RGB
	TabBarBG      RGB
	TabBarFG      RGB
	TabBarActive  RGB
}

// DefaultTheme is vtdeck's built-in Nord-palette color scheme.
var DefaultTheme = Theme{
	Foreground:   0xD8DEE9,
	Background:   0x2E3440,
	CursorFG:     0x2E3440,
	CursorBG:     0xD8DEE9,
	TabBarBG:     0x3B4252,
	TabBarFG:     0xD8DEE9,
	TabBarActive: 0x88C0D0,
}

// Surface is the subset of display.Surface the rasterizer writes
// into; kept as an interface so tests can render into a fake backed by
// a plain byte slice without standing up a real DRM device.
type Surface interface {
	Back() []byte
	Stats() display.Stats
	Present()
}

// Stats is an alias for display.Stats so callers in this package never
// need to import display just to name the type.
type Stats = display.Stats

// Renderer paints tab/pane/session state into a Surface's shadow
// buffer using a Face for glyph bitmaps.
type Renderer struct {
	face  glyph.Face
	theme Theme
}

func New(face glyph.Face, theme Theme) *Renderer {
	return &Renderer{face: face, theme: theme}
}

// Render is idempotent, driven solely by store state.
// It paints the active tab's panes into the content area, then the
// tab bar strip, then calls Present.
func (r *Renderer) Render(surf Surface, store *session.Store, cellPx int) {
	stats := surf.Stats()
	metrics := r.face.Metrics(cellPx)
	back := surf.Back()

	contentHeight := stats.Height - metrics.CellH

	tab := store.ActiveTab()
	if tab != nil {
		r.paintTab(back, stats, tab, contentHeight, metrics, cellPx)
	}

	r.paintTabBar(back, stats, store, metrics, cellPx)

	surf.Present()
}

func (r *Renderer) paintTab(back []byte, stats Stats, tab *session.Tab, contentHeight int, metrics glyph.Metrics, cellPx int) {
	type paneCursor struct {
		x, y    int
		visible bool
	}
	cursors := make([]paneCursor, tab.NumPanes())
	for i := 0; i < tab.NumPanes(); i++ {
		x, y, vis := tab.Pane(i).CursorPos()
		cursors[i] = paneCursor{x, y, vis}
	}

	// Pass A: backgrounds.
	for i := 0; i < tab.NumPanes(); i++ {
		p := tab.Pane(i)
		cols, rows := p.Size()
		isActivePane := i == tab.ActivePaneIndex()
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				cell := p.Cell(x, y)
				bg := r.resolveBG(cell)
				if isActivePane && cursors[i].visible && cursors[i].x == x && cursors[i].y == y {
					bg = r.theme.CursorBG
				}
				px := p.StartColPx() + x*metrics.CellW
				py := y * metrics.CellH
				fillRect(back, stats, px, py, metrics.CellW, metrics.CellH, bg)
			}
		}
	}

	// Pass B: glyphs, alpha-blended over what pass A just painted.
	for i := 0; i < tab.NumPanes(); i++ {
		p := tab.Pane(i)
		cols, rows := p.Size()
		isActivePane := i == tab.ActivePaneIndex()
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				cell := p.Cell(x, y)
				if cell.Char == 0 || cell.Char == ' ' {
					continue
				}
				bmp, advance, left, top, ok := r.face.Glyph(cell.Char, cellPx)
				if !ok {
					continue // missing glyph: empty cell, not a failure
				}

				fg := r.resolveFG(cell)
				bg := r.resolveBG(cell)
				if isActivePane && cursors[i].visible && cursors[i].x == x && cursors[i].y == y {
					fg = r.theme.CursorFG
					bg = r.theme.CursorBG
				}

				centering := (metrics.CellW - advance) / 2
				if centering < 0 {
					centering = 0
				}
				originX := p.StartColPx() + x*metrics.CellW + left + centering
				originY := y*metrics.CellH + metrics.Ascender - top

				blendBitmap(back, stats, bmp, originX, originY, fg, bg)
			}
		}
	}

	// Pane divider.
	if tab.NumPanes() == 2 {
		dividerX := tab.Pane(1).StartColPx() - 1
		for y := 0; y < contentHeight; y++ {
			setPixel(back, stats, dividerX, y, r.theme.TabBarFG)
		}
	}
}

func (r *Renderer) paintTabBar(back []byte, stats Stats, store *session.Store, metrics glyph.Metrics, cellPx int) {
	barY := stats.Height - metrics.CellH
	fillRect(back, stats, 0, barY, stats.Width, metrics.CellH, r.theme.TabBarBG)

	penX := 0
	for i := 0; i < store.NumTabs(); i++ {
		label := tabLabel(i)
		isActive := i == store.ActiveTabIndex()

		fg, bg := r.theme.TabBarFG, r.theme.TabBarBG
		if isActive {
			fg, bg = r.theme.CursorFG, r.theme.TabBarActive
		}

		labelWidth := len(label) * metrics.CellW
		fillRect(back, stats, penX, barY, labelWidth, metrics.CellH, bg)

		for ci, ch := range label {
			bmp, _, left, top, ok := r.face.Glyph(ch, cellPx)
			if !ok {
				continue
			}
			originX := penX + ci*metrics.CellW + left
			originY := barY + metrics.Ascender - top
			blendBitmap(back, stats, bmp, originX, originY, fg, bg)
		}

		penX += labelWidth + metrics.CellW/2
	}
}

func tabLabel(i int) string {
	return " " + itoa(i+1) + " "
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// resolveBG and resolveFG just resolve each channel independently:
// vt10x already swaps a reverse cell's FG/BG against each other inside
// its own setChar() (it keeps the reverse bit in Mode only as a
// marker, for callers that re-emit SGR codes instead of painting
// pixels directly), so cell.BG/cell.FG already carry the inverted
// colors here and swapping them again would cancel that out. A
// reversed default cell ends up with DefaultBG stored in the FG
// channel (and vice versa), so colorOf resolves each sentinel to its
// own theme color no matter which channel it's read from.
func (r *Renderer) resolveBG(cell vt10x.Glyph) RGB {
	return r.colorOf(cell.BG)
}

func (r *Renderer) resolveFG(cell vt10x.Glyph) RGB {
	return r.colorOf(cell.FG)
}

// colorOf resolves a vt10x.Color to a concrete RGB. DefaultFG/DefaultBG
// are checked by identity rather than by channel, since vt10x's own
// reverse-video swap in setChar() can leave either sentinel in either
// channel.
func (r *Renderer) colorOf(c vt10x.Color) RGB {
	switch c {
	case vt10x.DefaultFG:
		return r.theme.Foreground
	case vt10x.DefaultBG:
		return r.theme.Background
	}
	// Standard/bright/256-color indices resolve through a fixed ANSI
	// table below; truecolor values (vt10x stores them as 0xRRGGBB,
	// above the 0..255 index range) pass through.
	if c >= 256 {
		return RGB(uint32(c) & 0xFFFFFF)
	}
	return ansiTable[int(c)%len(ansiTable)]
}

var ansiTable = [16]RGB{
	0x3B4252, 0xBF616A, 0xA3BE8C, 0xEBCB8B,
	0x81A1C1, 0xB48EAD, 0x88C0D0, 0xE5E9F0,
	0x4C566A, 0xBF616A, 0xA3BE8C, 0xEBCB8B,
	0x81A1C1, 0xB48EAD, 0x8FBCBB, 0xECEFF4,
}

func fillRect(back []byte, stats Stats, x, y, w, h int, c RGB) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			setPixel(back, stats, xx, yy, c)
		}
	}
}

func setPixel(back []byte, stats Stats, x, y int, c RGB) {
	if x < 0 || y < 0 || x >= stats.Width || y >= stats.Height {
		return
	}
	off := y*stats.Stride + x*4
	back[off] = byte(c.b())
	back[off+1] = byte(c.g())
	back[off+2] = byte(c.r())
	back[off+3] = 0
}

func getPixel(back []byte, stats Stats, x, y int) RGB {
	if x < 0 || y < 0 || x >= stats.Width || y >= stats.Height {
		return 0
	}
	off := y*stats.Stride + x*4
	return RGB(uint32(back[off+2])<<16 | uint32(back[off+1])<<8 | uint32(back[off]))
}

// blendBitmap alpha-blends an 8-bit coverage bitmap over the shadow
// buffer using out = fg*a/255 + bg*(255-a)/255 per channel, reading bg
// back from what the background pass already painted rather than the
// caller's bg argument, so overlapping glyph fringes from neighboring
// cells compose correctly.
func blendBitmap(back []byte, stats Stats, bmp glyph.Bitmap, originX, originY int, fg, _ RGB) {
	for row := 0; row < bmp.Height; row++ {
		for col := 0; col < bmp.Width; col++ {
			alpha := uint32(bmp.At(col, row))
			if alpha == 0 {
				continue
			}
			sx, sy := originX+col, originY+row
			under := getPixel(back, stats, sx, sy)

			r := (fg.r()*alpha + under.r()*(255-alpha)) / 255
			g := (fg.g()*alpha + under.g()*(255-alpha)) / 255
			b := (fg.b()*alpha + under.b()*(255-alpha)) / 255
			setPixel(back, stats, sx, sy, RGB(r<<16|g<<8|b))
		}
	}
}
