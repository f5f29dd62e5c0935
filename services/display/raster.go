// services/display/raster.go
package display

import (
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// filler is implemented by most TFT drivers and speeds up Clear.
type filler interface {
	FillRectangle(x, y, width, height int16, c color.RGBA) error
}

// Raster draws text onto any drivers.Displayer using tinyfont. Each call
// ends with Display() so buffered devices flush.
type Raster struct {
	dev  drivers.Displayer
	font tinyfont.Fonter
	bg   color.RGBA

	lineH   int16
	ascent  int16
	flushed bool
}

func NewRaster(dev drivers.Displayer) *Raster {
	return &Raster{
		dev:    dev,
		font:   &proggy.TinySZ8pt7b,
		bg:     Black,
		lineH:  8,
		ascent: 7,
	}
}

func (r *Raster) Size() (int16, int16) { return r.dev.Size() }

func (r *Raster) Clear() {
	w, h := r.dev.Size()
	r.Fill(0, 0, w, h, r.bg)
	r.dev.Display()
}

// Fill paints a rectangle.
func (r *Raster) Fill(x, y, w, h int16, c color.RGBA) {
	if f, ok := r.dev.(filler); ok {
		f.FillRectangle(x, y, w, h, c)
		return
	}
	for py := y; py < y+h; py++ {
		for px := x; px < x+w; px++ {
			r.dev.SetPixel(px, py, c)
		}
	}
}

func (r *Raster) Draw(text string, x, y int16, c color.RGBA, size uint8) {
	if size <= 1 {
		tinyfont.WriteLine(r.dev, r.font, x, y+r.ascent, text, c)
	} else {
		s := &scaled{dev: r.dev, ox: x, oy: y, k: int16(size)}
		tinyfont.WriteLine(s, r.font, x, y+r.ascent, text, c)
	}
	r.dev.Display()
}

func (r *Raster) ShowStatus(title string, lines ...string) { showStatus(r, title, lines) }

// TextWidth is the rendered width of s at scale 1.
func (r *Raster) TextWidth(s string) int16 {
	_, w := tinyfont.LineWidth(r.font, s)
	return int16(w)
}

// scaled magnifies glyph pixels around the text origin.
type scaled struct {
	dev    drivers.Displayer
	ox, oy int16
	k      int16
}

func (s *scaled) Size() (int16, int16) { return s.dev.Size() }
func (s *scaled) Display() error       { return nil }

func (s *scaled) SetPixel(x, y int16, c color.RGBA) {
	bx := s.ox + (x-s.ox)*s.k
	by := s.oy + (y-s.oy)*s.k
	for dy := int16(0); dy < s.k; dy++ {
		for dx := int16(0); dx < s.k; dx++ {
			s.dev.SetPixel(bx+dx, by+dy, c)
		}
	}
}
