// services/display/framebuffer.go
package display

import (
	"image/color"
	"io"

	"tinygo.org/x/drivers/pixel"
)

// Framebuffer is an RGB565 big-endian image implementing drivers.Displayer.
// Display writes the raw buffer to Out when set (e.g. /dev/fb0).
type Framebuffer struct {
	img pixel.Image[pixel.RGB565BE]
	w   int16
	h   int16
	Out io.WriterAt
}

func NewFramebuffer(width, height int16) *Framebuffer {
	return &Framebuffer{
		img: pixel.NewImage[pixel.RGB565BE](int(width), int(height)),
		w:   width,
		h:   height,
	}
}

func (f *Framebuffer) Size() (int16, int16) { return f.w, f.h }

func (f *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= f.w || y >= f.h {
		return
	}
	f.img.Set(int(x), int(y), pixel.NewColor[pixel.RGB565BE](c.R, c.G, c.B))
}

// FillRectangle clips to the image.
func (f *Framebuffer) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if x == 0 && y == 0 && width >= f.w && height >= f.h {
		f.img.FillSolidColor(pixel.NewColor[pixel.RGB565BE](c.R, c.G, c.B))
		return nil
	}
	for py := y; py < y+height; py++ {
		for px := x; px < x+width; px++ {
			f.SetPixel(px, py, c)
		}
	}
	return nil
}

// At returns the colour at x, y.
func (f *Framebuffer) At(x, y int16) color.RGBA {
	return f.img.Get(int(x), int(y)).RGBA()
}

func (f *Framebuffer) Display() error {
	if f.Out == nil {
		return nil
	}
	_, err := f.Out.WriteAt(f.img.RawBuffer(), 0)
	return err
}
