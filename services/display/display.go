// services/display/display.go
package display

import "image/color"

// Display is the screen as seen by the control loop. Coordinates are in
// screen pixels; size is an integer text scale (1 = 8px line).
type Display interface {
	Clear()
	Draw(text string, x, y int16, c color.RGBA, size uint8)
	// ShowStatus draws a full-screen message: a large title and small lines.
	ShowStatus(title string, lines ...string)
}

var (
	Black  = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
	White  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	Red    = color.RGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff}
	Green  = color.RGBA{R: 0x00, G: 0xff, B: 0x00, A: 0xff}
	Yellow = color.RGBA{R: 0xff, G: 0xff, B: 0x00, A: 0xff}
	Cyan   = color.RGBA{R: 0x00, G: 0xff, B: 0xff, A: 0xff}
	Orange = color.RGBA{R: 0xff, G: 0xa5, B: 0x00, A: 0xff}
	Grey   = color.RGBA{R: 0x7b, G: 0x7d, B: 0x7b, A: 0xff}
)

// drawer is the subset of Display that status layout needs.
type drawer interface {
	Clear()
	Draw(text string, x, y int16, c color.RGBA, size uint8)
}

func showStatus(d drawer, title string, lines []string) {
	d.Clear()
	d.Draw(title, 10, 40, Yellow, 2)
	y := int16(70)
	for _, l := range lines {
		d.Draw(l, 10, y, White, 1)
		y += 15
	}
}
