// services/display/dashboard.go
package display

import (
	"fmt"
	"image/color"

	"hwmonitor-go/types"
	"hwmonitor-go/x/mathx"
	"hwmonitor-go/x/strx"
)

// Filler is implemented by pixel backends; bars are skipped without it.
type Filler interface {
	Fill(x, y, w, h int16, c color.RGBA)
}

// Dashboard lays SystemData out for a screen of the given width.
type Dashboard struct {
	Width   int16
	Compact bool
}

const barW = 56

func (db Dashboard) Render(d Display, s types.SystemData) {
	d.Clear()
	d.Draw("SYS", db.Width/2-9, 1, Cyan, 1)
	if db.Compact {
		db.compact(d, s)
		return
	}

	y := int16(14)
	db.tile(d, "CPU", s.CPU.Load, fmt.Sprintf("%.0fC %.0fW", s.CPU.Temp, s.CPU.Power), 2, y, Red)
	db.tile(d, "RAM", ramPercent(s.RAM), fmt.Sprintf("%.1f/%.0fG", s.RAM.Used, s.RAM.Total), db.Width/2+1, y, Green)

	y += 36
	if s.GPUDiscrete.Name != "" {
		extra := fmt.Sprintf("%.0fC", s.GPUDiscrete.Temp)
		if s.GPUDiscrete.MemTotal > 0 {
			extra += fmt.Sprintf(" %d/%dM", s.GPUDiscrete.MemUsed, s.GPUDiscrete.MemTotal)
		}
		db.tile(d, "GPU", s.GPUDiscrete.Load, extra, 2, y, Orange)
	}
	if s.GPUIntegrated.Name != "" {
		extra := "N/A"
		if s.GPUIntegrated.Temp > 0 {
			extra = fmt.Sprintf("%.0fC", s.GPUIntegrated.Temp)
		}
		db.tile(d, "iGPU", s.GPUIntegrated.Load, extra, db.Width/2+1, y, Yellow)
	}

	y += 36
	for i, dk := range s.Disks {
		if i == 2 {
			break
		}
		x := int16(2)
		if i == 1 {
			x = db.Width/2 + 1
		}
		db.tile(d, strx.Truncate(dk.Name, 6), dk.Load, fmt.Sprintf("%.0fC", dk.Temp), x, y, Cyan)
	}

	y += 36
	if s.Network.Name != "" {
		d.Draw(strx.Truncate(s.Network.Name, 12), 2, y, Grey, 1)
		d.Draw(fmt.Sprintf("D %s", rate(s.Network.Download)), 2, y+10, Green, 1)
		d.Draw(fmt.Sprintf("U %s", rate(s.Network.Upload)), db.Width/2+1, y+10, Yellow, 1)
	}
}

func (db Dashboard) compact(d Display, s types.SystemData) {
	d.Draw(fmt.Sprintf("CPU %3.0f%% %.0fC", s.CPU.Load, s.CPU.Temp), 4, 20, Red, 1)
	d.Draw(fmt.Sprintf("RAM %3.0f%%", ramPercent(s.RAM)), 4, 40, Green, 1)
	if s.GPUDiscrete.Name != "" {
		d.Draw(fmt.Sprintf("GPU %3.0f%% %.0fC", s.GPUDiscrete.Load, s.GPUDiscrete.Temp), 4, 60, Orange, 1)
	}
	if s.Network.Name != "" {
		d.Draw(fmt.Sprintf("D %s U %s", rate(s.Network.Download), rate(s.Network.Upload)), 4, 80, Cyan, 1)
	}
}

func (db Dashboard) tile(d Display, label string, pct float64, extra string, x, y int16, c color.RGBA) {
	d.Draw(label, x+2, y+2, c, 1)
	d.Draw(fmt.Sprintf("%.0f%%", pct), x+4, y+12, White, 2)
	d.Draw(extra, x+2, y+24, Grey, 1)
	if f, ok := d.(Filler); ok {
		f.Fill(x+2, y+33, barW, 2, Black)
		f.Fill(x+2, y+33, int16(mathx.Span(pct, 100, barW)), 2, c)
	}
}

func ramPercent(r types.RAM) float64 {
	if r.Percent > 0 {
		return r.Percent
	}
	if r.Total > 0 {
		return r.Used / r.Total * 100
	}
	return 0
}

func rate(kbs float64) string {
	if kbs >= 1024 {
		return fmt.Sprintf("%.1fM", kbs/1024)
	}
	return fmt.Sprintf("%.0fK", kbs)
}
