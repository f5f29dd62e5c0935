// services/display/display_test.go
package display

import (
	"testing"

	"hwmonitor-go/types"

	"go.uber.org/zap/zaptest"
)

func TestConsoleStatus(t *testing.T) {
	c := NewConsole(zaptest.NewLogger(t))
	c.Draw("old", 0, 0, White, 1)
	c.ShowStatus("WiFi Lost!", "Attempt 1/5")

	f := c.Frame()
	if len(f) != 2 {
		t.Fatalf("frame = %+v", f)
	}
	if f[0].Text != "WiFi Lost!" || f[0].Size != 2 {
		t.Fatalf("title = %+v", f[0])
	}
	if !c.Contains("1/5") || c.Contains("old") {
		t.Fatalf("screen = %q", c.String())
	}
}

func TestRasterDrawsPixels(t *testing.T) {
	fb := NewFramebuffer(64, 32)
	r := NewRaster(fb)
	r.Clear()
	if fb.At(0, 0) != Black {
		t.Fatalf("clear colour = %v", fb.At(0, 0))
	}

	r.Draw("A", 0, 0, White, 1)
	if n := countLit(fb, 0, 0, 8, 8); n == 0 {
		t.Fatal("no pixels drawn for A")
	}

	r.Clear()
	r.Draw("A", 0, 0, White, 2)
	small, big := countLit(fb, 0, 0, 8, 8), countLit(fb, 0, 0, 16, 16)
	if big <= small {
		t.Fatalf("scaled glyph not larger: %d <= %d", big, small)
	}
	if r.TextWidth("AB") <= r.TextWidth("A") {
		t.Fatal("text width not increasing")
	}
}

func TestDashboardRender(t *testing.T) {
	c := NewConsole(zaptest.NewLogger(t))
	s := types.SystemData{
		CPU:         types.CPU{Name: "Ryzen", Temp: 55, Load: 42},
		RAM:         types.RAM{Used: 8, Total: 16},
		GPUDiscrete: types.DiscreteGPU{Name: "RTX", Load: 10, MemUsed: 512, MemTotal: 8192},
		Disks:       []types.Disk{{Name: "nvme0", Load: 60}},
		Network:     types.Network{Name: "eth0", Download: 2048, Upload: 12},
	}
	Dashboard{Width: 128}.Render(c, s)
	for _, want := range []string{"CPU", "42%", "50%", "512/8192M", "nvme0", "D 2.0M", "U 12K"} {
		if !c.Contains(want) {
			t.Errorf("missing %q in %q", want, c.String())
		}
	}
	if c.Contains("iGPU") {
		t.Error("iGPU drawn without data")
	}

	Dashboard{Width: 128, Compact: true}.Render(c, s)
	if !c.Contains("RAM  50%") {
		t.Errorf("compact screen = %q", c.String())
	}
}

func countLit(fb *Framebuffer, x0, y0, w, h int16) int {
	n := 0
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			if fb.At(x, y) != Black {
				n++
			}
		}
	}
	return n
}
