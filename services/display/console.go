// services/display/console.go
package display

import (
	"image/color"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Text is one drawn string.
type Text struct {
	Text  string
	X, Y  int16
	Color color.RGBA
	Size  uint8
}

// Console renders to the log and keeps the current frame for inspection.
type Console struct {
	log *zap.Logger

	mu    sync.Mutex
	frame []Text
}

func NewConsole(log *zap.Logger) *Console {
	return &Console{log: log}
}

func (c *Console) Clear() {
	c.mu.Lock()
	c.frame = c.frame[:0]
	c.mu.Unlock()
}

func (c *Console) Draw(text string, x, y int16, col color.RGBA, size uint8) {
	c.mu.Lock()
	c.frame = append(c.frame, Text{Text: text, X: x, Y: y, Color: col, Size: size})
	c.mu.Unlock()
	c.log.Debug("draw", zap.String("text", text), zap.Int16("x", x), zap.Int16("y", y))
}

func (c *Console) ShowStatus(title string, lines ...string) {
	showStatus(c, title, lines)
	c.log.Info("status", zap.String("title", title), zap.Strings("lines", lines))
}

// Frame returns a copy of what is currently on screen.
func (c *Console) Frame() []Text {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Text(nil), c.frame...)
}

// String joins the current frame's texts with newlines.
func (c *Console) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sb strings.Builder
	for i, t := range c.frame {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(t.Text)
	}
	return sb.String()
}

// Contains reports whether any text on screen contains s.
func (c *Console) Contains(s string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.frame {
		if strings.Contains(t.Text, s) {
			return true
		}
	}
	return false
}
