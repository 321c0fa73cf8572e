package indicator

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Terminal draws the light as a coloured swatch on a terminal.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal creates an indicator that writes to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Set(c Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.w, Swatch(c)+" "+c.Clamp().Name())
}

// Swatch renders c as a small block, scaled so the brightest channel is at
// full intensity. The hardware values are too dim to tell apart on screen.
func Swatch(c Color) string {
	style := lipgloss.NewStyle().Background(lipgloss.Color(Hex(c))).Padding(0, 2)
	return style.Render("")
}

// Hex returns the display colour for c as #rrggbb.
func Hex(c Color) string {
	c = c.Clamp()
	peak := max(c.R, c.G, c.B)
	if peak == 0 {
		return "#000000"
	}
	scale := func(v uint8) int { return int(v) * 255 / int(peak) }
	return fmt.Sprintf("#%02x%02x%02x", scale(c.R), scale(c.G), scale(c.B))
}
