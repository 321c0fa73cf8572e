// Package indicator drives the three-channel status light that reports the
// provisioning state.
package indicator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/logging"
)

// MaxChannel is the exclusive upper bound of a channel value; values are
// reduced modulo MaxChannel before output.
const MaxChannel = 128

// Color is an RGB intensity triple.
type Color struct {
	R, G, B uint8
}

var (
	Red    = Color{16, 0, 0}
	Orange = Color{5, 3, 0}
	Green  = Color{0, 8, 0}
	Blue   = Color{0, 0, 20}
	Purple = Color{6, 0, 10}
	Cyan   = Color{0, 6, 10}
	Black  = Color{0, 0, 0}
)

var names = map[Color]string{
	Red:    "red",
	Orange: "orange",
	Green:  "green",
	Blue:   "blue",
	Purple: "purple",
	Cyan:   "cyan",
	Black:  "off",
}

// Name returns the colour's name, or its channel values if it has none.
func (c Color) Name() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// Clamp reduces each channel modulo MaxChannel.
func (c Color) Clamp() Color {
	return Color{c.R % MaxChannel, c.G % MaxChannel, c.B % MaxChannel}
}

func (c Color) String() string {
	return c.Name()
}

// Indicator shows a colour.
type Indicator interface {
	Set(c Color)
}

// Func adapts a function to Indicator.
type Func func(c Color)

func (f Func) Set(c Color) { f(c) }

// Log reports colour changes through the logger.
type Log struct{}

func (Log) Set(c Color) {
	c = c.Clamp()
	logging.Info("Indicator", zap.String("color", c.Name()),
		zap.Uint8("r", c.R), zap.Uint8("g", c.G), zap.Uint8("b", c.B))
}

// Multi fans a colour out to several indicators.
type Multi []Indicator

func (m Multi) Set(c Color) {
	for _, i := range m {
		if i != nil {
			i.Set(c)
		}
	}
}
