package indicator

import (
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/logging"
)

// SysfsPaths names the LED class devices for each channel, e.g.
// /sys/class/leds/rgb:red.
type SysfsPaths struct {
	Red   string
	Green string
	Blue  string
}

// Sysfs drives an RGB LED through the Linux LED class brightness files.
type Sysfs struct {
	fs    afero.Fs
	paths SysfsPaths
}

// NewSysfs creates a sysfs indicator on fs.
func NewSysfs(fs afero.Fs, paths SysfsPaths) *Sysfs {
	return &Sysfs{fs: fs, paths: paths}
}

func (s *Sysfs) Set(c Color) {
	c = c.Clamp()
	for _, ch := range []struct {
		dir   string
		value uint8
	}{
		{s.paths.Green, c.G},
		{s.paths.Red, c.R},
		{s.paths.Blue, c.B},
	} {
		if ch.dir == "" {
			continue
		}
		path := filepath.Join(ch.dir, "brightness")
		if err := afero.WriteFile(s.fs, path, []byte(strconv.Itoa(int(ch.value))+"\n"), 0o644); err != nil {
			logging.Warn("Failed to set LED brightness", zap.String("path", path), zap.Error(err))
		}
	}
}
