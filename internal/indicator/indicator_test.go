package indicator

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColor_Name(t *testing.T) {
	tests := []struct {
		c    Color
		want string
	}{
		{Red, "red"},
		{Orange, "orange"},
		{Green, "green"},
		{Blue, "blue"},
		{Purple, "purple"},
		{Cyan, "cyan"},
		{Black, "off"},
		{Color{1, 2, 3}, "rgb(1,2,3)"},
	}
	for _, tt := range tests {
		if got := tt.c.Name(); got != tt.want {
			t.Errorf("%v.Name() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestColor_Clamp(t *testing.T) {
	assert.Equal(t, Color{0, 1, 127}, Color{128, 129, 127}.Clamp())
	assert.Equal(t, Red, Red.Clamp())
}

func TestHex(t *testing.T) {
	assert.Equal(t, "#000000", Hex(Black))
	assert.Equal(t, "#ff0000", Hex(Red))
	assert.Equal(t, "#0000ff", Hex(Blue))
	assert.Equal(t, "#ff9900", Hex(Orange))
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	NewTerminal(&buf).Set(Cyan)
	assert.Contains(t, buf.String(), "cyan")
}

func TestSysfs(t *testing.T) {
	fs := afero.NewMemMapFs()
	paths := SysfsPaths{Red: "/sys/class/leds/red", Green: "/sys/class/leds/green", Blue: "/sys/class/leds/blue"}
	for _, p := range []string{paths.Red, paths.Green, paths.Blue} {
		require.NoError(t, fs.MkdirAll(p, 0o755))
	}

	NewSysfs(fs, paths).Set(Purple)

	read := func(dir string) string {
		b, err := afero.ReadFile(fs, dir+"/brightness")
		require.NoError(t, err)
		return string(b)
	}
	assert.Equal(t, "6\n", read(paths.Red))
	assert.Equal(t, "0\n", read(paths.Green))
	assert.Equal(t, "10\n", read(paths.Blue))
}

func TestSysfs_SkipsMissingChannel(t *testing.T) {
	fs := afero.NewMemMapFs()
	NewSysfs(fs, SysfsPaths{Green: "/leds/g"}).Set(Green)

	b, err := afero.ReadFile(fs, "/leds/g/brightness")
	require.NoError(t, err)
	assert.Equal(t, "8\n", string(b))

	exists, _ := afero.Exists(fs, "brightness")
	assert.False(t, exists)
}

func TestMultiAndFunc(t *testing.T) {
	var got []Color
	rec := Func(func(c Color) { got = append(got, c) })

	Multi{rec, nil, rec}.Set(Blue)
	assert.Equal(t, []Color{Blue, Blue}, got)
}
