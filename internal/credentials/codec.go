package credentials

const (
	// DefaultSeed is the obfuscation seed used until SetSeed is called.
	DefaultSeed = 4

	// MaxFieldLen is the number of significant bytes kept per field. Each field
	// occupies a 32-byte buffer on the device, terminator included.
	MaxFieldLen = 31

	seedModulus     = 17
	positionModulus = 7
)

// Codec is the positional additive obfuscator applied to both credential
// fields before they reach storage. It deters casual inspection of the file
// and nothing more.
type Codec struct {
	seed int
}

// NewCodec returns a codec using DefaultSeed.
func NewCodec() *Codec {
	return &Codec{seed: DefaultSeed}
}

// Seed returns the current seed.
func (c *Codec) Seed() int {
	return c.seed
}

// SetSeed changes the seed. Negative values are ignored.
func (c *Codec) SetSeed(seed int) {
	if seed < 0 {
		return
	}
	c.seed = seed
}

// Encode obfuscates plain up to its first NUL byte or MaxFieldLen bytes,
// whichever comes first: cipher[i] = plain[i] + (seed mod 17) - (i mod 7).
func (c *Codec) Encode(plain []byte) []byte {
	n := significantLen(plain)
	shift := byte(c.seed % seedModulus)

	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = plain[i] + shift - byte(i%positionModulus)
	}
	return out
}

// Decode reverses Encode.
func (c *Codec) Decode(cipher []byte) []byte {
	n := significantLen(cipher)
	shift := byte(c.seed % seedModulus)

	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = cipher[i] - shift + byte(i%positionModulus)
	}
	return out
}

func significantLen(b []byte) int {
	n := 0
	for n < len(b) && n < MaxFieldLen && b[n] != 0 {
		n++
	}
	return n
}
