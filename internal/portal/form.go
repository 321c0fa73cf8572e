package portal

import (
	"strings"

	"github.com/muurk/easywifi/internal/scanner"
)

// urlDecode decodes %XX escapes and '+' leniently: a '%' always consumes the
// next two characters and yields whatever their leading hex digits parse to,
// or 0 when there are none.
func urlDecode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '%':
			var pair [2]byte
			if i+1 < len(s) {
				pair[0] = s[i+1]
			}
			if i+2 < len(s) {
				pair[1] = s[i+2]
			}
			b.WriteByte(hexPrefix(pair))
			i += 2
		case '+':
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func hexPrefix(pair [2]byte) byte {
	var v byte
	for _, c := range pair {
		d, ok := hexDigit(c)
		if !ok {
			break
		}
		v = v<<4 | d
	}
	return v
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// valueFromBody returns the decoded value following the first occurrence of
// "key=" in body, up to the next '&'. Keys are matched literally, anywhere in
// the body.
func valueFromBody(body, key string) string {
	i := strings.Index(body, key+"=")
	if i < 0 {
		return ""
	}
	v := body[i+len(key)+1:]
	if end := strings.IndexByte(v, '&'); end >= 0 {
		v = v[:end]
	}
	return urlDecode(v)
}

// resolveNetwork maps a single digit that indexes into the scan list to the
// listed name; anything else is taken as the network name itself.
func resolveNetwork(field string, networks *scanner.NetworkList) string {
	if len(field) == 1 && field[0] >= '0' && field[0] <= '9' {
		if name, ok := networks.At(int(field[0] - '0')); ok {
			return name
		}
	}
	return field
}

// networkFromTarget extracts the name after "/enterPassword?network=" up to
// the next space.
func networkFromTarget(line string) string {
	const marker = "/enterPassword?network="
	i := strings.Index(line, marker)
	if i < 0 {
		return ""
	}
	v := line[i+len(marker):]
	if end := strings.IndexByte(v, ' '); end >= 0 {
		v = v[:end]
	}
	return urlDecode(v)
}
