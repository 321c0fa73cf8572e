// Package scanner captures a bounded snapshot of visible network names for
// the portal's picker page.
package scanner

import (
	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/logging"
)

const (
	// MaxNetworks is the number of names kept from a scan.
	MaxNetworks = 10

	// MaxNameLen is the number of significant bytes kept per name.
	MaxNameLen = 31
)

// Source produces network names in the radio's native order.
type Source interface {
	Scan() ([]string, error)
}

// NetworkList is an ordered, bounded list of network names.
type NetworkList struct {
	names [MaxNetworks]string
	count int
}

// NewNetworkList builds a list from names, keeping the first MaxNetworks and
// truncating each to MaxNameLen bytes.
func NewNetworkList(names ...string) *NetworkList {
	l := &NetworkList{}
	for _, n := range names {
		if l.count == MaxNetworks {
			break
		}
		if len(n) > MaxNameLen {
			n = n[:MaxNameLen]
		}
		l.names[l.count] = n
		l.count++
	}
	return l
}

// Len returns the number of entries, at most MaxNetworks.
func (l *NetworkList) Len() int {
	if l == nil {
		return 0
	}
	return l.count
}

// At returns entry i and whether it exists.
func (l *NetworkList) At(i int) (string, bool) {
	if l == nil || i < 0 || i >= l.count {
		return "", false
	}
	return l.names[i], true
}

// Names returns a copy of the entries in order.
func (l *NetworkList) Names() []string {
	if l == nil {
		return nil
	}
	out := make([]string, l.count)
	copy(out, l.names[:l.count])
	return out
}

// Scan asks src for visible networks and keeps the first MaxNetworks. A scan
// failure yields an empty list.
func Scan(src Source) *NetworkList {
	names, err := src.Scan()
	if err != nil {
		logging.Warn("Network scan failed", zap.Error(err))
		return &NetworkList{}
	}

	list := NewNetworkList(names...)
	logging.Info("Scanned networks",
		zap.Int("found", len(names)),
		zap.Int("kept", list.Len()),
	)
	for i, n := range list.Names() {
		logging.Debug("Network", zap.Int("index", i), zap.String("ssid", n))
	}
	return list
}
