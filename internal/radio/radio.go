package radio

import (
	"errors"
	"fmt"
	"net/netip"
)

// Status is the link state reported by the radio.
type Status int

const (
	StatusIdle Status = iota
	StatusNoSSID
	StatusConnected
	StatusConnectFailed
	StatusConnectionLost
	StatusDisconnected
	StatusAPListening
	StatusAPConnected
	StatusAPFailed
)

// String returns a human-readable name for the status
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusNoSSID:
		return "no-ssid"
	case StatusConnected:
		return "connected"
	case StatusConnectFailed:
		return "connect-failed"
	case StatusConnectionLost:
		return "connection-lost"
	case StatusDisconnected:
		return "disconnected"
	case StatusAPListening:
		return "ap-listening"
	case StatusAPConnected:
		return "ap-connected"
	case StatusAPFailed:
		return "ap-failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ErrScanFailed is returned when the radio cannot produce a scan result.
var ErrScanFailed = errors.New("network scan failed")

// LinkInfo describes the current station link for status output.
type LinkInfo struct {
	SSID    string
	Address netip.Addr
	Gateway netip.Addr
	RSSI    int
}

// Radio is the wireless interface the provisioning flow drives.
type Radio interface {
	// Status returns the current link or access point state.
	Status() Status

	// RSSI returns the signal strength of the current link in dBm, 0 when unknown.
	RSSI() int

	// Connect starts joining a network and returns the resulting status.
	Connect(ssid, password string) Status

	// Scan lists visible network names in the radio's native order.
	Scan() ([]string, error)

	// ConfigureAP sets the static address used by the next StartAP.
	ConfigureAP(addr netip.Addr) error

	// StartAP broadcasts an open access point.
	StartAP(name string, channel int) Status

	// StopAP ends access point mode and releases the radio.
	StopAP() error

	// Disconnect leaves the current network.
	Disconnect() error

	// LinkInfo reports details of the current station link.
	LinkInfo() LinkInfo
}
