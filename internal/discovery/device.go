package discovery

import (
	"fmt"
	"time"
)

// Device represents a provisioned easywifi device found on the network
type Device struct {
	// ID is the device id from the configuration (a UUID)
	ID string

	// Instance is the advertised mDNS instance name (e.g., "EasyWiFi-3f2a9c1e")
	Instance string

	// Hostname is the mDNS hostname (e.g., "garage.local.")
	Hostname string

	// IP is the device address, IPv4 preferred
	IP string

	// Port is the advertised HTTP port (typically 80)
	Port int

	// Metadata contains the mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("EasyWiFi Device %s (%s) at %s:%d", d.ID, d.Hostname, d.IP, d.Port)
}

// BaseURL returns the HTTP base URL for the device
func (d *Device) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", d.IP, d.Port)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

// SSID returns the network the device joined, when it advertised one.
func (d *Device) SSID() string {
	return d.GetMetadata(TxtSSID)
}
