package config

import (
	"time"

	"github.com/google/uuid"
)

// Config represents the entire configuration file.
type Config struct {
	Version     int                `yaml:"version"`
	DeviceID    string             `yaml:"device_id"`
	LogLevel    string             `yaml:"log_level,omitempty"`
	AccessPoint AccessPointConfig  `yaml:"access_point"`
	Credentials CredentialsConfig  `yaml:"credentials"`
	Indicator   IndicatorConfig    `yaml:"indicator"`
	Radio       RadioConfig        `yaml:"radio"`
	Portal      PortalConfig       `yaml:"portal"`
	Announce    AnnounceConfig     `yaml:"announce"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by device id, filled by discover
}

// AccessPointConfig controls the fallback access point.
type AccessPointConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`    // Broadcast SSID, at most 31 bytes
	Channel int    `yaml:"channel"` // 2.4 GHz channel
}

// CredentialsConfig controls where and how the credential record is kept.
type CredentialsConfig struct {
	Path             string `yaml:"path"`
	Seed             int    `yaml:"seed"`
	FallbackSSID     string `yaml:"fallback_ssid"`     // Tried when nothing is stored
	FallbackPassword string `yaml:"fallback_password"` // Not a secret: a placeholder
}

// IndicatorConfig selects the status light backend.
type IndicatorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend"` // log, terminal or sysfs
	Red     string `yaml:"red,omitempty"`
	Green   string `yaml:"green,omitempty"`
	Blue    string `yaml:"blue,omitempty"`
}

// RadioConfig selects the wireless backend.
type RadioConfig struct {
	Backend   string `yaml:"backend"` // nmcli or simulator
	Interface string `yaml:"interface"`
}

// PortalConfig controls the captive portal services.
type PortalConfig struct {
	HTTPPort        int           `yaml:"http_port"`
	DNSPort         int           `yaml:"dns_port"`
	Legacy          bool          `yaml:"legacy"` // Serve the single-form page instead of the picker
	ConnectOnSubmit bool          `yaml:"connect_on_submit"`
	Tick            time.Duration `yaml:"tick"`
	ClientTimeout   time.Duration `yaml:"client_timeout"` // 0 disables the per-client limit
}

// AnnounceConfig controls the mDNS announcement after provisioning.
type AnnounceConfig struct {
	Enabled bool          `yaml:"enabled"`
	Port    int           `yaml:"port"`
	TTL     time.Duration `yaml:"ttl"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"` // Empty disables /metrics
}

// Device is what we remember about a device seen by discover.
type Device struct {
	Nickname string    `yaml:"nickname,omitempty"`
	LastIP   string    `yaml:"last_ip,omitempty"`
	Hostname string    `yaml:"hostname,omitempty"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Default returns a configuration with default values and a fresh device id.
func Default() *Config {
	return &Config{
		Version:  1,
		DeviceID: uuid.NewString(),
		AccessPoint: AccessPointConfig{
			Enabled: true,
			Name:    "EasyWiFi_AP",
			Channel: 5,
		},
		Credentials: CredentialsConfig{
			Seed:             4,
			FallbackSSID:     "UnKnownWireless",
			FallbackPassword: "NoPassword",
		},
		Indicator: IndicatorConfig{
			Enabled: true,
			Backend: "log",
		},
		Radio: RadioConfig{
			Backend:   "nmcli",
			Interface: "wlan0",
		},
		Portal: PortalConfig{
			HTTPPort:        80,
			DNSPort:         53,
			ConnectOnSubmit: true,
			Tick:            10 * time.Millisecond,
		},
		Announce: AnnounceConfig{
			Enabled: false,
			Port:    80,
			TTL:     2 * time.Minute,
		},
		Devices: make(map[string]*Device),
	}
}

// GetDevice retrieves a remembered device by id.
// Returns nil if the device is unknown.
func (c *Config) GetDevice(id string) *Device {
	return c.Devices[id]
}

// EnsureDevice ensures a device entry exists and returns it.
func (c *Config) EnsureDevice(id string) *Device {
	if c.Devices == nil {
		c.Devices = make(map[string]*Device)
	}

	if device, exists := c.Devices[id]; exists {
		return device
	}

	device := &Device{}
	c.Devices[id] = device
	return device
}

// UpdateDeviceLastSeen updates the last seen timestamp, address and hostname.
func (c *Config) UpdateDeviceLastSeen(id, ip, hostname string) {
	device := c.EnsureDevice(id)
	device.LastSeen = time.Now()
	device.LastIP = ip
	if hostname != "" {
		device.Hostname = hostname
	}
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (c *Config) SetDeviceNickname(id, nickname string) {
	device := c.EnsureDevice(id)
	device.Nickname = nickname
}
