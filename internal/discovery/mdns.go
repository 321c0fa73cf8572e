package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/logging"
)

const (
	// ServiceType is the mDNS service type provisioned devices advertise
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the default HTTP port
	DefaultPort = 80

	// TXT record keys
	TxtMarker = "easywifi"
	TxtID     = "id"
	TxtSSID   = "ssid"

	instancePrefix = "EasyWiFi-"
)

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForDevices discovers all provisioned devices on the local network
func (s *Scanner) ScanForDevices(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	var (
		mu      sync.Mutex
		devices = make([]*Device, 0)
		seen    = make(map[string]bool)
	)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			device := s.parseServiceEntry(entry)
			if device == nil {
				continue
			}
			mu.Lock()
			if !seen[device.ID] {
				seen[device.ID] = true
				devices = append(devices, device)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Device(nil), devices...), nil
}

// WaitForDevice waits for a specific device by id
func (s *Scanner) WaitForDevice(ctx context.Context, id string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	deviceChan := make(chan *Device, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			device := s.parseServiceEntry(entry)
			if device != nil && device.ID == id {
				select {
				case deviceChan <- device:
				default:
				}
				cancel() // Found the device, cancel context
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case device := <-deviceChan:
		return device, nil
	case <-ctx.Done():
		select {
		case device := <-deviceChan:
			return device, nil
		default:
		}
		return nil, fmt.Errorf("device %s not found within timeout", id)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Device.
// Returns nil unless the entry carries the easywifi marker and an id.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	if entry == nil {
		return nil
	}

	metadata := parseText(entry.Text)
	if metadata[TxtMarker] != "1" || metadata[TxtID] == "" {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Device{
		ID:           metadata[TxtID],
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// parseText splits TXT strings in "key=value" form. A key without a value
// maps to the empty string.
func parseText(txt []string) map[string]string {
	metadata := make(map[string]string, len(txt))
	for _, t := range txt {
		parts := strings.SplitN(t, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}

// AnnounceOptions describes the advertisement published once a device has
// joined a network.
type AnnounceOptions struct {
	ID   string
	SSID string
	Port int
	TTL  time.Duration
}

// Announcement is a running mDNS registration.
type Announcement struct {
	server *zeroconf.Server
}

// InstanceName derives the advertised instance name from a device id.
func InstanceName(id string) string {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return instancePrefix + short
}

func announceText(opts AnnounceOptions) []string {
	txt := []string{TxtMarker + "=1", TxtID + "=" + opts.ID}
	if opts.SSID != "" {
		txt = append(txt, TxtSSID+"="+opts.SSID)
	}
	return txt
}

// Announce registers the device on all interfaces.
func Announce(opts AnnounceOptions) (*Announcement, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("announce: device id is required")
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}

	server, err := zeroconf.Register(InstanceName(opts.ID), ServiceType, ServiceDomain, port, announceText(opts), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	if opts.TTL > 0 {
		server.TTL(uint32(opts.TTL / time.Second))
	}

	logging.Info("Announcing device over mDNS",
		zap.String("instance", InstanceName(opts.ID)),
		zap.Int("port", port))

	return &Announcement{server: server}, nil
}

// Shutdown withdraws the announcement.
func (a *Announcement) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
}

// ScanForDevices is a convenience function to scan for devices with a custom timeout
func ScanForDevices(ctx context.Context, timeout time.Duration) ([]*Device, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForDevices(ctx)
}

// FindDevice searches for a specific device by id with default timeout
func FindDevice(ctx context.Context, id string) (*Device, error) {
	return NewScanner().WaitForDevice(ctx, id)
}
