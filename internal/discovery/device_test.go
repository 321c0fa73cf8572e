package discovery

import (
	"testing"
)

func TestDevice_String(t *testing.T) {
	device := &Device{
		ID:       "3f2a9c1e-0000-4000-8000-000000000001",
		Hostname: "garage.local.",
		IP:       "192.168.1.50",
		Port:     80,
	}

	expected := "EasyWiFi Device 3f2a9c1e-0000-4000-8000-000000000001 (garage.local.) at 192.168.1.50:80"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}
}

func TestDevice_BaseURL(t *testing.T) {
	tests := []struct {
		name     string
		device   *Device
		expected string
	}{
		{
			name: "standard HTTP port",
			device: &Device{
				IP:   "192.168.1.50",
				Port: 80,
			},
			expected: "http://192.168.1.50:80",
		},
		{
			name: "custom port",
			device: &Device{
				IP:   "10.0.0.5",
				Port: 8080,
			},
			expected: "http://10.0.0.5:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.BaseURL(); got != tt.expected {
				t.Errorf("Device.BaseURL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDevice_GetMetadata(t *testing.T) {
	device := &Device{
		Metadata: map[string]string{
			TxtMarker: "1",
			TxtSSID:   "Home_Net",
		},
	}

	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{"marker", TxtMarker, "1"},
		{"ssid", TxtSSID, "Home_Net"},
		{"non-existent key", "missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := device.GetMetadata(tt.key); got != tt.expected {
				t.Errorf("Device.GetMetadata(%v) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}

	if got := device.SSID(); got != "Home_Net" {
		t.Errorf("Device.SSID() = %v, want Home_Net", got)
	}
}

func TestDevice_GetMetadata_NilMap(t *testing.T) {
	device := &Device{}

	if got := device.GetMetadata("anything"); got != "" {
		t.Errorf("Device.GetMetadata() with nil map = %v, want empty string", got)
	}
}
