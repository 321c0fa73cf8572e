package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/muurk/easywifi/internal/config"
	"github.com/muurk/easywifi/internal/indicator"
	"github.com/muurk/easywifi/internal/provision"
	"github.com/muurk/easywifi/internal/radio"
)

func TestParseSimNetwork(t *testing.T) {
	tests := []struct {
		spec    string
		want    radio.SimNetwork
		wantErr bool
	}{
		{"Home", radio.SimNetwork{SSID: "Home", RSSI: -50}, false},
		{"Home:secret", radio.SimNetwork{SSID: "Home", Password: "secret", RSSI: -50}, false},
		{"Cafe::-70", radio.SimNetwork{SSID: "Cafe", RSSI: -70}, false},
		{"Lab:a:b:-60", radio.SimNetwork{}, true},
		{":pw", radio.SimNetwork{}, true},
		{"Home:pw:loud", radio.SimNetwork{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := parseSimNetwork(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSimNetwork(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseSimNetwork(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestFailureHints(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ap disabled", fmt.Errorf("connect: %w", provision.ErrAPDisabled), "credentials set"},
		{"escape limit", fmt.Errorf("connect: %w", provision.ErrEscapeLimit), "reopen"},
		{"ap unavailable", fmt.Errorf("%w: busy", provision.ErrAPUnavailable), "access point mode"},
		{"other", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hints := failureHints(tt.err)
			if tt.want == "" {
				if len(hints) != 0 {
					t.Errorf("failureHints() = %v, want none", hints)
				}
				return
			}
			if !strings.Contains(strings.Join(hints, "\n"), tt.want) {
				t.Errorf("failureHints() = %v, want a hint mentioning %q", hints, tt.want)
			}
		})
	}
}

func TestBuildRadio(t *testing.T) {
	r, err := buildRadio(config.RadioConfig{Backend: "simulator"})
	if err != nil {
		t.Fatalf("buildRadio(simulator) error = %v", err)
	}
	if _, ok := r.(*radio.Simulator); !ok {
		t.Errorf("buildRadio(simulator) = %T, want *radio.Simulator", r)
	}

	if _, err := buildRadio(config.RadioConfig{Backend: "ham"}); err == nil {
		t.Error("buildRadio(ham) error = nil, want error")
	}
}

func TestBuildIndicator(t *testing.T) {
	if _, ok := buildIndicator(config.IndicatorConfig{Backend: "log"}, false).(indicator.Log); !ok {
		t.Error("log backend should be a plain Log indicator")
	}
	if _, ok := buildIndicator(config.IndicatorConfig{Backend: "terminal"}, true).(indicator.Log); !ok {
		t.Error("terminal backend under the live view should fall back to Log")
	}
	m, ok := buildIndicator(config.IndicatorConfig{Backend: "terminal"}, false).(indicator.Multi)
	if !ok || len(m) != 2 {
		t.Errorf("terminal backend = %#v, want Multi of two", m)
	}
}
