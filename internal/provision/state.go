package provision

import (
	"fmt"
	"net/netip"

	"github.com/muurk/easywifi/internal/indicator"
)

// State is the connection state of the device.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAPListening
	StateAPClientPresent
	StateFailed
)

var stateNames = []string{
	"disconnected",
	"connecting",
	"connected",
	"ap-listening",
	"ap-client-present",
	"failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StateNames lists every state name, in order.
func StateNames() []string {
	return append([]string(nil), stateNames...)
}

// Outcome is how a Start call ended.
type Outcome int

const (
	OutcomeConnected Outcome = iota
	OutcomeFailed
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConnected:
		return "connected"
	case OutcomeFailed:
		return "failed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result summarises a Start call.
type Result struct {
	Outcome    Outcome
	Reason     error // nil when connected
	SSID       string
	Attempts   int // connect attempts across all cycles
	APSessions int
}

// Event is published to observers on every state or colour change.
type Event struct {
	State      State
	Color      indicator.Color
	SSID       string
	Attempts   int // attempts this cycle
	Total      int
	APSessions int
	APName     string
	APAddr     netip.Addr
	Requests   int // DNS replies since the last client joined
	Networks   []string
}
