package radio

import (
	"fmt"
	"net/netip"
	"sync"
)

// SimNetwork is a network visible to the Simulator.
type SimNetwork struct {
	SSID     string
	Password string
	RSSI     int
}

// Simulator is an in-memory Radio. It backs `easywifi simulate` and the tests.
type Simulator struct {
	mu sync.Mutex

	networks      []SimNetwork
	scanErr       error
	apFailures    int
	clientPresent bool

	status    Status
	connected *SimNetwork
	apName    string
	apAddr    netip.Addr
	apActive  bool

	connectCalls int
	apStarts     int
}

// NewSimulator creates a simulator that can see the given networks.
func NewSimulator(networks ...SimNetwork) *Simulator {
	return &Simulator{
		networks: networks,
		status:   StatusIdle,
	}
}

// SetScanError makes every Scan fail with err.
func (s *Simulator) SetScanError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanErr = err
}

// FailAPStarts makes the next n StartAP calls fail.
func (s *Simulator) FailAPStarts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apFailures = n
}

// SetClientPresent simulates a phone joining or leaving the access point.
func (s *Simulator) SetClientPresent(present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientPresent = present
}

// AddNetwork makes another network visible.
func (s *Simulator) AddNetwork(n SimNetwork) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks = append(s.networks, n)
}

// ConnectCalls returns how many times Connect was called.
func (s *Simulator) ConnectCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectCalls
}

// APStarts returns how many times StartAP was called.
func (s *Simulator) APStarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apStarts
}

// APAddr returns the address configured for the access point.
func (s *Simulator) APAddr() netip.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apAddr
}

func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.apActive {
		if s.clientPresent {
			return StatusAPConnected
		}
		return StatusAPListening
	}
	return s.status
}

func (s *Simulator) RSSI() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected == nil {
		return 0
	}
	return s.connected.RSSI
}

func (s *Simulator) Connect(ssid, password string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connectCalls++
	s.apActive = false
	s.connected = nil

	for i := range s.networks {
		n := &s.networks[i]
		if n.SSID != ssid {
			continue
		}
		if n.Password != password {
			s.status = StatusConnectFailed
			return s.status
		}
		s.connected = n
		s.status = StatusConnected
		return s.status
	}

	s.status = StatusNoSSID
	return s.status
}

func (s *Simulator) Scan() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrScanFailed, s.scanErr)
	}
	names := make([]string, len(s.networks))
	for i, n := range s.networks {
		names[i] = n.SSID
	}
	return names, nil
}

func (s *Simulator) ConfigureAP(addr netip.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apAddr = addr
	return nil
}

func (s *Simulator) StartAP(name string, channel int) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apStarts++
	if s.apFailures > 0 {
		s.apFailures--
		s.apActive = false
		return StatusAPFailed
	}
	s.apName = name
	s.apActive = true
	s.connected = nil
	if s.clientPresent {
		return StatusAPConnected
	}
	return StatusAPListening
}

func (s *Simulator) StopAP() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apActive = false
	s.connected = nil
	s.status = StatusIdle
	return nil
}

func (s *Simulator) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = nil
	s.status = StatusDisconnected
	return nil
}

func (s *Simulator) LinkInfo() LinkInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected == nil {
		return LinkInfo{}
	}
	return LinkInfo{
		SSID:    s.connected.SSID,
		Address: netip.AddrFrom4([4]byte{192, 168, 1, 50}),
		Gateway: netip.AddrFrom4([4]byte{192, 168, 1, 1}),
		RSSI:    s.connected.RSSI,
	}
}
