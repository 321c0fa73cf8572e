// Package dnsserver implements the captive-portal DNS responder: every query
// is answered with the device's own IPv4 address.
package dnsserver

import (
	"errors"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/logging"
	"github.com/muurk/easywifi/internal/telemetry"
)

const (
	// DefaultPort is the standard DNS port.
	DefaultPort = 53

	// DefaultPollTimeout is how long PollOnce waits for a datagram.
	DefaultPollTimeout = 10 * time.Millisecond

	sendAttempts = 3
)

// Responder answers DNS queries on a packet connection, one per poll.
type Responder struct {
	conn        net.PacketConn
	addr        netip.Addr
	octets      [4]byte
	pollTimeout time.Duration
	requests    int
	buf         [PacketSize]byte
}

// NewResponder creates a responder that answers with addr, which must be an
// IPv4 address.
func NewResponder(conn net.PacketConn, addr netip.Addr) *Responder {
	return &Responder{
		conn:        conn,
		addr:        addr,
		octets:      addr.As4(),
		pollTimeout: DefaultPollTimeout,
	}
}

// SetPollTimeout changes how long PollOnce waits for a datagram.
func (r *Responder) SetPollTimeout(d time.Duration) {
	r.pollTimeout = d
}

// Requests returns the number of replies sent since the last reset.
func (r *Responder) Requests() int {
	return r.requests
}

// ResetRequests zeroes the diagnostic request counter.
func (r *Responder) ResetRequests() {
	r.requests = 0
}

// Close releases the underlying connection.
func (r *Responder) Close() error {
	return r.conn.Close()
}

// PollOnce handles at most one waiting datagram. It reports whether a reply
// was sent.
func (r *Responder) PollOnce() bool {
	_ = r.conn.SetReadDeadline(time.Now().Add(r.pollTimeout))

	n, from, err := r.conn.ReadFrom(r.buf[:])
	if err != nil {
		var ne net.Error
		if !errors.As(err, &ne) || !ne.Timeout() {
			logging.Debug("DNS read failed", zap.Error(err))
		}
		return false
	}
	if n == 0 {
		return false
	}

	query := r.buf[:n]
	src := sourceAddr(from)
	if src == r.addr {
		telemetry.DNSQueries.WithLabelValues("ignored").Inc()
		return false
	}

	if logging.GetLogger().Core().Enabled(zap.DebugLevel) {
		logging.Debug("DNS query",
			zap.String("from", from.String()),
			zap.Int("bytes", n),
			zap.String("question", describe(query)),
		)
		logging.LogRawBytes("DNS query", query)
	}

	reply := BuildReply(query, r.octets)
	logging.LogRawBytes("DNS reply", reply)

	var werr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if _, werr = r.conn.WriteTo(reply, from); werr == nil {
			break
		}
		logging.Debug("DNS send failed", zap.Int("attempt", attempt), zap.Error(werr))
	}
	if werr != nil {
		telemetry.DNSQueries.WithLabelValues("send_failed").Inc()
		logging.Warn("DNS reply dropped", zap.String("to", from.String()), zap.Error(werr))
		return false
	}

	r.requests++
	telemetry.DNSQueries.WithLabelValues("answered").Inc()
	return true
}

func sourceAddr(a net.Addr) netip.Addr {
	switch v := a.(type) {
	case *net.UDPAddr:
		ip, _ := netip.AddrFromSlice(v.IP)
		return ip.Unmap()
	default:
		ap, err := netip.ParseAddrPort(a.String())
		if err != nil {
			return netip.Addr{}
		}
		return ap.Addr().Unmap()
	}
}

// describe decodes the question for logging; malformed queries are still
// answered, they just log as such.
func describe(query []byte) string {
	var msg dns.Msg
	if err := msg.Unpack(query); err != nil || len(msg.Question) == 0 {
		return "malformed"
	}
	q := msg.Question[0]
	return q.Name + " " + dns.TypeToString[q.Qtype]
}
