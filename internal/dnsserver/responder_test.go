package dnsserver

import (
	"net"
	"net/netip"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/easywifi/internal/fakenet"
)

var deviceAddr = netip.MustParseAddr("42.7.9.1")

func packQuery(t *testing.T, id uint16, name string, qtype uint16) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.Id = id
	b, err := m.Pack()
	require.NoError(t, err)
	return b
}

func newResponder() (*Responder, *fakenet.PacketConn) {
	conn := fakenet.NewPacketConn(&net.UDPAddr{IP: net.IP(deviceAddr.AsSlice()), Port: DefaultPort})
	return NewResponder(conn, deviceAddr), conn
}

func TestBuildReply_MirrorsIDAndAnswersWithAddress(t *testing.T) {
	query := packQuery(t, 0xABCD, "www.example.com", dns.TypeA)
	reply := BuildReply(query, deviceAddr.As4())

	assert.Equal(t, []byte{0xAB, 0xCD}, reply[:2])
	assert.Equal(t, []byte{42, 7, 9, 1}, reply[len(reply)-4:])
	assert.Len(t, reply, len(query)+AnswerSize)

	var msg dns.Msg
	require.NoError(t, msg.Unpack(reply))
	assert.True(t, msg.Response)
	assert.Equal(t, uint16(0xABCD), msg.Id)
	require.Len(t, msg.Question, 1)
	assert.Equal(t, "www.example.com.", msg.Question[0].Name)
	require.Len(t, msg.Answer, 1)

	a, ok := msg.Answer[0].(*dns.A)
	require.True(t, ok, "answer is %T", msg.Answer[0])
	assert.Equal(t, "www.example.com.", a.Hdr.Name)
	assert.Equal(t, uint32(TTL), a.Hdr.Ttl)
	assert.True(t, a.A.Equal(net.IPv4(42, 7, 9, 1)))
}

func TestBuildReply_AnswersEveryType(t *testing.T) {
	for _, qtype := range []uint16{dns.TypeAAAA, dns.TypeMX, dns.TypeTXT} {
		reply := BuildReply(packQuery(t, 7, "captive.apple.com", qtype), deviceAddr.As4())

		var msg dns.Msg
		require.NoError(t, msg.Unpack(reply))
		require.Len(t, msg.Answer, 1)
		assert.Equal(t, dns.TypeA, msg.Answer[0].Header().Rrtype, "qtype %s", dns.TypeToString[qtype])
	}
}

func TestBuildReply_TruncatedQuery(t *testing.T) {
	tests := []struct {
		name  string
		query []byte
	}{
		{"empty", nil},
		{"id only", []byte{0x12, 0x34}},
		{"header only", make([]byte, HeaderSize)},
		{"unterminated name", append(make([]byte, HeaderSize), 3, 'w', 'w', 'w')},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reply []byte
			assert.NotPanics(t, func() { reply = BuildReply(tt.query, deviceAddr.As4()) })
			assert.GreaterOrEqual(t, len(reply), HeaderSize+questionTail+AnswerSize)
			assert.Equal(t, []byte{42, 7, 9, 1}, reply[len(reply)-4:])
		})
	}
}

func TestResponder_PollOnce(t *testing.T) {
	r, conn := newResponder()
	client := &net.UDPAddr{IP: net.IPv4(42, 7, 9, 23), Port: 50123}
	conn.Deliver(packQuery(t, 0xABCD, "www.example.com", dns.TypeA), client)

	assert.True(t, r.PollOnce())
	assert.Equal(t, 1, r.Requests())

	sent := conn.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, client.String(), sent[0].Addr.String())
	assert.Equal(t, []byte{0xAB, 0xCD}, sent[0].Data[:2])
	assert.Equal(t, []byte{42, 7, 9, 1}, sent[0].Data[len(sent[0].Data)-4:])
}

func TestResponder_IgnoresOwnAddress(t *testing.T) {
	r, conn := newResponder()
	conn.Deliver(packQuery(t, 1, "pool.ntp.org", dns.TypeA), &net.UDPAddr{IP: net.IPv4(42, 7, 9, 1), Port: 4000})

	assert.False(t, r.PollOnce())
	assert.Empty(t, conn.Sent())
	assert.Zero(t, r.Requests())
}

func TestResponder_NoDatagram(t *testing.T) {
	r, conn := newResponder()
	assert.False(t, r.PollOnce())
	assert.Empty(t, conn.Sent())
}

func TestResponder_OneReplyPerPoll(t *testing.T) {
	r, conn := newResponder()
	client := &net.UDPAddr{IP: net.IPv4(42, 7, 9, 23), Port: 50123}
	conn.Deliver(packQuery(t, 1, "a.example", dns.TypeA), client)
	conn.Deliver(packQuery(t, 2, "b.example", dns.TypeA), client)

	r.PollOnce()
	assert.Len(t, conn.Sent(), 1)
	r.PollOnce()
	assert.Len(t, conn.Sent(), 2)
	assert.Equal(t, 2, r.Requests())

	r.ResetRequests()
	assert.Zero(t, r.Requests())
}

func TestResponder_RetriesSend(t *testing.T) {
	r, conn := newResponder()
	client := &net.UDPAddr{IP: net.IPv4(42, 7, 9, 23), Port: 50123}

	conn.FailWrites(sendAttempts - 1)
	conn.Deliver(packQuery(t, 1, "a.example", dns.TypeA), client)
	assert.True(t, r.PollOnce())
	assert.Len(t, conn.Sent(), 1)

	conn.FailWrites(sendAttempts)
	conn.Deliver(packQuery(t, 2, "b.example", dns.TypeA), client)
	assert.False(t, r.PollOnce())
	assert.Len(t, conn.Sent(), 1)
	assert.Equal(t, 1, r.Requests())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "www.example.com. A", describe(packQuery(t, 1, "www.example.com", dns.TypeA)))
	assert.Equal(t, "malformed", describe([]byte{1, 2, 3}))
}
