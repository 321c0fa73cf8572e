package provision

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/easywifi/internal/credentials"
	"github.com/muurk/easywifi/internal/fakenet"
	"github.com/muurk/easywifi/internal/indicator"
	"github.com/muurk/easywifi/internal/radio"
)

var phone = &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 5353}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) total() time.Duration {
	var sum time.Duration
	for _, d := range c.sleeps {
		sum += d
	}
	return sum
}

// fakeTransport hands out fresh in-memory sockets per access point session
// and lets the test script what arrives on them.
type fakeTransport struct {
	onOpen    func(session int, pc *fakenet.PacketConn, l *fakenet.Listener)
	packetErr error
	conns     []*fakenet.PacketConn
	listeners []*fakenet.Listener
}

func (f *fakeTransport) ListenPacket(port int) (net.PacketConn, error) {
	if f.packetErr != nil {
		return nil, f.packetErr
	}
	pc := fakenet.NewPacketConn(&net.UDPAddr{Port: port})
	f.conns = append(f.conns, pc)
	return pc, nil
}

func (f *fakeTransport) Listen(port int) (net.Listener, error) {
	l := fakenet.NewListener(&net.TCPAddr{Port: port})
	f.listeners = append(f.listeners, l)
	if f.onOpen != nil {
		f.onOpen(len(f.listeners), f.conns[len(f.conns)-1], l)
	}
	return l, nil
}

type recorder struct {
	colors []indicator.Color
}

func (r *recorder) Set(c indicator.Color) { r.colors = append(r.colors, c) }

func postConnect(ssid, password string) string {
	body := "network=" + ssid + "&password=" + password
	return "POST /connect HTTP/1.1\r\n" +
		"Host: portal\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"\r\n" + body
}

func dnsQuery(t *testing.T, name string) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	m.Id = 0x1234
	b, err := m.Pack()
	require.NoError(t, err)
	return b
}

type harness struct {
	sim       *radio.Simulator
	store     *credentials.Handler
	led       *recorder
	clock     *fakeClock
	transport *fakeTransport
	p         *Provisioner
}

func newHarness(t *testing.T, opts Options, networks ...radio.SimNetwork) *harness {
	t.Helper()
	h := &harness{
		sim:       radio.NewSimulator(networks...),
		store:     credentials.NewHandler(afero.NewMemMapFs(), "/data/WifiCredentials"),
		led:       &recorder{},
		clock:     &fakeClock{now: time.Unix(1700000000, 0)},
		transport: &fakeTransport{},
	}
	h.p = New(Deps{
		Radio:     h.sim,
		Store:     h.store,
		Indicator: h.led,
		Transport: h.transport,
		Clock:     h.clock,
		Rand:      rand.New(rand.NewPCG(1, 2)),
	}, opts)
	return h
}

var homeNet = radio.SimNetwork{SSID: "Home_Net", Password: "s3cr3t!", RSSI: -50}

func TestStart_AlreadyConnected(t *testing.T) {
	h := newHarness(t, Options{}, homeNet)
	require.Equal(t, radio.StatusConnected, h.sim.Connect("Home_Net", "s3cr3t!"))

	res, err := h.p.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeConnected, res.Outcome)
	assert.Equal(t, "Home_Net", res.SSID)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, []indicator.Color{indicator.Green}, h.led.colors)
	assert.Equal(t, 1, h.sim.ConnectCalls())
	assert.Equal(t, StateConnected, h.p.State())
}

func TestStart_StoredCredentials(t *testing.T) {
	h := newHarness(t, Options{}, homeNet)
	_, err := h.store.Write(credentials.Credential{SSID: "Home_Net", Password: "s3cr3t!"})
	require.NoError(t, err)

	res, err := h.p.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeConnected, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []indicator.Color{indicator.Blue, indicator.Green}, h.led.colors)
	assert.Equal(t, []time.Duration{SettleDelay}, h.clock.sleeps)
}

func TestStart_NoRecordAPDisabled(t *testing.T) {
	h := newHarness(t, Options{DisableAP: true}, homeNet)

	res, err := h.p.Start(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrAPDisabled)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, MaxConnect, res.Attempts)
	assert.Equal(t, 0, res.APSessions)
	assert.Equal(t, "UnKnownWireless", res.SSID)
	assert.Equal(t, []indicator.Color{indicator.Orange, indicator.Blue, indicator.Red, indicator.Red}, h.led.colors)
	assert.Equal(t, StateFailed, h.p.State())
	assert.Equal(t, 0, h.sim.APStarts())
}

func TestStart_EscapeBound(t *testing.T) {
	h := newHarness(t, Options{}, homeNet)
	h.transport.onOpen = func(_ int, _ *fakenet.PacketConn, l *fakenet.Listener) {
		l.Enqueue(fakenet.NewConn(postConnect("Ghost", "nope"), phone))
	}

	res, err := h.p.Start(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrEscapeLimit)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindUnavailable, kind)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 16, res.Attempts)
	assert.Equal(t, 3, res.APSessions)
	assert.Equal(t, 16, h.sim.ConnectCalls())
	assert.Equal(t, 3, h.sim.APStarts())
}

func TestStart_PortalFlow(t *testing.T) {
	h := newHarness(t, Options{}, homeNet, radio.SimNetwork{SSID: "Cafe Guest", RSSI: -70})

	var page *fakenet.Conn
	h.transport.onOpen = func(_ int, pc *fakenet.PacketConn, l *fakenet.Listener) {
		pc.Deliver(dnsQuery(t, "connectivitycheck.gstatic.com"), phone)
		page = fakenet.NewConn(postConnect("Home_Net", "s3cr3t%21"), phone)
		l.Enqueue(page)
	}

	var events []Event
	h.p.Observe(func(ev Event) { events = append(events, ev) })

	res, err := h.p.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeConnected, res.Outcome)
	assert.Equal(t, "Home_Net", res.SSID)
	assert.Equal(t, 5, res.Attempts)
	assert.Equal(t, 1, res.APSessions)
	assert.Equal(t, []indicator.Color{
		indicator.Orange,
		indicator.Blue,
		indicator.Red,
		indicator.Purple,
		indicator.Blue,
		indicator.Green,
	}, h.led.colors)

	// The submission was persisted.
	var stored credentials.Credential
	require.Positive(t, h.store.Read(&stored))
	assert.Equal(t, credentials.Credential{SSID: "Home_Net", Password: "s3cr3t!"}, stored)

	// The DNS query was answered with the access point address.
	sent := h.transport.conns[0].Sent()
	require.Len(t, sent, 1)
	reply := new(dns.Msg)
	require.NoError(t, reply.Unpack(sent[0].Data))
	require.Len(t, reply.Answer, 1)
	a, ok := reply.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, h.sim.APAddr().String(), a.A.String())

	assert.True(t, strings.HasPrefix(page.Written(), "HTTP/1.1 200 OK"))
	assert.True(t, page.Closed())

	// The scan reached observers.
	var sawNetworks bool
	for _, ev := range events {
		if ev.State == StateAPListening && len(ev.Networks) == 2 {
			sawNetworks = true
		}
	}
	assert.True(t, sawNetworks)

	assert.Equal(t, 4*SettleDelay+APWarmup+TeardownDelay+SettleDelay, h.clock.total())
}

func TestStart_ClientPresentTurnsCyan(t *testing.T) {
	h := newHarness(t, Options{}, homeNet)
	h.sim.SetClientPresent(true)
	h.transport.onOpen = func(_ int, _ *fakenet.PacketConn, l *fakenet.Listener) {
		l.Enqueue(fakenet.NewConn(postConnect("Home_Net", "s3cr3t!"), phone))
	}

	var states []State
	h.p.Observe(func(ev Event) {
		if len(states) == 0 || states[len(states)-1] != ev.State {
			states = append(states, ev.State)
		}
	})

	_, err := h.p.Start(context.Background())
	require.NoError(t, err)

	assert.Contains(t, h.led.colors, indicator.Cyan)
	assert.Contains(t, states, StateAPClientPresent)
}

func TestStart_ConnectOnSubmit(t *testing.T) {
	h := newHarness(t, Options{ConnectOnSubmit: true}, homeNet)
	var page *fakenet.Conn
	h.transport.onOpen = func(_ int, _ *fakenet.PacketConn, l *fakenet.Listener) {
		page = fakenet.NewConn(postConnect("Home_Net", "s3cr3t!"), phone)
		l.Enqueue(page)
	}

	res, err := h.p.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeConnected, res.Outcome)
	// 4 failed fallback tries, 1 immediate portal try, 1 after teardown.
	assert.Equal(t, 6, h.sim.ConnectCalls())
	assert.Equal(t, 5, res.Attempts)
	assert.Contains(t, page.Written(), "Network Connection Successful")
}

func TestStart_LegacyForm(t *testing.T) {
	h := newHarness(t, Options{Legacy: true}, homeNet)
	h.transport.onOpen = func(_ int, _ *fakenet.PacketConn, l *fakenet.Listener) {
		req := "POST /checkpass.php HTTP/1.1\r\nHost: portal\r\n\r\nXXID=Home_Net&XXPS=s3cr3t!&action=submit\r\n"
		l.Enqueue(fakenet.NewConn(req, phone))
	}

	res, err := h.p.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConnected, res.Outcome)
	assert.Equal(t, "Home_Net", res.SSID)
}

func TestStart_APUnavailable(t *testing.T) {
	h := newHarness(t, Options{}, homeNet)
	h.sim.FailAPStarts(APStartTries)

	res, err := h.p.Start(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrAPUnavailable)
	kind, _ := KindOf(err)
	assert.Equal(t, KindUnavailable, kind)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, APStartTries, h.sim.APStarts())
	assert.Equal(t, radio.StatusIdle, h.sim.Status())
}

func TestStart_SocketUnavailable(t *testing.T) {
	h := newHarness(t, Options{}, homeNet)
	h.transport.packetErr = errors.New("address in use")

	_, err := h.p.Start(context.Background())
	require.Error(t, err)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "open_dns", pe.Op)
	assert.Equal(t, KindUnavailable, pe.Kind)
	assert.NotEqual(t, radio.StatusAPListening, h.sim.Status())
}

func TestStart_Canceled(t *testing.T) {
	h := newHarness(t, Options{}, homeNet)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.p.Observe(func(ev Event) {
		if ev.State == StateAPListening {
			cancel()
		}
	})

	res, err := h.p.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeCanceled, res.Outcome)
	assert.Equal(t, 1, res.APSessions)
	assert.Len(t, h.transport.listeners, 1)
	assert.NotEqual(t, radio.StatusAPListening, h.sim.Status())
}

func TestStart_Restartable(t *testing.T) {
	h := newHarness(t, Options{DisableAP: true}, homeNet)

	_, err := h.p.Start(context.Background())
	require.Error(t, err)

	_, err = h.store.Write(credentials.Credential{SSID: "Home_Net", Password: "s3cr3t!"})
	require.NoError(t, err)

	res, err := h.p.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
}

func TestIsConnected(t *testing.T) {
	tests := []struct {
		name string
		rssi int
		want bool
	}{
		{"strong", -50, true},
		{"just above threshold", -89, true},
		{"at threshold", -90, false},
		{"below threshold", -95, false},
		{"zero reading", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{}, radio.SimNetwork{SSID: "N", Password: "p", RSSI: tt.rssi})
			require.Equal(t, radio.StatusConnected, h.sim.Connect("N", "p"))
			assert.Equal(t, tt.want, h.p.IsConnected())
		})
	}

	h := newHarness(t, Options{})
	assert.False(t, h.p.IsConnected())
}

func TestRandomAddress(t *testing.T) {
	h := newHarness(t, Options{})
	for i := 0; i < 2000; i++ {
		a := h.p.randomAddress().As4()
		require.GreaterOrEqual(t, a[0], byte(11))
		require.LessOrEqual(t, a[0], byte(171))
		require.LessOrEqual(t, a[1], byte(254))
		require.LessOrEqual(t, a[2], byte(254))
		require.Equal(t, byte(1), a[3])
	}

	h.p.apAddr = h.p.randomAddress()
	prefix := h.p.APPrefix()
	assert.Equal(t, 24, prefix.Bits())
	assert.True(t, prefix.Contains(h.p.apAddr))
}

func TestSetAccessPointName(t *testing.T) {
	h := newHarness(t, Options{})
	assert.Equal(t, DefaultAPName, h.p.AccessPointName())

	h.p.SetAccessPointName("Kitchen_Setup")
	assert.Equal(t, "Kitchen_Setup", h.p.AccessPointName())

	h.p.SetAccessPointName(strings.Repeat("a", 40))
	assert.Equal(t, strings.Repeat("a", MaxAPNameLen), h.p.AccessPointName())

	h.p.SetAccessPointName("")
	assert.Equal(t, strings.Repeat("a", MaxAPNameLen), h.p.AccessPointName())

	h = newHarness(t, Options{APName: "FromOptions"})
	assert.Equal(t, "FromOptions", h.p.AccessPointName())
}

func TestSetSeed(t *testing.T) {
	h := newHarness(t, Options{Seed: 9})
	assert.Equal(t, 9, h.store.Codec().Seed())

	h.p.SetSeed(-3)
	assert.Equal(t, 9, h.store.Codec().Seed())

	h.p.SetSeed(12)
	assert.Equal(t, 12, h.store.Codec().Seed())
}

func TestUseLED(t *testing.T) {
	h := newHarness(t, Options{}, homeNet)
	_, err := h.store.Write(credentials.Credential{SSID: "Home_Net", Password: "s3cr3t!"})
	require.NoError(t, err)

	h.p.UseLED(false)
	assert.Equal(t, []indicator.Color{indicator.Black}, h.led.colors)

	_, err = h.p.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []indicator.Color{indicator.Black}, h.led.colors)

	h = newHarness(t, Options{DisableLED: true}, homeNet)
	h.p.UseLED(false)
	assert.Empty(t, h.led.colors)
}

func TestUseAccessPoint(t *testing.T) {
	h := newHarness(t, Options{}, homeNet)
	h.p.UseAccessPoint(false)

	_, err := h.p.Start(context.Background())
	assert.ErrorIs(t, err, ErrAPDisabled)
}

func TestErase(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.store.Write(credentials.Credential{SSID: "Home_Net", Password: "s3cr3t!"})
	require.NoError(t, err)

	assert.True(t, h.p.Erase())
	assert.False(t, h.store.Check())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ap-client-present", StateAPClientPresent.String())
	assert.Equal(t, "State(99)", State(99).String())
	assert.Len(t, StateNames(), int(StateFailed)+1)
	assert.Equal(t, "canceled", OutcomeCanceled.String())
}

func TestError(t *testing.T) {
	cause := errors.New("boom")
	err := newError(KindTransient, "send", "reply dropped", cause)

	assert.Equal(t, "Transient send: reply dropped (caused by: boom)", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))

	plain := newError(KindMalformed, "submit", "field too long", nil)
	assert.Equal(t, "Malformed submit: field too long", plain.Error())
	assert.False(t, IsRetryable(plain))

	_, ok := KindOf(cause)
	assert.False(t, ok)
	assert.Equal(t, "ErrorKind(9)", ErrorKind(9).String())
}
