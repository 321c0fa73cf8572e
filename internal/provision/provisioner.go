package provision

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/netip"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/credentials"
	"github.com/muurk/easywifi/internal/dnsserver"
	"github.com/muurk/easywifi/internal/indicator"
	"github.com/muurk/easywifi/internal/logging"
	"github.com/muurk/easywifi/internal/portal"
	"github.com/muurk/easywifi/internal/radio"
	"github.com/muurk/easywifi/internal/scanner"
	"github.com/muurk/easywifi/internal/telemetry"
)

const (
	// MaxConnect is the number of connect tries per cycle.
	MaxConnect = 4

	// EscapeConnect bounds the total tries of one Start call: once the total
	// exceeds it the call fails instead of reopening the access point.
	EscapeConnect = 15

	// APStartTries is how many times the access point is started before
	// giving up.
	APStartTries = 5

	DefaultAPName    = "EasyWiFi_AP"
	DefaultAPChannel = 5
	MaxAPNameLen     = 31

	// WeakSignal is the RSSI at or below which a link counts as down.
	WeakSignal = -90

	SettleDelay   = 2 * time.Second
	APWarmup      = 3 * time.Second
	TeardownDelay = 2 * time.Second

	apPrefixLen = 24
)

// DefaultFallback is tried when no record is stored.
var DefaultFallback = credentials.Credential{SSID: "UnKnownWireless", Password: "NoPassword"}

// Deps are the collaborators of a Provisioner.
type Deps struct {
	Radio     radio.Radio
	Store     *credentials.Handler
	Indicator indicator.Indicator // nil for none
	Transport Transport
	Clock     Clock      // nil for RealClock
	Rand      *rand.Rand // nil for a time-seeded source
}

// Options tune a Provisioner. The zero value is usable.
type Options struct {
	APName          string
	APChannel       int
	DisableAP       bool
	DisableLED      bool
	Seed            int // 0 keeps the store's seed
	Fallback        credentials.Credential
	DNSPort         int
	HTTPPort        int
	Tick            time.Duration
	ClientTimeout   time.Duration
	Legacy          bool // serve the single-form page
	ConnectOnSubmit bool // try the submitted network before answering the portal
}

// Provisioner runs the connect / access point / portal cycle. It owns all
// mutable provisioning state and is not safe for concurrent use.
type Provisioner struct {
	radio     radio.Radio
	store     *credentials.Handler
	led       indicator.Indicator
	transport Transport
	clock     Clock
	rand      *rand.Rand

	apName          string
	apChannel       int
	useAP           bool
	useLED          bool
	fallback        credentials.Credential
	dnsPort         int
	httpPort        int
	tick            time.Duration
	clientTimeout   time.Duration
	legacy          bool
	connectOnSubmit bool

	state      State
	color      indicator.Color
	ssid       string
	attempts   int
	total      int
	apSessions int
	apAddr     netip.Addr
	requests   int
	networks   *scanner.NetworkList

	observers []func(Event)
}

// New creates a Provisioner.
func New(deps Deps, opts Options) *Provisioner {
	p := &Provisioner{
		radio:           deps.Radio,
		store:           deps.Store,
		led:             deps.Indicator,
		transport:       deps.Transport,
		clock:           deps.Clock,
		rand:            deps.Rand,
		apName:          DefaultAPName,
		apChannel:       opts.APChannel,
		useAP:           !opts.DisableAP,
		useLED:          !opts.DisableLED,
		fallback:        opts.Fallback,
		dnsPort:         opts.DNSPort,
		httpPort:        opts.HTTPPort,
		tick:            opts.Tick,
		clientTimeout:   opts.ClientTimeout,
		legacy:          opts.Legacy,
		connectOnSubmit: opts.ConnectOnSubmit,
		color:           indicator.Black,
	}
	if p.clock == nil {
		p.clock = RealClock{}
	}
	if p.rand == nil {
		now := uint64(time.Now().UnixNano())
		p.rand = rand.New(rand.NewPCG(now, now>>32))
	}
	if p.transport == nil {
		p.transport = NetTransport{}
	}
	if p.apChannel == 0 {
		p.apChannel = DefaultAPChannel
	}
	if p.fallback.SSID == "" {
		p.fallback = DefaultFallback
	}
	if p.dnsPort == 0 {
		p.dnsPort = dnsserver.DefaultPort
	}
	if p.httpPort == 0 {
		p.httpPort = portal.DefaultPort
	}
	if p.tick <= 0 {
		p.tick = dnsserver.DefaultPollTimeout
	}
	if opts.APName != "" {
		p.SetAccessPointName(opts.APName)
	}
	if opts.Seed > 0 {
		p.SetSeed(opts.Seed)
	}
	return p
}

// SetAccessPointName sets the broadcast name, truncated to 31 bytes.
// An empty name is ignored.
func (p *Provisioner) SetAccessPointName(name string) {
	if name == "" {
		return
	}
	if len(name) > MaxAPNameLen {
		name = name[:MaxAPNameLen]
	}
	p.apName = name
}

// AccessPointName returns the broadcast name.
func (p *Provisioner) AccessPointName() string {
	return p.apName
}

// SetSeed changes the credential codec seed. Negative seeds are ignored.
func (p *Provisioner) SetSeed(seed int) {
	p.store.SetSeed(seed)
}

// UseLED turns the status indicator on or off. Turning it off blanks it.
func (p *Provisioner) UseLED(on bool) {
	if !on && p.useLED && p.led != nil {
		p.led.Set(indicator.Black)
	}
	p.useLED = on
}

// UseAccessPoint enables or disables the access point fallback.
func (p *Provisioner) UseAccessPoint(on bool) {
	p.useAP = on
}

// Erase destroys the stored credential record.
func (p *Provisioner) Erase() bool {
	return p.store.Erase()
}

// Observe registers fn to receive every Event.
func (p *Provisioner) Observe(fn func(Event)) {
	p.observers = append(p.observers, fn)
}

// State returns the current connection state.
func (p *Provisioner) State() State {
	return p.state
}

// IsConnected reports whether the station link is up with usable signal.
func (p *Provisioner) IsConnected() bool {
	if p.radio.Status() != radio.StatusConnected {
		return false
	}
	rssi := p.radio.RSSI()
	return rssi != 0 && rssi > WeakSignal
}

// Start runs the provisioning flow until the device is connected, the
// attempt budget is spent, the access point cannot be opened, or ctx is
// done. It may be called again after it returns.
func (p *Provisioner) Start(ctx context.Context) (Result, error) {
	p.attempts, p.total, p.apSessions = 0, 0, 0

	if p.IsConnected() {
		p.ssid = p.radio.LinkInfo().SSID
		p.setColor(indicator.Green)
		p.setState(StateConnected)
		p.logLink()
		return p.result(OutcomeConnected, nil), nil
	}

	cred := p.loadCredentials()
	p.ssid = cred.SSID
	p.setColor(indicator.Blue)

	for {
		if err := ctx.Err(); err != nil {
			return p.cancel(err)
		}

		p.setState(StateConnecting)
		connected, err := p.connectCycle(ctx, cred)
		if err != nil {
			return p.cancel(err)
		}
		if connected {
			p.setColor(indicator.Green)
			p.setState(StateConnected)
			p.logLink()
			return p.result(OutcomeConnected, nil), nil
		}

		p.setColor(indicator.Red)
		if p.total > EscapeConnect {
			return p.fail(newError(KindUnavailable, "connect",
				"gave up after "+strconv.Itoa(p.total)+" attempts", ErrEscapeLimit))
		}
		if !p.useAP {
			return p.fail(newError(KindUnavailable, "connect",
				"could not join "+cred.SSID, ErrAPDisabled))
		}

		sub, err := p.runAccessPoint(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return p.cancel(ctx.Err())
			}
			return p.fail(err)
		}
		cred = sub
		p.ssid = cred.SSID
	}
}

// ConnectWithRetry tries to join the network up to MaxConnect times, waiting
// SettleDelay after each try. It does not count toward the Start budget.
func (p *Provisioner) ConnectWithRetry(ctx context.Context, cred credentials.Credential) bool {
	for i := 0; i < MaxConnect; i++ {
		ok, err := p.connectOnce(ctx, cred)
		if ok {
			return true
		}
		if err != nil {
			return false
		}
	}
	return false
}

func (p *Provisioner) connectCycle(ctx context.Context, cred credentials.Credential) (bool, error) {
	p.attempts = 0
	for p.attempts < MaxConnect {
		p.attempts++
		p.total++
		p.notify()

		ok, err := p.connectOnce(ctx, cred)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

func (p *Provisioner) connectOnce(ctx context.Context, cred credentials.Credential) (bool, error) {
	status := p.radio.Connect(cred.SSID, cred.Password)
	logging.Debug("Connect attempt",
		zap.String("ssid", cred.SSID),
		zap.Stringer("status", status),
		zap.Int("total", p.total),
	)
	if err := p.clock.Sleep(ctx, SettleDelay); err != nil {
		return false, err
	}
	if p.IsConnected() {
		telemetry.ConnectAttempts.WithLabelValues("connected").Inc()
		return true, nil
	}
	telemetry.ConnectAttempts.WithLabelValues("failed").Inc()
	return false, nil
}

func (p *Provisioner) loadCredentials() credentials.Credential {
	var cred credentials.Credential
	if n := p.store.Read(&cred); n > 0 {
		logging.Info("Loaded stored credentials",
			zap.String("ssid", cred.SSID),
			logging.Secret("password", cred.Password),
		)
		return cred
	}
	logging.Warn("No stored credentials, using fallback", zap.String("ssid", p.fallback.SSID))
	p.setColor(indicator.Orange)
	return p.fallback
}

// runAccessPoint opens the access point, serves the portal until a
// credential is submitted, tears everything down and returns the submission.
func (p *Provisioner) runAccessPoint(ctx context.Context) (credentials.Credential, error) {
	p.apSessions++
	p.networks = scanner.Scan(p.radio)
	p.apAddr = p.randomAddress()

	if err := p.startAccessPoint(); err != nil {
		telemetry.AccessPointSessions.WithLabelValues("failed").Inc()
		return credentials.Credential{}, err
	}
	telemetry.AccessPointSessions.WithLabelValues("started").Inc()

	resp, srv, err := p.openPortal()
	if err != nil {
		p.teardown(ctx, nil, nil)
		return credentials.Credential{}, err
	}

	if err := p.clock.Sleep(ctx, APWarmup); err != nil {
		p.teardown(ctx, resp, srv)
		return credentials.Credential{}, err
	}

	p.setColor(indicator.Purple)
	p.setState(StateAPListening)

	cred, err := p.portalLoop(ctx, resp, srv)
	p.teardown(ctx, resp, srv)
	return cred, err
}

func (p *Provisioner) startAccessPoint() error {
	var lastErr error
	for try := 1; try <= APStartTries; try++ {
		if err := p.radio.ConfigureAP(p.apAddr); err != nil {
			lastErr = err
			logging.Warn("Access point configuration failed", zap.Int("try", try), zap.Error(err))
			continue
		}
		status := p.radio.StartAP(p.apName, p.apChannel)
		if status == radio.StatusAPListening || status == radio.StatusAPConnected {
			logging.Info("Access point started",
				zap.String("name", p.apName),
				zap.Stringer("address", p.apAddr),
				zap.Int("channel", p.apChannel),
				zap.Int("try", try),
			)
			return nil
		}
		logging.Warn("Access point start failed", zap.Int("try", try), zap.Stringer("status", status))
	}
	_ = p.radio.StopAP()
	cause := ErrAPUnavailable
	if lastErr != nil {
		cause = fmt.Errorf("%w: %v", ErrAPUnavailable, lastErr)
	}
	return newError(KindUnavailable, "start_ap",
		"could not start "+p.apName+" after "+strconv.Itoa(APStartTries)+" tries", cause)
}

func (p *Provisioner) openPortal() (*dnsserver.Responder, *portal.Server, error) {
	pc, err := p.transport.ListenPacket(p.dnsPort)
	if err != nil {
		return nil, nil, newError(KindUnavailable, "open_dns", "could not open DNS socket", err)
	}
	l, err := p.transport.Listen(p.httpPort)
	if err != nil {
		_ = pc.Close()
		return nil, nil, newError(KindUnavailable, "open_http", "could not open HTTP socket", err)
	}

	resp := dnsserver.NewResponder(pc, p.apAddr)
	resp.SetPollTimeout(p.tick)

	sess := &portal.Session{
		DeviceAddr: p.apAddr,
		DeviceName: p.apName,
		Networks:   p.networks,
		Store:      p.store,
	}
	if p.connectOnSubmit {
		sess.Connector = portal.ConnectorFunc(p.ConnectWithRetry)
	}

	var h portal.Handler = portal.RoutedHandler{}
	if p.legacy {
		h = portal.LegacyFormHandler{}
	}
	srv := portal.NewServer(l, h, sess)
	srv.SetPollTimeout(p.tick)
	srv.SetClientTimeout(p.clientTimeout)
	return resp, srv, nil
}

func (p *Provisioner) portalLoop(ctx context.Context, resp *dnsserver.Responder, srv *portal.Server) (credentials.Credential, error) {
	clientPresent := false
	for {
		if err := ctx.Err(); err != nil {
			return credentials.Credential{}, err
		}

		present := p.radio.Status() == radio.StatusAPConnected
		if present != clientPresent {
			clientPresent = present
			if present {
				resp.ResetRequests()
				p.requests = 0
				p.setColor(indicator.Cyan)
				p.setState(StateAPClientPresent)
			} else {
				p.setColor(indicator.Purple)
				p.setState(StateAPListening)
			}
		}

		if resp.PollOnce() {
			p.requests = resp.Requests()
			p.notify()
		}
		srv.PollOnce(ctx)

		if cred, ok := srv.Session().Submitted(); ok {
			logging.Info("Credentials submitted", zap.String("ssid", cred.SSID))
			return cred, nil
		}
	}
}

func (p *Provisioner) teardown(ctx context.Context, resp *dnsserver.Responder, srv *portal.Server) {
	if resp != nil {
		_ = resp.Close()
	}
	if srv != nil {
		_ = srv.Close()
	}
	if err := p.radio.StopAP(); err != nil {
		logging.Warn("Failed to stop access point", zap.Error(err))
	}
	if err := p.radio.Disconnect(); err != nil {
		logging.Warn("Failed to disconnect", zap.Error(err))
	}
	p.setColor(indicator.Blue)
	p.setState(StateDisconnected)
	_ = p.clock.Sleep(ctx, TeardownDelay)
}

// randomAddress picks an access point address in (11-171).x.y.1.
func (p *Provisioner) randomAddress() netip.Addr {
	return netip.AddrFrom4([4]byte{
		byte(11 + p.rand.IntN(161)),
		byte(p.rand.IntN(255)),
		byte(p.rand.IntN(255)),
		1,
	})
}

// APPrefix returns the access point subnet of the current session.
func (p *Provisioner) APPrefix() netip.Prefix {
	return netip.PrefixFrom(p.apAddr, apPrefixLen).Masked()
}

func (p *Provisioner) logLink() {
	info := p.radio.LinkInfo()
	logging.Info("Connected",
		zap.String("ssid", info.SSID),
		zap.Stringer("address", info.Address),
		zap.Stringer("gateway", info.Gateway),
		zap.Int("rssi", info.RSSI),
	)
}

func (p *Provisioner) setState(s State) {
	if s == p.state {
		p.notify()
		return
	}
	logging.LogStateChange(p.state.String(), s.String(),
		zap.Int("attempts", p.total),
		zap.Int("ap_sessions", p.apSessions),
	)
	p.state = s
	telemetry.SetState(s.String(), stateNames)
	p.notify()
}

func (p *Provisioner) setColor(c indicator.Color) {
	p.color = c
	if p.useLED && p.led != nil {
		p.led.Set(c)
	}
	p.notify()
}

func (p *Provisioner) notify() {
	if len(p.observers) == 0 {
		return
	}
	ev := Event{
		State:      p.state,
		Color:      p.color,
		SSID:       p.ssid,
		Attempts:   p.attempts,
		Total:      p.total,
		APSessions: p.apSessions,
		APName:     p.apName,
		APAddr:     p.apAddr,
		Requests:   p.requests,
		Networks:   p.networks.Names(),
	}
	for _, fn := range p.observers {
		fn(ev)
	}
}

func (p *Provisioner) result(o Outcome, reason error) Result {
	return Result{
		Outcome:    o,
		Reason:     reason,
		SSID:       p.ssid,
		Attempts:   p.total,
		APSessions: p.apSessions,
	}
}

func (p *Provisioner) fail(err error) (Result, error) {
	p.setColor(indicator.Red)
	p.setState(StateFailed)
	logging.Error("Provisioning failed", zap.Error(err))
	return p.result(OutcomeFailed, err), err
}

func (p *Provisioner) cancel(err error) (Result, error) {
	logging.Info("Provisioning canceled", zap.Error(err))
	return p.result(OutcomeCanceled, err), err
}
