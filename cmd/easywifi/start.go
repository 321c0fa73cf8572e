package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/config"
	"github.com/muurk/easywifi/internal/credentials"
	"github.com/muurk/easywifi/internal/discovery"
	"github.com/muurk/easywifi/internal/indicator"
	"github.com/muurk/easywifi/internal/logging"
	"github.com/muurk/easywifi/internal/provision"
	"github.com/muurk/easywifi/internal/radio"
	"github.com/muurk/easywifi/internal/telemetry"
	"github.com/muurk/easywifi/internal/ui"
)

// Start/simulate flags
var (
	startAPName   string
	startNoAP     bool
	startNoLED    bool
	startLegacy   bool
	startHTTPPort int
	startDNSPort  int
	startTUI      bool
	startMetrics  string
	startAnnounce bool

	simNetworks []string
	simClient   bool
	simHost     string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Connect to Wi-Fi, opening the setup portal if needed",
	Long: `Connect to the stored network. If that fails, open an access point with
a captive portal where a phone can choose a network and enter its password.

The status light follows the flow:
  Blue     connecting
  Green    connected
  Red      connection failed
  Orange   no stored credentials
  Purple   access point open, waiting for a phone
  Cyan     a phone is connected to the access point

The command exits once connected, when the attempt budget is spent, or on
Ctrl+C.`,
	Example: `  # Provision using the config file settings
  easywifi start

  # Use a custom access point name and watch the flow live
  easywifi start --ap-name Kitchen_Setup --tui

  # Only try the stored network
  easywifi start --no-ap`,
	RunE: runStart,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the provisioning flow against a simulated radio",
	Long: `Run the full flow with an in-memory radio. The portal and DNS services
bind real sockets on --host, so a browser on this machine can walk through
the setup pages.

Networks are given as SSID:password:rssi. An empty password is an open
network; rssi defaults to -50.`,
	Example: `  # Two visible networks, portal on http://127.0.0.1:8080
  easywifi simulate --network "Home:secret123:-40" --network "Cafe::-70"

  # Pretend a phone has joined the access point
  easywifi simulate --network "Home:secret123" --client --tui`,
	RunE: runSimulate,
}

func init() {
	for _, cmd := range []*cobra.Command{startCmd, simulateCmd} {
		cmd.Flags().StringVar(&startAPName, "ap-name", "", "Access point name (default from config)")
		cmd.Flags().BoolVar(&startNoAP, "no-ap", false, "Do not fall back to the access point")
		cmd.Flags().BoolVar(&startNoLED, "no-led", false, "Do not drive the status indicator")
		cmd.Flags().BoolVar(&startLegacy, "legacy", false, "Serve the single-form setup page")
		cmd.Flags().IntVar(&startHTTPPort, "http-port", 0, "Portal HTTP port (default from config)")
		cmd.Flags().IntVar(&startDNSPort, "dns-port", 0, "Portal DNS port (default from config)")
		cmd.Flags().BoolVar(&startTUI, "tui", false, "Show a live view of the flow")
		cmd.Flags().StringVar(&startMetrics, "metrics", "", "Serve Prometheus metrics on this address (e.g. :9100)")
		cmd.Flags().BoolVar(&startAnnounce, "announce", false, "Announce the device over mDNS once connected")
	}

	simulateCmd.Flags().StringArrayVar(&simNetworks, "network", nil, "Visible network as SSID:password:rssi (repeatable)")
	simulateCmd.Flags().BoolVar(&simClient, "client", false, "Report a phone connected to the access point")
	simulateCmd.Flags().StringVar(&simHost, "host", "127.0.0.1", "Address the portal services bind")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(simulateCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r, err := buildRadio(cfg.Radio)
	if err != nil {
		return err
	}
	return runProvisioner(cmd, r, provision.NetTransport{})
}

func runSimulate(cmd *cobra.Command, args []string) error {
	networks := make([]radio.SimNetwork, 0, len(simNetworks))
	for _, spec := range simNetworks {
		n, err := parseSimNetwork(spec)
		if err != nil {
			return err
		}
		networks = append(networks, n)
	}

	host, err := netip.ParseAddr(simHost)
	if err != nil {
		return fmt.Errorf("invalid --host %q: %w", simHost, err)
	}

	// Unprivileged ports unless overridden
	if startHTTPPort == 0 {
		startHTTPPort = 8080
	}
	if startDNSPort == 0 {
		startDNSPort = 5353
	}

	sim := radio.NewSimulator(networks...)
	sim.SetClientPresent(simClient)

	fmt.Printf("Simulating %d network(s); portal at http://%s\n\n",
		len(networks), net.JoinHostPort(host.String(), strconv.Itoa(startHTTPPort)))
	return runProvisioner(cmd, sim, provision.NetTransport{Host: host})
}

// parseSimNetwork parses SSID[:password[:rssi]].
func parseSimNetwork(spec string) (radio.SimNetwork, error) {
	parts := strings.SplitN(spec, ":", 3)
	n := radio.SimNetwork{SSID: parts[0], RSSI: -50}
	if n.SSID == "" {
		return n, fmt.Errorf("invalid --network %q: empty SSID", spec)
	}
	if len(parts) > 1 {
		n.Password = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		rssi, err := strconv.Atoi(parts[2])
		if err != nil {
			return n, fmt.Errorf("invalid --network %q: bad rssi: %w", spec, err)
		}
		n.RSSI = rssi
	}
	return n, nil
}

func buildRadio(rc config.RadioConfig) (radio.Radio, error) {
	switch rc.Backend {
	case "nmcli":
		return radio.NewNetworkManager(rc.Interface, radio.ExecCommander{}), nil
	case "simulator":
		return radio.NewSimulator(), nil
	default:
		return nil, fmt.Errorf("unknown radio backend: %s", rc.Backend)
	}
}

func buildIndicator(ic config.IndicatorConfig, tui bool) indicator.Indicator {
	var backend indicator.Indicator
	switch ic.Backend {
	case "sysfs":
		backend = indicator.NewSysfs(afero.NewOsFs(), indicator.SysfsPaths{
			Red:   ic.Red,
			Green: ic.Green,
			Blue:  ic.Blue,
		})
	case "terminal":
		// The live view draws its own swatch
		if tui {
			return indicator.Log{}
		}
		backend = indicator.NewTerminal(os.Stdout)
	default:
		return indicator.Log{}
	}
	return indicator.Multi{backend, indicator.Log{}}
}

func openStore(cc config.CredentialsConfig) *credentials.Handler {
	store := credentials.NewOSHandler(cc.Path)
	store.SetSeed(cc.Seed)
	return store
}

func newProvisioner(r radio.Radio, t provision.Transport) *provision.Provisioner {
	apName := cfg.AccessPoint.Name
	if startAPName != "" {
		apName = startAPName
	}
	httpPort := cfg.Portal.HTTPPort
	if startHTTPPort != 0 {
		httpPort = startHTTPPort
	}
	dnsPort := cfg.Portal.DNSPort
	if startDNSPort != 0 {
		dnsPort = startDNSPort
	}

	return provision.New(provision.Deps{
		Radio:     r,
		Store:     openStore(cfg.Credentials),
		Indicator: buildIndicator(cfg.Indicator, startTUI),
		Transport: t,
	}, provision.Options{
		APName:     apName,
		APChannel:  cfg.AccessPoint.Channel,
		DisableAP:  startNoAP || !cfg.AccessPoint.Enabled,
		DisableLED: startNoLED || !cfg.Indicator.Enabled,
		Fallback: credentials.Credential{
			SSID:     cfg.Credentials.FallbackSSID,
			Password: cfg.Credentials.FallbackPassword,
		},
		DNSPort:         dnsPort,
		HTTPPort:        httpPort,
		Tick:            cfg.Portal.Tick,
		ClientTimeout:   cfg.Portal.ClientTimeout,
		Legacy:          startLegacy || cfg.Portal.Legacy,
		ConnectOnSubmit: cfg.Portal.ConnectOnSubmit,
	})
}

func runProvisioner(cmd *cobra.Command, r radio.Radio, t provision.Transport) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsAddr := cfg.Metrics.Addr
	if startMetrics != "" {
		metricsAddr = startMetrics
	}
	if metricsAddr != "" {
		l, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for metrics on %s: %w", metricsAddr, err)
		}
		defer func() { _ = l.Close() }()
		go func() {
			if err := telemetry.Serve(l); err != nil {
				logging.Warn("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	p := newProvisioner(r, t)
	logging.Info("Starting provisioning",
		zap.String("ap_name", p.AccessPointName()),
		zap.String("device_id", cfg.DeviceID),
	)

	var (
		res provision.Result
		err error
	)
	if startTUI {
		res, err = ui.RunMonitor(ctx, "EasyWiFi "+p.AccessPointName(), os.Stdin, os.Stdout,
			func(ctx context.Context, observe func(provision.Event)) (provision.Result, error) {
				p.Observe(observe)
				return p.Start(ctx)
			})
	} else {
		res, err = p.Start(ctx)
	}

	printer := ui.NewPrinter(os.Stdout)
	details := map[string]string{
		"Network":     res.SSID,
		"Attempts":    strconv.Itoa(res.Attempts),
		"AP sessions": strconv.Itoa(res.APSessions),
	}

	switch res.Outcome {
	case provision.OutcomeConnected:
		if info := r.LinkInfo(); info.Address.IsValid() {
			details["Address"] = info.Address.String()
		}
		printer.PrintSuccess("Connected", details)
		if startAnnounce || cfg.Announce.Enabled {
			return announce(ctx, res.SSID)
		}
		return nil
	case provision.OutcomeCanceled:
		printer.PrintWarning("Provisioning canceled", details)
		return nil
	default:
		printer.PrintFailure("Provisioning failed", err, failureHints(err))
		return err
	}
}

func failureHints(err error) []string {
	switch {
	case errors.Is(err, provision.ErrAPDisabled):
		return []string{
			"Store credentials with: easywifi credentials set",
			"Or allow the setup portal by removing --no-ap",
		}
	case errors.Is(err, provision.ErrEscapeLimit):
		return []string{
			"Check the network is in range and the password is correct",
			"Run again to reopen the setup portal",
		}
	case errors.Is(err, provision.ErrAPUnavailable):
		return []string{
			"Check the wireless interface supports access point mode",
			"Check NetworkManager is running: nmcli general status",
		}
	}
	if kind, ok := provision.KindOf(err); ok && kind == provision.KindUnavailable {
		return []string{"The portal ports may need root or CAP_NET_BIND_SERVICE"}
	}
	return nil
}

// announce advertises the device until ctx is done.
func announce(ctx context.Context, ssid string) error {
	a, err := discovery.Announce(discovery.AnnounceOptions{
		ID:   cfg.DeviceID,
		SSID: ssid,
		Port: cfg.Announce.Port,
		TTL:  cfg.Announce.TTL,
	})
	if err != nil {
		return fmt.Errorf("failed to announce device: %w", err)
	}
	defer a.Shutdown()

	fmt.Printf("Announcing %s over mDNS, press Ctrl+C to stop\n", discovery.InstanceName(cfg.DeviceID))
	<-ctx.Done()
	return nil
}
