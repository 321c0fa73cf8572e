package radio

import (
	"bufio"
	"context"
	"fmt"
	"net/netip"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/logging"
)

// APConnectionName is the NetworkManager profile created for the portal.
const APConnectionName = "easywifi-portal"

// Commander runs an external command and returns its combined output.
type Commander interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommander runs commands on the host.
type ExecCommander struct{}

func (ExecCommander) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NetworkManager drives a Linux wireless interface through nmcli and iw.
type NetworkManager struct {
	iface   string
	cmd     Commander
	timeout time.Duration
	apAddr  netip.Addr
	apUp    bool
}

// NewNetworkManager creates a backend for the given interface (e.g. wlan0).
func NewNetworkManager(iface string, cmd Commander) *NetworkManager {
	if cmd == nil {
		cmd = ExecCommander{}
	}
	return &NetworkManager{
		iface:   iface,
		cmd:     cmd,
		timeout: 30 * time.Second,
	}
}

func (n *NetworkManager) run(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	out, err := n.cmd.Run(ctx, args[0], args[1:]...)
	logging.Debug("radio command",
		zap.Strings("args", args),
		zap.Int("output_bytes", len(out)),
		zap.Error(err),
	)
	if err != nil {
		return string(out), fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Status maps the NetworkManager device state onto a radio Status.
func (n *NetworkManager) Status() Status {
	if n.apUp {
		if n.hasStation() {
			return StatusAPConnected
		}
		return StatusAPListening
	}

	out, err := n.run("nmcli", "-t", "-g", "GENERAL.STATE", "device", "show", n.iface)
	if err != nil {
		return StatusIdle
	}
	return parseDeviceState(out)
}

// parseDeviceState reads "100 (connected)" style output.
func parseDeviceState(out string) Status {
	field := strings.TrimSpace(out)
	if i := strings.IndexByte(field, ' '); i > 0 {
		field = field[:i]
	}
	code, err := strconv.Atoi(field)
	if err != nil {
		return StatusIdle
	}

	switch code {
	case 100:
		return StatusConnected
	case 120:
		return StatusConnectFailed
	case 30:
		return StatusDisconnected
	default:
		return StatusIdle
	}
}

// RSSI approximates dBm from the signal percentage of the in-use network.
func (n *NetworkManager) RSSI() int {
	out, err := n.run("nmcli", "-t", "-f", "IN-USE,SIGNAL", "device", "wifi", "list", "ifname", n.iface)
	if err != nil {
		return 0
	}
	return parseInUseSignal(out)
}

func parseInUseSignal(out string) int {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := splitTerse(sc.Text())
		if len(fields) < 2 || fields[0] != "*" {
			continue
		}
		pct, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0
		}
		return pct/2 - 100
	}
	return 0
}

func (n *NetworkManager) Connect(ssid, password string) Status {
	n.apUp = false
	args := []string{"nmcli", "device", "wifi", "connect", ssid, "ifname", n.iface}
	if password != "" {
		args = append(args, "password", password)
	}

	if _, err := n.run(args...); err != nil {
		logging.Info("Connect failed", zap.String("ssid", ssid), zap.Error(err))
		if strings.Contains(err.Error(), "No network with SSID") {
			return StatusNoSSID
		}
		return StatusConnectFailed
	}
	return n.Status()
}

func (n *NetworkManager) Scan() ([]string, error) {
	out, err := n.run("nmcli", "-t", "-f", "SSID", "device", "wifi", "list", "ifname", n.iface, "--rescan", "yes")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScanFailed, err)
	}

	var names []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := splitTerse(sc.Text())
		if len(fields) == 0 || fields[0] == "" {
			continue
		}
		names = append(names, fields[0])
	}
	return names, nil
}

// splitTerse splits an nmcli terse line on unescaped colons.
func splitTerse(line string) []string {
	var fields []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}

func (n *NetworkManager) ConfigureAP(addr netip.Addr) error {
	if !addr.Is4() {
		return fmt.Errorf("access point address must be IPv4: %s", addr)
	}
	n.apAddr = addr
	return nil
}

func (n *NetworkManager) StartAP(name string, channel int) Status {
	if !n.apAddr.IsValid() {
		return StatusAPFailed
	}

	// a stale profile from an earlier session would make "con add" fail
	_, _ = n.run("nmcli", "connection", "delete", APConnectionName)

	_, err := n.run("nmcli", "connection", "add",
		"type", "wifi",
		"ifname", n.iface,
		"con-name", APConnectionName,
		"autoconnect", "no",
		"ssid", name,
		"802-11-wireless.mode", "ap",
		"802-11-wireless.band", "bg",
		"802-11-wireless.channel", strconv.Itoa(channel),
		"ipv4.method", "manual",
		"ipv4.addresses", netip.PrefixFrom(n.apAddr, 24).String(),
	)
	if err != nil {
		logging.Warn("Access point profile rejected", zap.Error(err))
		return StatusAPFailed
	}

	if _, err := n.run("nmcli", "connection", "up", APConnectionName); err != nil {
		logging.Warn("Access point did not come up", zap.Error(err))
		return StatusAPFailed
	}

	n.apUp = true
	return StatusAPListening
}

func (n *NetworkManager) StopAP() error {
	if !n.apUp {
		return nil
	}
	n.apUp = false
	if _, err := n.run("nmcli", "connection", "down", APConnectionName); err != nil {
		return err
	}
	_, err := n.run("nmcli", "connection", "delete", APConnectionName)
	return err
}

func (n *NetworkManager) Disconnect() error {
	_, err := n.run("nmcli", "device", "disconnect", n.iface)
	return err
}

func (n *NetworkManager) hasStation() bool {
	out, err := n.run("iw", "dev", n.iface, "station", "dump")
	if err != nil {
		return false
	}
	return strings.Contains(out, "Station ")
}

func (n *NetworkManager) LinkInfo() LinkInfo {
	out, err := n.run("nmcli", "-t", "-f", "GENERAL.CONNECTION,IP4.ADDRESS,IP4.GATEWAY", "device", "show", n.iface)
	if err != nil {
		return LinkInfo{}
	}
	info := parseLinkInfo(out)
	info.RSSI = n.RSSI()
	return info
}

func parseLinkInfo(out string) LinkInfo {
	var info LinkInfo
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		switch {
		case key == "GENERAL.CONNECTION":
			info.SSID = value
		case strings.HasPrefix(key, "IP4.ADDRESS"):
			if p, err := netip.ParsePrefix(value); err == nil {
				info.Address = p.Addr()
			}
		case key == "IP4.GATEWAY":
			if a, err := netip.ParseAddr(value); err == nil {
				info.Gateway = a
			}
		}
	}
	return info
}
