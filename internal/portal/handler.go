package portal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/credentials"
	"github.com/muurk/easywifi/internal/logging"
	"github.com/muurk/easywifi/internal/telemetry"
)

// Route names, also used as metric labels.
const (
	RouteLanding  = "landing"
	RouteNetworks = "list_networks"
	RoutePassword = "enter_password"
	RouteConnect  = "connect"
	RouteProbe    = "generate_204"
	RouteLegacy   = "legacy_form"
	RouteCheck    = "checkpass"
	RouteNone     = "none"
)

const (
	maxBodySize = 512

	landingRefresh = 30
	pickerRefresh  = 20
	thanksRefresh  = 6
)

// Outcome summarises one handled connection.
type Outcome struct {
	Route      string
	Submitted  bool
	Credential credentials.Credential
	Connected  bool
}

// Handler serves one accepted portal connection.
type Handler interface {
	Handle(ctx context.Context, conn net.Conn, sess *Session) Outcome
}

// RoutedHandler is the path-routed portal: landing page, network picker,
// password form, submission and connectivity probe.
type RoutedHandler struct{}

func (RoutedHandler) Handle(ctx context.Context, conn net.Conn, sess *Session) Outcome {
	remote := conn.RemoteAddr().String()

	line, body, err := readRequest(conn)
	if err != nil {
		logging.Debug("Failed to read HTTP request", zap.String("remote_addr", remote), zap.Error(err))
		if line == "" {
			return Outcome{Route: RouteNone}
		}
	}

	out := Outcome{Route: route(line)}
	logging.LogHTTPRequest(remote, method(line), target(line), out.Route)
	telemetry.PortalRequests.WithLabelValues(out.Route).Inc()

	var page []byte
	switch out.Route {
	case RouteNetworks:
		d := sess.pageData("Select your network")
		d.Refresh = pickerRefresh
		page = render("networks", d)

	case RoutePassword:
		d := sess.pageData("Enter Wi-Fi Password")
		d.Network = networkFromTarget(line)
		page = render("password", d)

	case RouteConnect:
		out, page = handleSubmission(ctx, sess, body, out)

	case RouteProbe:
		page = render("probe", sess.pageData(""))

	default:
		d := sess.pageData("Welcome")
		d.Refresh = landingRefresh
		page = render("landing", d)
	}

	writePage(conn, remote, page)
	return out
}

// route matches on the raw request line, first hit wins.
func route(line string) string {
	switch {
	case strings.Contains(line, "/list_networks"):
		return RouteNetworks
	case strings.Contains(line, "/enterPassword"):
		return RoutePassword
	case strings.Contains(line, "POST /connect"):
		return RouteConnect
	case strings.Contains(line, "/generate_204"):
		return RouteProbe
	default:
		return RouteLanding
	}
}

func handleSubmission(ctx context.Context, sess *Session, body string, out Outcome) (Outcome, []byte) {
	cred := credentials.Credential{
		SSID:     resolveNetwork(valueFromBody(body, "network"), sess.Networks),
		Password: valueFromBody(body, "password"),
	}

	d := sess.pageData("Connection Status")
	d.Network = cred.SSID

	if err := cred.Validate(); err != nil || cred.SSID == "" {
		logging.Warn("Rejected credential submission", zap.String("ssid", cred.SSID), zap.Error(err))
		telemetry.Submissions.WithLabelValues("rejected").Inc()
		d.Rejected = true
		return out, render("result", d)
	}

	logging.Info("Credential submission",
		zap.String("ssid", cred.SSID),
		logging.Secret("password", cred.Password),
	)

	if sess.Store != nil {
		if _, err := sess.Store.Write(cred); err != nil {
			logging.Error("Failed to store submitted credentials", zap.Error(err))
		}
	}
	sess.Submit(cred)
	out.Submitted = true
	out.Credential = cred

	if sess.Connector != nil {
		out.Connected = sess.Connector.Connect(ctx, cred)
	}
	if out.Connected {
		telemetry.Submissions.WithLabelValues("connected").Inc()
	} else {
		telemetry.Submissions.WithLabelValues("stored").Inc()
	}

	d.Connected = out.Connected
	return out, render("result", d)
}

// readRequest reads one request and returns its raw request line and up to
// maxBodySize bytes of body. The line is returned even when the rest of the
// request is malformed.
func readRequest(conn net.Conn) (string, string, error) {
	br := bufio.NewReader(conn)

	if _, err := br.Peek(1); err != nil {
		return "", "", err
	}
	raw, _ := br.Peek(br.Buffered())
	rawLine, _, _ := strings.Cut(string(raw), "\n")
	rawLine = strings.TrimSuffix(rawLine, "\r")

	req, err := http.ReadRequest(br)
	if err != nil {
		return rawLine, "", fmt.Errorf("failed to read HTTP request: %w", err)
	}
	defer func() { _ = req.Body.Close() }()

	line := req.Method + " " + req.RequestURI + " " + req.Proto
	if req.Method != http.MethodPost {
		return line, "", nil
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodySize))
	if err != nil {
		return line, string(body), fmt.Errorf("failed to read request body: %w", err)
	}
	return line, string(body), nil
}

func method(line string) string {
	m, _, _ := strings.Cut(line, " ")
	return m
}

func target(line string) string {
	_, rest, _ := strings.Cut(line, " ")
	t, _, _ := strings.Cut(rest, " ")
	return t
}

// writePage sends page as the single response this server ever produces:
// 200 with an HTML body.
func writePage(conn net.Conn, remote string, page []byte) {
	header := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/html\r\n" +
		fmt.Sprintf("Content-Length: %d\r\n", len(page)) +
		"Connection: close\r\n" +
		"\r\n"

	n, err := io.WriteString(conn, header)
	if err == nil {
		var m int
		m, err = conn.Write(page)
		n += m
	}
	if err != nil {
		logging.Debug("Failed to write HTTP response", zap.String("remote_addr", remote), zap.Error(err))
	}
	logging.LogHTTPResponse(remote, http.StatusOK, n)
}
