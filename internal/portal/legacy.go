package portal

import (
	"bufio"
	"bytes"
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/credentials"
	"github.com/muurk/easywifi/internal/logging"
	"github.com/muurk/easywifi/internal/telemetry"
)

const (
	// legacyMaxLine bounds the form line: anything at or above it is rejected.
	legacyMaxLine = 78

	// legacyLineCap stops a client from growing a header line without bound.
	legacyLineCap = 4096
)

var (
	markCheckPass = []byte("POST /checkpass.php")
	markProbe     = []byte("GET /generate_204")
	markID        = []byte("XXID=")
	markPass      = []byte("&XXPS=")
	markAction    = []byte("&action")
)

// LegacyFormHandler is the single-form portal. It reads the request one byte
// at a time, serves the form when the headers end, and extracts a submission
// from a POST to /checkpass.php by watching for the XXID, XXPS and action
// markers in the body.
type LegacyFormHandler struct{}

func (LegacyFormHandler) Handle(_ context.Context, conn net.Conn, sess *Session) Outcome {
	remote := conn.RemoteAddr().String()
	br := bufio.NewReader(conn)
	line := make([]byte, 0, 128)

	for {
		c, err := br.ReadByte()
		if err != nil {
			logging.Debug("Legacy client went away", zap.String("remote_addr", remote), zap.Error(err))
			return Outcome{Route: RouteNone}
		}

		switch {
		case c == '\n':
			if len(line) == 0 {
				return serveLegacy(conn, remote, sess, RouteLegacy, "legacy", 0)
			}
			line = line[:0]
		case c != '\r' && len(line) < legacyLineCap:
			line = append(line, c)
		}

		if bytes.HasSuffix(line, markCheckPass) {
			out := readLegacySubmission(br, sess)
			served := serveLegacy(conn, remote, sess, RouteCheck, "thanks", thanksRefresh)
			out.Route = served.Route
			return out
		}

		if bytes.HasSuffix(line, markProbe) {
			return serveLegacy(conn, remote, sess, RouteProbe, "probe", 0)
		}
	}
}

func serveLegacy(conn net.Conn, remote string, sess *Session, route, page string, refresh int) Outcome {
	logging.LogHTTPRequest(remote, "", "", route)
	telemetry.PortalRequests.WithLabelValues(route).Inc()

	d := sess.pageData(sess.DeviceName)
	d.Refresh = refresh
	if page == "legacy" {
		d.Refresh = landingRefresh
	}
	writePage(conn, remote, render(page, d))
	return Outcome{Route: route}
}

// readLegacySubmission consumes the POST until the action marker. The id runs
// from "XXID=" to "&XXPS=", the password from there to "&action". A one-byte
// id is a list index.
func readLegacySubmission(br *bufio.Reader, sess *Session) Outcome {
	out := Outcome{Route: RouteCheck}
	line := make([]byte, 0, legacyMaxLine)
	pos1, pos2 := -1, -1

	for {
		c, err := br.ReadByte()
		if err != nil {
			logging.Info("Legacy submission incomplete", zap.Error(err))
			return out
		}

		switch {
		case c == '\n':
			line = line[:0]
		case c != '\r' && len(line) < legacyLineCap:
			line = append(line, c)
		}

		if bytes.HasSuffix(line, markID) {
			pos1 = len(line)
		}
		if bytes.HasSuffix(line, markPass) {
			pos2 = len(line)
		}
		if !bytes.HasSuffix(line, markAction) {
			continue
		}

		t := len(line)
		if t >= legacyMaxLine || pos1 < 0 || pos2-len(markPass) < pos1 {
			logging.Warn("Invalid input from portal client", zap.Int("length", t))
			telemetry.Submissions.WithLabelValues("rejected").Inc()
			return out
		}

		var ssid string
		if pos2-pos1 == len(markPass)+1 {
			ssid = resolveNetwork(string(line[pos1:pos1+1]), sess.Networks)
		} else {
			ssid = urlDecode(string(line[pos1 : pos2-len(markPass)]))
		}
		cred := credentials.Credential{
			SSID:     ssid,
			Password: urlDecode(string(line[pos2 : t-len(markAction)])),
		}

		if err := cred.Validate(); err != nil || cred.SSID == "" {
			logging.Warn("Rejected credential submission", zap.String("ssid", cred.SSID), zap.Error(err))
			telemetry.Submissions.WithLabelValues("rejected").Inc()
			return out
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
		telemetry.Submissions.WithLabelValues("stored").Inc()

		out.Submitted = true
		out.Credential = cred
		return out
	}
}
