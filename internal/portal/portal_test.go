package portal

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/easywifi/internal/credentials"
	"github.com/muurk/easywifi/internal/fakenet"
	"github.com/muurk/easywifi/internal/scanner"
)

var client = &net.TCPAddr{IP: net.IPv4(42, 7, 9, 23), Port: 51515}

type memStore struct {
	writes []credentials.Credential
	err    error
}

func (m *memStore) Write(c credentials.Credential) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.writes = append(m.writes, c)
	return len(c.SSID) + len(c.Password) + 2, nil
}

func newSession(store CredentialWriter) *Session {
	return &Session{
		DeviceAddr: netip.MustParseAddr("42.7.9.1"),
		DeviceName: "ESP32_Device",
		Networks:   scanner.NewNetworkList("Home_Net", "Cafe Guest", "Office", "Lab"),
		Store:      store,
	}
}

func get(path string) string {
	return "GET " + path + " HTTP/1.1\r\nHost: 42.7.9.1\r\n\r\n"
}

func post(path, body string) string {
	return "POST " + path + " HTTP/1.1\r\n" +
		"Host: 42.7.9.1\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"\r\n" + body
}

func serve(t *testing.T, h Handler, sess *Session, request string) (Outcome, string) {
	t.Helper()
	conn := fakenet.NewConn(request, client)
	out := h.Handle(context.Background(), conn, sess)
	return out, conn.Written()
}

func requireOK(t *testing.T, resp string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n"), "response: %q", resp)
	assert.Contains(t, resp, "Content-Type: text/html\r\n")
	_, body, ok := strings.Cut(resp, "\r\n\r\n")
	require.True(t, ok)
	return body
}

func TestRoute(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"GET / HTTP/1.1", RouteLanding},
		{"GET /list_networks HTTP/1.1", RouteNetworks},
		{"POST /enterPassword?network=Cafe HTTP/1.1", RoutePassword},
		{"GET /enterPassword?network=Cafe HTTP/1.1", RoutePassword},
		{"POST /connect HTTP/1.1", RouteConnect},
		{"GET /connect HTTP/1.1", RouteLanding},
		{"GET /generate_204 HTTP/1.1", RouteProbe},
		{"GET /gen_204 HTTP/1.1", RouteLanding},
		{"GET /nope/list_networks/x HTTP/1.1", RouteNetworks},
		{"", RouteLanding},
	}
	for _, tt := range tests {
		if got := route(tt.line); got != tt.want {
			t.Errorf("route(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestRoutedHandler_Landing(t *testing.T) {
	out, resp := serve(t, RoutedHandler{}, newSession(nil), get("/hotspot-detect.html"))

	body := requireOK(t, resp)
	assert.Equal(t, RouteLanding, out.Route)
	assert.Contains(t, body, `href="/list_networks"`)
	assert.Contains(t, body, "ESP32_Device")
	assert.Contains(t, body, "url=http://42.7.9.1/")
}

func TestRoutedHandler_NetworkList(t *testing.T) {
	_, resp := serve(t, RoutedHandler{}, newSession(nil), get("/list_networks"))

	body := requireOK(t, resp)
	assert.Contains(t, body, `action="/enterPassword?network=Home_Net"`)
	assert.Contains(t, body, `action="/enterPassword?network=Cafe%20Guest"`)
	assert.Contains(t, body, `value="1. Home_Net"`)
	assert.Contains(t, body, `value="4. Lab"`)
}

func TestRoutedHandler_NetworkListEscapesNames(t *testing.T) {
	sess := newSession(nil)
	sess.Networks = scanner.NewNetworkList(`<script>alert(1)</script>`)

	_, resp := serve(t, RoutedHandler{}, sess, get("/list_networks"))
	assert.NotContains(t, resp, "<script>alert(1)")
}

func TestRoutedHandler_PasswordForm(t *testing.T) {
	_, resp := serve(t, RoutedHandler{}, newSession(nil), post("/enterPassword?network=Cafe%20Guest", ""))

	body := requireOK(t, resp)
	assert.Contains(t, body, "Network: Cafe Guest")
	assert.Contains(t, body, `var network = "Cafe Guest";`)
	assert.Contains(t, body, "togglePasswordVisibility")
	assert.Contains(t, body, "xhr.open('POST', '/connect', true)")
}

func TestRoutedHandler_SubmissionByIndex(t *testing.T) {
	store := &memStore{}
	sess := newSession(store)
	var connected credentials.Credential
	sess.Connector = ConnectorFunc(func(_ context.Context, c credentials.Credential) bool {
		connected = c
		return true
	})

	out, resp := serve(t, RoutedHandler{}, sess, post("/connect", "network=3&password=Sup%2Ber"))

	body := requireOK(t, resp)
	want := credentials.Credential{SSID: "Lab", Password: "Sup+er"}
	assert.Equal(t, RouteConnect, out.Route)
	assert.True(t, out.Submitted)
	assert.True(t, out.Connected)
	assert.Equal(t, want, out.Credential)
	assert.Equal(t, []credentials.Credential{want}, store.writes)
	assert.Equal(t, want, connected)
	assert.Contains(t, body, "Network Connection Successful")

	got, ok := sess.Submitted()
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestRoutedHandler_SubmissionByName(t *testing.T) {
	store := &memStore{}
	sess := newSession(store)

	out, resp := serve(t, RoutedHandler{}, sess, post("/connect", "network=Cafe+Guest&password=two+words%21"))

	body := requireOK(t, resp)
	assert.True(t, out.Submitted)
	assert.False(t, out.Connected)
	assert.Equal(t, credentials.Credential{SSID: "Cafe Guest", Password: "two words!"}, out.Credential)
	assert.Contains(t, body, "Network Connection Failed")
	assert.Contains(t, body, "Cafe Guest")
	assert.Contains(t, body, `location.href='/list_networks'`)
}

func TestRoutedHandler_SubmissionRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"oversized password", "network=Home_Net&password=" + strings.Repeat("x", 40)},
		{"oversized network", "network=" + strings.Repeat("n", 32) + "&password=x"},
		{"separator byte", "network=Home%01Net&password=x"},
		{"no network", "password=x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			sess := newSession(store)

			out, resp := serve(t, RoutedHandler{}, sess, post("/connect", tt.body))

			body := requireOK(t, resp)
			assert.False(t, out.Submitted)
			assert.Empty(t, store.writes)
			_, ok := sess.Submitted()
			assert.False(t, ok)
			assert.Contains(t, body, "Invalid network name or password")
		})
	}
}

func TestRoutedHandler_StoreFailureStillSubmits(t *testing.T) {
	sess := newSession(&memStore{err: errors.New("disk full")})

	out, _ := serve(t, RoutedHandler{}, sess, post("/connect", "network=Office&password=pw"))
	assert.True(t, out.Submitted)
}

func TestRoutedHandler_Probe(t *testing.T) {
	out, resp := serve(t, RoutedHandler{}, newSession(nil), get("/generate_204"))

	body := requireOK(t, resp)
	assert.Equal(t, RouteProbe, out.Route)
	assert.Contains(t, body, `content="0;url=http://42.7.9.1/"`)
}

func TestRoutedHandler_MalformedRequestGetsLanding(t *testing.T) {
	out, resp := serve(t, RoutedHandler{}, newSession(nil), "garbage\r\n\r\n")

	requireOK(t, resp)
	assert.Equal(t, RouteLanding, out.Route)
}

func TestRoutedHandler_EmptyConnection(t *testing.T) {
	out, resp := serve(t, RoutedHandler{}, newSession(nil), "")
	assert.Equal(t, RouteNone, out.Route)
	assert.Empty(t, resp)
}

func TestLegacyHandler_ServesForm(t *testing.T) {
	out, resp := serve(t, LegacyFormHandler{}, newSession(nil), get("/"))

	body := requireOK(t, resp)
	assert.Equal(t, RouteLegacy, out.Route)
	assert.Contains(t, body, `name="XXID"`)
	assert.Contains(t, body, `name="XXPS"`)
	assert.Contains(t, body, "0. [Home_Net]")
	assert.Contains(t, body, "3. [Lab]")
}

func TestLegacyHandler_SubmissionByName(t *testing.T) {
	store := &memStore{}
	sess := newSession(store)

	out, resp := serve(t, LegacyFormHandler{}, sess, post("/checkpass.php", "XXID=Home_Net&XXPS=s3cr3t%21&action=Submit"))

	body := requireOK(t, resp)
	want := credentials.Credential{SSID: "Home_Net", Password: "s3cr3t!"}
	assert.Equal(t, RouteCheck, out.Route)
	assert.True(t, out.Submitted)
	assert.Equal(t, want, out.Credential)
	assert.Equal(t, []credentials.Credential{want}, store.writes)
	assert.Contains(t, body, "Thank You")
}

func TestLegacyHandler_SubmissionByIndex(t *testing.T) {
	sess := newSession(&memStore{})

	out, _ := serve(t, LegacyFormHandler{}, sess, post("/checkpass.php", "XXID=1&XXPS=pw&action=Submit"))

	assert.True(t, out.Submitted)
	assert.Equal(t, credentials.Credential{SSID: "Cafe Guest", Password: "pw"}, out.Credential)
}

func TestLegacyHandler_RejectsLongLine(t *testing.T) {
	store := &memStore{}
	sess := newSession(store)
	body := "XXID=" + strings.Repeat("n", 30) + "&XXPS=" + strings.Repeat("p", 30) + "&action=Submit"

	out, resp := serve(t, LegacyFormHandler{}, sess, post("/checkpass.php", body))

	requireOK(t, resp)
	assert.False(t, out.Submitted)
	assert.Empty(t, store.writes)
}

func TestLegacyHandler_Probe(t *testing.T) {
	out, resp := serve(t, LegacyFormHandler{}, newSession(nil), get("/generate_204"))

	body := requireOK(t, resp)
	assert.Equal(t, RouteProbe, out.Route)
	assert.Contains(t, body, "url=http://42.7.9.1/")
}

func TestServer_PollOnce(t *testing.T) {
	l := fakenet.NewListener(&net.TCPAddr{IP: net.IPv4(42, 7, 9, 1), Port: DefaultPort})
	sess := newSession(&memStore{})
	srv := NewServer(l, nil, sess)

	assert.False(t, srv.PollOnce(context.Background()), "nothing pending")
	assert.False(t, srv.Submitted())

	first := fakenet.NewConn(get("/"), client)
	second := fakenet.NewConn(post("/connect", "network=0&password=pw"), client)
	l.Enqueue(first)
	l.Enqueue(second)

	assert.True(t, srv.PollOnce(context.Background()))
	assert.True(t, first.Closed())
	assert.Equal(t, 1, l.Pending())
	assert.False(t, srv.Submitted())

	assert.True(t, srv.PollOnce(context.Background()))
	assert.True(t, second.Closed())
	assert.True(t, srv.Submitted())

	require.NoError(t, srv.Close())
	assert.False(t, srv.PollOnce(context.Background()))
}
