package portal

import (
	"context"
	"net/netip"

	"github.com/muurk/easywifi/internal/credentials"
	"github.com/muurk/easywifi/internal/scanner"
)

// CredentialWriter persists a submitted credential.
type CredentialWriter interface {
	Write(cred credentials.Credential) (int, error)
}

// Connector attempts a station connection with a submitted credential and
// reports whether the link came up.
type Connector interface {
	Connect(ctx context.Context, cred credentials.Credential) bool
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, cred credentials.Credential) bool

func (f ConnectorFunc) Connect(ctx context.Context, cred credentials.Credential) bool {
	return f(ctx, cred)
}

// Session is the state shared by the portal handlers for one access point
// session: the device identity, the last scan, and the submission flag.
type Session struct {
	DeviceAddr netip.Addr
	DeviceName string
	Networks   *scanner.NetworkList
	Store      CredentialWriter
	Connector  Connector

	submitted  bool
	submission credentials.Credential
}

// DeviceURL is the address browsers are sent to.
func (s *Session) DeviceURL() string {
	return "http://" + s.DeviceAddr.String() + "/"
}

// Submit records cred as the session's submission and raises the flag.
func (s *Session) Submit(cred credentials.Credential) {
	s.submission = cred
	s.submitted = true
}

// Submitted reports whether a credential was submitted, and which.
func (s *Session) Submitted() (credentials.Credential, bool) {
	return s.submission, s.submitted
}
