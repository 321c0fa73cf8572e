package portal

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/logging"
)

const (
	// DefaultPort is the captive portal HTTP port.
	DefaultPort = 80

	// DefaultPollTimeout is how long PollOnce waits for a connection.
	DefaultPollTimeout = 10 * time.Millisecond
)

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Server accepts portal connections one at a time. Each PollOnce serves at
// most one client to completion before returning.
type Server struct {
	listener      net.Listener
	handler       Handler
	session       *Session
	pollTimeout   time.Duration
	clientTimeout time.Duration
}

// NewServer creates a server that hands connections from l to h.
func NewServer(l net.Listener, h Handler, sess *Session) *Server {
	if h == nil {
		h = RoutedHandler{}
	}
	return &Server{
		listener:    l,
		handler:     h,
		session:     sess,
		pollTimeout: DefaultPollTimeout,
	}
}

// SetPollTimeout changes how long PollOnce waits for a connection.
func (s *Server) SetPollTimeout(d time.Duration) {
	s.pollTimeout = d
}

// SetClientTimeout bounds how long one client may hold the portal. Zero
// means no limit: a client that never finishes its request stalls the loop.
func (s *Server) SetClientTimeout(d time.Duration) {
	s.clientTimeout = d
}

// Session returns the shared session.
func (s *Server) Session() *Session {
	return s.session
}

// Submitted reports whether a credential has been submitted in this session.
func (s *Server) Submitted() bool {
	_, ok := s.session.Submitted()
	return ok
}

// PollOnce serves at most one pending connection and reports whether one was
// served.
func (s *Server) PollOnce(ctx context.Context) bool {
	if d, ok := s.listener.(deadliner); ok {
		_ = d.SetDeadline(time.Now().Add(s.pollTimeout))
	}

	conn, err := s.listener.Accept()
	if err != nil {
		var ne net.Error
		switch {
		case errors.As(err, &ne) && ne.Timeout():
		case errors.Is(err, net.ErrClosed):
		default:
			logging.Error("Failed to accept connection", zap.Error(err))
		}
		return false
	}

	remote := conn.RemoteAddr().String()
	logging.LogConnection(remote, "connection_accepted")
	defer func() {
		_ = conn.Close()
		logging.LogConnection(remote, "connection_closed")
	}()

	if s.clientTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.clientTimeout))
	}

	out := s.handler.Handle(ctx, conn, s.session)
	logging.Debug("Portal request handled",
		zap.String("remote_addr", remote),
		zap.String("route", out.Route),
		zap.Bool("submitted", out.Submitted),
		zap.Bool("connected", out.Connected),
	)
	return true
}

// Close stops accepting connections.
func (s *Server) Close() error {
	return s.listener.Close()
}
