// Package telemetry holds the Prometheus counters for the provisioning flow
// and the captive-portal services.
package telemetry

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/logging"
)

var (
	// DNSQueries counts datagrams seen by the DNS responder
	DNSQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "easywifi",
			Name:      "dns_queries_total",
			Help:      "Total number of DNS datagrams received by the portal responder",
		},
		[]string{"result"},
	)

	// PortalRequests counts HTTP requests by route
	PortalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "easywifi",
			Name:      "portal_requests_total",
			Help:      "Total number of captive portal HTTP requests",
		},
		[]string{"route"},
	)

	// Submissions counts credential submissions by outcome
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "easywifi",
			Name:      "credential_submissions_total",
			Help:      "Total number of credential submissions received by the portal",
		},
		[]string{"outcome"},
	)

	// ConnectAttempts counts station connect attempts by outcome
	ConnectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "easywifi",
			Name:      "connect_attempts_total",
			Help:      "Total number of network connect attempts",
		},
		[]string{"outcome"},
	)

	// AccessPointSessions counts access point start attempts by outcome
	AccessPointSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "easywifi",
			Name:      "access_point_sessions_total",
			Help:      "Total number of access point start attempts",
		},
		[]string{"outcome"},
	)

	// State reports the current provisioning state as a labelled gauge
	State = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "easywifi",
			Name:      "state",
			Help:      "1 for the current provisioning state, 0 otherwise",
		},
		[]string{"state"},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// It is safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		for _, c := range []prometheus.Collector{
			DNSQueries,
			PortalRequests,
			Submissions,
			ConnectAttempts,
			AccessPointSessions,
			State,
		} {
			if err := prometheus.DefaultRegisterer.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					logging.Warn("Metric registration failed", zap.Error(err))
				}
			}
		}
	})
}

// SetState marks name as the only active state.
func SetState(name string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == name {
			v = 1
		}
		State.WithLabelValues(s).Set(v)
	}
}

// Handler returns the /metrics handler.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve exposes /metrics on l until it is closed. It returns once the
// listener fails.
func Serve(l net.Listener) error {
	InitMetrics()
	srv := &http.Server{
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logging.Info("Serving metrics", zap.String("addr", l.Addr().String()))
	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
