// Package metrics exposes server counters in Prometheus format.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server collectors
type Metrics struct {
	registry       *prometheus.Registry
	sessions       prometheus.Counter
	activeSessions prometheus.Gauge
	logins         *prometheus.CounterVec
	commands       *prometheus.CounterVec
	replies        *prometheus.CounterVec
	bytes          *prometheus.CounterVec
	transfers      *prometheus.CounterVec
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ftserve_sessions_total",
			Help: "Total number of accepted control connections",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ftserve_sessions_active",
			Help: "Number of sessions currently running",
		}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ftserve_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}), // "ok", "failed"
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ftserve_commands_total",
			Help: "Commands received by verb",
		}, []string{"verb"}),
		replies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ftserve_replies_total",
			Help: "Status codes sent on control connections",
		}, []string{"code"}),
		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ftserve_data_bytes_total",
			Help: "Bytes moved over data connections by direction",
		}, []string{"direction"}), // "sent", "received"
		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ftserve_transfers_total",
			Help: "Data transfers by mode and result",
		}, []string{"mode", "result"}),
	}
}

// SessionStarted records an accepted connection
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
	m.activeSessions.Inc()
}

// SessionEnded records a terminated session
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// RecordLogin records a login attempt
func (m *Metrics) RecordLogin(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.logins.WithLabelValues(result).Inc()
}

// RecordCommand records a received command. Unknown verbs share one label.
func (m *Metrics) RecordCommand(verb string, known bool) {
	if m == nil {
		return
	}
	if !known {
		verb = "unknown"
	}
	m.commands.WithLabelValues(verb).Inc()
}

// RecordReply records a status code sent to a client
func (m *Metrics) RecordReply(code uint32) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
}

// AddBytesSent records payload bytes written to data connections
func (m *Metrics) AddBytesSent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues("sent").Add(float64(n))
}

// AddBytesReceived records payload bytes read from data connections
func (m *Metrics) AddBytesReceived(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues("received").Add(float64(n))
}

// RecordTransfer records the outcome of a listing, send or receive
func (m *Metrics) RecordTransfer(mode string, ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.transfers.WithLabelValues(mode, result).Inc()
}

// Handler serves the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
