package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gangplank_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gangplank_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// PeersConnected tracks currently connected peers per transport
	PeersConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gangplank_peers_connected",
			Help: "Number of currently connected peers",
		},
		[]string{"transport"},
	)

	// EventsBroadcast counts events fanned out to peers
	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gangplank_events_broadcast_total",
			Help: "Total number of events broadcast to peers",
		},
		[]string{"kind"},
	)

	// FramesDropped counts frames evicted from full peer queues
	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gangplank_frames_dropped_total",
			Help: "Total number of frames dropped due to peer queue overflow",
		},
		[]string{"transport"},
	)

	// InboundMessages counts inbound peer messages by classification
	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gangplank_inbound_messages_total",
			Help: "Total number of inbound peer messages",
		},
		[]string{"type"},
	)

	// Confirmations counts confirmation resolutions by outcome
	Confirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gangplank_confirmations_total",
			Help: "Total number of tool confirmation resolutions",
		},
		[]string{"outcome"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher for SSE support
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker so connection upgrades work behind the
// middleware
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

// Middleware creates an HTTP middleware that records metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		RequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// normalizePath normalizes URL paths to avoid high cardinality
func normalizePath(path string) string {
	switch path {
	case "/", "/tasks", "/ws", "/health", "/metrics",
		"/.well-known/agent-card.json", "/v1/message:stream":
		return path
	default:
		if strings.HasPrefix(path, "/tasks/") {
			return "/tasks/:taskId"
		}
		if strings.HasPrefix(path, "/v1/tasks/") {
			return "/v1/tasks/:taskId"
		}
		return "other"
	}
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPeerConnect increments the connected peer gauge
func RecordPeerConnect(transport string) {
	PeersConnected.WithLabelValues(transport).Inc()
}

// RecordPeerDisconnect decrements the connected peer gauge
func RecordPeerDisconnect(transport string) {
	PeersConnected.WithLabelValues(transport).Dec()
}

// RecordFrameDrop records a frame evicted from a full peer queue
func RecordFrameDrop(transport string) {
	FramesDropped.WithLabelValues(transport).Inc()
}

// RecordInbound records an inbound peer message classification
func RecordInbound(kind string) {
	InboundMessages.WithLabelValues(kind).Inc()
}

// RecordConfirmation records a confirmation resolution outcome
func RecordConfirmation(outcome string) {
	Confirmations.WithLabelValues(outcome).Inc()
}
