// Package http exposes the dialog engine over the aggregator's HTTP
// callback protocol: one GET per keystroke, a plain-text CON/END reply.
package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ebosacco/ussd-gateway/internal/logging"
	"github.com/ebosacco/ussd-gateway/pkg/domain"
	"github.com/ebosacco/ussd-gateway/pkg/engine"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ussd_requests_total",
		Help: "Inbound USSD callbacks by reply kind.",
	}, []string{"reply"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ussd_request_duration_seconds",
		Help:    "End-to-end latency of one USSD callback.",
		Buckets: prometheus.DefBuckets,
	})
)

// Dialer processes one keystroke. Implemented by engine.Engine.
type Dialer interface {
	Handle(ctx context.Context, req engine.Request) engine.Reply
}

// SessionCleaner destroys a session out of band (support tooling).
type SessionCleaner interface {
	Destroy(ctx context.Context, key domain.SessionKey) error
}

// Server is the HTTP face of the gateway.
type Server struct {
	dialer  Dialer
	cleaner SessionCleaner
	apiKey  string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithCleaner enables POST /sessions/cleanup, guarded by apiKey.
func WithCleaner(cleaner SessionCleaner, apiKey string) Option {
	return func(s *Server) {
		s.cleaner = cleaner
		s.apiKey = apiKey
	}
}

// WithTimeout bounds one callback end to end. The aggregator itself gives up
// after a few seconds, so there is no point holding the dialog longer.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates the Server.
func NewServer(dialer Dialer, opts ...Option) *Server {
	s := &Server{
		dialer:  dialer,
		timeout: 15 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ussd/{msisdn}/{sessionId}/{shortcode}", s.handleUSSD)
	r.Get("/ussd/{msisdn}/{sessionId}/{shortcode}/{response}", s.handleUSSD)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	if s.cleaner != nil {
		r.Post("/sessions/cleanup", s.handleCleanup)
	}
	return r
}

// handleUSSD serves one keystroke. Whatever happens, the reply is text/plain
// with a CON or END prefix; aggregators treat anything else as a dead line.
func (s *Server) handleUSSD(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Shortcodes carry "#" and "*", which arrive percent-encoded; chi hands
	// the raw segment back.
	req := engine.Request{
		Msisdn:    pathParam(r, "msisdn"),
		SessionID: pathParam(r, "sessionId"),
		Shortcode: pathParam(r, "shortcode"),
		Input:     pathParam(r, "response"),
	}

	if !digitsOnly(req.Msisdn) || req.SessionID == "" || req.Shortcode == "" {
		s.logger.Warn("malformed callback",
			"msisdn", req.Msisdn,
			"session_id", req.SessionID,
			"shortcode", req.Shortcode,
		)
		s.writeReply(w, engine.Reply{Continue: false, Text: "Invalid request."})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	reply := s.dialer.Handle(ctx, req)
	s.writeReply(w, reply)

	requestDuration.Observe(time.Since(start).Seconds())
}

func (s *Server) writeReply(w http.ResponseWriter, reply engine.Reply) {
	kind := "end"
	if reply.Continue {
		kind = "con"
	}
	requestsTotal.WithLabelValues(kind).Inc()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(reply.String())); err != nil {
		s.logger.Warn("reply write failed", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleCleanup force-destroys one session. Support uses this to unstick a
// subscriber whose carrier session wedged mid-dialog.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	provided := r.Header.Get("X-API-Key")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.apiKey)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		Msisdn    string `json:"msisdn"`
		SessionID string `json:"sessionId"`
		Shortcode string `json:"shortcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Msisdn == "" || body.SessionID == "" || body.Shortcode == "" {
		http.Error(w, "msisdn, sessionId and shortcode are required", http.StatusBadRequest)
		return
	}

	key := domain.SessionKey{Msisdn: body.Msisdn, SessionID: body.SessionID, Shortcode: body.Shortcode}
	if err := s.cleaner.Destroy(r.Context(), key); err != nil {
		s.logger.Error("session cleanup failed", "msisdn", body.Msisdn, "err", err)
		http.Error(w, "cleanup failed", http.StatusInternalServerError)
		return
	}

	s.logger.Info("session cleaned up", "msisdn", body.Msisdn, "session_id", body.SessionID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "destroyed"})
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
