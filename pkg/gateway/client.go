// Package gateway implements the core-banking service gateway: canonical
// form payloads, the per-call encryption envelope, HTTP dispatch, and
// outcome classification.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ebosacco/ussd-gateway/internal/logging"
	"github.com/ebosacco/ussd-gateway/pkg/domain"
	"github.com/ebosacco/ussd-gateway/pkg/ports"
)

var (
	backendCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ussd_backend_calls_total",
		Help: "Backend calls by operation and classified outcome.",
	}, []string{"operation", "outcome"})

	backendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ussd_backend_call_duration_seconds",
		Help:    "Backend call duration by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// Endpoints holds one URL per backend service family.
type Endpoints struct {
	Authenticate string
	Bank         string
	Purchase     string
	Validate     string
	Other        string
}

// Gateway implements ports.ServiceGateway. It owns no state across calls:
// every call gets a fresh envelope and transaction id.
type Gateway struct {
	client    *http.Client
	endpoints Endpoints
	app       AppIdentity
	pin       *PinCipher
	logger    *slog.Logger
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithTimeout bounds a call end to end (connect + response).
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.client.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates a Gateway.
func New(endpoints Endpoints, app AppIdentity, pin *PinCipher, opts ...Option) *Gateway {
	g := &Gateway{
		client:    &http.Client{Timeout: 30 * time.Second},
		endpoints: endpoints,
		app:       app,
		pin:       pin,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Call dispatches one backend operation. Transport problems (timeout,
// unreachable host, undecryptable reply) come back as an
// OutcomeTransportFailure, not an error: the error return is reserved for
// configuration defects such as an unknown operation. Nothing here retries;
// duplicate suppression of money-moving calls is the engine's job.
func (g *Gateway) Call(ctx context.Context, op domain.Operation, params ports.CallParams) (*domain.Outcome, error) {
	req, err := g.buildRequest(op, params)
	if err != nil {
		return nil, err
	}
	url, err := g.endpoint(op)
	if err != nil {
		return nil, err
	}

	envelope, err := Seal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to seal request: %w", err)
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	g.logger.Debug("backend call",
		"operation", string(op),
		"form", req.FormID,
		"unique_id", req.UniqueID,
		"msisdn", params.Msisdn,
	)

	start := time.Now()
	outcome := g.dispatch(ctx, op, url, body, envelope)
	backendDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	backendCalls.WithLabelValues(string(op), string(outcome.Status)).Inc()

	if outcome.Status == domain.OutcomeTransportFailure {
		g.logger.Warn("backend transport failure",
			"operation", string(op),
			"unique_id", req.UniqueID,
			"detail", outcome.Message,
		)
	}
	return outcome, nil
}

func (g *Gateway) dispatch(ctx context.Context, op domain.Operation, url string, body []byte, envelope Envelope) *domain.Outcome {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return transportFailure(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", g.app.Name+"/"+g.app.Version)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return transportFailure(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(err)
	}
	if resp.StatusCode != http.StatusOK {
		return transportFailure(fmt.Errorf("backend returned HTTP %d", resp.StatusCode))
	}

	decrypted, err := Open(bytes.TrimSpace(raw), envelope)
	if err != nil {
		return transportFailure(err)
	}

	outcome, err := classify(op, decrypted)
	if err != nil {
		return transportFailure(err)
	}
	return outcome
}

func transportFailure(err error) *domain.Outcome {
	return &domain.Outcome{
		Status:  domain.OutcomeTransportFailure,
		Message: err.Error(),
	}
}
