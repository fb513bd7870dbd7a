package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ecorewards/core"
)

// Sink posts engine events to configured HTTP endpoints.
// Delivery is synchronous and best-effort: failures are logged, never retried.
type Sink struct {
	client    *http.Client
	endpoints []string
	types     map[core.EventType]bool
	log       *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTypes restricts delivery to the given event types. No types means all.
func WithTypes(types ...core.EventType) Option {
	return func(s *Sink) {
		if len(types) == 0 {
			s.types = nil
			return
		}
		s.types = make(map[core.EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// Handle matches the engine handler signature so the sink can subscribe to the bus.
func (s *Sink) Handle(ctx context.Context, e core.Event) {
	if len(s.endpoints) == 0 || (s.types != nil && !s.types[e.Type]) {
		return
	}
	body, err := json.Marshal(e)
	if err != nil {
		s.log.Warn("webhook encode failed", "type", e.Type, "error", err)
		return
	}
	for _, ep := range s.endpoints {
		s.post(ctx, ep, e.Type, body)
	}
}

// OnEvent posts without a caller context.
func (s *Sink) OnEvent(e core.Event) { s.Handle(context.Background(), e) }

func (s *Sink) post(ctx context.Context, endpoint string, typ core.EventType, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		s.log.Warn("webhook request invalid", "endpoint", endpoint, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ecorewards-Event", string(typ))
	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("webhook delivery failed", "endpoint", endpoint, "type", typ, "error", err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.log.Warn("webhook rejected", "endpoint", endpoint, "type", typ, "status", resp.StatusCode)
	}
}
