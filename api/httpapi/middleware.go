package httpapi

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// statusRecorder captures the response code. It forwards Hijack so WebSocket upgrades still work.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func routeOf(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// instrument records request counts, errors and latency per route template.
func instrument(reg prometheus.Registerer) mux.MiddlewareFunc {
	f := promauto.With(reg)
	requests := f.NewCounterVec(prometheus.CounterOpts{
		Name: "ecorewards_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"path", "code"})
	failures := f.NewCounterVec(prometheus.CounterOpts{
		Name: "ecorewards_http_errors_total",
		Help: "HTTP requests answered with a 4xx or 5xx code",
	}, []string{"path", "code"})
	duration := f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ecorewards_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "code"})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			labels := prometheus.Labels{"path": routeOf(r), "code": strconv.Itoa(rec.status)}
			requests.With(labels).Inc()
			duration.With(labels).Observe(time.Since(start).Seconds())
			if rec.status >= http.StatusBadRequest {
				failures.With(labels).Inc()
			}
		})
	}
}

func requestLog(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Debug("http request",
				"method", r.Method,
				"route", routeOf(r),
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

// withCORS applies the gorilla CORS policy; preflight requests are answered with 204.
func withCORS(next http.Handler, origin string) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{origin}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-API-Key"}),
		handlers.OptionStatusCode(http.StatusNoContent),
	)(next)
}

type slogPrinter struct{ log *slog.Logger }

func (p slogPrinter) Println(v ...interface{}) {
	p.log.Error("panic recovered", "error", strings.TrimSpace(fmt.Sprintln(v...)))
}

func withRecovery(next http.Handler, log *slog.Logger) http.Handler {
	return handlers.RecoveryHandler(handlers.RecoveryLogger(slogPrinter{log}))(next)
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm, burst int, cleanup time.Duration) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	limiter.cleanup = cleanup
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	// browsers cannot set headers on WebSocket handshakes
	if r.URL.Path != "" && strings.HasSuffix(r.URL.Path, "/ws") {
		return r.URL.Query().Get("api_key")
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	now   func() time.Time
	// cleanup is how often idle buckets are dropped; zero disables it.
	cleanup   time.Duration
	lastSweep time.Time
	mu        sync.Mutex
	b         map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		now:   time.Now,
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cleanup > 0 && now.Sub(l.lastSweep) >= l.cleanup {
		l.sweepLocked(now)
	}

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweepLocked drops buckets idle for a whole cleanup interval; they would be full again anyway.
func (l *rateLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-l.cleanup)
	for k, b := range l.b {
		if b.last.Before(cutoff) {
			delete(l.b, k)
		}
	}
	l.lastSweep = now
}
