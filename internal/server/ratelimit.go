package server

import (
	"net"
	"net/http"
	"sync"

	"github.com/psalterlabs/lectio/internal/metrics"
	"golang.org/x/time/rate"
)

// ipRateLimiter keeps one token bucket per client IP for the generation
// endpoints, which are backed by a slow model call.
type ipRateLimiter struct {
	mu        sync.Mutex
	ips       map[string]*rate.Limiter
	rateLimit rate.Limit
	burst     int
}

func newIPRateLimiter(r rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		ips:       make(map[string]*rate.Limiter),
		rateLimit: r,
		burst:     burst,
	}
}

func (l *ipRateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.ips[ip]
	if !ok {
		limiter = rate.NewLimiter(l.rateLimit, l.burst)
		l.ips[ip] = limiter
	}
	return limiter
}

// limitGeneration rejects requests over the per-IP budget with 429.
func (s *Server) limitGeneration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !s.limiter.limiterFor(ip).Allow() {
			s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for the request counter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// countRequests records per-path request counts labelled by status.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RecordRequest(r.URL.Path, http.StatusText(rec.status))
	})
}
