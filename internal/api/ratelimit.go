package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// limiterSweepInterval is how often stale clients are swept out.
	limiterSweepInterval = 5 * time.Minute
	// limiterIdleEviction is how long a client must be idle before its
	// bucket is dropped. Longer than any refill window, so an evicted
	// client re-enters with a full burst it had earned anyway.
	limiterIdleEviction = 10 * time.Minute
)

// clientLimiters hands out one token bucket per client IP. Query and
// ingestion calls fan out to metered model APIs, so buckets refill
// slowly and interactive use lives off burst headroom.
type clientLimiters struct {
	mu        sync.Mutex
	clients   map[string]*clientEntry
	newBucket func() *rate.Limiter
	nextSweep time.Time
}

type clientEntry struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// newClientLimiters creates the per-IP limiter table. perSecond is the
// refill rate of each bucket, burst its capacity.
func newClientLimiters(perSecond float64, burst int) *clientLimiters {
	return &clientLimiters{
		clients: make(map[string]*clientEntry),
		newBucket: func() *rate.Limiter {
			return rate.NewLimiter(rate.Limit(perSecond), burst)
		},
		nextSweep: time.Now().Add(limiterSweepInterval),
	}
}

// take consumes one token from ip's bucket, creating the bucket on
// first sight. Returns false when the bucket is empty.
func (c *clientLimiters) take(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.After(c.nextSweep) {
		c.sweep(now)
	}

	entry, ok := c.clients[ip]
	if !ok {
		entry = &clientEntry{bucket: c.newBucket()}
		c.clients[ip] = entry
	}
	entry.lastSeen = now
	return entry.bucket.Allow()
}

// sweep evicts idle clients. Caller holds the lock.
func (c *clientLimiters) sweep(now time.Time) {
	for ip, entry := range c.clients {
		if now.Sub(entry.lastSeen) > limiterIdleEviction {
			delete(c.clients, ip)
		}
	}
	c.nextSweep = now.Add(limiterSweepInterval)
}

// rateLimitMiddleware rejects requests from clients whose bucket is
// exhausted.
func rateLimitMiddleware(limiters *clientLimiters, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !limiters.take(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP picks the limiter key for a request. Proxy headers are only
// honored when the deployment says a trusted proxy sets them; otherwise
// anyone could mint fresh buckets per request.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedIP(r); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// forwardedIP returns the proxy-reported client address, or "" when no
// header carries a parseable IP. X-Real-IP wins over X-Forwarded-For;
// only the first XFF hop is considered.
func forwardedIP(r *http.Request) string {
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
		return ip.String()
	}
	return ""
}
