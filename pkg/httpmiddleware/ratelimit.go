package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-client request throttling.
type RateLimitConfig struct {
	// Rate is the sustained number of requests per second.
	Rate float64
	// Burst is the number of requests allowed at once.
	Burst int
	// IdleTTL evicts clients not seen for this long. Zero disables eviction.
	IdleTTL time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	clients map[string]*client
}

// NewLimiter creates a Limiter.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Limiter{cfg: cfg, clients: make(map[string]*client)}
}

func (l *Limiter) reserve(key string, now time.Time) (*rate.Limiter, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter, c.limiter.AllowN(now, 1)
}

// Evict drops clients idle longer than IdleTTL.
func (l *Limiter) Evict(now time.Time) int {
	if l.cfg.IdleTTL <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.cfg.IdleTTL {
			delete(l.clients, key)
			n++
		}
	}
	return n
}

// Run evicts idle clients until ctx is done.
func (l *Limiter) Run(ctx context.Context) error {
	if l.cfg.IdleTTL <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(l.cfg.IdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			l.Evict(now)
		}
	}
}

// Middleware rejects requests over the limit with 429 and a failed result.
func (l *Limiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			lim, ok := l.reserve(l.cfg.KeyFunc(r), now)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(math.Max(0, math.Floor(lim.TokensAt(now))))))
			if !ok {
				wait := time.Second
				if l.cfg.Rate > 0 {
					wait = time.Duration(float64(time.Second) / l.cfg.Rate)
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				WriteFailure(w, http.StatusTooManyRequests, "Too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP or the remote
// address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
