package shield

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig is a fixed-window rule.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	Enabled     bool
}

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter limits requests per caller key inside fixed windows. The key
// is the API key when one is presented, the client IP otherwise, so one
// noisy extension install cannot starve others behind the same NAT.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter returns a limiter enforcing cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// StartGC drops expired buckets every interval until done is closed.
func (rl *RateLimiter) StartGC(interval time.Duration, done <-chan struct{}) {
	tick := time.NewTicker(interval)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.gc()
			}
		}
	}()
}

func (rl *RateLimiter) gc() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, k)
		}
	}
}

// Allow records one request for key and reports whether it is within the
// limit. The second value is the time left in the current window.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	if !rl.cfg.Enabled || rl.cfg.MaxRequests <= 0 {
		return true, 0
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(rl.cfg.Window)}
		return true, rl.cfg.Window
	}
	b.count++
	return b.count <= rl.cfg.MaxRequests, b.resetAt.Sub(now)
}

// Middleware answers 429 with a JSON error once a caller exceeds the rule.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := CallerKey(r)
		ok, left := rl.Allow(key)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		GetLogger(r.Context()).Warn("ratelimit: request blocked", "key", maskCaller(key))

		secs := int(left.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "rate limit exceeded",
		})
	})
}

// CallerKey identifies the caller: "key:<api key>" from X-API-Key or a
// Bearer token, else "ip:<client ip>".
func CallerKey(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return "key:" + k
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return "key:" + strings.TrimPrefix(h, "Bearer ")
	}
	return "ip:" + ExtractIP(r)
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func maskCaller(key string) string {
	if strings.HasPrefix(key, "key:") && len(key) > 16 {
		return key[:12] + "..."
	}
	return key
}
