// Package shield provides the HTTP middleware stack of the DevLens API:
// security headers, CORS for the browser extension, body limits, request
// ids with a per-request logger, and per-key rate limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultAPIStack(shield.StackConfig{}) {
//	    r.Use(mw)
//	}
package shield

import (
	"net/http"
	"time"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// StackConfig tunes DefaultAPIStack. Zero values take defaults.
type StackConfig struct {
	MaxBodyBytes   int64
	AllowedOrigins []string
}

func (c *StackConfig) defaults() {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 10 << 20
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}

// DefaultAPIStack returns the middleware applied to every API route, in
// order: RequestID, SecurityHeaders, CORS, MaxBody.
func DefaultAPIStack(cfg StackConfig) []func(http.Handler) http.Handler {
	cfg.defaults()
	return []func(http.Handler) http.Handler{
		RequestID,
		SecurityHeaders(DefaultHeaders()),
		CORS(cfg.AllowedOrigins),
		MaxBody(cfg.MaxBodyBytes),
	}
}

// FeedbackLimit is the default submission rule: 30 reports per minute per key.
var FeedbackLimit = RateLimitConfig{MaxRequests: 30, Window: time.Minute, Enabled: true}
