// Package dashboard is the DevLens feedback API: accounts, projects with
// their routing domains, and the bug reports submitted by the capture host
// or the browser extension.
//
// It exposes a chi router via [Service.RegisterHTTP] and a set of MCP tools
// via [Service.RegisterMCP] so coding assistants can triage reports.
//
//	svc, _ := dashboard.New(db, dashboard.Config{Driver: dbopen.SQLite}, logger)
//	r := chi.NewRouter()
//	svc.RegisterHTTP(r)
package dashboard

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/devlens/dashboard/internal/store"
	"github.com/hazyhaar/devlens/dbopen"
	"github.com/hazyhaar/devlens/guard"
	"github.com/hazyhaar/devlens/idgen"
	"github.com/hazyhaar/devlens/shield"
)

// Subscription tiers.
const (
	TierFree = "free"
	TierPro  = "pro"
	TierTeam = "team"
)

// Limits are the per-tier quotas. Zero means unlimited.
type Limits struct {
	Projects         int `yaml:"projects" json:"projects"`
	FeedbackPerMonth int `yaml:"feedback_per_month" json:"feedbackPerMonth"`
	RetentionDays    int `yaml:"retention_days" json:"retentionDays"`
}

// DefaultLimits maps each tier to its quotas.
func DefaultLimits() map[string]Limits {
	return map[string]Limits{
		TierFree: {Projects: 1, FeedbackPerMonth: 10, RetentionDays: 7},
		TierPro:  {Projects: 10, FeedbackPerMonth: 100, RetentionDays: 30},
		TierTeam: {Projects: 50, FeedbackPerMonth: 500, RetentionDays: 90},
	}
}

// Config holds the dashboard settings.
type Config struct {
	// Driver is dbopen.SQLite (default) or dbopen.Postgres.
	Driver string `yaml:"driver" json:"driver"`

	// BaseURL is the public origin of the server; links to screenshots and
	// the API URL handed to the extension are built from it.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Secret signs session tokens. Sessions are disabled when empty.
	Secret        []byte        `yaml:"-" json:"-"`
	SessionTTL    time.Duration `yaml:"session_ttl" json:"session_ttl"`
	SecureCookies bool          `yaml:"secure_cookies" json:"secure_cookies"`

	DisableRegistration bool `yaml:"disable_registration" json:"disable_registration"`

	MaxBodyBytes   int64    `yaml:"max_body_bytes" json:"max_body_bytes"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`

	// SubmitLimit rate-limits POST /api/feedback per caller.
	SubmitLimit shield.RateLimitConfig `yaml:"-" json:"-"`

	Tiers map[string]Limits `yaml:"tiers" json:"tiers"`

	// MCPAPIKey is the user API key the MCP tools act as when the call
	// context carries no user.
	MCPAPIKey string `yaml:"-" json:"-"`
}

func (c *Config) defaults() {
	if c.Driver == "" {
		c.Driver = dbopen.SQLite
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.SessionTTL <= 0 {
		c.SessionTTL = 7 * 24 * time.Hour
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 10 << 20
	}
	if c.SubmitLimit == (shield.RateLimitConfig{}) {
		c.SubmitLimit = shield.FeedbackLimit
	}
	if c.Tiers == nil {
		c.Tiers = DefaultLimits()
	}
}

// Service is the dashboard orchestrator.
type Service struct {
	store     *store.Store
	cfg       Config
	logger    *slog.Logger
	sanitizer *bluemonday.Policy
	limiter   *shield.RateLimiter
	newID     func() string
	now       func() time.Time
	done      chan struct{}
}

// New creates a Service over db and applies the schema.
func New(db *sql.DB, cfg Config, logger *slog.Logger) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("dashboard: DB is required")
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Secret) > 0 {
		if err := guard.ValidateSecret(cfg.Secret); err != nil {
			return nil, fmt.Errorf("dashboard: %w", err)
		}
	}
	if err := store.ApplySchema(db, cfg.Driver); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	svc := &Service{
		store:     store.NewStore(db, cfg.Driver),
		cfg:       cfg,
		logger:    logger,
		sanitizer: bluemonday.UGCPolicy(),
		limiter:   shield.NewRateLimiter(cfg.SubmitLimit),
		newID:     idgen.New,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	svc.limiter.StartGC(time.Minute, svc.done)
	return svc, nil
}

// Close stops background work. The database is owned by the caller.
func (svc *Service) Close() error {
	select {
	case <-svc.done:
	default:
		close(svc.done)
	}
	return nil
}

// APIURL is the base URL of the JSON API.
func (svc *Service) APIURL() string {
	return svc.cfg.BaseURL + "/api"
}

func (svc *Service) limits(tier string) Limits {
	if l, ok := svc.cfg.Tiers[tier]; ok {
		return l
	}
	return svc.cfg.Tiers[TierFree]
}

// monthStart is the first instant of the current UTC month.
func (svc *Service) monthStart() time.Time {
	now := svc.now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// UserIDByKey implements auth.KeyLookup.
func (svc *Service) UserIDByKey(ctx context.Context, key string) (string, error) {
	u, err := svc.store.UserByAPIKey(ctx, key)
	if err != nil || u == nil {
		return "", err
	}
	return u.ID, nil
}

// ProjectByKey implements auth.KeyLookup.
func (svc *Service) ProjectByKey(ctx context.Context, key string) (string, string, error) {
	p, err := svc.store.ProjectByAPIKey(ctx, key)
	if err != nil || p == nil {
		return "", "", err
	}
	return p.ID, p.UserID, nil
}
