// CLAUDE:SUMMARY Entry point for the DevLens dashboard API: chi router, SQLite or Postgres store, retention sweep, MCP over stdio.
// Command devlens-server runs the DevLens feedback API.
//
// Usage:
//
//	devlens-server                          # HTTP API on $PORT
//	devlens-server -mcp stdio               # MCP tools on stdin/stdout, acting as $DEVLENS_API_KEY
//	devlens-server set-tier <email> <tier>  # change a subscription tier
//
// Environment: PORT, DB_DRIVER (sqlite|pgx), DATABASE_URL, SESSION_SECRET,
// BASE_URL, SECURE_COOKIES, DISABLE_REGISTRATION, ALLOWED_ORIGINS,
// RETENTION_INTERVAL, LOG_LEVEL, DEVLENS_API_KEY.
package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/devlens/dashboard"
	"github.com/hazyhaar/devlens/dbopen"
)

func main() {
	mcpTransport := flag.String("mcp", "", "serve MCP tools instead of HTTP (stdio)")
	flag.Parse()

	// MCP over stdio owns stdout, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(env("LOG_LEVEL", "info"))}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, *mcpTransport, flag.Args()); err != nil {
		logger.Error("devlens-server: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, mcpTransport string, args []string) error {
	driver := env("DB_DRIVER", dbopen.SQLite)
	dsn := env("DATABASE_URL", "data/devlens.db")
	db, err := dbopen.Open(dsn, dbopen.WithDriver(driver), dbopen.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	svc, err := newService(db, driver, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	if len(args) > 0 {
		switch args[0] {
		case "set-tier":
			if len(args) != 3 {
				return errors.New("usage: devlens-server set-tier <email> <free|pro|team>")
			}
			if err := svc.SetTier(ctx, args[1], args[2]); err != nil {
				return err
			}
			logger.Info("tier updated", "email", args[1], "tier", args[2])
			return nil
		default:
			return fmt.Errorf("unknown command %q", args[0])
		}
	}

	switch mcpTransport {
	case "":
	case "stdio":
		srv := mcp.NewServer(&mcp.Implementation{Name: "devlens", Version: "1.0.0"}, nil)
		svc.RegisterMCP(srv)
		logger.Info("MCP stdio starting")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported MCP transport %q", mcpTransport)
	}

	interval, err := time.ParseDuration(env("RETENTION_INTERVAL", "1h"))
	if err != nil {
		return fmt.Errorf("RETENTION_INTERVAL: %w", err)
	}
	go svc.RunRetention(ctx, interval)

	port := env("PORT", "8080")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", port, "driver", driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

func newService(db *sql.DB, driver string, logger *slog.Logger) (*dashboard.Service, error) {
	cfg := dashboard.Config{
		Driver:              driver,
		BaseURL:             env("BASE_URL", ""),
		SecureCookies:       env("SECURE_COOKIES", "") == "true",
		DisableRegistration: env("DISABLE_REGISTRATION", "") == "true",
		MCPAPIKey:           os.Getenv("DEVLENS_API_KEY"),
	}
	if origins := env("ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}
	// Derive a 32-byte signing key; sessions stay off without a secret.
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		sum := sha256.Sum256([]byte(s))
		cfg.Secret = sum[:]
	} else {
		logger.Warn("SESSION_SECRET not set, cookie sessions disabled")
	}
	return dashboard.New(db, cfg, logger)
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
