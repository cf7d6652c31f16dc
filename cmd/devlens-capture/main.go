// CLAUDE:SUMMARY CLI entry point for the capture host: open a page, pick an element, optionally file a bug report.
// Command devlens-capture opens a page in Chrome, lets you pick an element
// with the DevLens overlay and emits the element descriptor to the
// configured sinks.
//
// Usage:
//
//	devlens-capture -url http://localhost:3000
//	devlens-capture -config capture.yaml
//	devlens-capture -url http://localhost:3000 -submit -comment "Save does nothing"
//
// With -submit the report (screenshot, console errors, picked element) is
// sent to the DevLens API using DEVLENS_API_KEY, DEVLENS_PROJECT_ID and
// DEVLENS_API_URL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/devlens/capture"
	"github.com/hazyhaar/devlens/client"
)

func main() {
	configPath := flag.String("config", "", "path to capture YAML config file")
	pageURL := flag.String("url", "", "page to open (overrides page.url)")
	submit := flag.Bool("submit", false, "submit a bug report to the DevLens API after picking")
	comment := flag.String("comment", "", "bug report description (required with -submit)")
	headless := flag.Bool("headless", false, "run Chrome headless")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *submit && *comment == "" {
		fmt.Fprintln(os.Stderr, "devlens-capture: -submit requires -comment")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *pageURL, *headless, *submit, *comment); err != nil {
		logger.Error("devlens-capture: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, pageURL string, headless, submit bool, comment string) error {
	cfg := capture.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = capture.LoadConfigFile(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if headless {
		cfg.Browser.Headless = true
	}
	if pageURL == "" && cfg.Page.URL == "" {
		fmt.Fprintln(os.Stderr, "usage: devlens-capture -url <url> | -config <file> [-submit -comment <text>]")
		os.Exit(2)
	}

	// The API client is built before the browser so a missing key fails fast.
	var api *client.Client
	if submit {
		var err error
		if api, err = client.FromEnv(); err != nil {
			return err
		}
	}

	sinks, err := capture.SinksFromConfig(cfg, os.Stdout, logger)
	if err != nil {
		return err
	}
	c := capture.New(cfg, logger, sinks...)
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		return err
	}
	s, err := c.Open(ctx, pageURL)
	if err != nil {
		return err
	}
	defer s.Close()

	logger.Info("devlens-capture: pick an element (Escape cancels)", "url", s.URL())
	_, err = s.Pick(ctx)
	switch {
	case errors.Is(err, capture.ErrCancelled), errors.Is(err, capture.ErrNavigated):
		logger.Info("devlens-capture: picking ended without a selection", "reason", err)
		if !submit {
			return nil
		}
	case err != nil && ctx.Err() != nil:
		return nil
	case err != nil:
		return err
	}

	if err := s.EmitConsoleErrors(ctx); err != nil {
		logger.Warn("devlens-capture: emit console errors", "error", err)
	}
	if !submit {
		return nil
	}

	fb, err := s.Feedback(ctx, comment)
	if err != nil {
		return err
	}
	created, err := api.SubmitFeedback(ctx, fb)
	if err != nil {
		return err
	}
	logger.Info("devlens-capture: report submitted", "id", created.ID, "project_id", created.ProjectID)
	fmt.Println(client.FormatDetail(created))
	return nil
}
