package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFile(t *testing.T) {
	t.Setenv("DEVLENS_PROJECT_KEY", "proj_0123")
	path := filepath.Join(t.TempDir(), "capture.yaml")
	src := `
browser:
  headless: true
  stealth: true
  resource_blocking: [fonts, media]
page:
  url: https://shop.example.com
  viewport: {width: 1280, height: 800}
console:
  levels: [ERROR]
sinks:
  - type: webhook
    url: https://devlens.example.com/hook
    api_key: ${DEVLENS_PROJECT_KEY}
`
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Browser: BrowserConfig{Headless: true, Stealth: true, ResourceBlocking: []string{"fonts", "media"}},
		Page: PageConfig{
			URL:             "https://shop.example.com",
			Viewport:        Viewport{Width: 1280, Height: 800},
			NavigateTimeout: 30 * time.Second,
		},
		Console: ConsoleConfig{MaxEntries: 100, Levels: []string{"error"}},
		Sinks:   []SinkConfig{{Type: "webhook", URL: "https://devlens.example.com/hook", APIKey: "proj_0123"}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("page:\n  url: http://localhost:3000\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Console.MaxEntries != 100 {
		t.Errorf("max entries = %d", cfg.Console.MaxEntries)
	}
	if diff := cmp.Diff([]string{"error", "warn"}, cfg.Console.Levels); diff != "" {
		t.Errorf("levels:\n%s", diff)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "stdout" {
		t.Errorf("sinks = %+v", cfg.Sinks)
	}
	if cfg.Browser.Headless {
		t.Error("headless should default to false for interactive picking")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bad level", "console:\n  levels: [debug]\n", "console level"},
		{"webhook without url", "sinks:\n  - type: webhook\n", "needs a url"},
		{"unknown sink", "sinks:\n  - type: nats\n", "unknown type"},
		{"bad yaml", "page: [", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
