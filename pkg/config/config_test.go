package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lemonberrylabs/calculator/pkg/compiler"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Level() != compiler.OptDefault {
		t.Errorf("got level %s, want default", cfg.Level())
	}
	if cfg.Addr() != "0.0.0.0:8787" || cfg.GRPCAddr() != "0.0.0.0:8788" {
		t.Errorf("unexpected addresses %s %s", cfg.Addr(), cfg.GRPCAddr())
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calculator.yaml")
	content := `
port: 9000
optimizationLevel: aggressive
historyLimit: 25
accessLog: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9000 || cfg.HistoryLimit != 25 || !cfg.AccessLog {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.Level() != compiler.OptAggressive {
		t.Errorf("got level %s, want aggressive", cfg.Level())
	}
	// Untouched fields keep their defaults.
	if cfg.GRPCPort != 8788 || cfg.MaxExpressionLength != 4096 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envFrom(map[string]string{
		"HOST":      "127.0.0.1",
		"PORT":      "1234",
		"GRPC_PORT": "1235",
		"OPT_LEVEL": "none",
		"LOG_LEVEL": "debug",
	}))
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:1234" || cfg.GRPCAddr() != "127.0.0.1:1235" {
		t.Errorf("unexpected addresses %s %s", cfg.Addr(), cfg.GRPCAddr())
	}
	if cfg.Level() != compiler.OptNone || cfg.LogLevel != "debug" {
		t.Errorf("unexpected values %+v", cfg)
	}

	if err := Default().ApplyEnv(envFrom(map[string]string{"PORT": "eighty"})); err == nil {
		t.Error("expected error for non-numeric PORT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Port = 70000 }, "port 70000"},
		{"same ports", func(c *Config) { c.GRPCPort = c.Port }, "must differ"},
		{"level", func(c *Config) { c.OptimizationLevel = "turbo" }, "turbo"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "loud"},
		{"history", func(c *Config) { c.HistoryLimit = -1 }, "historyLimit"},
		{"length", func(c *Config) { c.MaxExpressionLength = -1 }, "maxExpressionLength"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("%q: got %v, %v; want %v", in, got, err, want)
		}
	}
}
