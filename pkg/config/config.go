// Package config loads calculator settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lemonberrylabs/calculator/pkg/compiler"
)

// Config holds every setting the calculator binary reads.
type Config struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	GRPCPort            int    `yaml:"grpcPort"`
	OptimizationLevel   string `yaml:"optimizationLevel"`
	HistoryFile         string `yaml:"historyFile"`
	HistoryLimit        int    `yaml:"historyLimit"`
	LogLevel            string `yaml:"logLevel"`
	AccessLog           bool   `yaml:"accessLog"`
	MaxExpressionLength int    `yaml:"maxExpressionLength"`
}

// Default returns the built-in settings.
func Default() *Config {
	history := ".calculator_history"
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, history)
	}
	return &Config{
		Host:                "0.0.0.0",
		Port:                8787,
		GRPCPort:            8788,
		OptimizationLevel:   "default",
		HistoryFile:         history,
		HistoryLimit:        1000,
		LogLevel:            "info",
		MaxExpressionLength: 4096,
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// non-empty) and then with the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from HOST, PORT, GRPC_PORT, OPT_LEVEL and
// LOG_LEVEL. Empty variables are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}

	if v := get("HOST"); v != "" {
		c.Host = v
	}
	if v := get("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = n
	}
	if v := get("GRPC_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GRPC_PORT %q: %w", v, err)
		}
		c.GRPCPort = n
	}
	if v := get("OPT_LEVEL"); v != "" {
		c.OptimizationLevel = v
	}
	if v := get("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	var problems []string
	if c.Port < 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		problems = append(problems, fmt.Sprintf("grpcPort %d out of range", c.GRPCPort))
	}
	if c.Port != 0 && c.Port == c.GRPCPort {
		problems = append(problems, "port and grpcPort must differ")
	}
	if _, err := compiler.ParseOptimizationLevel(c.OptimizationLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if c.HistoryLimit < 0 {
		problems = append(problems, "historyLimit must not be negative")
	}
	if c.MaxExpressionLength < 0 {
		problems = append(problems, "maxExpressionLength must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Level returns the parsed optimization level. Call Validate first.
func (c *Config) Level() compiler.OptimizationLevel {
	level, _ := compiler.ParseOptimizationLevel(c.OptimizationLevel)
	return level
}

// Addr returns the REST listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GRPCAddr returns the gRPC listen address.
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
