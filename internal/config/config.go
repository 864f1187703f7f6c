// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading layers defaults, an optional YAML file and CARETRACK_* env vars.
// - Errors returned to callers wrap ErrInvalidConfig or ErrLoadConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
	_ "time/tzdata" // timezone must resolve on hosts without zoneinfo

	"github.com/okian/caretrack/internal/domain/stage"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the number of remembered submission fingerprints.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxBodyBytes caps the size of a submitted record.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// MaxWindowDays caps the window query parameter.
	MaxWindowDays int `koanf:"max_window_days"`

	// Default trailing windows per analysis.
	SummaryWindowDays int `koanf:"summary_window_days"`
	StageWindowDays   int `koanf:"stage_window_days"`
	LinkWindowDays    int `koanf:"link_window_days"`

	// Timezone is the IANA zone used for time-of-day and weekday buckets.
	Timezone string `koanf:"timezone"`

	// Stage overrides the built-in keyword policy. Omitted parts keep the
	// built-in values.
	Stage *stage.Policy `koanf:"stage"`

	// PolicyFile names a YAML file holding a keyword policy. It takes
	// precedence over Stage.
	PolicyFile string `koanf:"policy_file"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU() * 2,
		DedupeSize:        50_000,
		MaxBodyBytes:      1 << 20,
		MaxWindowDays:     3650,
		SummaryWindowDays: 60,
		StageWindowDays:   90,
		LinkWindowDays:    7,
		Timezone:          "UTC",
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidTimezone, c.Timezone, err)
	}
	return loc, nil
}

// Policy returns the effective keyword policy.
func (c *Config) Policy() stage.Policy {
	return mergePolicy(c.Stage)
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.MaxBodyBytes < 1 {
		return fmt.Errorf("%w: max_body_bytes must be positive", ErrInvalidConfig)
	}
	for name, days := range map[string]int{
		"summary_window_days": c.SummaryWindowDays,
		"stage_window_days":   c.StageWindowDays,
		"link_window_days":    c.LinkWindowDays,
	} {
		if days < 1 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
		if days > c.MaxWindowDays {
			return fmt.Errorf("%w: %s exceeds max_window_days", ErrInvalidConfig, name)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	return nil
}

// mergePolicy fills the parts of p that were left out with the built-in
// policy.
func mergePolicy(p *stage.Policy) stage.Policy {
	def := stage.DefaultPolicy()
	if p == nil {
		return def
	}
	out := *p
	if len(out.Keywords.Early)+len(out.Keywords.Middle)+len(out.Keywords.Late) == 0 {
		out.Keywords = def.Keywords
	}
	if out.CategoryWeights == nil {
		out.CategoryWeights = def.CategoryWeights
	}
	if out.EarlyMax == 0 && out.LateMin == 0 {
		out.EarlyMax, out.LateMin = def.EarlyMax, def.LateMin
	}
	return out
}
