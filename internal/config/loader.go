package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/caretrack/internal/domain/stage"
)

// Environment names.
const (
	EnvPrefix = "CARETRACK_"
	EnvConfig = EnvPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CARETRACK_CONFIG is set
//  3. env (prefix CARETRACK_)
//
// A policy_file, when set, replaces the inline stage block.
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(EnvConfig))
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(_ context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CARETRACK_QUEUE_SIZE -> queue_size. Keys stay flat; the stage block
	// is file-only.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The config path itself is not a setting.
	k.Delete("config")

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.PolicyFile != "" {
		p, err := LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		cfg.Stage = &p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPolicy reads a keyword policy from a YAML file. Omitted parts keep
// the built-in values.
func LoadPolicy(path string) (stage.Policy, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return stage.Policy{}, fmt.Errorf("%w: policy %s: %w", ErrLoadConfig, path, err)
	}

	var p stage.Policy
	if err := k.UnmarshalWithConf("", &p, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return stage.Policy{}, fmt.Errorf("%w: policy %s: %w", ErrLoadConfig, path, err)
	}
	out := mergePolicy(&p)
	if err := out.Validate(); err != nil {
		return stage.Policy{}, fmt.Errorf("%w %s: %w", ErrInvalidPolicy, path, err)
	}
	return out, nil
}
