package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/caretrack/internal/config"
	"github.com/okian/caretrack/internal/domain/stage"
	"github.com/smartystreets/goconvey/convey"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.SummaryWindowDays, convey.ShouldEqual, 60)
			convey.So(cfg.StageWindowDays, convey.ShouldEqual, 90)
			convey.So(cfg.LinkWindowDays, convey.ShouldEqual, 7)
			convey.So(cfg.Timezone, convey.ShouldEqual, "UTC")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.Policy(), convey.ShouldResemble, stage.DefaultPolicy())
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one bad setting each", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":         func(c *config.Config) { c.Addr = " " },
			"unknown log format": func(c *config.Config) { c.LogFormat = "xml" },
			"zero queue":         func(c *config.Config) { c.QueueSize = 0 },
			"zero body limit":    func(c *config.Config) { c.MaxBodyBytes = 0 },
			"zero window":        func(c *config.Config) { c.StageWindowDays = 0 },
			"window above max":   func(c *config.Config) { c.SummaryWindowDays = c.MaxWindowDays + 1 },
			"unknown timezone":   func(c *config.Config) { c.Timezone = "Mars/Olympus" },
			"inverted policy": func(c *config.Config) {
				c.Stage = &stage.Policy{EarlyMax: 5, LateMin: 3}
			},
		}

		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			if err == nil {
				t.Errorf("%s: expected an error", name)
			}
		}
	})

	convey.Convey("Given a partial stage block", t, func() {
		cfg := config.New()
		cfg.Stage = &stage.Policy{Keywords: stage.Keywords{Late: []string{"hospice"}}}

		convey.Convey("Then the omitted parts come from the built-in policy", func() {
			p := cfg.Policy()
			convey.So(p.Keywords.Late, convey.ShouldResemble, []string{"hospice"})
			convey.So(p.Keywords.Early, convey.ShouldBeEmpty)
			convey.So(p.CategoryWeights, convey.ShouldResemble, stage.DefaultPolicy().CategoryWeights)
			convey.So(p.LateMin, convey.ShouldEqual, stage.DefaultPolicy().LateMin)
		})
	})
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(config.EnvConfig, "")

	convey.Convey("When loading with no file and no overrides", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then the defaults are returned", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Stage, convey.ShouldBeNil)
		})
	})
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
addr: ":9090"
queue_size: 300
worker_count: 24
timezone: Europe/Berlin
stage:
  early_max: 1
  late_min: 4
  category_weights:
    safety: 5
`)
	t.Setenv(config.EnvConfig, path)
	t.Setenv("CARETRACK_ADDR", ":8080")
	t.Setenv("CARETRACK_WORKER_COUNT", "32")
	t.Setenv("CARETRACK_LOG_FORMAT", "json")

	convey.Convey("When loading with a file and env vars", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then env vars override the file and the file overrides defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
			convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.Timezone, convey.ShouldEqual, "Europe/Berlin")
		})

		convey.Convey("Then the stage block is merged with the built-in policy", func() {
			p := cfg.Policy()
			convey.So(p.EarlyMax, convey.ShouldEqual, 1)
			convey.So(p.LateMin, convey.ShouldEqual, 4)
			convey.So(p.CategoryWeights, convey.ShouldResemble, map[string]int{"safety": 5})
			convey.So(p.Keywords, convey.ShouldResemble, stage.DefaultPolicy().Keywords)
		})
	})
}

func TestLoad_PolicyFile(t *testing.T) {
	policy := writeFile(t, "policy.yaml", `
keywords:
  early: [vergessen]
  middle: [verlaufen]
  late: [bettlaegerig]
`)
	path := writeFile(t, "config.yaml", "policy_file: "+policy+"\nstage:\n  early_max: 9\n  late_min: 10\n")
	t.Setenv(config.EnvConfig, path)

	convey.Convey("When the config names a policy file", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then the policy file replaces the inline block", func() {
			convey.So(err, convey.ShouldBeNil)
			p := cfg.Policy()
			convey.So(p.Keywords.Middle, convey.ShouldResemble, []string{"verlaufen"})
			convey.So(p.EarlyMax, convey.ShouldEqual, stage.DefaultPolicy().EarlyMax)
		})
	})
}

func TestLoad_Errors(t *testing.T) {
	convey.Convey("Given broken configuration sources", t, func() {
		ctx := context.Background()

		convey.Convey("Then invalid YAML is a load error", func() {
			_, err := config.LoadFile(ctx, writeFile(t, "bad.yaml", "invalid: yaml: content: ["))
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Then a missing file is a load error", func() {
			_, err := config.LoadFile(ctx, "/non/existent/file.yaml")
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Then a missing policy file is a load error", func() {
			_, err := config.LoadFile(ctx, writeFile(t, "c.yaml", "policy_file: /non/existent/policy.yaml\n"))
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Then an inverted policy file is invalid", func() {
			_, err := config.LoadPolicy(writeFile(t, "p.yaml", "early_max: 8\nlate_min: 2\n"))
			convey.So(errors.Is(err, config.ErrInvalidPolicy), convey.ShouldBeTrue)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Then an invalid value is a validation error", func() {
			_, err := config.LoadFile(ctx, writeFile(t, "tz.yaml", "timezone: Nowhere/Land\n"))
			convey.So(errors.Is(err, config.ErrInvalidTimezone), convey.ShouldBeTrue)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
