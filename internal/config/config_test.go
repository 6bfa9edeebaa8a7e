package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/roach88/noiseablate/internal/config"
	"github.com/roach88/noiseablate/internal/variant"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should carry the published ablation parameters", func() {
			convey.So(cfg.Params(), convey.ShouldResemble, variant.DefaultParams())
			convey.So(cfg.Baseline, convey.ShouldEqual, "corrected_slice")
			convey.So(cfg.Normalize, convey.ShouldBeTrue)
			convey.So(cfg.Workers, convey.ShouldEqual, 1)
			convey.So(cfg.Library, convey.ShouldEqual, config.LibraryNative)
		})

		convey.Convey("Then it should validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one bad value", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"log level", func(c *config.Config) { c.LogLevel = "loud" }},
			{"device", func(c *config.Config) { c.Device = "tpu:0" }},
			{"workers", func(c *config.Config) { c.Workers = 0 }},
			{"device slots", func(c *config.Config) { c.DeviceSlots = 0 }},
			{"baseline", func(c *config.Config) { c.Baseline = "" }},
			{"table", func(c *config.Config) { c.Table = "html" }},
			{"library", func(c *config.Config) { c.Library = "http://host" }},
			{"open retries", func(c *config.Config) { c.OpenRetries = -1 }},
			{"estimator", func(c *config.Config) { c.Estimator.Method = "mean" }},
			{"rolloff", func(c *config.Config) { c.Rolloff.Fraction = 0.5 }},
			{"sk band", func(c *config.Config) { c.SK.Lower, c.SK.Upper = 5, 1 }},
			{"setigen", func(c *config.Config) { c.Setigen.Center = "mode" }},
			{"integrations", func(c *config.Config) { c.SK.Integrations = -3 }},
			{"sigmaclip iterations", func(c *config.Config) { c.SigmaClip.Iterations = 0 }},
		}
		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)

			convey.Convey("Then "+tc.name+" should be rejected", func() {
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}

func TestConfig_RemoteAddr(t *testing.T) {
	convey.Convey("Given a grpc library address", t, func() {
		cfg := config.New()
		cfg.Library = "grpc://10.0.0.5:50071"

		addr, ok := cfg.RemoteAddr()
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(addr, convey.ShouldEqual, "10.0.0.5:50071")
		convey.So(cfg.Validate(), convey.ShouldBeNil)
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should equal the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading a YAML file", func() {
			path := createTempConfigFile(t, `
workers: 4
table: markdown
normalize: false
sigmaclip:
  iterations: 3
  lower: 5
  upper: 6
setigen:
  max_iters: 10
remote:
  timeout: 30s
search_path:
  - /data/bl
  - /data/synthetic
`)
			clearConfigEnvVars()

			cfg, err := config.Load(ctx, path)

			convey.Convey("Then file values override defaults and the rest survive", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Workers, convey.ShouldEqual, 4)
				convey.So(cfg.Table, convey.ShouldEqual, "markdown")
				convey.So(cfg.Normalize, convey.ShouldBeFalse)
				convey.So(cfg.SigmaClip, convey.ShouldResemble, config.SigmaClip{Iterations: 3, Lower: 5, Upper: 6})
				convey.So(cfg.Setigen.MaxIters, convey.ShouldEqual, 10)
				convey.So(cfg.Setigen.Sigma, convey.ShouldEqual, 3)
				convey.So(cfg.Remote.Timeout, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.SearchPath, convey.ShouldResemble, []string{"/data/bl", "/data/synthetic"})
				convey.So(cfg.Rolloff.Fraction, convey.ShouldEqual, 0.25)
			})
		})

		convey.Convey("When the file path comes from the environment", func() {
			path := createTempConfigFile(t, "baseline: baseline\n")
			clearConfigEnvVars()
			_ = os.Setenv(config.EnvConfig, path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then the file is loaded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Baseline, convey.ShouldEqual, "baseline")
			})
		})

		convey.Convey("When environment variables are set alongside a file", func() {
			path := createTempConfigFile(t, "workers: 4\nsk:\n  lower: 0.1\n")
			clearConfigEnvVars()
			_ = os.Setenv("NOISEABLATE_WORKERS", "8")
			_ = os.Setenv("NOISEABLATE_SK__UPPER", "20")
			_ = os.Setenv("NOISEABLATE_LIBRARY", "grpc://localhost:50071")
			_ = os.Setenv("NOISEABLATE_NORMALIZE", "false")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, path)

			convey.Convey("Then env wins over the file and nested keys resolve", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Workers, convey.ShouldEqual, 8)
				convey.So(cfg.SK.Lower, convey.ShouldEqual, 0.1)
				convey.So(cfg.SK.Upper, convey.ShouldEqual, 20)
				convey.So(cfg.Library, convey.ShouldEqual, "grpc://localhost:50071")
				convey.So(cfg.Normalize, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the file does not exist", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx, filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then it should fail to load", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a loaded value is invalid", func() {
			path := createTempConfigFile(t, "workers: 0\n")
			clearConfigEnvVars()

			cfg, err := config.Load(ctx, path)

			convey.Convey("Then validation rejects it", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "workers")
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, envVar := range []string{
		config.EnvConfig,
		"NOISEABLATE_WORKERS",
		"NOISEABLATE_SK__UPPER",
		"NOISEABLATE_LIBRARY",
		"NOISEABLATE_NORMALIZE",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "noiseablate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
