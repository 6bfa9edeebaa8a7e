// Package config defines the harness configuration and its layered loading:
// defaults, then an optional YAML file, then NOISEABLATE_* environment
// variables. Command-line flags are applied on top by the CLI.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/noiseablate/internal/channel"
	"github.com/roach88/noiseablate/internal/noise"
	"github.com/roach88/noiseablate/internal/table"
	"github.com/roach88/noiseablate/internal/variant"
)

// LibraryNative selects the in-process library.
const LibraryNative = "native"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Device is the compute placement views are bound to, e.g. "cpu" or "cuda:0".
	Device string `koanf:"device"`

	// DeviceSlots bounds concurrent use of the device.
	DeviceSlots int `koanf:"device_slots"`

	// Workers bounds concurrent (variant, file) cells. 1 runs sequentially.
	Workers int `koanf:"workers"`

	Baseline  string `koanf:"baseline"`
	Normalize bool   `koanf:"normalize"`

	// Table is the table style: latex or markdown.
	Table string `koanf:"table"`

	// Library is "native" or a grpc://host:port address of a library server.
	Library string `koanf:"library"`

	// OpenRetries retries transient scan open failures.
	OpenRetries    int           `koanf:"open_retries"`
	OpenRetryDelay time.Duration `koanf:"open_retry_delay"`

	// SearchPath lists directories relative manifest paths are resolved against.
	SearchPath []string `koanf:"search_path"`

	// DB is the run archive; empty disables archiving.
	DB       string `koanf:"db"`
	DBDriver string `koanf:"db_driver"`

	Rolloff   Rolloff   `koanf:"rolloff"`
	SK        SK        `koanf:"sk"`
	SigmaClip SigmaClip `koanf:"sigmaclip"`
	Setigen   Setigen   `koanf:"setigen"`
	Estimator Estimator `koanf:"estimator"`
	Remote    Remote    `koanf:"remote"`
	Metrics   Metrics   `koanf:"metrics"`
}

type Rolloff struct {
	Fraction float64 `koanf:"fraction"`
}

type SK struct {
	Lower float64 `koanf:"lower"`
	Upper float64 `koanf:"upper"`

	// Integrations fixes the spectra accumulated per sample. 0 derives it
	// from the file's resolution.
	Integrations int `koanf:"integrations"`
}

type SigmaClip struct {
	Iterations int     `koanf:"iterations"`
	Lower      float64 `koanf:"lower"`
	Upper      float64 `koanf:"upper"`
}

type Setigen struct {
	Sigma    float64 `koanf:"sigma"`
	MaxIters int     `koanf:"max_iters"`
	Center   string  `koanf:"center"`
}

type Estimator struct {
	// Method is the library estimator statistic: stddev or mad.
	Method string `koanf:"method"`
}

type Remote struct {
	Listen          string        `koanf:"listen"`
	MaxMessageBytes int           `koanf:"max_message_bytes"`
	Timeout         time.Duration `koanf:"timeout"`
}

type Metrics struct {
	Namespace   string `koanf:"namespace"`
	Textfile    string `koanf:"textfile"`
	Pushgateway string `koanf:"pushgateway"`
	Job         string `koanf:"job"`
}

// New returns the defaults: the published ablation parameters, sequential
// execution on the CPU and normalization against corrected_slice.
func New() *Config {
	p := variant.DefaultParams()
	return &Config{
		LogLevel:       "info",
		Device:         "cpu",
		DeviceSlots:    1,
		Workers:        1,
		Baseline:       variant.DefaultBaseline,
		Normalize:      true,
		Table:          "latex",
		Library:        LibraryNative,
		OpenRetries:    0,
		OpenRetryDelay: 200 * time.Millisecond,
		DBDriver:       "sqlite3",
		Rolloff:        Rolloff{Fraction: p.RolloffFraction},
		SK:             SK{Lower: p.SK.Lower, Upper: p.SK.Upper},
		SigmaClip: SigmaClip{
			Iterations: p.SigmaClip.Iterations,
			Lower:      p.SigmaClip.Lower,
			Upper:      p.SigmaClip.Upper,
		},
		Setigen: Setigen{
			Sigma:    p.Setigen.Sigma,
			MaxIters: p.Setigen.MaxIters,
			Center:   p.Setigen.Center,
		},
		Estimator: Estimator{Method: string(noise.MethodStddev)},
		Remote: Remote{
			Listen:          "127.0.0.1:50071",
			MaxMessageBytes: 128 << 20,
			Timeout:         time.Minute,
		},
		Metrics: Metrics{Namespace: "noiseablate", Job: "noiseablate"},
	}
}

// Params returns the catalogue parameters.
func (c *Config) Params() variant.Params {
	return variant.Params{
		RolloffFraction: c.Rolloff.Fraction,
		SK:              variant.SpectralKurtosis{Lower: c.SK.Lower, Upper: c.SK.Upper},
		SigmaClip: variant.SigmaClip{
			Iterations: c.SigmaClip.Iterations,
			Lower:      c.SigmaClip.Lower,
			Upper:      c.SigmaClip.Upper,
		},
		Setigen: variant.Clip{
			Sigma:    c.Setigen.Sigma,
			MaxIters: c.Setigen.MaxIters,
			Center:   c.Setigen.Center,
		},
	}
}

// RemoteAddr returns the library server address when Library names one.
func (c *Config) RemoteAddr() (string, bool) {
	addr, ok := strings.CutPrefix(c.Library, "grpc://")
	return addr, ok && addr != ""
}

// Validate checks the values the loaders cannot type-check.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if _, err := channel.ParseDevice(c.Device); err != nil {
		return invalid("device: %v", err)
	}
	if c.Workers < 1 {
		return invalid("workers must be at least 1, got %d", c.Workers)
	}
	if c.DeviceSlots < 1 {
		return invalid("device_slots must be at least 1, got %d", c.DeviceSlots)
	}
	if c.Baseline == "" {
		return invalid("baseline must not be empty")
	}
	if _, err := table.ParseStyle(c.Table); err != nil {
		return invalid("table: %v", err)
	}
	if c.Library != LibraryNative {
		if _, ok := c.RemoteAddr(); !ok {
			return invalid("library must be %q or grpc://host:port, got %q", LibraryNative, c.Library)
		}
	}
	if c.OpenRetries < 0 {
		return invalid("open_retries must not be negative, got %d", c.OpenRetries)
	}
	if c.SK.Integrations < 0 {
		return invalid("sk.integrations must not be negative, got %d", c.SK.Integrations)
	}
	switch noise.Method(c.Estimator.Method) {
	case noise.MethodStddev, noise.MethodMAD:
	default:
		return invalid("estimator.method %q is not stddev or mad", c.Estimator.Method)
	}
	if _, err := variant.Default(c.Params()); err != nil {
		return invalid("%v", err)
	}
	return nil
}
