package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/noiseablate/internal/config"
	"github.com/roach88/noiseablate/internal/library"
	"github.com/roach88/noiseablate/internal/manifest"
	"github.com/roach88/noiseablate/internal/remote"
	"github.com/roach88/noiseablate/internal/variant"
)

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadConfig layers defaults, the config file and NOISEABLATE_* variables.
// --verbose raises the log level to debug.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(commandContext(cmd), opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newLogger builds the process logger. Diagnostics go to w, never stdout.
func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// openLibrary returns the configured library and a func releasing it.
func openLibrary(cfg *config.Config) (library.Library, func() error, error) {
	if addr, ok := cfg.RemoteAddr(); ok {
		c, err := remote.Dial(addr,
			remote.WithMaxMessageBytes(cfg.Remote.MaxMessageBytes),
			remote.WithCallTimeout(cfg.Remote.Timeout),
		)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	lib := library.NewNative(library.WithIntegrations(cfg.SK.Integrations))
	return lib, func() error { return nil }, nil
}

// catalogue builds the variant registry, restricted to only when non-empty.
// The baseline is kept in a restricted catalogue so normalization can run.
func catalogue(cfg *config.Config, only []string) (*variant.Registry, error) {
	reg, err := variant.Default(cfg.Params())
	if err != nil {
		return nil, err
	}
	if cfg.Normalize {
		if _, err := reg.Get(cfg.Baseline); err != nil {
			return nil, err
		}
	}
	if len(only) == 0 {
		return reg, nil
	}
	names := append([]string(nil), only...)
	if cfg.Normalize {
		names = append(names, cfg.Baseline)
	}
	return reg.Select(names...)
}

// loadManifest reports manifest failures with their CLI codes.
func loadManifest(f *OutputFormatter, path string, cfg *config.Config) (*manifest.Manifest, error) {
	m, err := manifest.Load(path, manifest.WithSearchPath(cfg.SearchPath...))
	var me *manifest.MalformedManifestError
	switch {
	case err == nil:
		return m, nil
	case errors.As(err, &me):
		return nil, f.Fail(ExitCommandError, ErrCodeMalformedManifest, err, map[string]any{
			"file":  me.File,
			"line":  me.Line,
			"entry": me.Entry,
			"field": me.Field,
		})
	case errors.Is(err, fs.ErrNotExist):
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
	default:
		return nil, f.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}
}
