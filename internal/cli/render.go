package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/noiseablate/internal/config"
	"github.com/roach88/noiseablate/internal/store"
	"github.com/roach88/noiseablate/internal/table"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Database  string
	RunID     string
	Baseline  string
	Normalize bool
	Table     string
	Charts    []string
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Re-render an archived run",
		Long: `Render the tables of a run stored with "run --db" without reading any
recording. The run's own baseline and normalization switch are used unless
overridden.

Example:
  noiseablate render --db runs.db
  noiseablate render --db runs.db --run 0192f0c4-... --baseline baseline_slice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", store.LatestRun, "run ID or \"latest\"")
	cmd.Flags().StringVar(&opts.Baseline, "baseline", "", "override the archived baseline")
	cmd.Flags().BoolVar(&opts.Normalize, "normalize", true, "override the archived normalization switch")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table style (latex|markdown)")
	cmd.Flags().StringSliceVar(&opts.Charts, "chart", nil, "write charts; the extension selects png, svg, pdf or html")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// openExistingStore opens a database that must already exist.
func openExistingStore(f *OutputFormatter, cfg *config.Config, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("database %s: %w", path, err), nil)
	}
	st, err := store.Open(path, store.WithDriver(cfg.DBDriver))
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeArchive, err, map[string]string{"db": path})
	}
	return st, nil
}

func runRender(opts *RenderOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, err, nil)
	}
	if cmd.Flags().Changed("table") {
		cfg.Table = opts.Table
	}
	style, err := table.ParseStyle(cfg.Table)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, err, nil)
	}

	st, err := openExistingStore(formatter, cfg, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(commandContext(cmd), opts.RunID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, err, map[string]string{"run": opts.RunID})
		}
		return formatter.Fail(ExitCommandError, ErrCodeArchive, err, nil)
	}
	reg, err := run.Registry()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeArchive, err, nil)
	}

	baseline, normalize := run.Baseline, run.Normalized
	if cmd.Flags().Changed("baseline") {
		baseline = opts.Baseline
	}
	if cmd.Flags().Changed("normalize") {
		normalize = opts.Normalize
	}
	formatter.VerboseLog("Rendering run %s from %s (created %s)", run.ID, run.ManifestSource, run.CreatedAt.Format("2006-01-02 15:04:05"))

	shown, err := normalizeForDisplay(formatter, run.Matrix, baseline, normalize)
	if err != nil {
		return err
	}
	rep, err := buildReport(shown, reg, run.Matrix.Failures())
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err, nil)
	}
	rep.RunID = run.ID
	rep.Baseline = baseline
	rep.Normalized = normalize
	rep.Duration = formatDuration(run.Duration)

	if rep.Charts, err = saveCharts(shown, normalize, opts.Charts); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeWriteFailed, err, nil)
	}
	return emitReport(formatter, rep, style)
}
