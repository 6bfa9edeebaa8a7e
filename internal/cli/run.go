package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/noiseablate/internal/channel"
	"github.com/roach88/noiseablate/internal/config"
	"github.com/roach88/noiseablate/internal/harness"
	"github.com/roach88/noiseablate/internal/manifest"
	"github.com/roach88/noiseablate/internal/matrix"
	"github.com/roach88/noiseablate/internal/metrics"
	"github.com/roach88/noiseablate/internal/noise"
	"github.com/roach88/noiseablate/internal/store"
	"github.com/roach88/noiseablate/internal/table"
	"github.com/roach88/noiseablate/internal/variant"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	Device          string
	SearchPath      []string
	Baseline        string
	Normalize       bool
	Only            []string
	Workers         int
	Library         string
	Database        string
	Table           string
	Charts          []string
	ErrorLog        string
	MetricsTextfile string
	Pushgateway     string
	Strict          bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Measure every variant against every manifest entry",
		Long: `Run the ablation: load each manifest entry's target coarse channel once,
apply every variant's step chain to a private copy, measure (power, floor),
normalize against the baseline variant and print the power and floor tables.

A failing (variant, file) cell is logged and rendered as NaN; the other cells
still run. With --strict any failed cell makes the command exit 1.

Example:
  noiseablate run manifest.yaml
  noiseablate run --dev cpu:0 --workers 4 --db runs.db manifest.yaml
  noiseablate run --only bliss_sk,bliss_sigmaclip --table markdown manifest.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAblation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Device, "dev", "", "compute device (cpu, cpu:N, cuda:N)")
	cmd.Flags().StringSliceVar(&opts.SearchPath, "path", nil, "directories to resolve relative data paths against")
	cmd.Flags().StringVar(&opts.Baseline, "baseline", "", "variant every other variant is normalized against")
	cmd.Flags().BoolVar(&opts.Normalize, "normalize", true, "divide every cell by the baseline's cell for the same file")
	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "run only these variants (the baseline is always kept)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent (variant, file) cells")
	cmd.Flags().StringVar(&opts.Library, "library", "", "library: native or grpc://host:port")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the run in this SQLite database")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table style (latex|markdown)")
	cmd.Flags().StringSliceVar(&opts.Charts, "chart", nil, "write charts; the extension selects png, svg, pdf or html")
	cmd.Flags().StringVar(&opts.ErrorLog, "error-log", "", "write failed cells as JSON lines to this file")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file")
	cmd.Flags().StringVar(&opts.Pushgateway, "pushgateway", "", "push Prometheus metrics to this gateway URL")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when any cell failed")

	return cmd
}

// applyRunFlags overrides cfg with the flags the user set.
func applyRunFlags(cmd *cobra.Command, opts *RunOptions, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("dev") {
		cfg.Device = opts.Device
	}
	if flags.Changed("path") {
		cfg.SearchPath = opts.SearchPath
	}
	if flags.Changed("baseline") {
		cfg.Baseline = opts.Baseline
	}
	if flags.Changed("normalize") {
		cfg.Normalize = opts.Normalize
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("library") {
		cfg.Library = opts.Library
	}
	if flags.Changed("db") {
		cfg.DB = opts.Database
	}
	if flags.Changed("table") {
		cfg.Table = opts.Table
	}
	if flags.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = opts.MetricsTextfile
	}
	if flags.Changed("pushgateway") {
		cfg.Metrics.Pushgateway = opts.Pushgateway
	}
}

func runAblation(opts *RunOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, err, nil)
	}
	applyRunFlags(cmd, opts, cfg)
	if err := cfg.Validate(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, err, nil)
	}
	style, _ := table.ParseStyle(cfg.Table)
	device, _ := channel.ParseDevice(cfg.Device)
	log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	m, err := loadManifest(formatter, manifestPath, cfg)
	if err != nil {
		return err
	}
	reg, err := catalogue(cfg, opts.Only)
	if err != nil {
		if variant.IsUnknownVariant(err) {
			return formatter.Fail(ExitCommandError, ErrCodeUnknownVariant, err, nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, err, nil)
	}

	lib, closeLib, err := openLibrary(cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLibrary, err, map[string]string{"library": cfg.Library})
	}
	defer func() {
		if err := closeLib(); err != nil {
			log.Error("error closing library", "error", err)
		}
	}()

	mgr := metrics.NewManager(metrics.WithNamespace(cfg.Metrics.Namespace))
	runner := harness.New(lib, reg,
		harness.WithLogger(log),
		harness.WithWorkers(cfg.Workers),
		harness.WithDevice(device),
		harness.WithDeviceSlots(cfg.DeviceSlots),
		harness.WithOpenRetries(cfg.OpenRetries, cfg.OpenRetryDelay),
		harness.WithEstimatorMethod(noise.Method(cfg.Estimator.Method)),
		harness.WithRecorder(mgr),
	)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	formatter.VerboseLog("Running %d variant(s) over %d file(s) from %s", reg.Len(), len(m.Entries), m.Source)
	res, err := runner.Run(ctx, m.Entries)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return formatter.Fail(ExitFailure, ErrCodeInterrupted, fmt.Errorf("run interrupted: %w", err), nil)
		}
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err, nil)
	}
	failures := res.Failures()
	variants, files := res.Matrix.Shape()
	mgr.ObserveRun(res.Started.Add(res.Duration), res.Duration, variants, files, len(failures))

	if opts.ErrorLog != "" {
		if err := writeErrorLog(opts.ErrorLog, failures); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeWriteFailed, err, nil)
		}
	}

	var runID string
	if cfg.DB != "" {
		runID, err = archiveRun(ctx, cfg, m, reg, res)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeArchive, err, map[string]string{"db": cfg.DB})
		}
		log.Info("run archived", "run_id", runID, "db", cfg.DB)
	}

	// Metrics are exported before normalization so a missing baseline still
	// leaves a record of the run.
	if err := exportMetrics(ctx, mgr, cfg); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeWriteFailed, err, nil)
	}

	shown, err := normalizeForDisplay(formatter, res.Matrix, cfg.Baseline, cfg.Normalize)
	if err != nil {
		return err
	}
	rep, err := buildReport(shown, reg, failures)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err, nil)
	}
	rep.RunID = runID
	rep.Baseline = cfg.Baseline
	rep.Normalized = cfg.Normalize
	rep.Duration = formatDuration(res.Duration)

	if rep.Charts, err = saveCharts(shown, cfg.Normalize, opts.Charts); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeWriteFailed, err, nil)
	}
	if err := emitReport(formatter, rep, style); err != nil {
		return err
	}

	if opts.Strict && len(failures) > 0 {
		return formatter.Reject(ExitFailure, ErrCodeCellsFailed,
			fmt.Sprintf("%d of %d cells failed", len(failures), variants*files))
	}
	return nil
}

// writeErrorLog writes one JSON record per failed cell.
func writeErrorLog(path string, failures []matrix.Failure) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create error log: %w", err)
	}
	log := slog.New(slog.NewJSONHandler(f, nil))
	for _, r := range failureReports(failures) {
		log.Error("cell failed",
			"variant", r.Variant,
			"file", r.File,
			"step", r.Step,
			"error", r.Error,
		)
	}
	return f.Close()
}

func archiveRun(ctx context.Context, cfg *config.Config, m *manifest.Manifest, reg *variant.Registry, res *harness.Result) (string, error) {
	manifestHash, err := m.Fingerprint()
	if err != nil {
		return "", err
	}
	catalogueHash, err := reg.Fingerprint()
	if err != nil {
		return "", err
	}
	st, err := store.Open(cfg.DB, store.WithDriver(cfg.DBDriver))
	if err != nil {
		return "", err
	}
	defer st.Close()

	host, _ := os.Hostname()
	files := make([]store.FileRef, len(m.Entries))
	for i, e := range m.Entries {
		files[i] = store.FileRef{Name: e.Name, Path: e.Path, CoarseChannel: e.CoarseChannel}
	}
	return st.WriteRun(ctx, &store.Run{
		ManifestSource: m.Source,
		ManifestHash:   manifestHash,
		CatalogueHash:  catalogueHash,
		Baseline:       cfg.Baseline,
		Normalized:     cfg.Normalize,
		Device:         cfg.Device,
		Library:        cfg.Library,
		Host:           host,
		Duration:       res.Duration,
		Variants:       reg.List(),
		Files:          files,
		Matrix:         res.Matrix,
	})
}

func exportMetrics(ctx context.Context, mgr *metrics.Manager, cfg *config.Config) error {
	if cfg.Metrics.Textfile != "" {
		if err := mgr.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
	}
	if cfg.Metrics.Pushgateway != "" {
		pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := mgr.Push(pushCtx, cfg.Metrics.Pushgateway, cfg.Metrics.Job); err != nil {
			return err
		}
	}
	return nil
}
