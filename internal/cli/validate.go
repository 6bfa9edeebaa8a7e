package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/noiseablate/internal/library"
	"github.com/roach88/noiseablate/internal/manifest"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool         `json:"valid"`
	Source  string       `json:"source"`
	Entries []EntryCheck `json:"entries"`
}

// EntryCheck is the outcome of checking one manifest entry.
type EntryCheck struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	Path          string `json:"path"`
	CoarseChannel int    `json:"coarse_channel"`
	SignalFree    string `json:"signal_free"`
	Passband      bool   `json:"passband"`

	// Filled by --deep.
	Rows  int    `json:"rows,omitempty"`
	Cols  int    `json:"cols,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Deep       bool
	SearchPath []string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate a manifest without running the ablation",
		Long: `Validate a manifest: required fields, types, column ranges and the
data path of every entry. Data files are not opened unless --deep is given,
in which case each entry's coarse channel is read once through the
configured library and its signal-free range is checked against the
channel width.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Deep, "deep", false, "open every data file and read its target channel")
	cmd.Flags().StringSliceVar(&opts.SearchPath, "path", nil, "directories to resolve relative data paths against")

	return cmd
}

func runValidate(opts *ValidateOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, err, nil)
	}
	if cmd.Flags().Changed("path") {
		cfg.SearchPath = opts.SearchPath
	}

	m, err := loadManifest(formatter, manifestPath, cfg)
	if err != nil {
		return err
	}
	result := ValidationResult{Valid: true, Source: m.Source}
	for _, e := range m.Entries {
		result.Entries = append(result.Entries, EntryCheck{
			Key:           e.Key,
			Name:          e.Name,
			Path:          e.Path,
			CoarseChannel: e.CoarseChannel,
			SignalFree:    fmt.Sprintf("[%d, %d)", e.SignalFree.Lower, e.SignalFree.Upper),
			Passband:      e.HasPassband(),
		})
	}

	if opts.Deep {
		lib, closeLib, err := openLibrary(cfg)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeLibrary, err, map[string]string{"library": cfg.Library})
		}
		defer closeLib()
		ctx := commandContext(cmd)
		for i, e := range m.Entries {
			formatter.VerboseLog("Reading %s channel %d", e.Path, e.CoarseChannel)
			rows, cols, err := probeEntry(ctx, lib, e)
			result.Entries[i].Rows, result.Entries[i].Cols = rows, cols
			if err != nil {
				result.Entries[i].Error = err.Error()
				result.Valid = false
			}
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		writeValidation(formatter, result)
	}
	if !result.Valid {
		return formatter.Reject(ExitFailure, ErrCodeLibrary, "entries failed deep validation")
	}
	return nil
}

// probeEntry reads the entry's channel and checks its signal-free range.
func probeEntry(ctx context.Context, lib library.Library, e manifest.Entry) (rows, cols int, err error) {
	scan, err := lib.OpenScan(ctx, e.Path, e.FineChannelsPerCoarse)
	if err != nil {
		return 0, 0, err
	}
	defer scan.Close()
	v, err := scan.ReadChannel(ctx, e.CoarseChannel)
	if err != nil {
		return 0, 0, err
	}
	if e.SignalFree.Upper > v.Cols {
		return v.Rows, v.Cols, fmt.Errorf("signal-free range [%d, %d) exceeds %d columns", e.SignalFree.Lower, e.SignalFree.Upper, v.Cols)
	}
	return v.Rows, v.Cols, nil
}

func writeValidation(f *OutputFormatter, r ValidationResult) {
	for _, e := range r.Entries {
		mark := "✓"
		if e.Error != "" {
			mark = "✗"
		}
		fmt.Fprintf(f.Writer, "%s %s (%s) channel %d, noise slice %s", mark, e.Name, e.Path, e.CoarseChannel, e.SignalFree)
		if e.Rows > 0 {
			fmt.Fprintf(f.Writer, ", %dx%d", e.Rows, e.Cols)
		}
		if e.Error != "" {
			fmt.Fprintf(f.Writer, ": %s", e.Error)
		}
		fmt.Fprintln(f.Writer)
	}
	if r.Valid {
		fmt.Fprintf(f.Writer, "✓ %s valid (%d entries)\n", r.Source, len(r.Entries))
	}
}
