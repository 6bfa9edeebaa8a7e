package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		Long: `List the runs archived in a database with their manifest, baseline, size
and number of failed cells.

Example:
  noiseablate history --db runs.db --limit 5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, err, nil)
	}
	st, err := openExistingStore(formatter, cfg, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(commandContext(cmd), opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeArchive, err, nil)
	}
	if formatter.JSON() {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs archived.")
		return nil
	}

	now := time.Now()
	for _, r := range runs {
		fmt.Fprintf(formatter.Writer, "%s  %s (%s)  %s  baseline=%s  %dx%d  failed=%d  %s\n",
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			humanize.RelTime(r.CreatedAt, now, "ago", "from now"),
			r.ManifestSource,
			r.Baseline,
			r.Variants,
			r.Files,
			r.Failed,
			formatDuration(r.Duration),
		)
	}
	return nil
}
