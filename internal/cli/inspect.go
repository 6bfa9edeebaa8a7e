package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/noiseablate/internal/channel"
	"github.com/roach88/noiseablate/internal/filterbank"
)

// InspectResult describes one filterbank file.
type InspectResult struct {
	Path           string            `json:"path"`
	Size           int64             `json:"size"`
	Header         filterbank.Header `json:"header"`
	Spectra        int               `json:"spectra"`
	NFPC           int               `json:"nfpc,omitempty"`
	CoarseChannels int               `json:"coarse_channels,omitempty"`
	Integrations   int               `json:"integrations"`
}

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	NFPC int
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <file.fil>",
		Short: "Print a filterbank header and its layout",
		Long: `Print the header of a SIGPROC filterbank file, the number of spectra it
holds and, with --nfpc, how many coarse channels it splits into.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.NFPC, "nfpc", 0, "fine channels per coarse channel")

	return cmd
}

func runInspect(opts *InspectOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	fb, err := filterbank.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}
	defer fb.Close()
	info, err := os.Stat(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
	}

	h := fb.Header
	meta := channel.Meta{FreqStepMHz: h.FOff, SampleTimeSec: h.TSamp}
	res := InspectResult{
		Path:         path,
		Size:         info.Size(),
		Header:       h,
		Spectra:      fb.Spectra(),
		Integrations: meta.Integrations(),
	}
	if opts.NFPC > 0 {
		if int(h.NChans)%opts.NFPC != 0 {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric,
				fmt.Errorf("nchans %d is not a multiple of nfpc %d", h.NChans, opts.NFPC), nil)
		}
		res.NFPC = opts.NFPC
		res.CoarseChannels = int(h.NChans) / opts.NFPC
	}

	if formatter.JSON() {
		return formatter.Success(res)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "%s (%s)\n", res.Path, humanize.IBytes(uint64(res.Size)))
	fmt.Fprintf(w, "  source_name   %s\n", h.SourceName)
	fmt.Fprintf(w, "  telescope_id  %d\n", h.TelescopeID)
	fmt.Fprintf(w, "  nchans        %s\n", humanize.Comma(int64(h.NChans)))
	fmt.Fprintf(w, "  nifs          %d\n", h.NIFs)
	fmt.Fprintf(w, "  nbits         %d\n", h.NBits)
	fmt.Fprintf(w, "  fch1          %.6f MHz\n", h.FCh1)
	fmt.Fprintf(w, "  foff          %.6g MHz\n", h.FOff)
	fmt.Fprintf(w, "  tstart        %.8f MJD\n", h.TStart)
	fmt.Fprintf(w, "  tsamp         %.6g s\n", h.TSamp)
	fmt.Fprintf(w, "  spectra       %d\n", res.Spectra)
	fmt.Fprintf(w, "  integrations  %d\n", res.Integrations)
	if res.NFPC > 0 {
		fmt.Fprintf(w, "  coarse        %d x %d fine channels\n", res.CoarseChannels, res.NFPC)
	}
	return nil
}
