package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/noiseablate/internal/synth"
)

// SynthOptions holds flags for the synth command.
type SynthOptions struct {
	*RootOptions
	synth.Options

	ToneChannel float64
	ToneDrift   float64
	ToneSNR     float64

	// Manifest receives the manifest entry; empty prints it.
	Manifest string
	Key      string
}

// SynthResult reports what synth wrote.
type SynthResult struct {
	Path         string  `json:"path"`
	Spectra      int     `json:"spectra"`
	Channels     int     `json:"channels"`
	Integrations int     `json:"integrations"`
	Mean         float64 `json:"expected_mean"`
	Std          float64 `json:"expected_std"`
	Manifest     string  `json:"manifest"`
}

// NewSynthCommand creates the synth command.
func NewSynthCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SynthOptions{RootOptions: rootOpts, Options: synth.DefaultOptions()}

	cmd := &cobra.Command{
		Use:   "synth <out.fil>",
		Short: "Write a synthetic chi-square noise recording",
		Long: `Write a 32-bit filterbank file of chi-square noise with 4 x integrations
degrees of freedom, so its mean and standard deviation are known exactly,
and a manifest entry that points at it. A drifting tone can be injected;
the entry's noise slice then avoids it.

Example:
  noiseablate synth chisq.fil
  noiseablate synth --channels 65536 --tone-snr 20 --manifest manifest.yaml chisq.fil`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(opts, args[0], cmd)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Spectra, "spectra", opts.Spectra, "time samples")
	f.IntVar(&opts.Channels, "channels", opts.Channels, "fine channels (one coarse channel)")
	f.IntVar(&opts.Integrations, "integrations", opts.Integrations, "spectra accumulated per sample")
	f.Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	f.StringVar(&opts.Source, "source", opts.Source, "source_name header value")
	f.Float64Var(&opts.ToneChannel, "tone-channel", 0, "tone start channel")
	f.Float64Var(&opts.ToneDrift, "tone-drift", 0, "tone drift in channels per spectrum")
	f.Float64Var(&opts.ToneSNR, "tone-snr", 0, "tone amplitude in noise standard deviations (0 disables)")
	f.StringVar(&opts.Manifest, "manifest", "", "write the manifest entry to this file")
	f.StringVar(&opts.Key, "key", "", "manifest entry key (defaults to the file name)")

	return cmd
}

func runSynth(opts *SynthOptions, out string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	o := opts.Options
	if opts.ToneSNR > 0 {
		o.Tone = &synth.Tone{Channel: opts.ToneChannel, Drift: opts.ToneDrift, SNR: opts.ToneSNR}
	}
	key := opts.Key
	if key == "" {
		key = strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
	}

	formatter.VerboseLog("Generating %d x %d samples (seed %d)", o.Spectra, o.Channels, o.Seed)
	if err := synth.WriteFile(out, o); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err, nil)
	}

	// The entry path is relative to the manifest when one is written.
	entryPath := out
	if opts.Manifest != "" {
		if rel, err := filepath.Rel(filepath.Dir(opts.Manifest), out); err == nil {
			entryPath = rel
		}
	}
	snippet, err := synth.ManifestSnippet(key, entryPath, o)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}
	if opts.Manifest != "" {
		if err := os.WriteFile(opts.Manifest, snippet, 0o644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err, nil)
		}
	}

	mean, std := o.Expected()
	res := SynthResult{
		Path:         out,
		Spectra:      o.Spectra,
		Channels:     o.Channels,
		Integrations: o.Integrations,
		Mean:         mean,
		Std:          std,
		Manifest:     string(snippet),
	}
	if formatter.JSON() {
		return formatter.Success(res)
	}
	fmt.Fprintf(formatter.Writer, "wrote %s: %d x %d, expected mean %.3f, std %.3f\n", out, o.Spectra, o.Channels, mean, std)
	if opts.Manifest != "" {
		fmt.Fprintf(formatter.Writer, "wrote %s\n", opts.Manifest)
	} else {
		fmt.Fprint(formatter.Writer, string(snippet))
	}
	return nil
}
