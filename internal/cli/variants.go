package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/noiseablate/internal/variant"
)

// VariantInfo describes one catalogue entry.
type VariantInfo struct {
	variant.Spec
	Categories variant.Categories `json:"categories"`
	Baseline   bool               `json:"baseline"`
}

// NewVariantsCommand creates the variants command.
func NewVariantsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variants",
		Short: "List the ablation variant catalogue",
		Long: `List every variant in catalogue order with its measurement method, step
chain and the parameters taken from the config.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVariants(rootOpts, cmd)
		},
	}
	return cmd
}

func runVariants(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, err, nil)
	}
	reg, err := variant.Default(cfg.Params())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, err, nil)
	}

	infos := make([]VariantInfo, 0, reg.Len())
	for _, s := range reg.List() {
		infos = append(infos, VariantInfo{Spec: s, Categories: s.Categories(), Baseline: s.Name == cfg.Baseline})
	}
	if formatter.JSON() {
		return formatter.Success(infos)
	}

	width := 0
	for _, v := range infos {
		width = max(width, len(v.Name))
	}
	for _, v := range infos {
		mark := " "
		if v.Baseline {
			mark = "*"
		}
		fmt.Fprintf(formatter.Writer, "%s %-*s  %-9s  %s\n", mark, width, v.Name, v.Method, describeSteps(v.Spec))
	}
	return nil
}

// describeSteps renders a step chain with its parameters.
func describeSteps(s variant.Spec) string {
	parts := make([]string, 0, len(s.Steps)+1)
	for _, st := range s.Steps {
		switch st.Kind {
		case variant.StepFlagRolloff:
			parts = append(parts, fmt.Sprintf("%s(%g)", st.Kind, st.RolloffFraction))
		case variant.StepFlagSpectralKurtosis:
			parts = append(parts, fmt.Sprintf("%s(%g, %g)", st.Kind, st.SK.Lower, st.SK.Upper))
		case variant.StepFlagSigmaClip:
			parts = append(parts, fmt.Sprintf("%s(%d, %g, %g)", st.Kind, st.Clip.Iterations, st.Clip.Lower, st.Clip.Upper))
		case variant.StepFlagSpectralKurtosisClip:
			parts = append(parts, fmt.Sprintf("%s(%g, %g; %d, %g, %g)", st.Kind, st.SK.Lower, st.SK.Upper, st.Clip.Iterations, st.Clip.Lower, st.Clip.Upper))
		default:
			parts = append(parts, string(st.Kind))
		}
	}
	switch s.Method {
	case variant.MethodRaw:
		parts = append(parts, "region="+string(s.Region))
	case variant.MethodSetigen:
		parts = append(parts, fmt.Sprintf("clip(%g, %d, %s)", s.Clip.Sigma, s.Clip.MaxIters, s.Clip.Center))
	}
	return strings.Join(parts, " -> ")
}
