package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/noiseablate/internal/chart"
	"github.com/roach88/noiseablate/internal/harness"
	"github.com/roach88/noiseablate/internal/matrix"
	"github.com/roach88/noiseablate/internal/table"
	"github.com/roach88/noiseablate/internal/variant"
)

// Report is the result of run and render. In JSON mode it is the data of
// the single response document.
type Report struct {
	RunID      string          `json:"run_id,omitempty"`
	Baseline   string          `json:"baseline,omitempty"`
	Normalized bool            `json:"normalized"`
	Duration   string          `json:"duration,omitempty"`
	Power      *table.Table    `json:"power"`
	Floor      *table.Table    `json:"floor"`
	Failures   []FailureReport `json:"failures"`
	Charts     []string        `json:"charts,omitempty"`

	failures []matrix.Failure
}

// FailureReport is one failed cell.
type FailureReport struct {
	Variant string `json:"variant"`
	File    string `json:"file"`
	Step    string `json:"step,omitempty"`
	Error   string `json:"error"`
}

func failureReports(fs []matrix.Failure) []FailureReport {
	out := make([]FailureReport, 0, len(fs))
	for _, f := range fs {
		r := FailureReport{Variant: f.Variant, File: f.File, Error: f.Err.Error()}
		if sf, ok := harness.AsStepFailed(f.Err); ok {
			r.Step = sf.Step
		}
		out = append(out, r)
	}
	return out
}

// normalizeForDisplay returns the matrix to render: m itself when
// normalization is off, otherwise m divided by the baseline row.
func normalizeForDisplay(f *OutputFormatter, m *matrix.Matrix, baseline string, normalize bool) (*matrix.Matrix, error) {
	if !normalize {
		return m, nil
	}
	norm, err := m.Normalize(baseline)
	if err == nil {
		return norm, nil
	}
	var bm *matrix.BaselineMissingError
	switch {
	case errors.As(err, &bm):
		return nil, f.Fail(ExitFailure, ErrCodeBaselineMissing, err, map[string]string{
			"baseline": bm.Baseline,
			"file":     bm.File,
		})
	case errors.Is(err, matrix.ErrBaselineNotInMatrix):
		return nil, f.Fail(ExitCommandError, ErrCodeUnknownVariant, err, map[string]string{"baseline": baseline})
	default:
		return nil, f.Fail(ExitFailure, ErrCodeGeneric, err, nil)
	}
}

// buildReport formats both quantities of m.
func buildReport(m *matrix.Matrix, reg *variant.Registry, failures []matrix.Failure) (*Report, error) {
	power, err := table.Build(m, reg, matrix.Power)
	if err != nil {
		return nil, err
	}
	floor, err := table.Build(m, reg, matrix.Floor)
	if err != nil {
		return nil, err
	}
	return &Report{
		Power:    power,
		Floor:    floor,
		Failures: failureReports(failures),
		failures: failures,
	}, nil
}

func reportTitle(q matrix.Quantity, r *Report) string {
	title := "Noise " + string(q)
	if r.Normalized {
		title += ", normalized to " + r.Baseline
	}
	return title
}

// writeText prints both tables, the legend and the failure log.
func writeText(w io.Writer, r *Report, style table.Style) error {
	heading := "%"
	if style == table.StyleMarkdown {
		heading = "###"
	}
	var b strings.Builder
	for _, t := range []*table.Table{r.Power, r.Floor} {
		fmt.Fprintf(&b, "%s %s\n\n", heading, reportTitle(t.Quantity, r))
		if err := t.Write(&b, style); err != nil {
			return err
		}
		b.WriteString("\n")
	}
	if err := table.Legend(&b, r.Power.Files); err != nil {
		return err
	}
	if len(r.failures) > 0 {
		b.WriteString("\n")
		if err := table.Failures(&b, r.failures); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// emitReport writes r in the formatter's format.
func emitReport(f *OutputFormatter, r *Report, style table.Style) error {
	if f.JSON() {
		return f.Success(r)
	}
	return writeText(f.Writer, r, style)
}

// chartPath inserts the quantity before the extension: out.png becomes
// out_power.png.
func chartPath(path string, q matrix.Quantity) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + string(q) + ext
}

// saveCharts writes one chart per quantity for every requested path.
func saveCharts(m *matrix.Matrix, normalized bool, paths []string) ([]string, error) {
	var written []string
	for _, p := range paths {
		for _, q := range []matrix.Quantity{matrix.Power, matrix.Floor} {
			out := chartPath(p, q)
			if err := chart.Save(chart.FromMatrix(m, q, normalized), out); err != nil {
				return written, err
			}
			written = append(written, out)
		}
	}
	return written, nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
