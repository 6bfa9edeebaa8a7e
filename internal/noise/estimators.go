package noise

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/noiseablate/internal/channel"
)

// madScale converts a median absolute deviation to a Gaussian sigma.
const madScale = 1.4826

// Method selects the masked estimator's statistic.
type Method string

const (
	MethodStddev Method = "stddev"
	MethodMAD    Method = "mad"
)

// Options configures Estimate.
type Options struct {
	// UseMask drops flagged samples before measuring.
	UseMask bool   `json:"use_mask"`
	Method  Method `json:"method"`
}

// Estimate is the library noise estimator. With MethodStddev the result is
// (std, mean); with MethodMAD it is (1.4826*MAD, median).
func Estimate(v *channel.View, opts Options) (Stats, error) {
	xs := v.Samples(opts.UseMask)
	if len(xs) == 0 {
		return Stats{}, ErrNoSamples
	}
	switch opts.Method {
	case "", MethodStddev:
		return Raw(xs)
	case MethodMAD:
		med := Median(xs)
		dev := make([]float64, len(xs))
		for i, x := range xs {
			dev[i] = math.Abs(x - med)
		}
		return Stats{Power: madScale * Median(dev), Floor: med}, nil
	default:
		return Stats{}, fmt.Errorf("unknown estimator method %q", opts.Method)
	}
}

// TurboSETI reproduces turboSETI's statistics: average the spectra over time,
// patch the DC bin with the sum of its neighbours, drop values outside the
// 5th..95th percentile band and report (std of the rest, median).
func TurboSETI(v *channel.View) (Stats, error) {
	if v.Cols < 3 {
		return Stats{}, fmt.Errorf("turboseti needs at least 3 columns, got %d", v.Cols)
	}
	spectrum := TimeAverage(v)
	PatchCenterBin(spectrum)

	sorted := slices.Clone(spectrum)
	slices.Sort(sorted)
	low := Percentile(sorted, 5)
	median := Percentile(sorted, 50)
	high := Percentile(sorted, 95)

	kept := make([]float64, 0, len(spectrum))
	for _, x := range spectrum {
		if x >= low && x <= high {
			kept = append(kept, x)
		}
	}
	if len(kept) == 0 {
		return Stats{}, ErrNoSamples
	}
	_, std := MeanStd(kept)
	return Stats{Power: std, Floor: median}, nil
}

// TimeAverage returns the mean of every column over all rows.
func TimeAverage(v *channel.View) []float64 {
	out := make([]float64, v.Cols)
	for r := 0; r < v.Rows; r++ {
		row := v.Row(r)
		for c, x := range row {
			out[c] += float64(x)
		}
	}
	for c := range out {
		out[c] /= float64(v.Rows)
	}
	return out
}

// PatchCenterBin replaces bin len/2 with the sum of its two neighbours.
func PatchCenterBin(spectrum []float64) {
	c := len(spectrum) / 2
	spectrum[c] = spectrum[c-1] + spectrum[c+1]
}

// ClipOptions configures SigmaClip.
type ClipOptions struct {
	Sigma float64
	// MaxIters <= 0 iterates until nothing more is clipped.
	MaxIters int
	// Center is "median" (default) or "mean".
	Center string
}

// SigmaClip iteratively drops values further than Sigma standard deviations
// from the center until nothing changes or MaxIters is reached. It returns the
// surviving values and the number of iterations run.
func SigmaClip(xs []float64, opts ClipOptions) ([]float64, int) {
	kept := slices.Clone(xs)
	iter := 0
	for len(kept) > 0 && (opts.MaxIters <= 0 || iter < opts.MaxIters) {
		iter++
		var center float64
		mean, std := MeanStd(kept)
		if opts.Center == "mean" {
			center = mean
		} else {
			center = Median(kept)
		}
		lo := center - opts.Sigma*std
		hi := center + opts.Sigma*std

		next := kept[:0:0]
		for _, x := range kept {
			if x >= lo && x <= hi {
				next = append(next, x)
			}
		}
		changed := len(kept) - len(next)
		kept = next
		if changed == 0 {
			break
		}
	}
	return kept, iter
}

// Setigen reproduces setigen's statistics: sigma clip every sample and report
// (std, mean) of the survivors.
func Setigen(v *channel.View, opts ClipOptions) (Stats, error) {
	kept, _ := SigmaClip(v.Samples(false), opts)
	if len(kept) == 0 {
		return Stats{}, ErrNoSamples
	}
	return Raw(kept)
}
