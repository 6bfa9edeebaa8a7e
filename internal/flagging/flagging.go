// Package flagging implements the reference flaggers and passband
// correction. Every function returns a new view and leaves its input intact.
package flagging

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/noiseablate/internal/channel"
)

// Rolloff flags round(cols*fraction) columns at each edge of the channel,
// where the channelizer response falls off.
func Rolloff(v *channel.View, fraction float64) (*channel.View, error) {
	if fraction <= 0 || fraction >= 0.5 {
		return nil, fmt.Errorf("rolloff fraction must be in (0, 0.5), got %v", fraction)
	}
	edge := int(math.Round(float64(v.Cols) * fraction))
	out := v.WithMask()
	for c := 0; c < edge; c++ {
		out.FlagColumn(c)
		out.FlagColumn(v.Cols - 1 - c)
	}
	return out, nil
}

// SpectralKurtosis flags columns whose generalized spectral kurtosis estimator
//
//	SK = (M*N + 1)/(M - 1) * (M*S2/S1^2 - 1)
//
// lies outside [lower, upper]. M is the number of rows, N the number of
// accumulated spectra per row (integrations), S1 and S2 the column sums of
// x and x^2. Columns with zero power are flagged.
func SpectralKurtosis(v *channel.View, lower, upper float64, integrations int) (*channel.View, error) {
	if v.Rows < 2 {
		return nil, fmt.Errorf("spectral kurtosis needs at least 2 rows, got %d", v.Rows)
	}
	if integrations <= 0 {
		integrations = 1
	}
	m := float64(v.Rows)
	n := float64(integrations)
	scale := (m*n + 1) / (m - 1)

	s1 := make([]float64, v.Cols)
	s2 := make([]float64, v.Cols)
	for r := 0; r < v.Rows; r++ {
		for c, x := range v.Row(r) {
			f := float64(x)
			s1[c] += f
			s2[c] += f * f
		}
	}

	out := v.WithMask()
	for c := 0; c < v.Cols; c++ {
		if s1[c] == 0 {
			out.FlagColumn(c)
			continue
		}
		sk := scale * (m*s2[c]/(s1[c]*s1[c]) - 1)
		if sk < lower || sk > upper {
			out.FlagColumn(c)
		}
	}
	return out, nil
}

// SigmaClip flags whole columns of the time-averaged spectrum that lie more
// than lower sigmas below or upper sigmas above the mean of the unflagged
// columns, repeating up to iterations times or until nothing changes.
func SigmaClip(v *channel.View, iterations int, lower, upper float64) (*channel.View, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("sigma clip iterations must be positive, got %d", iterations)
	}
	out := v.WithMask()
	spectrum, live := columnMeans(out)

	for it := 0; it < iterations; it++ {
		var vals []float64
		for c, ok := range live {
			if ok {
				vals = append(vals, spectrum[c])
			}
		}
		if len(vals) < 2 {
			break
		}
		mean, variance := stat.PopMeanVariance(vals, nil)
		std := math.Sqrt(variance)
		lo, hi := mean-lower*std, mean+upper*std

		changed := 0
		for c, ok := range live {
			if ok && (spectrum[c] < lo || spectrum[c] > hi) {
				live[c] = false
				out.FlagColumn(c)
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}
	return out, nil
}

// columnMeans averages each column over its unflagged rows. Columns with no
// unflagged rows are reported as not live.
func columnMeans(v *channel.View) ([]float64, []bool) {
	sums := make([]float64, v.Cols)
	counts := make([]float64, v.Cols)
	for r := 0; r < v.Rows; r++ {
		for c := 0; c < v.Cols; c++ {
			i := r*v.Cols + c
			if !v.Mask[i] {
				sums[c] += float64(v.Data[i])
				counts[c]++
			}
		}
	}
	live := make([]bool, v.Cols)
	for c := range sums {
		if counts[c] > 0 {
			sums[c] /= counts[c]
			live[c] = true
		}
	}
	return sums, live
}

// Passband divides every row by the filterbank response, resampled to the
// channel width by linear interpolation. The response is normalized to unit
// peak so a flat passband leaves data unchanged.
func Passband(v *channel.View, coefficients []float64) (*channel.View, error) {
	if len(coefficients) == 0 {
		return nil, fmt.Errorf("passband response is empty")
	}
	resp := Resample(coefficients, v.Cols)
	peak := floats.Max(resp)
	if peak <= 0 {
		return nil, fmt.Errorf("passband response has no positive values")
	}
	floats.Scale(1/peak, resp)
	for c, x := range resp {
		if x == 0 {
			return nil, fmt.Errorf("passband response is zero at column %d", c)
		}
	}

	out := v.Clone()
	for r := 0; r < out.Rows; r++ {
		row := out.Row(r)
		for c := range row {
			row[c] = float32(float64(row[c]) / resp[c])
		}
	}
	return out, nil
}

// Resample linearly interpolates xs onto n points spanning the same extent,
// treating samples as bin centres.
func Resample(xs []float64, n int) []float64 {
	out := make([]float64, n)
	if len(xs) == n {
		copy(out, xs)
		return out
	}
	if len(xs) == 1 {
		for i := range out {
			out[i] = xs[0]
		}
		return out
	}
	ratio := float64(len(xs)) / float64(n)
	last := float64(len(xs) - 1)
	for i := range out {
		pos := (float64(i)+0.5)*ratio - 0.5
		pos = math.Max(0, math.Min(last, pos))
		lo := int(math.Floor(pos))
		hi := lo + 1
		if hi > len(xs)-1 {
			hi = len(xs) - 1
		}
		frac := pos - float64(lo)
		out[i] = xs[lo] + (xs[hi]-xs[lo])*frac
	}
	return out
}
