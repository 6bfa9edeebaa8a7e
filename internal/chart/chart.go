// Package chart draws the result matrix as a grouped bar chart: one group per
// variant, one bar per file. Static images go through gonum/plot and
// interactive pages through go-echarts.
package chart

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/roach88/noiseablate/internal/matrix"
)

// Chart is the data behind one bar chart. Values[f][v] is file f under
// variant v; non-finite values mark cells with no usable ratio.
type Chart struct {
	Title      string
	YLabel     string
	Categories []string
	Series     []Series
}

// Series is one file's bars.
type Series struct {
	Name   string
	Values []float64
}

// FromMatrix builds a chart of one quantity. Failed and empty cells become
// NaN.
func FromMatrix(m *matrix.Matrix, q matrix.Quantity, normalized bool) Chart {
	variants := m.Variants()
	c := Chart{
		Title:      fmt.Sprintf("Noise %s by variant", q),
		YLabel:     string(q),
		Categories: variants,
	}
	if normalized {
		c.YLabel = string(q) + " / baseline"
	}
	for _, f := range m.Files() {
		s := Series{Name: f, Values: make([]float64, len(variants))}
		for i, v := range variants {
			cell, _ := m.Get(v, f)
			if cell.State == matrix.Measured {
				s.Values[i] = q.Of(cell.Measurement)
			} else {
				s.Values[i] = math.NaN()
			}
		}
		c.Series = append(c.Series, s)
	}
	return c
}

// Save writes c to path; the extension picks the format.
func Save(c Chart, path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png", ".svg", ".pdf":
		return savePlot(c, path)
	case ".html", ".htm":
		return saveHTML(c, path)
	default:
		return fmt.Errorf("unsupported chart format %q (want .png, .svg, .pdf or .html)", ext)
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
