package chart

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// emptyValue renders as a gap in echarts.
const emptyValue = "-"

// RenderHTML writes an interactive page with one bar chart.
func RenderHTML(w io.Writer, c Chart) error {
	if len(c.Categories) == 0 || len(c.Series) == 0 {
		return fmt.Errorf("chart %q has no data", c.Title)
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: c.Title, Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: c.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 40, Interval: "0"}}),
		charts.WithYAxisOpts(opts.YAxis{Name: c.YLabel, NameLocation: "middle", NameGap: 40}),
	)
	bar.SetXAxis(c.Categories)
	for _, s := range c.Series {
		data := make([]opts.BarData, len(s.Values))
		for i, x := range s.Values {
			if finite(x) {
				data[i] = opts.BarData{Value: x}
			} else {
				data[i] = opts.BarData{Value: emptyValue}
			}
		}
		bar.AddSeries(s.Name, data)
	}

	page := components.NewPage()
	page.AddCharts(bar)
	return page.Render(w)
}

func saveHTML(c Chart, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	if err := RenderHTML(f, c); err != nil {
		f.Close()
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	return f.Close()
}
