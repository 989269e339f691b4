package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	plotChartHeight = "600px"
	// plotMaxSlices bounds the pie; the remaining contributors are summed up.
	plotMaxSlices = 12
	othersLabel   = "others"
)

// writePlot renders the ownership split as an HTML pie chart.
func writePlot(w io.Writer, doc Document) error {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Line ownership",
			Subtitle: fmt.Sprintf("%d lines in %d files", doc.TotalLines, doc.Files),
		}),
		charts.WithInitializationOpts(opts.Initialization{Height: plotChartHeight}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll", Orient: "vertical", Left: "left", Top: "60"}),
	)

	pie.AddSeries("Lines", pieData(doc.Contributors)).
		SetSeriesOptions(
			charts.WithPieChartOpts(opts.PieChart{Radius: []string{"35%", "70%"}}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%"}),
		)

	err := pie.Render(w)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

func pieData(contributors []Contributor) []opts.PieData {
	data := make([]opts.PieData, 0, min(len(contributors), plotMaxSlices+1))
	others := 0

	for i, c := range contributors {
		if i >= plotMaxSlices {
			others += c.Lines

			continue
		}

		data = append(data, opts.PieData{Name: c.Label(), Value: c.Lines})
	}

	if others > 0 {
		data = append(data, opts.PieData{Name: othersLabel, Value: others})
	}

	return data
}
