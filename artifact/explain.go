package artifact

import (
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ezoic/medscore/training"
)

const maxChartFeatures = 20

// SaveImportanceChart draws a horizontal bar chart of the most important
// features to a PNG at path. importances must be sorted, most important
// first.
func SaveImportanceChart(path, title string, importances []training.FeatureImportance) error {
	if len(importances) > maxChartFeatures {
		importances = importances[:maxChartFeatures]
	}
	n := len(importances)
	values := make(plotter.Values, n)
	names := make([]string, n)
	// bottom-up so the most important bar is drawn on top
	for i, fi := range importances {
		values[n-1-i] = fi.Importance
		names[n-1-i] = fi.Feature
	}

	p := plot.New()
	p.Title.Text = title + " feature importance"
	p.X.Label.Text = "importance"

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return err
	}
	bars.Horizontal = true
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = plotter.DefaultLineStyle.Color
	p.Add(bars)
	p.NominalY(names...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	height := vg.Length(n)*vg.Points(18) + 2*vg.Inch
	return p.Save(8*vg.Inch, height, path)
}
