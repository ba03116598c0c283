package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	plotWidth  = 10 * vg.Inch
	plotHeight = 5 * vg.Inch

	red = color.RGBA{R: 220, A: 255}
)

// SaveLatencyPlot writes processing time per cycle to path. The image
// format follows the file extension (.png, .svg, .pdf).
func (r *Report) SaveLatencyPlot(path string) error {
	p := plot.New()
	p.Title.Text = "Processing time per cycle"
	p.X.Label.Text = "Cycle"
	p.Y.Label.Text = "Processing time (ms)"

	pts := make(plotter.XYs, len(r.millis))
	for i, ms := range r.millis {
		pts[i] = plotter.XY{X: float64(i), Y: ms}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create latency line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())

	mean, err := horizontal(len(r.millis), r.Latency.Mean)
	if err != nil {
		return err
	}
	p.Add(mean)
	p.Legend.Add(fmt.Sprintf("mean %.3f ms", r.Latency.Mean), mean)

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("failed to save latency plot %s: %w", path, err)
	}
	return nil
}

// SaveAccuracyPlot writes the cumulative accuracy curve to path.
func (r *Report) SaveAccuracyPlot(path string) error {
	if !r.HasTruth {
		return errors.New("accuracy plot needs ground truth")
	}

	p := plot.New()
	p.Title.Text = "Accuracy over time"
	p.X.Label.Text = "Time (samples)"
	p.Y.Label.Text = "Accuracy"
	p.Y.Min, p.Y.Max = 0, 1

	pts := make(plotter.XYs, len(r.Cumulative))
	for i, acc := range r.Cumulative {
		pts[i] = plotter.XY{X: float64(i), Y: acc}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create accuracy line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())
	p.Legend.Add("Cumulative Accuracy", line)

	final, err := horizontal(len(r.Cumulative), r.Accuracy)
	if err != nil {
		return err
	}
	p.Add(final)
	p.Legend.Add(fmt.Sprintf("Final Accuracy: %.2f%%", 100*r.Accuracy), final)

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("failed to save accuracy plot %s: %w", path, err)
	}
	return nil
}

// horizontal draws a dashed red reference line across n samples.
func horizontal(n int, y float64) (*plotter.Line, error) {
	end := float64(max(n-1, 1))
	line, err := plotter.NewLine(plotter.XYs{{X: 0, Y: y}, {X: end, Y: y}})
	if err != nil {
		return nil, fmt.Errorf("failed to create reference line: %w", err)
	}
	line.Color = red
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	return line, nil
}
