package stats

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"io"
)

// Plot returns a horizontal bar chart with the percentage of positive labels per attribute.
func (c *Counts) Plot() (*plot.Plot, error) {
	p, err := plot.New()
	if err != nil {
		return nil, errors.Wrap(err, "plot error")
	}
	values := make(plotter.Values, len(c.Names))
	for i := range values {
		values[i] = 100 * c.Fraction(i)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return nil, errors.Wrap(err, "plot error")
	}
	bars.Horizontal = true
	bars.LineStyle.Width = 0
	bars.Color = plotutil.Color(0)
	p.Title.Text = "positive labels"
	p.X.Label.Text = "%"
	p.X.Min, p.X.Max = 0, 100
	p.Add(plotter.NewGrid(), bars)
	p.NominalY(c.Names...)
	return p, nil
}

// WritePlot renders the bar chart in the given format, e.g. "svg" or "png"
func (c *Counts) WritePlot(w io.Writer, width, height vg.Length, format string) error {
	p, err := c.Plot()
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return errors.Wrap(err, "error writing plot")
	}
	_, err = wt.WriteTo(w)
	return err
}
