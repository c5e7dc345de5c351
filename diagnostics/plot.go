// Package diagnostics renders plots for inspecting a trained model: the
// spectral derivatives θ, the intrinsic scatter, label one-to-one comparisons
// and regularization validation curves.
//
// The output format follows the file extension (png, svg, pdf, eps).
package diagnostics

import (
	"image/color"
	"math"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sdss/AnniesLasso/cannon"
	"github.com/sdss/AnniesLasso/pkg/errors"
	"github.com/sdss/AnniesLasso/pkg/log"
)

var (
	width  = 10 * vg.Inch
	height = 4 * vg.Inch
)

var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 140, G: 86, B: 75, A: 255},
}

type termNamer interface {
	HumanReadableTerms() []string
}

// dispersionOf returns the model's wavelengths, pixel indices for a loaded
// model.
func dispersionOf(m *cannon.Model) []float64 {
	if d := m.Dispersion(); d != nil {
		return d
	}
	x := make([]float64, m.NumPixels())
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

// Theta plots every coefficient against dispersion, one line per term.
// Non-finite values are skipped.
func Theta(m *cannon.Model, path string) error {
	theta := m.Theta()
	if theta == nil {
		return errors.NewNotFittedError("CannonModel", "Theta")
	}
	x := dispersionOf(m)
	p, k := theta.Dims()

	names := make([]string, k)
	for t := range names {
		names[t] = "θ" + strconv.Itoa(t)
	}
	if tn, ok := m.Vectorizer().(termNamer); ok {
		copy(names, tn.HumanReadableTerms())
	}

	pl := plot.New()
	pl.Title.Text = "Spectral derivatives"
	pl.X.Label.Text = "Dispersion"
	pl.Y.Label.Text = "θ"
	pl.Legend.Top = true
	for t := 0; t < k; t++ {
		pts := make(plotter.XYs, 0, p)
		for j := 0; j < p; j++ {
			if v := theta.At(j, t); !math.IsNaN(v) && !math.IsInf(v, 0) {
				pts = append(pts, plotter.XY{X: x[j], Y: v})
			}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "term %d", t)
		}
		line.Color = palette[t%len(palette)]
		pl.Add(line)
		pl.Legend.Add(names[t], line)
	}
	return save(pl, width, height, path)
}

// Scatter plots the intrinsic scatter s against dispersion. Degenerate
// pixels are omitted.
func Scatter(m *cannon.Model, path string) error {
	s2 := m.S2()
	if s2 == nil {
		return errors.NewNotFittedError("CannonModel", "Scatter")
	}
	x := dispersionOf(m)
	pts := make(plotter.XYs, 0, len(s2))
	for j, v := range s2 {
		if !math.IsInf(v, 1) {
			pts = append(pts, plotter.XY{X: x[j], Y: math.Sqrt(v)})
		}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = palette[0]

	pl := plot.New()
	pl.Title.Text = "Intrinsic scatter"
	pl.X.Label.Text = "Dispersion"
	pl.Y.Label.Text = "s"
	pl.Add(line)
	return save(pl, width, height, path)
}

// OneToOne compares reference and inferred values of one label. Stars with a
// non-finite inferred value are skipped.
func OneToOne(label string, expected, inferred []float64, path string) error {
	if len(expected) != len(inferred) {
		return errors.NewShapeMismatchError("OneToOne", "stars", len(expected), len(inferred))
	}
	pts := make(plotter.XYs, 0, len(expected))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range expected {
		if math.IsNaN(inferred[i]) || math.IsInf(inferred[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: expected[i], Y: inferred[i]})
		lo = math.Min(lo, math.Min(expected[i], inferred[i]))
		hi = math.Max(hi, math.Max(expected[i], inferred[i]))
	}
	if len(pts) == 0 {
		return errors.ErrEmptyData
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.Color = palette[0]
	identity, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return err
	}
	identity.Color = color.Gray{Y: 128}
	identity.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	pl := plot.New()
	pl.Title.Text = label
	pl.X.Label.Text = "Reference"
	pl.Y.Label.Text = "Inferred"
	pl.Add(identity, scatter)
	return save(pl, 5*vg.Inch, 5*vg.Inch, path)
}

// Validation plots chi² + log-det against log10 Λ for one pixel. Λ = 0 is
// drawn one decade below the smallest positive Λ.
func Validation(res *cannon.ValidationResult, pixel int, path string) error {
	nl, p := res.ChiSquare.Dims()
	if pixel < 0 || pixel >= p {
		return errors.NewValueError("Validation", "pixel index out of range")
	}
	minPositive := math.Inf(1)
	for _, l := range res.Lambdas {
		if l > 0 {
			minPositive = math.Min(minPositive, l)
		}
	}
	if math.IsInf(minPositive, 1) {
		minPositive = 1
	}

	pts := make(plotter.XYs, 0, nl)
	for i, l := range res.Lambdas {
		q := res.ChiSquare.At(i, pixel) + res.LogDet.At(i, pixel)
		if math.IsInf(q, 0) || math.IsNaN(q) {
			continue
		}
		x := math.Log10(minPositive) - 1
		if l > 0 {
			x = math.Log10(l)
		}
		pts = append(pts, plotter.XY{X: x, Y: q})
	}
	if len(pts) == 0 {
		return errors.ErrEmptyData
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	line.Color = palette[0]
	points.Color = palette[0]

	pl := plot.New()
	pl.Title.Text = "Regularization validation"
	pl.X.Label.Text = "log10 Λ"
	pl.Y.Label.Text = "χ² + log det"
	pl.Add(line, points)
	return save(pl, 6*vg.Inch, 4*vg.Inch, path)
}

func save(pl *plot.Plot, w, h vg.Length, path string) error {
	if err := pl.Save(w, h, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}
	log.GetLoggerWithName("diagnostics").Debug("Plot saved", "path", path)
	return nil
}
