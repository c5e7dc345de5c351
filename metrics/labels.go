package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sdss/AnniesLasso/pkg/errors"
)

// Residual summarises inferred − expected for one label.
type Residual struct {
	Label string
	// N counts the stars used; stars with a non-finite inferred value are skipped.
	N    int
	Bias float64
	RMS  float64
	MAE  float64
	P16  float64
	P50  float64
	P84  float64
}

// LabelResiduals compares expected and inferred labels column by column.
func LabelResiduals(names []string, expected, inferred mat.Matrix) ([]Residual, error) {
	n, c := expected.Dims()
	if c != len(names) {
		return nil, errors.NewShapeMismatchError("LabelResiduals", "labels", len(names), c)
	}
	if in, ic := inferred.Dims(); in != n {
		return nil, errors.NewShapeMismatchError("LabelResiduals", "stars", n, in)
	} else if ic != c {
		return nil, errors.NewShapeMismatchError("LabelResiduals", "labels", c, ic)
	}

	out := make([]Residual, c)
	for j, name := range names {
		var exp, inf []float64
		for i := 0; i < n; i++ {
			v := inferred.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			exp = append(exp, expected.At(i, j))
			inf = append(inf, v)
		}
		r := Residual{Label: name, N: len(exp)}
		if len(exp) == 0 {
			r.Bias, r.RMS, r.MAE = math.NaN(), math.NaN(), math.NaN()
			r.P16, r.P50, r.P84 = math.NaN(), math.NaN(), math.NaN()
			out[j] = r
			continue
		}

		yTrue := mat.NewVecDense(len(exp), exp)
		yPred := mat.NewVecDense(len(inf), inf)
		r.Bias, _ = Bias(yTrue, yPred)
		r.RMS, _ = RMSE(yTrue, yPred)
		r.MAE, _ = MAE(yTrue, yPred)

		diff := make([]float64, len(exp))
		for i := range diff {
			diff[i] = inf[i] - exp[i]
		}
		sort.Float64s(diff)
		r.P16 = stat.Quantile(0.16, stat.Empirical, diff, nil)
		r.P50 = stat.Quantile(0.50, stat.Empirical, diff, nil)
		r.P84 = stat.Quantile(0.84, stat.Empirical, diff, nil)
		out[j] = r
	}
	return out, nil
}
