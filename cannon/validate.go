package cannon

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/pkg/errors"
	"github.com/sdss/AnniesLasso/pkg/log"
	"github.com/sdss/AnniesLasso/vectorizer"
)

// DefaultLambdas returns 0 followed by 10^0, 10^0.1, ..., 10^10.
func DefaultLambdas() []float64 {
	out := []float64{0}
	for i := 0; i <= 100; i++ {
		out = append(out, math.Pow(10, float64(i)/10))
	}
	return out
}

// ValidationResult holds the held-out objective for every Λ (rows) and pixel
// (columns).
type ValidationResult struct {
	Lambdas   []float64
	ChiSquare *mat.Dense
	LogDet    *mat.Dense
}

// Optimal returns, per pixel, the Λ minimising chi² + log-det on the
// validation stars. Ties go to the smaller Λ.
func (r *ValidationResult) Optimal() []float64 {
	nl, p := r.ChiSquare.Dims()
	out := make([]float64, p)
	for j := 0; j < p; j++ {
		best := math.Inf(1)
		out[j] = r.Lambdas[0]
		for i := 0; i < nl; i++ {
			q := r.ChiSquare.At(i, j) + r.LogDet.At(i, j)
			if q < best {
				best = q
				out[j] = r.Lambdas[i]
			}
		}
	}
	return out
}

// ValidateRegularization trains one sub-model per Λ on the stars with
// subsets[i] % mod != 0 and scores every pixel on the remaining stars.
// With fixedScatter the model's current S2 is used for every sub-model.
func (m *Model) ValidateRegularization(lambdas []float64, subsets []int, mod int, fixedScatter bool) (*ValidationResult, error) {
	if m.flux == nil {
		return nil, errors.WithStack(errors.ErrNoTrainingData)
	}
	n, p := m.flux.Dims()
	if len(subsets) != n {
		return nil, errors.NewShapeMismatchError("ValidateRegularization", "subset labels", n, len(subsets))
	}
	if mod < 2 {
		return nil, errors.NewConfigurationError("mod", "must be at least 2", mod)
	}
	if len(lambdas) == 0 {
		return nil, errors.NewConfigurationError("lambdas", "at least one value is required", lambdas)
	}
	if fixedScatter && m.s2 == nil {
		return nil, errors.NewConfigurationError("fixed_scatter", "fixed-scatter validation requires a prior scatter (call SetS2)", nil)
	}
	regs := make([]Regularization, len(lambdas))
	for i, lambda := range lambdas {
		r, err := NewRegularization(lambda)
		if err != nil {
			return nil, err
		}
		regs[i] = r
	}

	var train, validate []int
	for i, s := range subsets {
		if s%mod == 0 {
			validate = append(validate, i)
		} else {
			train = append(train, i)
		}
	}
	if len(train) == 0 || len(validate) == 0 {
		return nil, errors.NewValueError("ValidateRegularization", "both training and validation subsets must be non-empty")
	}

	valLabels := selectRows(m.labels, validate)
	valFlux := selectRows(m.flux, validate)
	valIvar := selectRows(m.ivar, validate)
	valDesign, err := vectorizer.DesignMatrix(m.vec, valLabels)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	logger := m.logger.With(log.OperationKey, log.OperationValidate, log.PhaseKey, log.PhaseValidation)
	logger.Info("Regularization validation started",
		"lambdas", len(lambdas),
		"train_stars", len(train),
		"validation_stars", len(validate),
	)

	result := &ValidationResult{
		Lambdas:   append([]float64(nil), lambdas...),
		ChiSquare: mat.NewDense(len(lambdas), p, nil),
		LogDet:    mat.NewDense(len(lambdas), p, nil),
	}
	trainSet := LabelledSet{Names: m.vec.LabelNames(), Values: selectRows(m.labels, train)}
	for li, reg := range regs {
		sub, err := m.subModel(trainSet, selectRows(m.flux, train), selectRows(m.ivar, train))
		if err != nil {
			return nil, err
		}
		if fixedScatter {
			if err := sub.SetS2(m.s2); err != nil {
				return nil, err
			}
		}
		if err := sub.SetRegularization(reg); err != nil {
			return nil, err
		}
		if err := sub.Train(fixedScatter); err != nil {
			return nil, errors.Wrapf(err, "training with regularization %g", lambdas[li])
		}

		for j := 0; j < p; j++ {
			s2 := sub.s2[j]
			if math.IsInf(s2, 1) {
				result.ChiSquare.Set(li, j, math.Inf(1))
				continue
			}
			ivarEff := EffectiveIvar(mat.Col(nil, j, valIvar), math.Sqrt(s2), nil)
			result.ChiSquare.Set(li, j, ChiSquare(sub.theta.RawRowView(j), valDesign, mat.Col(nil, j, valFlux), ivarEff))
			result.LogDet.Set(li, j, LogDet(ivarEff))
		}
		logger.Debug("Regularization scored", log.RegularizationKey, lambdas[li])
	}

	logger.Info("Regularization validation completed", log.DurationMsKey, time.Since(start).Milliseconds())
	return result, nil
}

// subModel builds a model sharing m's vectorizer and collaborators.
func (m *Model) subModel(labelled LabelledSet, flux, ivar *mat.Dense) (*Model, error) {
	sub, err := NewModel(labelled, flux, ivar, m.dispersion, m.vec)
	if err != nil {
		return nil, err
	}
	sub.cfg = m.cfg
	sub.cfg.progress = NoProgress{}
	sub.logger = m.logger.With("submodel", sub.id)
	return sub, nil
}

func selectRows(a *mat.Dense, rows []int) *mat.Dense {
	_, c := a.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		out.SetRow(i, a.RawRowView(r))
	}
	return out
}
