package cannon

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/sdss/AnniesLasso/core/parallel"
	"github.com/sdss/AnniesLasso/pkg/errors"
	"github.com/sdss/AnniesLasso/pkg/log"
)

const lbfgsName = "LBFGS"

// LabelFit is the inference result for one star.
type LabelFit struct {
	Labels []float64
	// Covariance is (JᵀWJ)⁻¹ at Labels, +Inf everywhere when not invertible.
	Covariance *mat.SymDense
	// Initial is the seed obtained from LabelVector.
	Initial     []float64
	LabelVector []float64
	ChiSquare   float64
	// DOF is the number of informative pixels minus the number of labels.
	DOF         int
	Status      optimize.Status
	Evaluations int
	Iterations  int
	// Stalled is set only when an evaluation, iteration or runtime ceiling
	// stopped the optimizer.
	Stalled bool
}

// inferenceWeights returns ivar/(1+ivar·s2) per pixel using the trained s2.
// Degenerate pixels (s2 = +Inf) and masked pixels get weight 0.
func (m *Model) inferenceWeights(ivar []float64) []float64 {
	w := make([]float64, len(ivar))
	for i, v := range ivar {
		s2 := m.s2[i]
		if v == 0 || math.IsInf(s2, 1) {
			continue
		}
		w[i] = v / (1 + v*s2)
	}
	return w
}

func (m *Model) checkSpectrum(op string, flux, ivar []float64) error {
	p := m.NumPixels()
	if len(flux) != p {
		return errors.NewShapeMismatchError(op, "flux pixels", p, len(flux))
	}
	if len(ivar) != p {
		return errors.NewShapeMismatchError(op, "ivar pixels", p, len(ivar))
	}
	if err := errors.CheckNumericalStability("flux", flux, -1); err != nil {
		return err
	}
	if err := errors.CheckNumericalStability("ivar", ivar, -1); err != nil {
		return err
	}
	for _, v := range ivar {
		if v < 0 {
			return errors.NewConfigurationError("ivar", "inverse variances must be non-negative", v)
		}
	}
	return nil
}

// EstimateLabelVector solves ΘᵀWΘ x = ΘᵀWf across all pixels for the label
// vector x that best explains one spectrum.
func (m *Model) EstimateLabelVector(flux, ivar []float64) ([]float64, error) {
	if err := m.state.RequireTrained(modelName, "EstimateLabelVector"); err != nil {
		return nil, err
	}
	if err := m.checkSpectrum("EstimateLabelVector", flux, ivar); err != nil {
		return nil, err
	}
	return m.estimateLabelVector(flux, m.inferenceWeights(ivar))
}

func (m *Model) estimateLabelVector(flux, w []float64) ([]float64, error) {
	p, k := m.theta.Dims()
	wt := mat.NewDense(p, k, nil)
	wf := make([]float64, p)
	for i := 0; i < p; i++ {
		wf[i] = w[i] * flux[i]
		if w[i] == 0 {
			continue
		}
		row := m.theta.RawRowView(i)
		dst := wt.RawRowView(i)
		for j := range row {
			dst[j] = w[i] * row[j]
		}
	}

	var a mat.Dense
	a.Mul(m.theta.T(), wt)
	var b mat.VecDense
	b.MulVec(m.theta.T(), mat.NewVecDense(p, wf))

	var x mat.VecDense
	if err := x.SolveVec(&a, &b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, errors.NewModelError("EstimateLabelVector", "singular normal equations", errors.ErrSingularMatrix)
		}
	}
	out := make([]float64, k)
	for j := range out {
		out[j] = x.AtVec(j)
	}
	if !finite(out) {
		return nil, errors.NewModelError("EstimateLabelVector", "non-finite label vector", errors.ErrSingularMatrix)
	}
	return out, nil
}

// modelFlux writes Θ·v(labels) into dst.
func (m *Model) modelFlux(dst, labels []float64) {
	p, k := m.theta.Dims()
	v := mat.NewVecDense(k, m.vec.Vectorize(labels))
	mat.NewVecDense(p, dst).MulVec(m.theta, v)
}

// FitSpectrum infers the labels of one star.
func (m *Model) FitSpectrum(flux, ivar []float64) (LabelFit, error) {
	if err := m.state.RequireTrained(modelName, "FitSpectrum"); err != nil {
		return LabelFit{}, err
	}
	if err := m.checkSpectrum("FitSpectrum", flux, ivar); err != nil {
		return LabelFit{}, err
	}
	return m.fitSpectrum(-1, flux, ivar)
}

func (m *Model) fitSpectrum(star int, flux, ivar []float64) (LabelFit, error) {
	w := m.inferenceWeights(ivar)
	lv, err := m.estimateLabelVector(flux, w)
	if err != nil {
		m.cfg.reporter.Report(Event{Kind: EventSingularSpectrum, Pixel: -1, Star: star, Severity: log.LevelWarn, Err: err})
		return LabelFit{}, err
	}
	initial, err := m.vec.ApproximateLabels(lv)
	if err != nil {
		return LabelFit{}, errors.Wrap(err, "failed to seed labels")
	}

	p, _ := m.theta.Dims()
	nLabels := len(initial)
	predicted := make([]float64, p)
	objective := func(labels []float64) float64 {
		m.modelFlux(predicted, labels)
		chi := 0.0
		for i := range predicted {
			if w[i] == 0 {
				continue
			}
			r := predicted[i] - flux[i]
			chi += w[i] * r * r
		}
		return chi
	}
	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, &fd.Settings{Formula: fd.Central})
		},
	}
	fit := LabelFit{
		Labels:      append([]float64(nil), initial...),
		Initial:     initial,
		LabelVector: lv,
	}
	result, err := optimize.Minimize(problem, initial, m.cfg.settings.optimizeSettings(), &optimize.LBFGS{})
	if result != nil {
		fit.Status = result.Status
		fit.Evaluations = result.FuncEvaluations
		fit.Iterations = result.MajorIterations
		fit.Stalled = stalled(result.Status)
		if finite(result.X) && objective(result.X) <= objective(initial) {
			fit.Labels = append([]float64(nil), result.X...)
		}
	} else {
		fit.Status = optimize.Failure
	}
	if err != nil {
		// A line-search failure is not a stall; the best location is kept.
		m.logger.Debug("Label optimizer stopped early", err,
			log.StarKey, star,
			log.StatusKey, fit.Status.String(),
		)
	}
	if fit.Stalled {
		m.cfg.reporter.Report(stallEvent(-1, star, lbfgsName, fit.Status.String(), fit.Evaluations, fit.Iterations))
	}

	fit.ChiSquare = objective(fit.Labels)
	informative := 0
	for _, v := range w {
		if v > 0 {
			informative++
		}
	}
	fit.DOF = informative - nLabels
	fit.Covariance = m.labelCovariance(fit.Labels, w)
	return fit, nil
}

// labelCovariance returns (JᵀWJ)⁻¹ with J the Jacobian of the model flux.
func (m *Model) labelCovariance(labels, w []float64) *mat.SymDense {
	p, _ := m.theta.Dims()
	l := len(labels)
	jac := mat.NewDense(p, l, nil)
	fd.Jacobian(jac, func(y, x []float64) { m.modelFlux(y, x) }, labels, &fd.JacobianSettings{Formula: fd.Central})

	for i := 0; i < p; i++ {
		sw := math.Sqrt(w[i])
		row := jac.RawRowView(i)
		for j := range row {
			row[j] *= sw
		}
	}
	var jtwj mat.SymDense
	jtwj.SymOuterK(1, jac.T())

	cov := mat.NewSymDense(l, nil)
	var chol mat.Cholesky
	if ok := chol.Factorize(&jtwj); !ok {
		return infCovariance(l)
	}
	if err := chol.InverseTo(cov); err != nil {
		return infCovariance(l)
	}
	return cov
}

func infCovariance(l int) *mat.SymDense {
	cov := mat.NewSymDense(l, nil)
	for i := 0; i < l; i++ {
		for j := i; j < l; j++ {
			cov.SetSym(i, j, math.Inf(1))
		}
	}
	return cov
}

// FitFull infers labels for every row of flux and ivar. Stars are
// independent and scheduled through the configured Mapper; a star that fails
// gets NaN labels and an event instead of failing the batch.
func (m *Model) FitFull(flux, ivar mat.Matrix) ([]LabelFit, error) {
	if err := m.state.RequireTrained(modelName, "Fit"); err != nil {
		return nil, err
	}
	n, p := flux.Dims()
	if n == 0 {
		return nil, errors.ErrEmptyData
	}
	if in, ip := ivar.Dims(); in != n {
		return nil, errors.NewShapeMismatchError("Fit", "stars in ivar", n, in)
	} else if ip != p {
		return nil, errors.NewShapeMismatchError("Fit", "pixels in ivar", p, ip)
	}
	if p != m.NumPixels() {
		return nil, errors.NewShapeMismatchError("Fit", "pixels", m.NumPixels(), p)
	}

	start := time.Now()
	logger := m.logger.With(log.OperationKey, log.OperationFit, log.PhaseKey, log.PhaseInference)
	logger.Info("Inference started", log.StarsKey, n, log.WorkersKey, m.cfg.mapper.Workers())

	_, k := m.theta.Dims()
	nLabels := len(m.vec.LabelNames())
	m.cfg.progress.Start(n, "Fitting")
	fits := parallel.MapSlice(m.cfg.mapper, n, func(i int) LabelFit {
		defer m.cfg.progress.Increment()
		f := mat.Row(nil, i, flux)
		iv := mat.Row(nil, i, ivar)

		var fit LabelFit
		err := errors.SafeExecute(fmt.Sprintf("star %d", i), func() error {
			if err := m.checkSpectrum("Fit", f, iv); err != nil {
				return err
			}
			var err error
			fit, err = m.fitSpectrum(i, f, iv)
			return err
		})
		if err != nil {
			m.cfg.reporter.Report(Event{Kind: EventStarFailed, Pixel: -1, Star: i, Severity: log.LevelError, Err: err})
			return failedFit(nLabels, k)
		}
		return fit
	})
	m.cfg.progress.Finish()

	logger.Info("Inference completed", log.DurationMsKey, time.Since(start).Milliseconds())
	return fits, nil
}

// Fit returns the inferred labels, one row per star.
func (m *Model) Fit(flux, ivar mat.Matrix) (*mat.Dense, error) {
	fits, err := m.FitFull(flux, ivar)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(fits), len(m.vec.LabelNames()), nil)
	for i, fit := range fits {
		out.SetRow(i, fit.Labels)
	}
	return out, nil
}

func failedFit(nLabels, k int) LabelFit {
	nan := func(n int) []float64 {
		x := make([]float64, n)
		for i := range x {
			x[i] = math.NaN()
		}
		return x
	}
	return LabelFit{
		Labels:      nan(nLabels),
		Initial:     nan(nLabels),
		LabelVector: nan(k),
		Covariance:  infCovariance(nLabels),
		ChiSquare:   math.NaN(),
		Status:      optimize.Failure,
	}
}
