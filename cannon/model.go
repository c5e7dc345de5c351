// Package cannon trains a per-pixel generative model of stellar spectra from
// a labelled reference set and inverts it to infer labels of new stars.
//
// Every pixel's flux is modelled as θ·v(labels) with Gaussian noise of
// variance 1/ivar + s², where v is a Vectorizer. Training solves θ and s² for
// each pixel independently, optionally with an L1 penalty Λ on θ[1:].
// Inference seeds a label estimate from a linear solve across all pixels and
// refines it by weighted least squares.
package cannon

import (
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/core/model"
	"github.com/sdss/AnniesLasso/pkg/errors"
	"github.com/sdss/AnniesLasso/pkg/log"
	"github.com/sdss/AnniesLasso/vectorizer"
)

const modelName = "CannonModel"

// LabelledSet is the reference set: one row of Values per star, one column
// per name.
type LabelledSet struct {
	Names  []string
	Values *mat.Dense
}

// Len returns the number of stars.
func (l LabelledSet) Len() int {
	if l.Values == nil {
		return 0
	}
	r, _ := l.Values.Dims()
	return r
}

// Array returns the columns named by names, in that order.
func (l LabelledSet) Array(names []string) (*mat.Dense, error) {
	if l.Values == nil {
		return nil, errors.ErrEmptyData
	}
	n, c := l.Values.Dims()
	if c != len(l.Names) {
		return nil, errors.NewShapeMismatchError("LabelledSet", "label columns", len(l.Names), c)
	}
	index := make(map[string]int, len(l.Names))
	for i, name := range l.Names {
		index[name] = i
	}
	out := mat.NewDense(n, len(names), nil)
	for j, name := range names {
		src, ok := index[name]
		if !ok {
			return nil, errors.NewConfigurationError("labels", "label missing from labelled set", name)
		}
		for i := 0; i < n; i++ {
			out.Set(i, j, l.Values.At(i, src))
		}
	}
	return out, nil
}

// Model is a Cannon model. Training data are read-only after construction;
// Theta and S2 are replaced wholesale by every Train call.
type Model struct {
	id  string
	cfg config

	labels     *mat.Dense // N×L in vectorizer order
	flux       *mat.Dense // N×P
	ivar       *mat.Dense // N×P
	dispersion []float64
	vec        vectorizer.Vectorizer

	theta *mat.Dense // P×K
	s2    []float64
	reg   Regularization
	state *model.StateManager

	logger log.Logger
}

// NewModel validates the training data and returns an untrained model.
// dispersion may be nil, in which case pixel indices are used.
func NewModel(labelled LabelledSet, flux, ivar mat.Matrix, dispersion []float64, vec vectorizer.Vectorizer, opts ...Option) (*Model, error) {
	if vec == nil {
		return nil, errors.NewConfigurationError("vectorizer", "must not be nil", nil)
	}
	if flux == nil || ivar == nil {
		return nil, errors.ErrEmptyData
	}
	n, p := flux.Dims()
	if n == 0 || p == 0 {
		return nil, errors.ErrEmptyData
	}
	if in, ip := ivar.Dims(); in != n {
		return nil, errors.NewShapeMismatchError("NewModel", "stars in ivar", n, in)
	} else if ip != p {
		return nil, errors.NewShapeMismatchError("NewModel", "pixels in ivar", p, ip)
	}
	if labelled.Len() != n {
		return nil, errors.NewShapeMismatchError("NewModel", "stars in labelled set", n, labelled.Len())
	}
	if dispersion == nil {
		dispersion = make([]float64, p)
		for i := range dispersion {
			dispersion[i] = float64(i)
		}
	} else if len(dispersion) != p {
		return nil, errors.NewShapeMismatchError("NewModel", "dispersion points", p, len(dispersion))
	}
	if err := errors.CheckMatrix("flux", flux, n, p); err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix("ivar", ivar, n, p); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			if ivar.At(i, j) < 0 {
				return nil, errors.NewConfigurationError("ivar", "inverse variances must be non-negative", ivar.At(i, j))
			}
		}
	}
	labels, err := labelled.Array(vec.LabelNames())
	if err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix("labels", labels, n, len(vec.LabelNames())); err != nil {
		return nil, err
	}

	m, err := newModel(vec, opts)
	if err != nil {
		return nil, err
	}
	m.labels = labels
	m.flux = mat.DenseCopyOf(flux)
	m.ivar = mat.DenseCopyOf(ivar)
	m.dispersion = append([]float64(nil), dispersion...)
	m.state.SetDimensions(n, p, vec.NumTerms())
	return m, nil
}

func newModel(vec vectorizer.Vectorizer, opts []Option) (*Model, error) {
	cfg := defaultConfig()
	if err := cfg.apply(opts); err != nil {
		return nil, err
	}
	id := uuid.New().String()
	return &Model{
		id:     id,
		cfg:    cfg,
		vec:    vec,
		state:  model.NewStateManager(),
		logger: cfg.logger.With(log.ModelNameKey, modelName, log.EstimatorIDKey, id),
	}, nil
}

// ID returns the model's unique identifier, used in log records.
func (m *Model) ID() string { return m.id }

// Vectorizer returns the label vectorizer.
func (m *Model) Vectorizer() vectorizer.Vectorizer { return m.vec }

// Dispersion returns the wavelength of every pixel, nil for a loaded model.
func (m *Model) Dispersion() []float64 { return m.dispersion }

// NumPixels returns P.
func (m *Model) NumPixels() int {
	_, p, _ := m.state.GetDimensions()
	return p
}

// Dims returns the number of training stars, pixels and vectorizer terms.
func (m *Model) Dims() (stars, pixels, terms int) {
	return m.state.GetDimensions()
}

// IsTrained reports whether Theta and S2 are available.
func (m *Model) IsTrained() bool { return m.state.IsTrained() }

// Theta returns a copy of the P×K coefficients, nil before training.
func (m *Model) Theta() *mat.Dense {
	if m.theta == nil {
		return nil
	}
	return mat.DenseCopyOf(m.theta)
}

// S2 returns a copy of the per-pixel scatter variance, nil when unset.
func (m *Model) S2() []float64 {
	if m.s2 == nil {
		return nil
	}
	return append([]float64(nil), m.s2...)
}

// SetS2 supplies the scatter variance used by fixed-scatter training.
// +Inf marks a degenerate pixel; NaN and negative values are rejected.
func (m *Model) SetS2(s2 []float64) error {
	if p := m.NumPixels(); len(s2) != p {
		return errors.NewShapeMismatchError("SetS2", "pixels", p, len(s2))
	}
	for i, v := range s2 {
		if math.IsNaN(v) || v < 0 {
			return errors.NewNumericalInstabilityError("SetS2", s2, i)
		}
	}
	m.s2 = append([]float64(nil), s2...)
	return nil
}

// Regularization returns the current Λ.
func (m *Model) Regularization() Regularization { return m.reg }

// SetRegularization sets Λ. A per-pixel value must cover every pixel.
func (m *Model) SetRegularization(r Regularization) error {
	if !r.IsScalar() && r.Len() != m.NumPixels() {
		return errors.NewShapeMismatchError("SetRegularization", "pixels", m.NumPixels(), r.Len())
	}
	m.reg = r
	return nil
}

// Predict returns the model spectra Θ·v(l) for every row of labels, one row
// per star.
func (m *Model) Predict(labels mat.Matrix) (*mat.Dense, error) {
	if err := m.state.RequireTrained(modelName, "Predict"); err != nil {
		return nil, err
	}
	design, err := vectorizer.DesignMatrix(m.vec, labels)
	if err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Mul(design, m.theta.T())
	return &out, nil
}

