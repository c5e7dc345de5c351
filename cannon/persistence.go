package cannon

import (
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/core/model"
	"github.com/sdss/AnniesLasso/pkg/errors"
	"github.com/sdss/AnniesLasso/vectorizer"
)

// snapshot is the complete persisted state of a trained model.
type snapshot struct {
	Theta          [][]float64
	S2             []float64
	Regularization []float64
	Vectorizer     vectorizer.Vectorizer
	State          model.State
}

func (m *Model) snapshot() (*snapshot, error) {
	if err := m.state.RequireTrained(modelName, "Save"); err != nil {
		return nil, err
	}
	p, _ := m.theta.Dims()
	rows := make([][]float64, p)
	for i := range rows {
		rows[i] = append([]float64(nil), m.theta.RawRowView(i)...)
	}
	return &snapshot{
		Theta:          rows,
		S2:             m.S2(),
		Regularization: m.reg.raw(),
		Vectorizer:     m.vec,
		State:          m.state.GetState(),
	}, nil
}

// Save writes the trained θ, s², Λ and vectorizer to w.
func (m *Model) Save(w io.Writer) error {
	s, err := m.snapshot()
	if err != nil {
		return err
	}
	return model.SaveModelToWriter(s, w)
}

// SaveFile writes the model to path.
func (m *Model) SaveFile(path string) error {
	s, err := m.snapshot()
	if err != nil {
		return err
	}
	return model.SaveModel(s, path)
}

// Load reads a model written by Save. The result can Predict and Fit but
// holds no training data, so Train returns ErrNoTrainingData. Dims still
// reports the training set shape.
func Load(r io.Reader, opts ...Option) (*Model, error) {
	var s snapshot
	if err := model.LoadModelFromReader(&s, r); err != nil {
		return nil, err
	}
	return fromSnapshot(&s, opts)
}

// LoadFile reads a model from path.
func LoadFile(path string, opts ...Option) (*Model, error) {
	var s snapshot
	if err := model.LoadModel(&s, path); err != nil {
		return nil, err
	}
	return fromSnapshot(&s, opts)
}

func fromSnapshot(s *snapshot, opts []Option) (*Model, error) {
	if s.Vectorizer == nil {
		return nil, errors.NewValueError("Load", "missing vectorizer")
	}
	p := len(s.Theta)
	k := s.Vectorizer.NumTerms()
	if p == 0 {
		return nil, errors.ErrEmptyData
	}
	if len(s.S2) != p {
		return nil, errors.NewShapeMismatchError("Load", "scatter pixels", p, len(s.S2))
	}
	theta := mat.NewDense(p, k, nil)
	for i, row := range s.Theta {
		if len(row) != k {
			return nil, errors.NewShapeMismatchError("Load", "terms", k, len(row))
		}
		theta.SetRow(i, row)
	}
	if !s.State.Trained || s.State.NPixels != p || s.State.NTerms != k {
		return nil, errors.NewValueError("Load", "training state does not match the coefficients")
	}
	reg, err := NewRegularization(s.Regularization...)
	if err != nil {
		return nil, err
	}

	m, err := newModel(s.Vectorizer, opts)
	if err != nil {
		return nil, err
	}
	m.theta = theta
	m.state.SetState(s.State)
	if err := m.SetS2(s.S2); err != nil {
		return nil, err
	}
	if err := m.SetRegularization(reg); err != nil {
		return nil, err
	}
	return m, nil
}
