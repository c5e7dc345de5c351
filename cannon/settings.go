package cannon

import (
	"gonum.org/v1/gonum/optimize"

	"github.com/sdss/AnniesLasso/pkg/errors"
)

// Settings control the per-pixel and per-star optimizers.
type Settings struct {
	// InitialScatter seeds σ for free-scatter training without a warm start.
	InitialScatter float64
	// MaxEvaluations and MaxIterations are optimizer ceilings; 0 is unbounded.
	MaxEvaluations int
	MaxIterations  int
	// Tolerance is the absolute and relative function convergence tolerance.
	Tolerance float64
	// ConvergeIterations is how many iterations without improvement count as converged.
	ConvergeIterations int
	// SimplexSize is the Nelder-Mead initial simplex edge.
	SimplexSize float64
}

// DefaultSettings returns the settings used when none are supplied.
func DefaultSettings() Settings {
	return Settings{
		InitialScatter:     0.01,
		Tolerance:          1e-10,
		ConvergeIterations: 50,
		SimplexSize:        0.05,
	}
}

// Validate rejects settings no optimizer can run with.
func (s Settings) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"InitialScatter", s.InitialScatter},
		{"Tolerance", s.Tolerance},
		{"SimplexSize", s.SimplexSize},
	} {
		if errors.CheckScalar(f.name, f.value, -1) != nil {
			return errors.NewConfigurationError(f.name, "must be finite", f.value)
		}
	}
	switch {
	case s.InitialScatter < 0:
		return errors.NewConfigurationError("InitialScatter", "must be non-negative", s.InitialScatter)
	case s.MaxEvaluations < 0:
		return errors.NewConfigurationError("MaxEvaluations", "must be non-negative", s.MaxEvaluations)
	case s.MaxIterations < 0:
		return errors.NewConfigurationError("MaxIterations", "must be non-negative", s.MaxIterations)
	case !(s.Tolerance > 0):
		return errors.NewConfigurationError("Tolerance", "must be positive", s.Tolerance)
	case s.ConvergeIterations < 1:
		return errors.NewConfigurationError("ConvergeIterations", "must be at least 1", s.ConvergeIterations)
	case !(s.SimplexSize > 0):
		return errors.NewConfigurationError("SimplexSize", "must be positive", s.SimplexSize)
	}
	return nil
}

func (s Settings) optimizeSettings() *optimize.Settings {
	return &optimize.Settings{
		FuncEvaluations: s.MaxEvaluations,
		MajorIterations: s.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.Tolerance,
			Relative:   s.Tolerance,
			Iterations: s.ConvergeIterations,
		},
	}
}

func (s Settings) nelderMead() *optimize.NelderMead {
	return &optimize.NelderMead{SimplexSize: s.SimplexSize}
}

// stalled reports whether an optimizer stopped on a ceiling rather than by
// converging.
func stalled(status optimize.Status) bool {
	switch status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		return true
	}
	return false
}
