package cannon

import (
	"fmt"
	"math"

	"github.com/sdss/AnniesLasso/pkg/errors"
)

// Regularization holds the L1 penalty strength Λ, either one value shared by
// every pixel or one value per pixel. Every value is finite and non-negative.
type Regularization struct {
	values []float64
}

// NewRegularization validates values. No values gives a zero scalar, one value
// is broadcast, more are taken as per-pixel strengths.
func NewRegularization(values ...float64) (Regularization, error) {
	for i, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Regularization{}, errors.NewConfigurationError("regularization",
				fmt.Sprintf("value %d must be non-negative and finite", i), v)
		}
	}
	return Regularization{values: append([]float64(nil), values...)}, nil
}

// At returns Λ for pixel.
func (r Regularization) At(pixel int) float64 {
	switch len(r.values) {
	case 0:
		return 0
	case 1:
		return r.values[0]
	default:
		return r.values[pixel]
	}
}

// Len returns the number of stored values; 0 or 1 for a scalar.
func (r Regularization) Len() int { return len(r.values) }

// IsScalar reports whether one value applies to every pixel.
func (r Regularization) IsScalar() bool { return len(r.values) <= 1 }

// IsZero reports whether every Λ is exactly zero.
func (r Regularization) IsZero() bool {
	for _, v := range r.values {
		if v != 0 {
			return false
		}
	}
	return true
}

// Values expands r to nPixels entries.
func (r Regularization) Values(nPixels int) []float64 {
	out := make([]float64, nPixels)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}

// raw returns a copy of the stored values for persistence.
func (r Regularization) raw() []float64 {
	return append([]float64(nil), r.values...)
}
