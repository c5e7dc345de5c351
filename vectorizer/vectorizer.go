// Package vectorizer maps physical stellar labels onto the basis-function
// values ("label vector") that a spectral model is linear in.
package vectorizer

import (
	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/core/parallel"
	"github.com/sdss/AnniesLasso/pkg/errors"
)

// Vectorizer turns one star's labels into one design-matrix row.
//
// Column 0 of every row is the constant bias term, so NumTerms counts it.
type Vectorizer interface {
	// LabelNames returns the labels consumed by Vectorize, in order.
	LabelNames() []string

	// NumTerms returns the row length produced by Vectorize.
	NumTerms() int

	// Vectorize returns the basis-function values for labels.
	Vectorize(labels []float64) []float64

	// ApproximateLabels maps an estimated label vector back to labels.
	// The result is an optimizer seed and need not be exact.
	ApproximateLabels(labelVector []float64) ([]float64, error)
}

// designThreshold is the star count above which rows are built concurrently.
const designThreshold = 256

// DesignMatrix evaluates v on every row of labels and returns the N×K matrix.
func DesignMatrix(v Vectorizer, labels mat.Matrix) (*mat.Dense, error) {
	n, c := labels.Dims()
	if n == 0 {
		return nil, errors.ErrEmptyData
	}
	if c != len(v.LabelNames()) {
		return nil, errors.NewShapeMismatchError("DesignMatrix", "labels", len(v.LabelNames()), c)
	}

	k := v.NumTerms()
	design := mat.NewDense(n, k, nil)
	parallel.ParallelizeWithThreshold(n, designThreshold, func(start, end int) {
		row := make([]float64, c)
		for i := start; i < end; i++ {
			mat.Row(row, i, labels)
			design.SetRow(i, v.Vectorize(row))
		}
	})
	return design, nil
}
