package cannon

import (
	"gonum.org/v1/gonum/mat"

	"github.com/sdss/AnniesLasso/metrics"
	"github.com/sdss/AnniesLasso/pkg/log"
)

// Evaluate infers labels for a labelled set and summarises the residuals
// against its reference labels, one entry per vectorizer label.
func (m *Model) Evaluate(labelled LabelledSet, flux, ivar mat.Matrix) ([]metrics.Residual, error) {
	names := m.vec.LabelNames()
	expected, err := labelled.Array(names)
	if err != nil {
		return nil, err
	}
	inferred, err := m.Fit(flux, ivar)
	if err != nil {
		return nil, err
	}
	res, err := metrics.LabelResiduals(names, expected, inferred)
	if err != nil {
		return nil, err
	}
	for _, r := range res {
		m.logger.Info("Label accuracy",
			log.OperationKey, log.OperationEvaluate,
			"label", r.Label,
			"bias", r.Bias,
			"rms", r.RMS,
			log.StarsKey, r.N,
		)
	}
	return res, nil
}
