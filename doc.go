// Package annieslasso is a data-driven model of stellar spectra.
//
// A Cannon model learns, pixel by pixel, how the normalised flux of a star
// depends on its labels (effective temperature, surface gravity, chemical
// abundances and so on) from a reference set of stars with known labels. The
// trained model is then inverted to infer the labels of new stars from their
// spectra alone. An optional L1 penalty on the label-dependent coefficients
// keeps each pixel's model sparse, so a pixel only depends on the labels that
// actually shape it.
//
// # Quick Start
//
//	vec, _ := vectorizer.NewPolynomial([]string{"TEFF", "LOGG", "FE_H"}, 2)
//	_ = vec.FitScaling(labels)
//
//	m, err := cannon.NewModel(
//	    cannon.LabelledSet{Names: []string{"TEFF", "LOGG", "FE_H"}, Values: labels},
//	    flux, ivar, dispersion, vec,
//	    cannon.WithWorkers(8),
//	    cannon.WithProgressBar(os.Stderr),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := m.Train(false); err != nil {
//	    log.Fatal(err)
//	}
//	inferred, err := m.Fit(testFlux, testIvar)
//
// # Packages
//
//   - cannon: model training, regularization, validation, inference, persistence
//   - vectorizer: label vectorizers and design matrices
//   - dataset: memory-mapped flux and inverse-variance arrays
//   - diagnostics: coefficient, scatter, one-to-one and validation plots
//   - metrics: regression metrics and per-label residual summaries
//   - core/parallel: work distribution across pixels and stars
//   - core/model: training state and gob persistence helpers
//   - pkg/errors: structured errors and warnings
//   - pkg/log: structured logging on zerolog
//
// # Performance
//
// Pixels are independent during training and stars are independent during
// inference. Both are scheduled through a parallel.Mapper: a bounded goroutine
// pool by default, or sequential execution with cannon.WithWorkers(1). The
// result does not depend on the mapper or the number of workers.
package annieslasso
