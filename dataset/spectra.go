package dataset

import (
	"github.com/sdss/AnniesLasso/pkg/errors"
	"github.com/sdss/AnniesLasso/pkg/log"
)

// Spectra is a set of pixel-aligned spectra backed by mapped files.
type Spectra struct {
	Dispersion []float64
	Flux       *Array
	Ivar       *Array
}

// LoadSpectra maps the flux and inverse-variance arrays and reads the
// dispersion (one float64 per pixel). nStars, when positive, must match the
// number of rows.
func LoadSpectra(fluxPath, ivarPath, dispersionPath string, nStars int) (*Spectra, error) {
	logger := log.GetLoggerWithName("dataset")

	disp, err := OpenArray(dispersionPath, 1)
	if err != nil {
		return nil, errors.Wrap(err, "dispersion")
	}
	defer disp.Close()
	d, err := disp.Dense()
	if err != nil {
		return nil, err
	}
	dispersion := d.RawMatrix().Data
	p := len(dispersion)

	flux, err := OpenArray(fluxPath, p)
	if err != nil {
		return nil, errors.Wrap(err, "flux")
	}
	ivar, err := OpenArray(ivarPath, p)
	if err != nil {
		_ = flux.Close()
		return nil, errors.Wrap(err, "ivar")
	}
	s := &Spectra{Dispersion: dispersion, Flux: flux, Ivar: ivar}

	if flux.Rows() != ivar.Rows() {
		_ = s.Close()
		return nil, errors.NewShapeMismatchError("LoadSpectra", "stars in ivar", flux.Rows(), ivar.Rows())
	}
	if nStars > 0 && flux.Rows() != nStars {
		_ = s.Close()
		return nil, errors.NewShapeMismatchError("LoadSpectra", "stars", nStars, flux.Rows())
	}

	logger.Debug("Spectra mapped",
		log.StarsKey, flux.Rows(),
		log.PixelsKey, p,
		"flux_path", fluxPath,
	)
	return s, nil
}

// NumStars returns the number of spectra.
func (s *Spectra) NumStars() int { return s.Flux.Rows() }

// NumPixels returns the number of pixels per spectrum.
func (s *Spectra) NumPixels() int { return len(s.Dispersion) }

// Close releases both mappings.
func (s *Spectra) Close() error {
	ferr := s.Flux.Close()
	ierr := s.Ivar.Close()
	if ferr != nil {
		return ferr
	}
	return ierr
}
