package vectorizer

import (
	"encoding/gob"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sdss/AnniesLasso/pkg/errors"
	"github.com/sdss/AnniesLasso/pkg/log"
)

func init() {
	gob.Register(&Polynomial{})
}

// Factor is one label raised to a positive integer power.
type Factor struct {
	Label int
	Power int
}

// Term is a product of factors. Terms never include the bias column.
type Term []Factor

// Polynomial is a Vectorizer whose terms are monomials in scaled labels,
// (label - fiducial) / scale.
type Polynomial struct {
	Names     []string
	Fiducials []float64
	Scales    []float64
	Terms     []Term
}

// Option configures a Polynomial at construction.
type Option func(*Polynomial) error

// WithScaling sets per-label fiducials and scales. Scales must be finite and
// non-zero.
func WithScaling(fiducials, scales []float64) Option {
	return func(p *Polynomial) error {
		if len(fiducials) != len(p.Names) {
			return errors.NewShapeMismatchError("WithScaling", "fiducials", len(p.Names), len(fiducials))
		}
		if len(scales) != len(p.Names) {
			return errors.NewShapeMismatchError("WithScaling", "scales", len(p.Names), len(scales))
		}
		for i := range scales {
			if math.IsNaN(fiducials[i]) || math.IsInf(fiducials[i], 0) {
				return errors.NewConfigurationError("fiducials", "must be finite", fiducials[i])
			}
			if scales[i] == 0 || math.IsNaN(scales[i]) || math.IsInf(scales[i], 0) {
				return errors.NewConfigurationError("scales", "must be finite and non-zero", scales[i])
			}
		}
		p.Fiducials = append([]float64(nil), fiducials...)
		p.Scales = append([]float64(nil), scales...)
		return nil
	}
}

// NewPolynomial builds every monomial of total degree 1..order in names,
// ordered by degree.
func NewPolynomial(names []string, order int, opts ...Option) (*Polynomial, error) {
	if order < 1 {
		return nil, errors.NewConfigurationError("order", "must be at least 1", order)
	}
	var terms []Term
	for degree := 1; degree <= order; degree++ {
		combinations(len(names), degree, func(idx []int) {
			terms = append(terms, termFromIndices(idx))
		})
	}
	return NewPolynomialFromTerms(names, terms, opts...)
}

// NewPolynomialFromTerms builds a Polynomial with explicit terms.
func NewPolynomialFromTerms(names []string, terms []Term, opts ...Option) (*Polynomial, error) {
	if len(names) == 0 {
		return nil, errors.NewConfigurationError("names", "at least one label is required", names)
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			return nil, errors.NewConfigurationError("names", "label names must be unique and non-empty", name)
		}
		seen[name] = true
	}
	for _, term := range terms {
		if len(term) == 0 {
			return nil, errors.NewConfigurationError("terms", "empty term", term)
		}
		for _, f := range term {
			if f.Label < 0 || f.Label >= len(names) || f.Power < 1 {
				return nil, errors.NewConfigurationError("terms", "factor out of range", f)
			}
		}
	}

	p := &Polynomial{
		Names:     append([]string(nil), names...),
		Fiducials: make([]float64, len(names)),
		Scales:    make([]float64, len(names)),
		Terms:     terms,
	}
	for i := range p.Scales {
		p.Scales[i] = 1
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ParseTerms parses a whitespace separated term list such as
// "TEFF LOGG TEFF^2 TEFF*LOGG" against names.
func ParseTerms(names []string, spec string) ([]Term, error) {
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}

	var terms []Term
	for _, field := range strings.Fields(spec) {
		powers := map[int]int{}
		for _, part := range strings.Split(field, "*") {
			name, power := part, 1
			if base, exp, ok := strings.Cut(part, "^"); ok {
				n, err := strconv.Atoi(exp)
				if err != nil || n < 1 {
					return nil, errors.NewValueError("ParseTerms", fmt.Sprintf("invalid power in %q", field))
				}
				name, power = base, n
			}
			j, ok := index[name]
			if !ok {
				return nil, errors.NewValueError("ParseTerms", fmt.Sprintf("unknown label %q in %q", name, field))
			}
			powers[j] += power
		}
		term := make(Term, 0, len(powers))
		for j, power := range powers {
			term = append(term, Factor{Label: j, Power: power})
		}
		sort.Slice(term, func(a, b int) bool { return term[a].Label < term[b].Label })
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return nil, errors.NewValueError("ParseTerms", "no terms")
	}
	return terms, nil
}

// FitScaling sets fiducials to the per-label median of labels and scales to
// the 2.5 to 97.5 percentile range. A zero range gives a scale of 1.
func (p *Polynomial) FitScaling(labels mat.Matrix) error {
	n, c := labels.Dims()
	if c != len(p.Names) {
		return errors.NewShapeMismatchError("FitScaling", "labels", len(p.Names), c)
	}
	if n == 0 {
		return errors.ErrEmptyData
	}
	col := make([]float64, n)
	for j := 0; j < c; j++ {
		mat.Col(col, j, labels)
		sort.Float64s(col)
		p.Fiducials[j] = stat.Quantile(0.5, stat.Empirical, col, nil)
		scale := stat.Quantile(0.975, stat.Empirical, col, nil) - stat.Quantile(0.025, stat.Empirical, col, nil)
		if scale == 0 || math.IsNaN(scale) {
			scale = 1
		}
		p.Scales[j] = scale
	}
	log.GetLoggerWithName("vectorizer").Debug("Fitted label scaling",
		"fiducials", p.Fiducials,
		"scales", p.Scales,
	)
	return nil
}

func (p *Polynomial) LabelNames() []string { return p.Names }

func (p *Polynomial) NumTerms() int { return len(p.Terms) + 1 }

func (p *Polynomial) Vectorize(labels []float64) []float64 {
	row := make([]float64, len(p.Terms)+1)
	row[0] = 1
	for k, term := range p.Terms {
		v := 1.0
		for _, f := range term {
			x := (labels[f.Label] - p.Fiducials[f.Label]) / p.Scales[f.Label]
			for e := 0; e < f.Power; e++ {
				v *= x
			}
		}
		row[k+1] = v
	}
	return row
}

// ApproximateLabels reads each label from its linear term.
func (p *Polynomial) ApproximateLabels(labelVector []float64) ([]float64, error) {
	if len(labelVector) != p.NumTerms() {
		return nil, errors.NewShapeMismatchError("ApproximateLabels", "terms", p.NumTerms(), len(labelVector))
	}
	labels := make([]float64, len(p.Names))
	found := make([]bool, len(p.Names))
	for k, term := range p.Terms {
		if len(term) == 1 && term[0].Power == 1 && !found[term[0].Label] {
			j := term[0].Label
			labels[j] = labelVector[k+1]*p.Scales[j] + p.Fiducials[j]
			found[j] = true
		}
	}
	for j, ok := range found {
		if !ok {
			return nil, errors.NewValueError("ApproximateLabels",
				fmt.Sprintf("no linear term for label %q", p.Names[j]))
		}
	}
	return labels, nil
}

// HumanReadableTerms returns "1" followed by each term, e.g. "TEFF^2*LOGG".
func (p *Polynomial) HumanReadableTerms() []string {
	out := make([]string, 0, p.NumTerms())
	out = append(out, "1")
	for _, term := range p.Terms {
		parts := make([]string, len(term))
		for i, f := range term {
			parts[i] = p.Names[f.Label]
			if f.Power > 1 {
				parts[i] += "^" + strconv.Itoa(f.Power)
			}
		}
		out = append(out, strings.Join(parts, "*"))
	}
	return out
}

// combinations calls fn with every non-decreasing index sequence of length k
// drawn from [0, n).
func combinations(n, k int, fn func(idx []int)) {
	idx := make([]int, k)
	var rec func(pos, from int)
	rec = func(pos, from int) {
		if pos == k {
			fn(idx)
			return
		}
		for i := from; i < n; i++ {
			idx[pos] = i
			rec(pos+1, i)
		}
	}
	rec(0, 0)
}

func termFromIndices(idx []int) Term {
	var term Term
	for _, i := range idx {
		if len(term) > 0 && term[len(term)-1].Label == i {
			term[len(term)-1].Power++
			continue
		}
		term = append(term, Factor{Label: i, Power: 1})
	}
	return term
}
