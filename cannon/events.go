package cannon

import (
	"github.com/sdss/AnniesLasso/pkg/errors"
	"github.com/sdss/AnniesLasso/pkg/log"
)

// EventKind classifies a per-pixel or per-star condition.
type EventKind int

const (
	// EventOptimizerStall: an optimizer hit a ceiling; the best value was kept.
	EventOptimizerStall EventKind = iota + 1
	// EventSingularPixel: a pixel fell back to bias-only coefficients.
	EventSingularPixel
	// EventSingularSpectrum: a star's linear label-vector estimate could not be solved.
	EventSingularSpectrum
	// EventPixelPanic: training a pixel panicked and the fallback was stored.
	EventPixelPanic
	// EventStarFailed: inference for one star failed and NaN labels were stored.
	EventStarFailed
)

func (k EventKind) String() string {
	switch k {
	case EventOptimizerStall:
		return "optimizer_stall"
	case EventSingularPixel:
		return "singular_pixel"
	case EventSingularSpectrum:
		return "singular_spectrum"
	case EventPixelPanic:
		return "pixel_panic"
	case EventStarFailed:
		return "star_failed"
	default:
		return "unknown"
	}
}

// Event is a structured observability record. Pixel or Star is -1 when it
// does not apply.
type Event struct {
	Kind        EventKind
	Pixel       int
	Star        int
	Severity    log.Level
	Algorithm   string
	Status      string
	Evaluations int
	Iterations  int
	Err         error
}

// Reporter receives events. Report is called from worker goroutines and must
// be safe for concurrent use.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// logReporter sends events to a logger. Stalls go through errors.Warn
// unless stallsToLogger is set.
type logReporter struct {
	logger         log.Logger
	stallsToLogger bool
}

// NewLogReporter returns the default Reporter. Stalls are raised as
// OptimizerStallWarning through errors.Warn; other events are logged.
func NewLogReporter(logger log.Logger) Reporter {
	return logReporter{logger: logger}
}

func (r logReporter) Report(e Event) {
	if e.Kind == EventOptimizerStall {
		w := errors.NewOptimizerStallWarning(e.Algorithm, e.Pixel, e.Star, e.Status, e.Evaluations, e.Iterations)
		if !r.stallsToLogger {
			errors.Warn(w)
			return
		}
		r.logger.Warn(w.Error(),
			log.EventKindKey, e.Kind.String(),
			log.PixelKey, e.Pixel,
			log.StarKey, e.Star,
			log.AlgorithmKey, e.Algorithm,
			log.StatusKey, e.Status,
			log.EvaluationsKey, e.Evaluations,
			log.IterationsKey, e.Iterations,
		)
		return
	}

	fields := []any{log.EventKindKey, e.Kind.String()}
	if e.Err != nil {
		fields = append([]any{e.Err}, fields...)
	}
	if e.Pixel >= 0 {
		fields = append(fields, log.PixelKey, e.Pixel)
	}
	if e.Star >= 0 {
		fields = append(fields, log.StarKey, e.Star)
	}
	var pe *errors.PanicError
	if errors.As(e.Err, &pe) {
		fields = append(fields, log.PanicDetailKey, pe.String())
	}

	switch {
	case e.Severity >= log.LevelError:
		r.logger.Error("Numerical failure", fields...)
	case e.Severity >= log.LevelWarn:
		r.logger.Warn("Numerical degeneracy", fields...)
	default:
		r.logger.Debug("Numerical event", fields...)
	}
}

// stallEvent builds the event for a stalled pixel or star optimization.
func stallEvent(pixel, star int, algorithm, status string, evaluations, iterations int) Event {
	return Event{
		Kind:        EventOptimizerStall,
		Pixel:       pixel,
		Star:        star,
		Severity:    log.LevelWarn,
		Algorithm:   algorithm,
		Status:      status,
		Evaluations: evaluations,
		Iterations:  iterations,
	}
}
