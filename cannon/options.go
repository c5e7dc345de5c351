package cannon

import (
	"io"

	"github.com/sdss/AnniesLasso/core/parallel"
	"github.com/sdss/AnniesLasso/pkg/errors"
	"github.com/sdss/AnniesLasso/pkg/log"
)

// config holds the collaborators injected into a Model.
type config struct {
	mapper   parallel.Mapper
	progress Progress
	reporter Reporter
	logger   log.Logger
	settings Settings
}

func defaultConfig() config {
	logger := log.GetLoggerWithName("cannon")
	return config{
		mapper:   parallel.Default(),
		progress: NoProgress{},
		reporter: NewLogReporter(logger),
		logger:   logger,
		settings: DefaultSettings(),
	}
}

// Option configures a Model.
type Option func(*config) error

// WithMapper sets the work-distribution strategy for pixels and stars.
func WithMapper(m parallel.Mapper) Option {
	return func(c *config) error {
		if m == nil {
			return errors.NewConfigurationError("mapper", "must not be nil", nil)
		}
		c.mapper = m
		return nil
	}
}

// WithWorkers selects sequential execution for 1 and a bounded pool otherwise.
func WithWorkers(n int) Option {
	return func(c *config) error {
		c.mapper = parallel.NewMapper(n)
		return nil
	}
}

// WithProgress sets the progress reporter.
func WithProgress(p Progress) Option {
	return func(c *config) error {
		if p == nil {
			p = NoProgress{}
		}
		c.progress = p
		return nil
	}
}

// WithProgressBar draws a progress bar on w.
func WithProgressBar(w io.Writer) Option {
	return WithProgress(NewProgressBar(w))
}

// WithReporter sets the event reporter.
func WithReporter(r Reporter) Option {
	return func(c *config) error {
		if r == nil {
			return errors.NewConfigurationError("reporter", "must not be nil", nil)
		}
		c.reporter = r
		return nil
	}
}

// WithLogger sets the logger. Unless WithReporter is also given, events
// including optimizer stalls are logged to it instead of the global
// warning handler.
func WithLogger(l log.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return errors.NewConfigurationError("logger", "must not be nil", nil)
		}
		if _, ok := c.reporter.(logReporter); ok {
			c.reporter = logReporter{logger: l, stallsToLogger: true}
		}
		c.logger = l
		return nil
	}
}

// WithSettings replaces the optimizer settings.
func WithSettings(s Settings) Option {
	return func(c *config) error {
		if err := s.Validate(); err != nil {
			return err
		}
		c.settings = s
		return nil
	}
}

// WithInitialScatter sets the σ seed for free-scatter training.
func WithInitialScatter(scatter float64) Option {
	return func(c *config) error {
		s := c.settings
		s.InitialScatter = scatter
		if err := s.Validate(); err != nil {
			return err
		}
		c.settings = s
		return nil
	}
}

func (c *config) apply(opts []Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}
