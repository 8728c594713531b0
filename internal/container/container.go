package container

import (
	"net/http"

	"github.com/pkg/errors"

	"go-buildbuddy/internal/config"
	"go-buildbuddy/internal/imageproc"
	"go-buildbuddy/internal/llm"
	"go-buildbuddy/internal/logger"
	"go-buildbuddy/internal/observer"
	"go-buildbuddy/internal/service"
	"go-buildbuddy/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	normalizer      imageproc.Normalizer
	analyzer        llm.Analyzer
	configErr       error
	metrics         *observer.MetricsObserver
	events          *observer.EventPublisher
	analysisService service.AnalysisService
	handler         http.Handler
}

// Option overrides a dependency before the graph is built
type Option func(*Container)

// WithAnalyzer replaces the Anthropic-backed analyzer
func WithAnalyzer(a llm.Analyzer) Option {
	return func(c *Container) {
		c.analyzer = a
	}
}

// NewContainer creates a new dependency injection container. A missing API
// key does not fail construction; it is kept and reported by every analysis.
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	c := &Container{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	// Build dependency graph
	c.normalizer = imageproc.NewNormalizer()

	if c.analyzer == nil {
		a, err := llm.NewAnthropicAnalyzer(cfg)
		if err != nil {
			logger.WithError(err).Warn("Claude API not configured; analysis disabled")
			c.configErr = err
		} else {
			c.analyzer = a
		}
	}

	c.metrics = observer.NewMetricsObserver()
	c.events = observer.NewEventPublisher()
	c.events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	c.events.Subscribe(c.metrics)

	c.analysisService = service.NewAnalysisService(c.normalizer, c.analyzer, c.configErr, c.events)
	c.handler = transport.NewHandler(c.analysisService, c.metrics, cfg)

	return c, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the analysis service
func (c *Container) Service() service.AnalysisService {
	return c.analysisService
}

// Metrics returns the metrics observer
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// ConfigError returns the error that disables analysis, if any
func (c *Container) ConfigError() error {
	return c.configErr
}
