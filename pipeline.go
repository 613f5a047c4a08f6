package assetpipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yacobolo/assetpipe/internal/assets"
	"github.com/yacobolo/assetpipe/internal/console"
	"github.com/yacobolo/assetpipe/internal/devserver"
	"github.com/yacobolo/assetpipe/internal/graph"
	"github.com/yacobolo/assetpipe/internal/metrics"
)

// Pipeline owns the configured tasks and runs workflows by name.
type Pipeline struct {
	cfg       Config
	log       *console.Logger
	sass      assets.SassCompiler
	dartSass  *assets.DartSass
	metrics   *metrics.Recorder
	server    *devserver.Server
	observers []graph.Observer

	registry *graph.Registry
	runner   *graph.Runner
	leaves   map[string]bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for task progress and diagnostics.
func WithLogger(log *console.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithSassCompiler replaces the Dart Sass compiler.
func WithSassCompiler(c assets.SassCompiler) Option {
	return func(p *Pipeline) { p.sass = c }
}

// WithMetrics sets the recorder task runs are reported to.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = r }
}

// WithObserver adds an observer to every workflow run.
func WithObserver(o graph.Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

// New validates cfg and registers every task and workflow.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &Pipeline{
		cfg:      cfg,
		registry: graph.NewRegistry(),
		leaves:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = console.Discard()
	}
	if p.metrics == nil {
		p.metrics = metrics.NewRecorder()
	}
	if p.sass == nil {
		p.dartSass = &assets.DartSass{Binary: cfg.Style.SassBinary, Log: p.log}
		p.sass = p.dartSass
	}

	p.server = devserver.New(devserver.Options{
		Root:       cfg.path(cfg.OutputRoot),
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		LiveReload: cfg.Server.LiveReload,
		Log:        p.log,
		Metrics:    p.metrics.Handler(),
		OnReload:   p.metrics.Reload,
	})

	runnerOpts := []graph.Option{
		graph.WithObserver(logObserver{log: p.log, leaves: p.leaves}),
		graph.WithObserver(p.metrics),
		graph.WithConcurrency(cfg.Concurrency),
	}
	for _, o := range p.observers {
		runnerOpts = append(runnerOpts, graph.WithObserver(o))
	}
	p.runner = graph.NewRunner(runnerOpts...)

	if err := p.register(); err != nil {
		return nil, err
	}
	return p, nil
}

// Config returns the configuration the pipeline was built from.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Server returns the development server used by the serve task.
func (p *Pipeline) Server() *devserver.Server {
	return p.server
}

// Metrics returns the recorder task runs are reported to.
func (p *Pipeline) Metrics() *metrics.Recorder {
	return p.metrics
}

// Names lists every runnable task and workflow.
func (p *Pipeline) Names() []string {
	return p.registry.Names()
}

// Run executes the task or workflow registered under name.
func (p *Pipeline) Run(ctx context.Context, name string) (*graph.Result, error) {
	node, err := p.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return p.runner.Run(ctx, node)
}

// Close releases the Sass compiler process.
func (p *Pipeline) Close() error {
	if p.dartSass == nil {
		return nil
	}
	if err := p.dartSass.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close sass compiler: %w", err)
	}
	return nil
}

// logObserver prints gulp-style progress lines. Task errors are printed
// once, by the leaf that failed.
type logObserver struct {
	log    *console.Logger
	leaves map[string]bool
}

func (o logObserver) TaskStarted(name string) {
	o.log.Starting(name)
}

func (o logObserver) TaskFinished(name string, d time.Duration, err error) {
	switch {
	case err == nil:
		o.log.Finished(name, d)
	case o.leaves[name]:
		var te *graph.TaskError
		if errors.As(err, &te) {
			err = te.Err
		}
		o.log.Failed(name, d, err)
	default:
		o.log.Failed(name, d, nil)
	}
}
