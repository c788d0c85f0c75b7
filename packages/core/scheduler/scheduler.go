package scheduler

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/featspec/packages/capture"
	"github.com/abdul-hamid-achik/featspec/packages/core/config"
	"github.com/abdul-hamid-achik/featspec/packages/core/gherkin"
	"github.com/abdul-hamid-achik/featspec/packages/core/model"
	"github.com/abdul-hamid-achik/featspec/packages/core/registry"
	"github.com/abdul-hamid-achik/featspec/packages/metrics"
	"github.com/abdul-hamid-achik/featspec/packages/output"
)

// Runner executes all features one at a time in the calling process: the
// default mode. Parse, run and report happen per feature against one shared
// ExecutionContext; the terminal result is whether any feature failed.
type Runner struct {
	cfg      *config.Config
	snapshot *registry.Snapshot
	log      zerolog.Logger

	out       io.Writer
	reporters []output.Reporter
	collector *metrics.Collector

	context  *Context
	features []*model.Feature
}

// Option configures a Runner or ParallelRunner at construction.
type Option func(*options)

type options struct {
	out       io.Writer
	log       *zerolog.Logger
	reporters []output.Reporter
	collector *metrics.Collector
}

// WithOutput redirects human-readable output, default os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithLogger replaces the diagnostic logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = &log }
}

// WithReporters attaches external reporters invoked after each feature and
// at suite end.
func WithReporters(reporters ...output.Reporter) Option {
	return func(o *options) { o.reporters = append(o.reporters, reporters...) }
}

// WithCollector attaches a step timing collector.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

func buildOptions(opts []Option) *options {
	o := &options{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		o.log = &log
	}
	if o.collector == nil {
		o.collector = metrics.NewCollector()
	}
	return o
}

// New builds a sequential runner over a frozen registry snapshot.
func New(cfg *config.Config, snapshot *registry.Snapshot, opts ...Option) *Runner {
	o := buildOptions(opts)
	return &Runner{
		cfg:       cfg,
		snapshot:  snapshot,
		log:       *o.log,
		out:       o.out,
		reporters: o.reporters,
		collector: o.collector,
	}
}

// Context exposes the suite-wide execution context; nil before Run.
func (r *Runner) Context() *Context {
	return r.context
}

// Features exposes the parsed features after Run.
func (r *Runner) Features() []*model.Feature {
	return r.features
}

// Run executes the whole suite and reports whether any feature failed.
func (r *Runner) Run() (bool, error) {
	if err := r.cfg.Validate(); err != nil {
		return true, err
	}

	r.context = NewContext(r.cfg, r.log)
	r.collector.Start()
	defer r.collector.Stop()

	capt := capture.New(capture.Options{
		Stdout: r.cfg.GetStdoutCapture(),
		Stderr: r.cfg.GetStderrCapture(),
		Log:    r.cfg.GetLogCapture(),
	})
	seedCaptureAttributes(r.context, capt.Streams())

	formatter, err := output.NewFormatter(r.cfg.Format, r.out, r.cfg.NoColor)
	if err != nil {
		return true, err
	}

	env := &runtimeEnv{
		ctx:      r.context,
		snapshot: r.snapshot,
		cfg:      r.cfg,
		events:   multiSink{formatter, metricsSink{r.collector}},
		log:      r.log,
	}

	env.RunHook("before_all")

	files, err := FeatureFiles(r.cfg.Paths)
	if err != nil {
		return true, err
	}

	failedCount := 0
	for _, file := range files {
		if r.cfg.Excluded(file) {
			r.log.Debug().Str("file", file).Msg("excluded by configuration")
			continue
		}

		feature, err := gherkin.ParseFile(file, r.cfg.Language)
		if err != nil {
			return true, fmt.Errorf("parsing %s: %w", file, err)
		}
		r.features = append(r.features, feature)

		formatter.URI(file)

		if err := capt.Start(); err != nil {
			return true, err
		}
		failed := feature.Run(env)
		if err := capt.Stop(); err != nil {
			return true, err
		}

		if failed && !capt.Streams().Empty() {
			fmt.Fprintln(r.out, capt.Streams().Combined())
		}
		capt.Streams().Reset()

		for _, rep := range r.reporters {
			rep.Feature(feature)
		}

		if failed {
			failedCount++
			if r.cfg.Stop {
				r.log.Info().Str("feature", feature.Name).Msg("stopping on first failure")
				break
			}
		}
	}

	env.RunHook("after_all")

	for _, rep := range r.reporters {
		if err := rep.End(); err != nil {
			return failedCount > 0, err
		}
	}
	if err := formatter.Close(); err != nil {
		return failedCount > 0, err
	}

	if r.cfg.Verbose {
		fmt.Fprintln(r.out, r.collector.Summary())
	}
	return failedCount > 0, nil
}

// seedCaptureAttributes exposes the capture buffers on the context root so
// user code can inspect what the run captured.
func seedCaptureAttributes(ctx *Context, streams *capture.Streams) {
	if streams.Stdout != nil {
		ctx.SetRoot("stdout_capture", streams.Stdout)
	}
	if streams.Stderr != nil {
		ctx.SetRoot("stderr_capture", streams.Stderr)
	}
	if streams.Log != nil {
		ctx.SetRoot("log_capture", streams.Log)
	}
}
