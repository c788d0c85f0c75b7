package scheduler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/featspec/packages/capture"
	"github.com/abdul-hamid-achik/featspec/packages/core/config"
	"github.com/abdul-hamid-achik/featspec/packages/core/gherkin"
	"github.com/abdul-hamid-achik/featspec/packages/core/model"
	"github.com/abdul-hamid-achik/featspec/packages/core/registry"
	"github.com/abdul-hamid-achik/featspec/packages/metrics"
	"github.com/abdul-hamid-achik/featspec/packages/output"
)

// ErrQueueEmpty is the one dequeue outcome a worker treats as a clean stop.
// Every other failure during dequeue or job execution is propagated, never
// conflated with "no more work".
var ErrQueueEmpty = errors.New("job queue empty")

// JobKind is the variant tag of a unit of parallel work.
type JobKind int

const (
	JobFeature JobKind = iota
	JobScenario
)

func (k JobKind) String() string {
	if k == JobFeature {
		return "feature"
	}
	return "scenario"
}

// Job is one independent unit of work: either a whole feature or a single
// leaf scenario. Workers borrow a job for execution and hand back only a
// JobResult.
type Job struct {
	ID       uuid.UUID
	Kind     JobKind
	feature  *model.Feature
	scenario *model.Scenario
}

// Name is the job's display name.
func (j *Job) Name() string {
	if j.Kind == JobFeature {
		return j.feature.Name
	}
	return j.scenario.Name
}

// Filename is the feature file backing the job.
func (j *Job) Filename() string {
	if j.Kind == JobFeature {
		return j.feature.Filename
	}
	return j.scenario.Filename
}

// Tags are the job's effective tags.
func (j *Job) Tags() []string {
	if j.Kind == JobFeature {
		return j.feature.Tags
	}
	return j.scenario.EffectiveTags()
}

// Status is the job's outcome after execution.
func (j *Job) Status() model.Status {
	if j.Kind == JobFeature {
		return j.feature.Status
	}
	return j.scenario.Status
}

// Duration is the job's wall-clock execution time.
func (j *Job) Duration() time.Duration {
	if j.Kind == JobFeature {
		return j.feature.Duration
	}
	return j.scenario.Duration
}

// Key is the composite identity under which scenario jobs of one feature are
// regrouped during aggregation.
func (j *Job) Key() string {
	if j.Kind == JobFeature {
		return j.feature.Filename + j.feature.Name
	}
	return j.scenario.Filename + j.scenario.Feature.Name
}

func (j *Job) run(rt model.Runtime) bool {
	if j.Kind == JobFeature {
		return j.feature.Run(rt)
	}
	return j.scenario.Run(rt)
}

// JobResult is the one record a worker emits per executed job.
type JobResult struct {
	JobID     uuid.UUID
	Kind      JobKind
	Key       string
	Status    model.Status
	Report    string
	Steps     model.Tally
	Scenarios model.Tally // feature jobs only
	Worker    int
	Start     time.Time
	End       time.Time
}

// ParallelRunner splits the suite into jobs at feature or scenario
// granularity and runs them across a fixed-size worker pool. Work and
// results cross worker boundaries only through two FIFO queues; each worker
// owns a private context, output buffer and formatter.
type ParallelRunner struct {
	cfg      *config.Config
	snapshot *registry.Snapshot
	log      zerolog.Logger

	out       io.Writer
	progress  io.Writer
	reporters []output.Reporter
	collector *metrics.Collector

	jobs       []*Job
	indexQueue chan int
	results    chan JobResult
	workerErrs chan error
	totals     SuiteTally
}

// NewParallelRunner builds a parallel runner over a frozen registry snapshot.
func NewParallelRunner(cfg *config.Config, snapshot *registry.Snapshot, opts ...Option) *ParallelRunner {
	o := buildOptions(opts)
	return &ParallelRunner{
		cfg:       cfg,
		snapshot:  snapshot,
		log:       *o.log,
		out:       o.out,
		progress:  os.Stderr,
		reporters: o.reporters,
		collector: o.collector,
	}
}

// Jobs exposes the partitioned job list after Run.
func (p *ParallelRunner) Jobs() []*Job {
	return p.jobs
}

// Totals exposes the aggregated suite totals after Run.
func (p *ParallelRunner) Totals() SuiteTally {
	return p.totals
}

// Run executes the suite across the worker pool and returns the number of
// failed features. Configuration problems abort before any work starts.
func (p *ParallelRunner) Run() (int, error) {
	if err := p.cfg.Validate(); err != nil {
		return 0, err
	}

	p.collector.Start()
	defer p.collector.Stop()

	// Everything the workers will need is in place before the first worker
	// starts: the registry snapshot is frozen and all features are parsed
	// in the scheduler's goroutine.
	features, err := p.loadFeatures()
	if err != nil {
		return 0, err
	}

	parentCtx := NewContext(p.cfg, p.log)
	parentEnv := &runtimeEnv{
		ctx:      parentCtx,
		snapshot: p.snapshot,
		cfg:      p.cfg,
		events:   multiSink{},
		log:      p.log,
	}

	parentEnv.RunHook("before_all")

	p.partition(features)
	p.indexQueue = make(chan int, len(p.jobs))
	for i := range p.jobs {
		p.indexQueue <- i
	}
	p.results = make(chan JobResult, len(p.jobs))
	p.workerErrs = make(chan error, len(p.jobs)+p.cfg.ProcCount)

	featureJobs, scenarioJobs := p.jobCounts()
	p.log.Info().Int("scenarios", scenarioJobs).Int("features", featureJobs).
		Int("workers", p.cfg.ProcCount).Msg("jobs queued")

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.ProcCount; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.worker(n)
		}(i)
	}
	wg.Wait()
	fmt.Fprintln(p.progress)

	parentEnv.RunHook("after_all")

	close(p.results)
	close(p.workerErrs)

	var errs []error
	for err := range p.workerErrs {
		errs = append(errs, err)
	}

	agg := NewAggregator()
	for res := range p.results {
		fmt.Fprintf(p.out, "\n%s\n", strings.Repeat("_", 75))
		fmt.Fprintln(p.out, res.Report)
		agg.Add(res)
	}
	totals := agg.Totals()
	p.totals = totals
	fmt.Fprintf(p.out, "\n%s\n%s", strings.Repeat("_", 75), totals.Summary())
	if p.cfg.Verbose {
		fmt.Fprintln(p.out, p.collector.Summary())
	}

	// Workers mutated scenario leaves in place, so the parsed features hold
	// every outcome; container statuses just have to be settled first.
	for _, f := range features {
		f.Settle()
	}
	for _, rep := range p.reporters {
		for _, f := range features {
			rep.Feature(f)
		}
		if err := rep.End(); err != nil {
			errs = append(errs, err)
		}
	}

	return totals.Features.Failed, errors.Join(errs...)
}

func (p *ParallelRunner) loadFeatures() ([]*model.Feature, error) {
	files, err := FeatureFiles(p.cfg.Paths)
	if err != nil {
		return nil, err
	}
	var features []*model.Feature
	for _, file := range files {
		if p.cfg.Excluded(file) {
			continue
		}
		feature, err := gherkin.ParseFile(file, p.cfg.Language)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file, err)
		}
		features = append(features, feature)
	}
	return features, nil
}

// partition turns features into jobs. A feature becomes one indivisible job
// when granularity is "feature" or the feature is tagged serial; otherwise
// each leaf scenario becomes a job, outlines contributing one job per
// example row. Job indices enter the queue in creation order.
func (p *ParallelRunner) partition(features []*model.Feature) {
	for _, feature := range features {
		if p.cfg.ParallelElement == "feature" || feature.HasTag("serial") {
			p.addJob(&Job{ID: uuid.New(), Kind: JobFeature, feature: feature})
			continue
		}
		for _, scenario := range feature.Scenarios {
			if scenario.Kind == model.ScenarioPlain {
				p.addJob(&Job{ID: uuid.New(), Kind: JobScenario, scenario: scenario})
				continue
			}
			for _, sub := range scenario.Scenarios {
				p.addJob(&Job{ID: uuid.New(), Kind: JobScenario, scenario: sub})
			}
		}
	}
}

func (p *ParallelRunner) addJob(j *Job) {
	p.jobs = append(p.jobs, j)
}

func (p *ParallelRunner) jobCounts() (features, scenarios int) {
	for _, j := range p.jobs {
		if j.Kind == JobFeature {
			features++
		} else {
			scenarios++
		}
	}
	return features, scenarios
}

// nextIndex pops the next job index without blocking. All indices are queued
// before the first worker starts, so an empty queue always means the run is
// out of work, and ErrQueueEmpty is the only error this returns.
func (p *ParallelRunner) nextIndex() (int, error) {
	select {
	case idx := <-p.indexQueue:
		return idx, nil
	default:
		return 0, ErrQueueEmpty
	}
}

// worker runs to completion: it pulls job indices until the queue is empty,
// executing each job against a private context and output buffer. A failure
// while executing a job is reported on the error channel, never swallowed.
func (p *ParallelRunner) worker(n int) {
	log := p.log.With().Int("worker", n).Logger()
	for {
		idx, err := p.nextIndex()
		if errors.Is(err, ErrQueueEmpty) {
			log.Debug().Msg("queue empty, worker stopping")
			return
		}

		job := p.jobs[idx]
		res, err := p.runJob(n, job)
		if err != nil {
			p.workerErrs <- fmt.Errorf("worker %d: job %q: %w", n, job.Name(), err)
			continue
		}

		// One marker per job on stderr for liveness feedback.
		fmt.Fprint(p.progress, "* ")

		if res == nil {
			// Legacy drop-when-silent policy: the job's statistics are
			// deliberately absent from the aggregate.
			log.Debug().Str("job", job.Name()).Msg("job produced no output, result dropped")
			continue
		}
		p.results <- *res
	}
}

// runJob executes one job in isolation and builds its result record. The
// returned result is nil only when the job produced no output and the legacy
// drop-when-silent policy is enabled.
func (p *ParallelRunner) runJob(n int, job *Job) (res *JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	streams := capture.NewStreams(capture.Options{
		Stdout: p.cfg.GetStdoutCapture(),
		Stderr: p.cfg.GetStderrCapture(),
		Log:    p.cfg.GetLogCapture(),
	})

	writebuf := &bytes.Buffer{}
	format := p.cfg.Format
	if format == "" || format == "pretty" {
		format = "plain"
	}
	formatter, err := output.NewFormatter(format, writebuf, true)
	if err != nil {
		return nil, err
	}
	formatter.URI(job.Filename())
	// Output up to here is formatter preamble, not evidence the job ran.
	preamble := writebuf.Len()

	workerLog := p.log.With().Int("worker", n).Logger().Output(streams.LogWriter())
	ctx := NewContext(p.cfg, workerLog, WithoutMaskingDiagnostics())
	seedCaptureAttributes(ctx, streams)

	env := &runtimeEnv{
		ctx:      ctx,
		snapshot: p.snapshot,
		cfg:      p.cfg,
		events:   multiSink{formatter, metricsSink{p.collector}},
		log:      workerLog,
	}

	start := time.Now()
	job.run(env)
	end := time.Now()

	if err := formatter.Close(); err != nil {
		return nil, err
	}

	if p.dropSilent(writebuf.Len()-preamble, streams) {
		return nil, nil
	}

	result := &JobResult{
		JobID:  job.ID,
		Kind:   job.Kind,
		Key:    job.Key(),
		Status: job.Status(),
		Report: p.buildReport(n, job, start, end, writebuf, streams),
		Worker: n,
		Start:  start,
		End:    end,
	}
	if job.Kind == JobFeature {
		result.Steps = job.feature.StepTally()
		result.Scenarios = job.feature.ScenarioTally()
	} else {
		result.Steps = job.scenario.StepTally()
	}
	return result, nil
}

// dropSilent reports whether a job result should be discarded because the
// job itself produced no output anywhere. produced counts formatter bytes
// written past the preamble, so the URI line never masks a silent job.
// Only the legacy policy drops; the default is to emit every result so its
// statistics always reach the aggregate.
func (p *ParallelRunner) dropSilent(produced int, streams *capture.Streams) bool {
	return produced == 0 && streams.Empty() && !p.cfg.GetEmitSilent()
}

const reportTimeLayout = "2006-01-02 15:04:05"

// buildReport assembles the textual fragment for one job: a worker-stamped
// header, the formatter's buffered output, captured streams, the steps left
// skipped when the job failed, and a worker-stamped footer.
func (p *ParallelRunner) buildReport(n int, job *Job, start, end time.Time, writebuf *bytes.Buffer, streams *capture.Streams) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s|WORKER%d START|", start.Format(reportTimeLayout), n)
	if job.Kind == JobFeature {
		fmt.Fprintf(&b, "Feature:%s|%s", job.Name(), job.Filename())
	} else {
		fmt.Fprintf(&b, "Scenario:%s|Feature:%s|%s", job.Name(), job.scenario.Feature.Name, job.Filename())
	}
	if tags := job.Tags(); len(tags) > 0 {
		b.WriteString("\n")
		for _, tag := range tags {
			b.WriteString("@" + tag + " ")
		}
	}
	b.WriteString("\n")

	b.WriteString(writebuf.String())
	if combined := streams.Combined(); combined != "" {
		b.WriteString(combined)
		b.WriteString("\n")
	}

	if job.Status() == model.StatusFailed {
		writeSkippedSteps(&b, job)
	}

	fmt.Fprintf(&b, "%s|WORKER%d END|", end.Format(reportTimeLayout), n)
	if job.Kind == JobFeature {
		fmt.Fprintf(&b, "Feature:%s|status:%s|%s|Duration:%s",
			job.Name(), job.Status(), job.Filename(), job.Duration())
	} else {
		fmt.Fprintf(&b, "Scenario:%s|Feature:%s|status:%s|%s|Duration:%s",
			job.Name(), job.scenario.Feature.Name, job.Status(), job.Filename(), job.Duration())
	}
	return b.String()
}

// writeSkippedSteps lists every step left skipped by a failed job, so the
// report shows what never ran.
func writeSkippedSteps(b *strings.Builder, job *Job) {
	if job.Kind == JobFeature {
		for _, s := range job.feature.Scenarios {
			writeScenarioSkips(b, s)
		}
		return
	}
	writeScenarioSkips(b, job.scenario)
}

func writeScenarioSkips(b *strings.Builder, s *model.Scenario) {
	if s.Kind == model.ScenarioOutline {
		for _, sub := range s.Scenarios {
			writeScenarioSkips(b, sub)
		}
		return
	}
	for _, st := range s.Steps {
		if st.Status == model.StatusSkipped {
			fmt.Fprintf(b, "Skipped because of failure - Scenario:%s|step:%s %s\n", s.Name, st.Keyword, st.Text)
		}
	}
}
