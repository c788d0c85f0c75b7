package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/featspec/packages/core/config"
	"github.com/abdul-hamid-achik/featspec/packages/core/model"
	"github.com/abdul-hamid-achik/featspec/packages/core/registry"
)

// runtimeEnv implements model.Runtime on top of a Context, a frozen registry
// snapshot and an event sink. The sequential runner holds one for the whole
// suite; every parallel worker builds its own private instance.
type runtimeEnv struct {
	ctx      *Context
	snapshot *registry.Snapshot
	cfg      *config.Config
	events   model.EventSink
	log      zerolog.Logger
}

func (e *runtimeEnv) Context() model.Context { return e.ctx }

func (e *runtimeEnv) EnterScope() { e.ctx.PushScope() }

func (e *runtimeEnv) ExitScope() { e.ctx.PopScope() }

func (e *runtimeEnv) UserMode(fn func() error) error { return e.ctx.UserMode(fn) }

// RunHook looks up a named hook and invokes it with the context and the
// artifact, wrapped in user mode. Hooks are skipped entirely in dry runs.
// A hook error never aborts the run; it is logged and the suite-global
// failed flag is raised.
func (e *runtimeEnv) RunHook(name string, args ...any) {
	if e.cfg.DryRun {
		return
	}
	fn, ok := e.snapshot.HookNamed(name)
	if !ok {
		return
	}
	err := e.ctx.UserMode(func() error {
		return fn(e.ctx, args...)
	})
	if err != nil {
		e.log.Error().Err(err).Str("hook", name).Msg("hook failed")
		e.ctx.FailedRoot()
	}
}

func (e *runtimeEnv) FindStep(kind model.StepKind, text string) (model.StepFunc, []string, bool) {
	return e.snapshot.Find(kind, text)
}

func (e *runtimeEnv) Events() model.EventSink { return e.events }

func (e *runtimeEnv) DryRun() bool { return e.cfg.DryRun }

func (e *runtimeEnv) Strict() bool { return e.cfg.Strict }

// Selected reports whether an artifact with the given tags is picked by the
// configured tag filter. An empty filter selects everything.
func (e *runtimeEnv) Selected(tags []string) bool {
	if len(e.cfg.Tags) == 0 {
		return true
	}
	for _, want := range e.cfg.Tags {
		for _, t := range tags {
			if t == want {
				return true
			}
		}
	}
	return false
}

// multiSink fans events out to several sinks.
type multiSink []model.EventSink

func (m multiSink) Feature(f *model.Feature) {
	for _, s := range m {
		s.Feature(f)
	}
}

func (m multiSink) Scenario(sc *model.Scenario) {
	for _, s := range m {
		s.Scenario(sc)
	}
}

func (m multiSink) Step(st *model.Step) {
	for _, s := range m {
		s.Step(st)
	}
}

// metricsSink adapts the metrics collector to the event sink shape.
type metricsSink struct {
	collector interface{ ObserveStep(*model.Step) }
}

func (m metricsSink) Feature(*model.Feature)   {}
func (m metricsSink) Scenario(*model.Scenario) {}
func (m metricsSink) Step(st *model.Step)      { m.collector.ObserveStep(st) }
