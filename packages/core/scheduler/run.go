package scheduler

import (
	"github.com/abdul-hamid-achik/featspec/packages/core/config"
	"github.com/abdul-hamid-achik/featspec/packages/core/registry"
)

// Run executes the suite with the scheduler selected by configuration:
// the worker pool when proc_count is set, otherwise sequential. It returns
// the number of failed features; zero means success.
func Run(cfg *config.Config, snapshot *registry.Snapshot, opts ...Option) (int, error) {
	totals, err := RunSuite(cfg, snapshot, opts...)
	return totals.Features.Failed, err
}

// RunSuite is Run with the full aggregated totals instead of just the
// failed feature count.
func RunSuite(cfg *config.Config, snapshot *registry.Snapshot, opts ...Option) (SuiteTally, error) {
	if cfg.Parallel() {
		p := NewParallelRunner(cfg, snapshot, opts...)
		_, err := p.Run()
		return p.Totals(), err
	}
	r := New(cfg, snapshot, opts...)
	if _, err := r.Run(); err != nil {
		return SuiteTally{}, err
	}
	var totals SuiteTally
	for _, f := range r.Features() {
		totals.Features.Add(f.Status)
		totals.Scenarios.Merge(f.ScenarioTally())
		totals.Steps.Merge(f.StepTally())
	}
	return totals, nil
}
