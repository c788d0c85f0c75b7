package model

import (
	"fmt"
	"time"
)

// Context is the scoped state bag handed to hooks and step implementations.
// Writes land in the innermost scope; reads resolve innermost first.
type Context interface {
	Get(name string) (any, error)
	Set(name string, value any)
	Delete(name string) error
	Contains(name string) bool
	FailedRoot() // flips the suite-global failed flag in the root scope
}

// StepFunc is a registered step implementation. Captured pattern groups are
// passed as positional string arguments.
type StepFunc func(ctx Context, args ...string) error

// EventSink receives artifact lifecycle events during a run. Feature and
// Scenario fire when the artifact is entered; Step fires after the step has
// executed and carries its final status.
type EventSink interface {
	Feature(f *Feature)
	Scenario(s *Scenario)
	Step(st *Step)
}

// Runtime is what artifacts need from the scheduler that runs them.
type Runtime interface {
	Context() Context
	EnterScope()
	ExitScope()
	UserMode(fn func() error) error
	RunHook(name string, args ...any)
	FindStep(kind StepKind, text string) (StepFunc, []string, bool)
	Events() EventSink
	DryRun() bool
	Strict() bool
	Selected(tags []string) bool
}

// Runnable is the run capability shared by Feature and Scenario.
type Runnable interface {
	Run(rt Runtime) bool
}

// Run executes the feature against rt and reports whether it failed.
// Hooks fire around the feature and around each scenario; the feature frame
// stays on the context stack for the whole run.
func (f *Feature) Run(rt Runtime) bool {
	rt.Events().Feature(f)

	rt.EnterScope()
	defer rt.ExitScope()
	ctx := rt.Context()
	ctx.Set("feature", f)
	ctx.Set("tags", f.Tags)

	rt.RunHook("before_feature", f)

	start := time.Now()
	failed := false
	for _, s := range f.Scenarios {
		if s.Run(rt) {
			failed = true
		}
	}
	f.Duration = time.Since(start)
	f.Status = f.computeStatus()

	rt.RunHook("after_feature", f)

	if failed {
		ctx.FailedRoot()
	}
	return failed
}

func (f *Feature) computeStatus() Status {
	return combineStatuses(func(yield func(Status)) {
		for _, s := range f.Scenarios {
			yield(s.Status)
		}
	})
}

// Settle recomputes outline and feature statuses bottom-up from leaf
// results. Runs that execute leaf scenarios as independent units need it
// before reporting, because nothing ran the containers themselves.
func (f *Feature) Settle() {
	for _, s := range f.Scenarios {
		if s.Kind == ScenarioOutline {
			s.Status = combineStatuses(func(yield func(Status)) {
				for _, sub := range s.Scenarios {
					yield(sub.Status)
				}
			})
		}
	}
	f.Status = f.computeStatus()
}

// Run executes the scenario (or, for outline containers, every expanded
// sub-scenario) and reports whether it failed. A failing or undefined step
// skips the remaining steps of the scenario. Scenarios deselected by the
// tag filter are marked skipped without reaching the event sink.
func (s *Scenario) Run(rt Runtime) bool {
	if s.Kind == ScenarioOutline {
		return s.runOutline(rt)
	}

	if !rt.Selected(s.EffectiveTags()) {
		s.deselect()
		return false
	}

	rt.Events().Scenario(s)

	rt.EnterScope()
	defer rt.ExitScope()
	ctx := rt.Context()
	ctx.Set("scenario", s)
	ctx.Set("tags", s.EffectiveTags())
	if s.Example != nil {
		ctx.Set("active_outline", s.Example)
	}

	rt.RunHook("before_scenario", s)

	start := time.Now()
	halted := false
	for _, st := range s.Steps {
		if halted {
			st.Status = StatusSkipped
			rt.Events().Step(st)
			continue
		}
		s.runStep(rt, st)
		if st.Status == StatusFailed || st.Status == StatusUndefined {
			halted = true
		}
	}
	s.Duration = time.Since(start)
	s.Status = s.computeStatus(rt.Strict())

	rt.RunHook("after_scenario", s)

	if s.Status == StatusFailed {
		ctx.FailedRoot()
		return true
	}
	return false
}

func (s *Scenario) runOutline(rt Runtime) bool {
	failed := false
	start := time.Now()
	for _, sub := range s.Scenarios {
		if sub.Run(rt) {
			failed = true
		}
	}
	s.Duration = time.Since(start)
	s.Status = combineStatuses(func(yield func(Status)) {
		for _, sub := range s.Scenarios {
			yield(sub.Status)
		}
	})
	return failed
}

func (s *Scenario) runStep(rt Runtime, st *Step) {
	fn, args, ok := rt.FindStep(st.Kind, st.Text)
	if !ok {
		st.Status = StatusUndefined
		rt.Events().Step(st)
		return
	}

	if rt.DryRun() {
		st.Status = StatusSkipped
		rt.Events().Step(st)
		return
	}

	rt.RunHook("before_step", st)

	start := time.Now()
	err := rt.UserMode(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("step panicked: %v", r)
			}
		}()
		return fn(rt.Context(), args...)
	})
	st.Duration = time.Since(start)

	if err != nil {
		st.Status = StatusFailed
		st.Error = err
	} else {
		st.Status = StatusPassed
	}

	rt.RunHook("after_step", st)
	rt.Events().Step(st)
}

func (s *Scenario) computeStatus(strict bool) Status {
	anyUndefined := false
	anyPassed := false
	for _, st := range s.Steps {
		switch st.Status {
		case StatusFailed:
			return StatusFailed
		case StatusUndefined:
			anyUndefined = true
		case StatusPassed:
			anyPassed = true
		}
	}
	if anyUndefined {
		if strict {
			return StatusFailed
		}
		return StatusUndefined
	}
	if anyPassed {
		return StatusPassed
	}
	return StatusSkipped
}

// deselect marks the scenario and its steps skipped without emitting
// events. Deselected work still counts in the tallies.
func (s *Scenario) deselect() {
	for _, st := range s.Steps {
		st.Status = StatusSkipped
	}
	s.Status = StatusSkipped
}

// combineStatuses folds child statuses with priority
// failed > passed > undefined > skipped.
func combineStatuses(each func(yield func(Status))) Status {
	anyPassed := false
	anyUndefined := false
	saw := false
	result := StatusSkipped
	each(func(st Status) {
		saw = true
		switch st {
		case StatusFailed:
			result = StatusFailed
		case StatusPassed:
			anyPassed = true
		case StatusUndefined:
			anyUndefined = true
		}
	})
	if !saw {
		return StatusSkipped
	}
	if result == StatusFailed {
		return StatusFailed
	}
	if anyPassed {
		return StatusPassed
	}
	if anyUndefined {
		return StatusUndefined
	}
	return StatusSkipped
}
