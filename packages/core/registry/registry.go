// Package registry holds step implementations and lifecycle hooks.
//
// A Registry is populated once at startup, then frozen into a Snapshot that
// schedulers and workers query during execution. The snapshot is immutable,
// so a single instance is safely shared read-only across concurrent workers.
package registry

import (
	"fmt"
	"regexp"

	"github.com/abdul-hamid-achik/featspec/packages/core/model"
)

// HookFunc is a lifecycle callback. It receives the execution context plus
// the artifact the hook fires around (feature, scenario or step), if any.
type HookFunc func(ctx model.Context, args ...any) error

// StepPattern matches step text and yields captured arguments.
type StepPattern interface {
	Match(text string) (args []string, ok bool)
}

// Matcher compiles registration patterns into step patterns. The default
// matcher treats patterns as anchored regular expressions; it can be
// overridden before registrations are added.
type Matcher interface {
	Compile(pattern string) (StepPattern, error)
}

type regexpMatcher struct{}

type regexpPattern struct {
	re *regexp.Regexp
}

func (regexpMatcher) Compile(pattern string) (StepPattern, error) {
	re, err := regexp.Compile("^" + pattern + "$")
	if err != nil {
		return nil, fmt.Errorf("compiling step pattern %q: %w", pattern, err)
	}
	return &regexpPattern{re: re}, nil
}

func (p *regexpPattern) Match(text string) ([]string, bool) {
	m := p.re.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}

type stepDef struct {
	kind    model.StepKind
	pattern StepPattern
	source  string
	fn      model.StepFunc
}

// Registry collects step registrations and named hooks before a run starts.
// It is not safe for concurrent mutation; freeze it with Snapshot.
type Registry struct {
	matcher Matcher
	steps   []*stepDef
	hooks   map[string]HookFunc
}

// New returns an empty registry using the regexp matcher.
func New() *Registry {
	return &Registry{
		matcher: regexpMatcher{},
		hooks:   make(map[string]HookFunc),
	}
}

// SetMatcher overrides the pattern matcher for subsequent registrations.
func (r *Registry) SetMatcher(m Matcher) {
	r.matcher = m
}

// Given registers a step implementation for "Given" lines.
func (r *Registry) Given(pattern string, fn model.StepFunc) error {
	return r.add(model.KindGiven, pattern, fn)
}

// When registers a step implementation for "When" lines.
func (r *Registry) When(pattern string, fn model.StepFunc) error {
	return r.add(model.KindWhen, pattern, fn)
}

// Then registers a step implementation for "Then" lines.
func (r *Registry) Then(pattern string, fn model.StepFunc) error {
	return r.add(model.KindThen, pattern, fn)
}

// Step registers a step implementation matching any keyword.
func (r *Registry) Step(pattern string, fn model.StepFunc) error {
	return r.add(model.KindAny, pattern, fn)
}

func (r *Registry) add(kind model.StepKind, pattern string, fn model.StepFunc) error {
	compiled, err := r.matcher.Compile(pattern)
	if err != nil {
		return err
	}
	r.steps = append(r.steps, &stepDef{kind: kind, pattern: compiled, source: pattern, fn: fn})
	return nil
}

// Hook registers a named lifecycle hook such as "before_all" or
// "after_scenario". Registering the same name again replaces the hook.
func (r *Registry) Hook(name string, fn HookFunc) {
	r.hooks[name] = fn
}

// Snapshot freezes the registry into an immutable, shareable view.
func (r *Registry) Snapshot() *Snapshot {
	steps := make([]*stepDef, len(r.steps))
	copy(steps, r.steps)
	hooks := make(map[string]HookFunc, len(r.hooks))
	for name, fn := range r.hooks {
		hooks[name] = fn
	}
	return &Snapshot{steps: steps, hooks: hooks}
}

// Snapshot is a read-only registry view queried during job execution.
type Snapshot struct {
	steps []*stepDef
	hooks map[string]HookFunc
}

// Find resolves step text against the registrations for the given kind.
// Definitions registered with Step match any kind. First match wins, in
// registration order.
func (s *Snapshot) Find(kind model.StepKind, text string) (model.StepFunc, []string, bool) {
	for _, def := range s.steps {
		if def.kind != kind && def.kind != model.KindAny {
			continue
		}
		if args, ok := def.pattern.Match(text); ok {
			return def.fn, args, true
		}
	}
	return nil, nil, false
}

// HookNamed returns the hook registered under name, if any.
func (s *Snapshot) HookNamed(name string) (HookFunc, bool) {
	fn, ok := s.hooks[name]
	return fn, ok
}

// StepCount reports how many step definitions the snapshot holds.
func (s *Snapshot) StepCount() int {
	return len(s.steps)
}
