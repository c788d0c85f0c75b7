package model

import (
	"time"
)

// Status is the outcome of a feature, scenario or step after execution.
type Status string

const (
	StatusUntested  Status = "untested"
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusUndefined Status = "undefined"
)

// StepKind is the registration category a step text is matched against.
// "And"/"But" lines are resolved to the preceding kind by the parser.
type StepKind int

const (
	KindGiven StepKind = iota
	KindWhen
	KindThen
	KindAny
)

func (k StepKind) String() string {
	switch k {
	case KindGiven:
		return "given"
	case KindWhen:
		return "when"
	case KindThen:
		return "then"
	default:
		return "step"
	}
}

// Feature is a top-level artifact backed by one source file.
type Feature struct {
	Name      string
	Filename  string
	Tags      []string
	Scenarios []*Scenario
	Status    Status
	Duration  time.Duration
}

// ScenarioKind distinguishes a plain scenario from an outline container
// whose Scenarios field holds the per-example expansions.
type ScenarioKind int

const (
	ScenarioPlain ScenarioKind = iota
	ScenarioOutline
)

// Scenario is one executable test case: an ordered sequence of steps.
// An outline container carries no runnable steps of its own; its expanded
// sub-scenarios do.
type Scenario struct {
	Name      string
	Filename  string
	Line      int
	Kind      ScenarioKind
	Tags      []string
	Steps     []*Step
	Scenarios []*Scenario // expanded examples, outline containers only
	Feature   *Feature
	Example   *ExampleRow // set on expanded sub-scenarios
	Status    Status
	Duration  time.Duration
}

// ExampleRow is one data row of a scenario outline's Examples table.
type ExampleRow struct {
	Headings []string
	Values   []string
}

// Get returns the value under a heading, or "".
func (r *ExampleRow) Get(heading string) string {
	for i, h := range r.Headings {
		if h == heading {
			return r.Values[i]
		}
	}
	return ""
}

// Step is one action line within a scenario, bound at run time to a
// registered implementation.
type Step struct {
	Keyword  string // display keyword as written, e.g. "Given", "And"
	Kind     StepKind
	Text     string
	Line     int
	Status   Status
	Duration time.Duration
	Error    error
}

// EffectiveTags returns the scenario's own tags combined with its
// feature's tags.
func (s *Scenario) EffectiveTags() []string {
	if s.Feature == nil {
		return s.Tags
	}
	tags := make([]string, 0, len(s.Feature.Tags)+len(s.Tags))
	tags = append(tags, s.Feature.Tags...)
	tags = append(tags, s.Tags...)
	return tags
}

// HasTag reports whether tag is present on the feature.
func (f *Feature) HasTag(tag string) bool {
	return hasTag(f.Tags, tag)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
