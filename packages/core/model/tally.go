package model

// Tally counts artifacts by status.
type Tally struct {
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Undefined int `json:"undefined"`
}

// Add bumps the bucket for st. Anything that is not passed, failed or
// skipped lands in the undefined bucket.
func (t *Tally) Add(st Status) {
	switch st {
	case StatusPassed:
		t.Passed++
	case StatusFailed:
		t.Failed++
	case StatusSkipped:
		t.Skipped++
	default:
		t.Undefined++
	}
}

// Merge adds other's counts into t.
func (t *Tally) Merge(other Tally) {
	t.Passed += other.Passed
	t.Failed += other.Failed
	t.Skipped += other.Skipped
	t.Undefined += other.Undefined
}

// Total is the sum over all buckets.
func (t Tally) Total() int {
	return t.Passed + t.Failed + t.Skipped + t.Undefined
}

// ScenarioTally counts leaf scenario statuses under f, descending into
// outline containers.
func (f *Feature) ScenarioTally() Tally {
	var t Tally
	for _, s := range f.Scenarios {
		s.eachLeaf(func(leaf *Scenario) {
			t.Add(leaf.Status)
		})
	}
	return t
}

// StepTally counts step statuses recursively over the feature's scenarios.
func (f *Feature) StepTally() Tally {
	var t Tally
	for _, s := range f.Scenarios {
		t.Merge(s.StepTally())
	}
	return t
}

// StepTally counts step statuses for the scenario, descending into outline
// containers.
func (s *Scenario) StepTally() Tally {
	var t Tally
	s.eachLeaf(func(leaf *Scenario) {
		for _, st := range leaf.Steps {
			t.Add(st.Status)
		}
	})
	return t
}

func (s *Scenario) eachLeaf(fn func(*Scenario)) {
	if s.Kind == ScenarioOutline {
		for _, sub := range s.Scenarios {
			sub.eachLeaf(fn)
		}
		return
	}
	fn(s)
}
