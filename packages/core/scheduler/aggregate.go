package scheduler

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/featspec/packages/core/model"
)

// SuiteTally is the running total of features, scenarios and steps by status.
type SuiteTally struct {
	Features  model.Tally
	Scenarios model.Tally
	Steps     model.Tally
}

// Summary renders the totals in the classic three-line shape.
func (t SuiteTally) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d features passed, %d failed, %d skipped\n",
		t.Features.Passed, t.Features.Failed, t.Features.Skipped+t.Features.Undefined)
	fmt.Fprintf(&b, "%d scenarios passed, %d failed, %d skipped\n",
		t.Scenarios.Passed, t.Scenarios.Failed, t.Scenarios.Skipped+t.Scenarios.Undefined)
	fmt.Fprintf(&b, "%d steps passed, %d failed, %d skipped, %d undefined\n",
		t.Steps.Passed, t.Steps.Failed, t.Steps.Skipped, t.Steps.Undefined)
	return b.String()
}

// Aggregator reconstructs hierarchical outcomes from the out-of-order,
// possibly partial result stream the workers produced.
//
// Feature jobs contribute their tallies directly. Scenario jobs accumulate
// their statuses under the owning feature's identity key; the feature-level
// outcome is resolved later from that concatenation, since no single worker
// saw the whole feature.
type Aggregator struct {
	suite    SuiteTally
	combined map[string]string
	keys     []string
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{combined: make(map[string]string)}
}

// Add folds one job result into the running totals.
func (a *Aggregator) Add(res JobResult) {
	if res.Kind == JobScenario {
		if prev, ok := a.combined[res.Key]; ok {
			a.combined[res.Key] = prev + "|" + string(res.Status)
		} else {
			a.combined[res.Key] = string(res.Status)
			a.keys = append(a.keys, res.Key)
		}
		a.suite.Scenarios.Add(res.Status)
	} else {
		a.suite.Features.Add(res.Status)
		a.suite.Scenarios.Merge(res.Scenarios)
	}
	a.suite.Steps.Merge(res.Steps)
}

// Totals resolves every feature observed only through its scenario jobs and
// returns the final suite tally. The resolution priority is
// failed > passed > skipped: one failed scenario fails the feature, one
// passed scenario among skips passes it, and all-skipped features count as
// skipped. Totals does not mutate the aggregator, so calling it repeatedly
// yields identical values.
func (a *Aggregator) Totals() SuiteTally {
	t := a.suite
	for _, key := range a.keys {
		statuses := a.combined[key]
		switch {
		case strings.Contains(statuses, string(model.StatusFailed)):
			t.Features.Failed++
		case strings.Contains(statuses, string(model.StatusPassed)):
			t.Features.Passed++
		default:
			t.Features.Skipped++
		}
	}
	return t
}
