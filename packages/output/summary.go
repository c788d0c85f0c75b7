package output

import (
	"fmt"
	"io"

	"github.com/abdul-hamid-achik/featspec/packages/core/model"
)

// SummaryReporter prints suite totals at the end of a sequential run, in the
// same shape the parallel aggregator prints.
type SummaryReporter struct {
	writer    io.Writer
	features  model.Tally
	scenarios model.Tally
	steps     model.Tally
}

// NewSummaryReporter writes the totals to w at End.
func NewSummaryReporter(w io.Writer) *SummaryReporter {
	return &SummaryReporter{writer: w}
}

// Feature folds one executed feature into the totals.
func (r *SummaryReporter) Feature(f *model.Feature) {
	r.features.Add(f.Status)
	r.scenarios.Merge(f.ScenarioTally())
	r.steps.Merge(f.StepTally())
}

// End prints the accumulated totals.
func (r *SummaryReporter) End() error {
	fmt.Fprintf(r.writer, "\n%d features passed, %d failed, %d skipped\n",
		r.features.Passed, r.features.Failed, r.features.Skipped+r.features.Undefined)
	fmt.Fprintf(r.writer, "%d scenarios passed, %d failed, %d skipped\n",
		r.scenarios.Passed, r.scenarios.Failed, r.scenarios.Skipped+r.scenarios.Undefined)
	fmt.Fprintf(r.writer, "%d steps passed, %d failed, %d skipped, %d undefined\n",
		r.steps.Passed, r.steps.Failed, r.steps.Skipped, r.steps.Undefined)
	return nil
}
