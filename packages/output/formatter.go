package output

import (
	"fmt"
	"io"

	"github.com/abdul-hamid-achik/featspec/packages/core/model"
)

// Formatter renders artifact events to a stream as execution progresses.
// Feature and Scenario fire when the artifact is entered; Step fires after
// the step has executed.
type Formatter interface {
	URI(path string)
	Feature(f *model.Feature)
	Scenario(s *model.Scenario)
	Step(st *model.Step)
	Close() error
}

// NewFormatter builds the formatter registered under name writing to w.
func NewFormatter(name string, w io.Writer, noColor bool) (Formatter, error) {
	switch name {
	case "", "pretty":
		return NewConsoleFormatter(w, !noColor), nil
	case "plain":
		return NewConsoleFormatter(w, false), nil
	case "json":
		return NewJSONFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown format %q", name)
	}
}

// Reporter consumes whole features after they ran and finishes at suite end.
type Reporter interface {
	Feature(f *model.Feature)
	End() error
}

// NewReporter builds the reporter registered under name writing to w.
func NewReporter(name string, w io.Writer) (Reporter, error) {
	switch name {
	case "summary":
		return NewSummaryReporter(w), nil
	case "junit":
		return NewJUnitReporter(w), nil
	default:
		return nil, fmt.Errorf("unknown reporter %q", name)
	}
}
