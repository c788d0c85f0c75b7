package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/featspec/packages/core/model"
)

// JUnit XML structures

// JUnitTestSuites is the root element.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents one feature.
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents one scenario.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure carries the failing step's message.
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped marks a scenario that did not run.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitReporter accumulates finished features and writes a JUnit XML
// document at suite end, for CI integration.
type JUnitReporter struct {
	writer io.Writer
	suites []JUnitTestSuite
}

// NewJUnitReporter writes the XML document to w at End.
func NewJUnitReporter(w io.Writer) *JUnitReporter {
	return &JUnitReporter{writer: w}
}

// Feature records one executed feature as a test suite.
func (r *JUnitReporter) Feature(f *model.Feature) {
	suite := JUnitTestSuite{
		Name: f.Name,
		Time: f.Duration.Seconds(),
	}
	for _, s := range f.Scenarios {
		for _, leaf := range leafScenarios(s) {
			suite.Tests++
			tc := JUnitTestCase{
				Name:      leaf.Name,
				ClassName: f.Name,
				Time:      leaf.Duration.Seconds(),
			}
			switch leaf.Status {
			case model.StatusFailed, model.StatusUndefined:
				suite.Failures++
				tc.Failure = failureFor(leaf)
			case model.StatusSkipped:
				suite.Skipped++
				tc.Skipped = &JUnitSkipped{}
			}
			suite.TestCases = append(suite.TestCases, tc)
		}
	}
	r.suites = append(r.suites, suite)
}

// End writes the accumulated document.
func (r *JUnitReporter) End() error {
	root := JUnitTestSuites{
		Name:      "featspec",
		Timestamp: time.Now().Format(time.RFC3339),
	}
	for _, s := range r.suites {
		root.Tests += s.Tests
		root.Failures += s.Failures
		root.Skipped += s.Skipped
		root.Time += s.Time
		root.TestSuites = append(root.TestSuites, s)
	}

	if _, err := fmt.Fprint(r.writer, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(r.writer)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("writing junit report: %w", err)
	}
	_, err := fmt.Fprintln(r.writer)
	return err
}

func leafScenarios(s *model.Scenario) []*model.Scenario {
	if s.Kind != model.ScenarioOutline {
		return []*model.Scenario{s}
	}
	var leaves []*model.Scenario
	for _, sub := range s.Scenarios {
		leaves = append(leaves, leafScenarios(sub)...)
	}
	return leaves
}

func failureFor(s *model.Scenario) *JUnitFailure {
	for _, st := range s.Steps {
		if st.Status == model.StatusFailed {
			msg := fmt.Sprintf("%s %s", st.Keyword, st.Text)
			f := &JUnitFailure{Message: msg, Type: "failure"}
			if st.Error != nil {
				f.Content = st.Error.Error()
			}
			return f
		}
		if st.Status == model.StatusUndefined {
			return &JUnitFailure{
				Message: fmt.Sprintf("undefined step: %s %s", st.Keyword, st.Text),
				Type:    "undefined",
			}
		}
	}
	return &JUnitFailure{Type: "failure"}
}
