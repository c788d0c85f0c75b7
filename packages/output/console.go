package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/abdul-hamid-achik/featspec/packages/core/model"
	"github.com/fatih/color"
)

// ConsoleFormatter renders features as an indented, optionally colored text
// stream, one line per step with its outcome.
type ConsoleFormatter struct {
	writer  io.Writer
	colored bool
}

// NewConsoleFormatter writes to w; colored selects ANSI-colored symbols.
func NewConsoleFormatter(w io.Writer, colored bool) *ConsoleFormatter {
	return &ConsoleFormatter{writer: w, colored: colored}
}

func (f *ConsoleFormatter) URI(path string) {
	fmt.Fprintf(f.writer, "# %s\n", path)
}

func (f *ConsoleFormatter) Feature(feat *model.Feature) {
	if len(feat.Tags) > 0 {
		fmt.Fprintf(f.writer, "%s\n", tagLine(feat.Tags))
	}
	fmt.Fprintf(f.writer, "Feature: %s\n", feat.Name)
}

func (f *ConsoleFormatter) Scenario(s *model.Scenario) {
	fmt.Fprintf(f.writer, "\n")
	if len(s.Tags) > 0 {
		fmt.Fprintf(f.writer, "  %s\n", tagLine(s.Tags))
	}
	fmt.Fprintf(f.writer, "  Scenario: %s\n", s.Name)
}

func (f *ConsoleFormatter) Step(st *model.Step) {
	symbol := f.statusSymbol(st.Status)
	fmt.Fprintf(f.writer, "    %s %s %s", symbol, st.Keyword, st.Text)
	if st.Status == model.StatusPassed && st.Duration > 0 {
		fmt.Fprintf(f.writer, " (%dms)", st.Duration.Milliseconds())
	}
	if st.Error != nil {
		fmt.Fprintf(f.writer, "\n      %s", st.Error)
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) Close() error {
	return nil
}

func (f *ConsoleFormatter) statusSymbol(st model.Status) string {
	if !f.colored {
		switch st {
		case model.StatusPassed:
			return "."
		case model.StatusFailed:
			return "x"
		case model.StatusUndefined:
			return "?"
		default:
			return "-"
		}
	}
	switch st {
	case model.StatusPassed:
		return color.New(color.FgGreen).Sprint("✓")
	case model.StatusFailed:
		return color.New(color.FgRed).Sprint("✗")
	case model.StatusUndefined:
		return color.New(color.FgYellow).Sprint("?")
	default:
		return color.New(color.FgCyan).Sprint("-")
	}
}

func tagLine(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "@" + t
	}
	return strings.Join(parts, " ")
}
