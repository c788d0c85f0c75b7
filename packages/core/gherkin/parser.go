package gherkin

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/featspec/packages/core/model"
)

// ParseError describes a syntax problem at a specific line of a feature file.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// ParseFile reads a feature file and builds the artifact tree. Scenario
// outlines are expanded into one concrete sub-scenario per example row, and
// background steps are copied to the front of every scenario, so the result
// is directly runnable.
//
// The language parameter selects the keyword set; only "en" is bundled.
func ParseFile(path string, language string) (*model.Feature, error) {
	if language != "" && language != "en" {
		return nil, &ParseError{Path: path, Line: 0, Msg: "unsupported language: " + language}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening feature file: %w", err)
	}
	defer f.Close()

	p := &parser{path: path}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		p.line++
		if err := p.consume(strings.TrimSpace(scanner.Text())); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading feature file: %w", err)
	}
	return p.finish()
}

// Parse builds a feature from in-memory text. The path is recorded as the
// feature's filename for reporting.
func Parse(text, path string) (*model.Feature, error) {
	p := &parser{path: path}
	for _, raw := range strings.Split(text, "\n") {
		p.line++
		if err := p.consume(strings.TrimSpace(raw)); err != nil {
			return nil, err
		}
	}
	return p.finish()
}

type parser struct {
	path string
	line int

	feature *model.Feature

	background []*model.Step
	inBackground bool

	scenario *model.Scenario // scenario or outline currently being filled
	examples *exampleBlock

	pendingTags []string
	lastKind    model.StepKind
}

type exampleBlock struct {
	headings []string
	rows     [][]string
}

func (p *parser) consume(line string) error {
	switch {
	case line == "" || strings.HasPrefix(line, "#"):
		return nil

	case strings.HasPrefix(line, "@"):
		p.pendingTags = append(p.pendingTags, parseTags(line)...)
		return nil

	case strings.HasPrefix(line, "Feature:"):
		if p.feature != nil {
			return p.errf("multiple Feature sections")
		}
		p.feature = &model.Feature{
			Name:     strings.TrimSpace(strings.TrimPrefix(line, "Feature:")),
			Filename: p.path,
			Tags:     p.takeTags(),
		}
		return nil

	case strings.HasPrefix(line, "Background:"):
		if p.feature == nil {
			return p.errf("Background before Feature")
		}
		if err := p.closeScenario(); err != nil {
			return err
		}
		p.inBackground = true
		return nil

	case strings.HasPrefix(line, "Scenario Outline:"), strings.HasPrefix(line, "Scenario Template:"):
		name := strings.TrimSpace(line[strings.Index(line, ":")+1:])
		return p.openScenario(name, model.ScenarioOutline)

	case strings.HasPrefix(line, "Scenario:"):
		return p.openScenario(strings.TrimSpace(strings.TrimPrefix(line, "Scenario:")), model.ScenarioPlain)

	case strings.HasPrefix(line, "Examples:"), strings.HasPrefix(line, "Scenarios:"):
		if p.scenario == nil || p.scenario.Kind != model.ScenarioOutline {
			return p.errf("Examples outside a Scenario Outline")
		}
		p.examples = &exampleBlock{}
		return nil

	case strings.HasPrefix(line, "|"):
		return p.consumeTableRow(line)

	default:
		return p.consumeStep(line)
	}
}

func (p *parser) openScenario(name string, kind model.ScenarioKind) error {
	if p.feature == nil {
		return p.errf("Scenario before Feature")
	}
	if err := p.closeScenario(); err != nil {
		return err
	}
	p.inBackground = false
	p.scenario = &model.Scenario{
		Name:     name,
		Filename: p.path,
		Line:     p.line,
		Kind:     kind,
		Tags:     p.takeTags(),
		Feature:  p.feature,
	}
	p.lastKind = model.KindGiven
	return nil
}

func (p *parser) consumeStep(line string) error {
	keyword, rest, ok := splitKeyword(line)
	if !ok {
		return p.errf("unparseable line: %q", line)
	}
	kind := p.lastKind
	switch keyword {
	case "Given":
		kind = model.KindGiven
	case "When":
		kind = model.KindWhen
	case "Then":
		kind = model.KindThen
	}
	p.lastKind = kind

	step := &model.Step{Keyword: keyword, Kind: kind, Text: rest, Line: p.line, Status: model.StatusUntested}
	switch {
	case p.inBackground:
		p.background = append(p.background, step)
	case p.scenario != nil:
		p.scenario.Steps = append(p.scenario.Steps, step)
	default:
		return p.errf("step outside a Scenario or Background")
	}
	return nil
}

func (p *parser) consumeTableRow(line string) error {
	if p.examples == nil {
		return p.errf("table row outside an Examples block")
	}
	cells := splitTableRow(line)
	if p.examples.headings == nil {
		p.examples.headings = cells
		return nil
	}
	if len(cells) != len(p.examples.headings) {
		return p.errf("example row has %d cells, expected %d", len(cells), len(p.examples.headings))
	}
	p.examples.rows = append(p.examples.rows, cells)
	return nil
}

// closeScenario finishes the scenario being filled: background steps are
// prepended and outlines are expanded into per-example sub-scenarios.
func (p *parser) closeScenario() error {
	s := p.scenario
	if s == nil {
		return nil
	}
	p.scenario = nil

	if s.Kind == model.ScenarioOutline {
		if p.examples == nil || len(p.examples.rows) == 0 {
			return p.errf("Scenario Outline %q has no examples", s.Name)
		}
		for i, row := range p.examples.rows {
			example := &model.ExampleRow{Headings: p.examples.headings, Values: row}
			sub := &model.Scenario{
				Name:     fmt.Sprintf("%s -- example %d", s.Name, i+1),
				Filename: s.Filename,
				Line:     s.Line,
				Kind:     model.ScenarioPlain,
				Tags:     s.Tags,
				Feature:  p.feature,
				Example:  example,
			}
			sub.Steps = append(copySteps(p.background), expandSteps(s.Steps, example)...)
			s.Scenarios = append(s.Scenarios, sub)
		}
		p.examples = nil
	} else {
		s.Steps = append(copySteps(p.background), s.Steps...)
	}

	p.feature.Scenarios = append(p.feature.Scenarios, s)
	return nil
}

func (p *parser) finish() (*model.Feature, error) {
	if p.feature == nil {
		return nil, &ParseError{Path: p.path, Line: p.line, Msg: "no Feature section found"}
	}
	if err := p.closeScenario(); err != nil {
		return nil, err
	}
	return p.feature, nil
}

func (p *parser) takeTags() []string {
	tags := p.pendingTags
	p.pendingTags = nil
	return tags
}

func (p *parser) errf(format string, args ...any) error {
	return &ParseError{Path: p.path, Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func parseTags(line string) []string {
	var tags []string
	for _, field := range strings.Fields(line) {
		tags = append(tags, strings.TrimPrefix(field, "@"))
	}
	return tags
}

func splitKeyword(line string) (keyword, rest string, ok bool) {
	for _, kw := range []string{"Given", "When", "Then", "And", "But", "*"} {
		if strings.HasPrefix(line, kw+" ") {
			return kw, strings.TrimSpace(line[len(kw):]), true
		}
	}
	return "", "", false
}

func splitTableRow(line string) []string {
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, part := range parts {
		cells[i] = strings.TrimSpace(part)
	}
	return cells
}

func copySteps(steps []*model.Step) []*model.Step {
	out := make([]*model.Step, len(steps))
	for i, st := range steps {
		cp := *st
		out[i] = &cp
	}
	return out
}

func expandSteps(steps []*model.Step, row *model.ExampleRow) []*model.Step {
	out := make([]*model.Step, len(steps))
	for i, st := range steps {
		cp := *st
		for j, h := range row.Headings {
			cp.Text = strings.ReplaceAll(cp.Text, "<"+h+">", row.Values[j])
		}
		out[i] = &cp
	}
	return out
}
