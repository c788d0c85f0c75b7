package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/abdul-hamid-achik/featspec/packages/core/model"
)

// JSONFormatter accumulates the executed artifact tree and emits one JSON
// document on Close.
type JSONFormatter struct {
	writer   io.Writer
	uri      string
	features []*featureJSON
	current  *featureJSON
	scenario *scenarioJSON
}

type featureJSON struct {
	Name      string          `json:"name"`
	Filename  string          `json:"filename"`
	Tags      []string        `json:"tags,omitempty"`
	Scenarios []*scenarioJSON `json:"scenarios"`
	Status    string          `json:"status"`
}

type scenarioJSON struct {
	Name   string      `json:"name"`
	Tags   []string    `json:"tags,omitempty"`
	Steps  []*stepJSON `json:"steps"`
	Status string      `json:"status"`
}

type stepJSON struct {
	Keyword    string `json:"keyword"`
	Text       string `json:"text"`
	Status     string `json:"status"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// NewJSONFormatter writes the report document to w.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

func (f *JSONFormatter) URI(path string) {
	f.uri = path
}

func (f *JSONFormatter) Feature(feat *model.Feature) {
	f.current = &featureJSON{
		Name:     feat.Name,
		Filename: feat.Filename,
		Tags:     feat.Tags,
	}
	f.features = append(f.features, f.current)
}

func (f *JSONFormatter) Scenario(s *model.Scenario) {
	if f.current == nil {
		return
	}
	f.scenario = &scenarioJSON{Name: s.Name, Tags: s.Tags}
	f.current.Scenarios = append(f.current.Scenarios, f.scenario)
}

func (f *JSONFormatter) Step(st *model.Step) {
	if f.scenario == nil {
		return
	}
	sj := &stepJSON{
		Keyword:    st.Keyword,
		Text:       st.Text,
		Status:     string(st.Status),
		DurationMs: st.Duration.Milliseconds(),
	}
	if st.Error != nil {
		sj.Error = st.Error.Error()
	}
	f.scenario.Steps = append(f.scenario.Steps, sj)
}

// Close resolves statuses from the recorded steps and writes the document.
func (f *JSONFormatter) Close() error {
	for _, feat := range f.features {
		featStatus := "skipped"
		for _, s := range feat.Scenarios {
			s.Status = scenarioStatus(s.Steps)
			featStatus = promote(featStatus, s.Status)
		}
		feat.Status = featStatus
	}
	doc := map[string]any{"features": f.features}
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("writing json report: %w", err)
	}
	return nil
}

func scenarioStatus(steps []*stepJSON) string {
	status := "skipped"
	for _, st := range steps {
		status = promote(status, st.Status)
	}
	return status
}

// promote folds statuses with priority failed > undefined > passed > skipped.
func promote(current, next string) string {
	rank := map[string]int{"skipped": 0, "untested": 0, "passed": 1, "undefined": 2, "failed": 3}
	if rank[next] > rank[current] {
		return next
	}
	return current
}

// ReportSchema is the JSON Schema the report document conforms to.
const ReportSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["features"],
  "properties": {
    "features": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "filename", "scenarios", "status"],
        "properties": {
          "name": {"type": "string"},
          "filename": {"type": "string"},
          "tags": {"type": "array", "items": {"type": "string"}},
          "status": {"enum": ["passed", "failed", "skipped", "undefined"]},
          "scenarios": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "steps", "status"],
              "properties": {
                "name": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "status": {"enum": ["passed", "failed", "skipped", "undefined"]},
                "steps": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["keyword", "text", "status"],
                    "properties": {
                      "keyword": {"type": "string"},
                      "text": {"type": "string"},
                      "status": {"enum": ["passed", "failed", "skipped", "undefined", "untested"]},
                      "durationMs": {"type": "integer"},
                      "error": {"type": "string"}
                    }
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`
