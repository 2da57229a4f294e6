// Package locator attributes a failed execution to source lines.
//
// Given the submitted code and the traceback it produced, Locate returns
// the 1-based line numbers most likely responsible. It asks the generative
// model first and falls back to parsing the traceback itself, so an
// unreachable, rate-limited or confused model only costs accuracy, never
// availability. Locate never returns an error and never panics.
package locator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/sakif/codeask/internal/llm"
	"github.com/sakif/codeask/internal/metrics"
)

// Attribution sources, used as metric labels and in debug logs.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
	SourceDefault  = "default"
)

// analysis is the JSON shape the model must answer with.
type analysis struct {
	ErrorLines []int `json:"error_lines"`
}

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"error_lines": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeInteger},
		},
	},
	Required: []string{"error_lines"},
}

const promptTemplate = `Return ONLY the line number where the Python error occurred.

Rules:
- Only ONE number
- Line numbers are 1-based and refer to the CODE below
- JSON format: {"error_lines": [number]}

CODE:
%s

TRACEBACK:
%s
`

// Locator finds the lines responsible for a failure.
type Locator struct {
	gen     llm.Generator
	model   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Locator. gen may be nil, in which case every call uses the
// traceback fallback. m may be nil.
func New(gen llm.Generator, model string, logger *slog.Logger, m *metrics.Metrics) *Locator {
	return &Locator{
		gen:     gen,
		model:   model,
		logger:  logger,
		metrics: m,
	}
}

// Locate returns a non-empty list of 1-based line numbers.
func (l *Locator) Locate(ctx context.Context, code, trace string) []int {
	lines, err := l.askModel(ctx, code, trace)
	if err == nil {
		l.metrics.RecordLocator(SourceModel)
		return lines
	}

	l.logger.Debug("model line attribution failed, parsing traceback",
		slog.String("error", err.Error()),
	)

	if line, ok := lastFrameLine(trace); ok {
		l.metrics.RecordLocator(SourceFallback)
		return []int{line}
	}
	l.metrics.RecordLocator(SourceDefault)
	return []int{1}
}

// askModel runs the primary path. Any panic inside the model client is
// turned into an error so the fallback still runs.
func (l *Locator) askModel(ctx context.Context, code, trace string) (lines []int, err error) {
	if l.gen == nil {
		return nil, errors.New("no generator configured")
	}

	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("generator panicked: %v", r)
		}
	}()

	text, err := l.gen.Generate(ctx, llm.Request{
		Model:  l.model,
		Prompt: fmt.Sprintf(promptTemplate, code, trace),
		JSON:   true,
		Schema: analysisSchema,
	})
	if err != nil {
		return nil, err
	}

	lines, err = parseAnalysis(text)
	if err != nil {
		return nil, err
	}
	if err := validateLines(lines, countLines(code)); err != nil {
		return nil, err
	}
	return lines, nil
}

// parseAnalysis decodes {"error_lines": [...]} strictly. Markdown code
// fences around the JSON are tolerated; anything else is not.
func parseAnalysis(text string) ([]int, error) {
	body := stripFences(text)

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()

	var a analysis
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding model response: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decoding model response: trailing data after JSON object")
	}
	return a.ErrorLines, nil
}

// validateLines rejects empty lists and lines outside the submitted code.
// maxLine <= 0 means the code is empty and only the lower bound applies.
func validateLines(lines []int, maxLine int) error {
	if len(lines) == 0 {
		return errors.New("model returned no error lines")
	}
	for _, n := range lines {
		if n < 1 {
			return fmt.Errorf("model returned invalid line %d", n)
		}
		if maxLine > 0 && n > maxLine {
			return fmt.Errorf("model returned line %d beyond end of code (%d lines)", n, maxLine)
		}
	}
	return nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop an optional language tag such as ```json
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func countLines(code string) int {
	if code == "" {
		return 0
	}
	return strings.Count(strings.TrimRight(code, "\n"), "\n") + 1
}
