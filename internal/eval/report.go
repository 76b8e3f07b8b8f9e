package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// AssertionResult records one assertion outcome.
type AssertionResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// CaseResult records one case outcome.
type CaseResult struct {
	Name       string            `json:"name"`
	Passed     bool              `json:"passed"`
	Error      string            `json:"error,omitempty"`
	Assertions []AssertionResult `json:"assertions,omitempty"`
	Duration   time.Duration     `json:"duration_ms"`
}

// Report is the suite outcome.
type Report struct {
	Suite    string        `json:"suite"`
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration_ms"`
	Cases    []CaseResult  `json:"cases"`
}

// Reporter renders a report to a writer.
type Reporter interface {
	Report(w io.Writer, report *Report) error
}

// ConsoleReporter renders a human-readable summary.
type ConsoleReporter struct{}

func (ConsoleReporter) Report(w io.Writer, report *Report) error {
	if _, err := fmt.Fprintf(w, "suite %s: %d/%d passed (%s)\n",
		report.Suite, report.Passed, report.Total, report.Duration.Round(time.Millisecond)); err != nil {
		return err
	}
	for _, c := range report.Cases {
		mark := "PASS"
		if !c.Passed {
			mark = "FAIL"
		}
		if _, err := fmt.Fprintf(w, "  %s %s (%s)\n", mark, c.Name, c.Duration.Round(time.Millisecond)); err != nil {
			return err
		}
		if c.Error != "" {
			if _, err := fmt.Fprintf(w, "       error: %s\n", c.Error); err != nil {
				return err
			}
		}
		for _, a := range c.Assertions {
			if !a.Passed {
				if _, err := fmt.Fprintf(w, "       %s: %s\n", a.Name, a.Message); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// jsonReport mirrors Report with durations in milliseconds, keeping the
// document schema stable across Go versions.
type jsonReport struct {
	Suite    string     `json:"suite"`
	Total    int        `json:"total"`
	Passed   int        `json:"passed"`
	Failed   int        `json:"failed"`
	Duration int64      `json:"duration_ms"`
	Cases    []jsonCase `json:"cases"`
}

type jsonCase struct {
	Name       string            `json:"name"`
	Passed     bool              `json:"passed"`
	Error      string            `json:"error,omitempty"`
	Assertions []AssertionResult `json:"assertions,omitempty"`
	Duration   int64             `json:"duration_ms"`
}

// JSONReporter renders the stable JSON document.
type JSONReporter struct {
	// Indent pretty-prints the document when set.
	Indent bool
}

func (r JSONReporter) Report(w io.Writer, report *Report) error {
	doc := jsonReport{
		Suite:    report.Suite,
		Total:    report.Total,
		Passed:   report.Passed,
		Failed:   report.Failed,
		Duration: report.Duration.Milliseconds(),
		Cases:    make([]jsonCase, len(report.Cases)),
	}
	for i, c := range report.Cases {
		doc.Cases[i] = jsonCase{
			Name:       c.Name,
			Passed:     c.Passed,
			Error:      c.Error,
			Assertions: c.Assertions,
			Duration:   c.Duration.Milliseconds(),
		}
	}
	enc := json.NewEncoder(w)
	if r.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}
