package assetpipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/yacobolo/assetpipe/internal/console"
	"github.com/yacobolo/assetpipe/internal/graph"
)

// OutputFormat selects how a finished run is summarized.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// Report is the JSON summary of one workflow run.
type Report struct {
	Version   string       `json:"version"`
	Timestamp string       `json:"timestamp"`
	Workflow  string       `json:"workflow"`
	Succeeded bool         `json:"succeeded"`
	Duration  float64      `json:"duration_seconds"`
	Summary   ReportCounts `json:"summary"`
	Tasks     []ReportTask `json:"tasks"`
	Error     string       `json:"error,omitempty"`
}

// ReportCounts contains task counts by final state.
type ReportCounts struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ReportTask is one node of the run, in start order. Nodes that never
// started come last.
type ReportTask struct {
	Name     string  `json:"name"`
	State    string  `json:"state"`
	Duration float64 `json:"duration_seconds"`
	Error    string  `json:"error,omitempty"`
}

// NewReport summarizes result, which may be nil when the run failed
// before starting.
func NewReport(name string, result *graph.Result, runErr error) Report {
	r := Report{
		Version:   "1.0",
		Timestamp: time.Now().Format(time.RFC3339),
		Workflow:  name,
		Succeeded: runErr == nil,
		Tasks:     []ReportTask{},
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	if result == nil {
		return r
	}
	r.Duration = result.Durations[result.Root].Seconds()

	seen := make(map[string]bool, len(result.FinalState))
	add := func(name string) {
		seen[name] = true
		state := result.FinalState[name]
		task := ReportTask{
			Name:     name,
			State:    string(state),
			Duration: result.Durations[name].Seconds(),
		}
		if err := result.Errors[name]; err != nil {
			task.Error = err.Error()
		}
		r.Tasks = append(r.Tasks, task)

		r.Summary.Total++
		switch state {
		case graph.StateSucceeded:
			r.Summary.Succeeded++
		case graph.StateFailed:
			r.Summary.Failed++
		default:
			r.Summary.Skipped++
		}
	}

	for _, name := range result.StartOrder {
		add(name)
	}
	var rest []string
	for name := range result.FinalState {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		add(name)
	}
	return r
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// WriteText prints a one-line outcome; per-task progress has already
// been logged while the run was going on.
func WriteText(w io.Writer, r Report, useColors bool) error {
	var err error
	if r.Succeeded {
		_, err = fmt.Fprintf(w, "%s %d tasks in %s\n",
			console.RenderStyle(console.StyleCyan, "✓ "+r.Workflow, useColors),
			r.Summary.Succeeded,
			console.FormatDuration(time.Duration(r.Duration*float64(time.Second))))
		return err
	}
	_, err = fmt.Fprintf(w, "%s %d of %d tasks failed, %d skipped\n",
		console.RenderStyle(console.StyleRed, "✗ "+r.Workflow, useColors),
		r.Summary.Failed, r.Summary.Total, r.Summary.Skipped)
	return err
}

// WriteReport writes r in the requested format.
func WriteReport(w io.Writer, r Report, format OutputFormat, useColors bool) error {
	switch format {
	case OutputJSON:
		return WriteJSON(w, r)
	case OutputText:
		return WriteText(w, r, useColors)
	default:
		return errors.New("unknown output format")
	}
}
