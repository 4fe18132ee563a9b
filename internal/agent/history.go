// internal/agent/history.go
package agent

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// History is the append-only step log of one run. Not safe for concurrent
// use; the loop is the only writer and readers go through Records().
type History struct {
	records []*schemas.StepRecord
}

func NewHistory() *History { return &History{} }

// Append records one completed step.
func (h *History) Append(rec *schemas.StepRecord) {
	h.records = append(h.records, rec)
}

// Len returns the number of recorded steps.
func (h *History) Len() int { return len(h.records) }

// Records returns the full step log.
func (h *History) Records() []*schemas.StepRecord { return h.records }

// Description renders the most recent steps in the compact form the oracle
// reads back. lookback <= 0 means everything.
func (h *History) Description(lookback int) string {
	if len(h.records) == 0 {
		return "No previous actions"
	}

	records := h.records
	if lookback > 0 && len(records) > lookback {
		records = records[len(records)-lookback:]
	}

	var sb strings.Builder
	for i, rec := range records {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "<step_%d>\n", rec.Step)
		if rec.Output != nil {
			if rec.Output.EvaluationPreviousGoal != "" {
				fmt.Fprintf(&sb, "Evaluation: %s\n", rec.Output.EvaluationPreviousGoal)
			}
			if rec.Output.Memory != "" {
				fmt.Fprintf(&sb, "Memory: %s\n", rec.Output.Memory)
			}
			if rec.Output.NextGoal != "" {
				fmt.Fprintf(&sb, "Goal: %s\n", rec.Output.NextGoal)
			}
		}
		for j, result := range rec.Results {
			name := "action"
			if rec.Output != nil && j < len(rec.Output.Action) {
				name = rec.Output.Action[j].Name
			}
			switch {
			case result.HasError():
				fmt.Fprintf(&sb, "Action %s failed: %s\n", name, result.Error)
			case result.MemoryHint != "":
				fmt.Fprintf(&sb, "Action %s: %s\n", name, result.MemoryHint)
			case result.ExtractedContent != "":
				fmt.Fprintf(&sb, "Action %s: %s\n", name, firstLine(result.ExtractedContent))
			default:
				fmt.Fprintf(&sb, "Action %s: ok\n", name)
			}
		}
		fmt.Fprintf(&sb, "</step_%d>", rec.Step)
	}
	return sb.String()
}

// FinalResult returns the most recent non-empty extracted content, the text
// used when the run is forced to complete at the step budget.
func (h *History) FinalResult() string {
	for i := len(h.records) - 1; i >= 0; i-- {
		results := h.records[i].Results
		for j := len(results) - 1; j >= 0; j-- {
			if results[j].ExtractedContent != "" && !results[j].HasError() {
				return results[j].ExtractedContent
			}
		}
	}
	return ""
}

// firstLine keeps multi-line extraction results from flooding the history
// rendering.
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx] + " ..."
	}
	return s
}
