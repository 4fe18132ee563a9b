package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

func record(step int, output *schemas.AgentOutput, results ...*schemas.ActionResult) *schemas.StepRecord {
	return &schemas.StepRecord{Step: step, Output: output, Results: results}
}

func TestHistoryDescriptionEmpty(t *testing.T) {
	assert.Equal(t, "No previous actions", NewHistory().Description(10))
}

func TestHistoryDescriptionRendering(t *testing.T) {
	h := NewHistory()
	h.Append(record(1,
		&schemas.AgentOutput{
			EvaluationPreviousGoal: "Unknown - first step",
			Memory:                 "Starting on the homepage",
			NextGoal:               "Open the search form",
			Action: []schemas.AgentAction{
				{Name: "click", Params: json.RawMessage(`{"index": 3}`)},
			},
		},
		schemas.ResultContent("Clicked button [3] at (10, 20)"),
	))
	h.Append(record(2,
		&schemas.AgentOutput{NextGoal: "Search"},
		schemas.ResultError(assertableError("element [5] does not exist")),
	))

	text := h.Description(10)

	assert.Contains(t, text, "<step_1>")
	assert.Contains(t, text, "Evaluation: Unknown - first step")
	assert.Contains(t, text, "Memory: Starting on the homepage")
	assert.Contains(t, text, "Goal: Open the search form")
	assert.Contains(t, text, "Action click: Clicked button [3] at (10, 20)")
	assert.Contains(t, text, "</step_1>")
	assert.Contains(t, text, "Action click failed: element [5] does not exist")
}

func TestHistoryDescriptionLookback(t *testing.T) {
	h := NewHistory()
	for i := 1; i <= 5; i++ {
		h.Append(record(i, &schemas.AgentOutput{NextGoal: "g"}))
	}

	text := h.Description(2)

	assert.NotContains(t, text, "<step_3>")
	assert.Contains(t, text, "<step_4>")
	assert.Contains(t, text, "<step_5>")
}

func TestHistoryFinalResult(t *testing.T) {
	h := NewHistory()
	assert.Empty(t, h.FinalResult())

	h.Append(record(1, nil, schemas.ResultContent("first extraction")))
	h.Append(record(2, nil, schemas.ResultError(assertableError("broken"))))

	assert.Equal(t, "first extraction", h.FinalResult())

	h.Append(record(3, nil, schemas.ResultContent("better extraction")))
	assert.Equal(t, "better extraction", h.FinalResult())
}

func TestHistoryMultilineContentCollapsed(t *testing.T) {
	h := NewHistory()
	h.Append(record(1,
		&schemas.AgentOutput{Action: []schemas.AgentAction{{Name: "extract"}}},
		schemas.ResultContent("line one\nline two\nline three"),
	))

	text := h.Description(10)

	assert.Contains(t, text, "Action extract: line one ...")
	assert.NotContains(t, text, "line two")
}

// assertableError keeps the fixtures terse.
type assertableError string

func (e assertableError) Error() string { return string(e) }
