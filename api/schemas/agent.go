package schemas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// -- Oracle Decision Schemas --

// AgentAction is one proposed action on the wire: a single-key object whose
// key is the action name and whose value is the parameter object, e.g.
// {"click": {"index": 3}}.
type AgentAction struct {
	Name   string
	Params json.RawMessage
}

// UnmarshalJSON decodes the single-key object form.
func (a *AgentAction) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("action must be an object with exactly one key, got %d", len(m))
	}
	for name, params := range m {
		a.Name = name
		a.Params = params
	}
	return nil
}

// MarshalJSON re-encodes the single-key object form.
func (a AgentAction) MarshalJSON() ([]byte, error) {
	params := a.Params
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	return json.Marshal(map[string]json.RawMessage{a.Name: params})
}

// AgentOutput is the oracle's structured response for one step: the
// reasoning fields plus an ordered action list.
type AgentOutput struct {
	Thinking               string        `json:"thinking,omitempty"`
	EvaluationPreviousGoal string        `json:"evaluation_previous_goal"`
	Memory                 string        `json:"memory"`
	NextGoal               string        `json:"next_goal"`
	Action                 []AgentAction `json:"action"`
}

// DecisionRequest is everything the oracle sees for one step.
type DecisionRequest struct {
	Task         string `json:"task"`
	BrowserState string `json:"browser_state"`
	HistoryText  string `json:"history_text"`
	Step         int    `json:"step"`
	MaxSteps     int    `json:"max_steps"`
	// Screenshot is base64 PNG data, attached only when vision is enabled
	// or a prior action requested it.
	Screenshot string `json:"screenshot,omitempty"`
}

// Oracle is the decision-making collaborator: it maps an observation plus
// rolling history to an ordered action list. An LLM in practice, but any
// policy satisfying the contract works.
type Oracle interface {
	Decide(ctx context.Context, req DecisionRequest) (*AgentOutput, error)
}

// -- Action Result Schemas --

// ErrSuccessWithoutDone rejects results that assert the overall task outcome
// without being terminal.
var ErrSuccessWithoutDone = errors.New("success may only be set on a terminal (is_done) result")

// ActionResult is the normalized outcome of one executed action. Success is
// tri-state: nil (unknown) for in-progress actions, and may only be non-nil
// when IsDone is true.
type ActionResult struct {
	IsDone            bool   `json:"is_done,omitempty"`
	Success           *bool  `json:"success,omitempty"`
	ExtractedContent  string `json:"extracted_content,omitempty"`
	Error             string `json:"error,omitempty"`
	MemoryHint        string `json:"long_term_memory,omitempty"`
	RequestScreenshot bool   `json:"include_screenshot,omitempty"`
}

// Validate enforces the success/is_done invariant.
func (r *ActionResult) Validate() error {
	if r.Success != nil && !r.IsDone {
		return ErrSuccessWithoutDone
	}
	return nil
}

// HasError reports whether the action failed.
func (r *ActionResult) HasError() bool { return r.Error != "" }

// ResultContent builds an in-progress result carrying extracted text.
func ResultContent(text string) *ActionResult {
	return &ActionResult{ExtractedContent: text}
}

// ResultWithMemory builds an in-progress result whose content should also be
// retained in long-term context.
func ResultWithMemory(text, memory string) *ActionResult {
	return &ActionResult{ExtractedContent: text, MemoryHint: memory}
}

// ResultError builds a failed in-progress result.
func ResultError(err error) *ActionResult {
	return &ActionResult{Error: err.Error()}
}

// DoneResult builds the terminal result. It is the only constructor allowed
// to set Success.
func DoneResult(text string, success bool) *ActionResult {
	return &ActionResult{IsDone: true, Success: &success, ExtractedContent: text}
}

// -- Run History Schemas --

// StepRecord is one appended history entry: the oracle output, the per-action
// results, the page identity at step start, and timing.
type StepRecord struct {
	Step      int             `json:"step"`
	URL       string          `json:"url,omitempty"`
	Title     string          `json:"title,omitempty"`
	Output    *AgentOutput    `json:"output,omitempty"`
	Results   []*ActionResult `json:"results,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
}

// RunStatus is the agent state machine's externally visible state.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusPaused  RunStatus = "paused"
	RunStatusStopped RunStatus = "stopped"
	RunStatusDone    RunStatus = "done"
)

// RunResult is the terminal report of a full run. The loop never exits
// silently; callers always receive one of these.
type RunResult struct {
	RunID       string        `json:"run_id"`
	Task        string        `json:"task"`
	Status      RunStatus     `json:"status"`
	Success     bool          `json:"success"`
	Steps       int           `json:"steps"`
	FinalResult string        `json:"final_result,omitempty"`
	History     []*StepRecord `json:"history,omitempty"`
}
