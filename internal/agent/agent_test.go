package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
	"github.com/xkilldash9x/softlight-cli/internal/config"
	"github.com/xkilldash9x/softlight-cli/internal/mocks"
)

// -- Test Fixtures --

func pageState() *schemas.DOMState {
	return &schemas.DOMState{
		URL:   "https://example.com",
		Title: "Example",
		Nodes: map[int64]*schemas.DOMNode{},
		SelectorMap: map[int]*schemas.SelectorEntry{
			1: {Index: 1, NodeID: 2, BackendID: 100, TagName: "button", Center: schemas.Point{X: 10, Y: 10}},
		},
		Geometry: schemas.PageGeometry{ViewportWidth: 1280, ViewportHeight: 720},
	}
}

func oracleOutput(acts ...schemas.AgentAction) *schemas.AgentOutput {
	return &schemas.AgentOutput{
		EvaluationPreviousGoal: "Unknown",
		Memory:                 "m",
		NextGoal:               "g",
		Action:                 acts,
	}
}

func doneAction(text string, success bool) schemas.AgentAction {
	params, _ := json.Marshal(map[string]any{"text": text, "success": success})
	return schemas.AgentAction{Name: "done", Params: params}
}

func testConfig() config.AgentConfig {
	return config.AgentConfig{
		MaxSteps:          10,
		MaxActionsPerStep: 4,
		MaxFailures:       3,
		HistoryLookback:   10,
		StallWindow:       10,
		StallThreshold:    2,
		PausePollInterval: 5 * time.Millisecond,
	}
}

func newTestAgent(browser schemas.BrowserController, oracle schemas.Oracle, cfg config.AgentConfig) *Agent {
	return New("test task", browser, oracle, cfg, zap.NewNop())
}

// -- Test Cases: Terminal Outcomes --

func TestRunCompletesWithDone(t *testing.T) {
	browser := &mocks.MockBrowserController{}
	browser.On("GetState", mock.Anything, true).Return(pageState(), nil)

	oracle := &mocks.MockOracle{}
	oracle.On("Decide", mock.Anything, mock.Anything).Return(oracleOutput(doneAction("the answer", true)), nil).Once()

	result, err := newTestAgent(browser, oracle, testConfig()).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, schemas.RunStatusDone, result.Status)
	assert.True(t, result.Success)
	assert.Equal(t, "the answer", result.FinalResult)
	assert.Equal(t, 1, result.Steps)
	oracle.AssertExpectations(t)
}

func TestRunFailureBudgetExhausted(t *testing.T) {
	browser := &mocks.MockBrowserController{}
	browser.On("GetState", mock.Anything, true).Return(pageState(), nil)

	oracle := &mocks.MockOracle{}
	oracle.On("Decide", mock.Anything, mock.Anything).Return(nil, errors.New("model overloaded"))

	result, err := newTestAgent(browser, oracle, testConfig()).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, schemas.RunStatusDone, result.Status)
	assert.False(t, result.Success)
	assert.Contains(t, result.FinalResult, "3 consecutive step failures")
	oracle.AssertNumberOfCalls(t, "Decide", 3)
}

func TestRunForcedCompletionFallbackText(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSteps = 2
	cfg.StallThreshold = 5

	browser := &mocks.MockBrowserController{}
	browser.On("GetState", mock.Anything, true).Return(pageState(), nil)

	oracle := &mocks.MockOracle{}
	oracle.On("Decide", mock.Anything, mock.Anything).
		Return(oracleOutput(schemas.AgentAction{Name: "wait", Params: json.RawMessage(`{"seconds": 0.01}`)}), nil)

	result, err := newTestAgent(browser, oracle, cfg).Run(context.Background())

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, forcedCompletionText, result.FinalResult)
	assert.Equal(t, 2, result.Steps)
}

func TestRunForcedCompletionUsesExtractedContent(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSteps = 1

	browser := &mocks.MockBrowserController{}
	browser.On("GetState", mock.Anything, true).Return(pageState(), nil)
	browser.On("ExtractReadableText", mock.Anything).Return("price is 42 euro", nil)

	oracle := &mocks.MockOracle{}
	oracle.On("Decide", mock.Anything, mock.Anything).
		Return(oracleOutput(schemas.AgentAction{Name: "extract", Params: json.RawMessage(`{}`)}), nil)

	result, err := newTestAgent(browser, oracle, cfg).Run(context.Background())

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "price is 42 euro", result.FinalResult)
}

// -- Test Cases: Step Mechanics --

func TestRunActionErrorShortCircuitsStep(t *testing.T) {
	browser := &mocks.MockBrowserController{}
	browser.On("GetState", mock.Anything, true).Return(pageState(), nil)

	oracle := &mocks.MockOracle{}
	// First step: a stale index followed by a wait that must never run.
	oracle.On("Decide", mock.Anything, mock.Anything).Return(oracleOutput(
		schemas.AgentAction{Name: "click", Params: json.RawMessage(`{"index": 99}`)},
		schemas.AgentAction{Name: "wait", Params: json.RawMessage(`{"seconds": 10}`)},
	), nil).Once()
	oracle.On("Decide", mock.Anything, mock.Anything).Return(oracleOutput(doneAction("recovered", true)), nil).Once()

	agent := newTestAgent(browser, oracle, testConfig())
	started := time.Now()
	result, err := agent.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Less(t, time.Since(started), 5*time.Second, "the 10s wait must have been skipped")

	records := agent.History().Records()
	require.Len(t, records, 2)
	require.Len(t, records[0].Results, 1)
	assert.Contains(t, records[0].Results[0].Error, "element [99] does not exist")
}

func TestRunRefreshesStateBetweenMutatingActions(t *testing.T) {
	browser := &mocks.MockBrowserController{}
	browser.On("GetState", mock.Anything, true).Return(pageState(), nil)
	browser.On("ClickElement", mock.Anything, mock.Anything).Return(schemas.Point{X: 10, Y: 10}, nil)
	browser.On("Scroll", mock.Anything, schemas.ScrollDown, 1.0, (*schemas.SelectorEntry)(nil)).Return(nil)

	oracle := &mocks.MockOracle{}
	oracle.On("Decide", mock.Anything, mock.Anything).Return(oracleOutput(
		schemas.AgentAction{Name: "click", Params: json.RawMessage(`{"index": 1}`)},
		schemas.AgentAction{Name: "scroll", Params: json.RawMessage(`{"direction": "down"}`)},
	), nil).Once()
	oracle.On("Decide", mock.Anything, mock.Anything).Return(oracleOutput(doneAction("ok", true)), nil).Once()

	_, err := newTestAgent(browser, oracle, testConfig()).Run(context.Background())

	require.NoError(t, err)
	// Step 1 observes once and refreshes once after the click; step 2
	// observes once more.
	browser.AssertNumberOfCalls(t, "GetState", 3)
	browser.AssertCalled(t, "Scroll", mock.Anything, schemas.ScrollDown, 1.0, (*schemas.SelectorEntry)(nil))
}

func TestRunScreenshotRequestCarriesToNextStep(t *testing.T) {
	browser := &mocks.MockBrowserController{}
	browser.On("GetState", mock.Anything, true).Return(pageState(), nil)
	browser.On("Screenshot", mock.Anything).Return("cGluZw==", nil)

	var second schemas.DecisionRequest
	oracle := &mocks.MockOracle{}
	oracle.On("Decide", mock.Anything, mock.Anything).
		Return(oracleOutput(schemas.AgentAction{Name: "screenshot", Params: json.RawMessage(`{}`)}), nil).Once()
	oracle.On("Decide", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { second = args.Get(1).(schemas.DecisionRequest) }).
		Return(oracleOutput(doneAction("ok", true)), nil).Once()

	_, err := newTestAgent(browser, oracle, testConfig()).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "cGluZw==", second.Screenshot)
	browser.AssertNumberOfCalls(t, "Screenshot", 1)
}

func TestStepByStepEmbedding(t *testing.T) {
	browser := &mocks.MockBrowserController{}
	browser.On("GetState", mock.Anything, true).Return(pageState(), nil)

	oracle := &mocks.MockOracle{}
	oracle.On("Decide", mock.Anything, mock.Anything).
		Return(oracleOutput(schemas.AgentAction{Name: "wait", Params: json.RawMessage(`{"seconds": 0.01}`)}), nil).Once()
	oracle.On("Decide", mock.Anything, mock.Anything).Return(oracleOutput(doneAction("stepped", true)), nil).Once()

	agent := newTestAgent(browser, oracle, testConfig())

	first, err := agent.Step(context.Background())
	require.NoError(t, err)
	assert.Nil(t, first, "a non-terminal step returns no result")
	assert.Equal(t, schemas.RunStatusRunning, agent.Status())
	assert.Equal(t, 1, agent.History().Len())

	second, err := agent.Step(context.Background())
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.True(t, second.Success)
	assert.Equal(t, "stepped", second.FinalResult)
	assert.Equal(t, 2, second.Steps)
}

// -- Test Cases: Stall Handling --

func TestRunStallEscapeThenAbort(t *testing.T) {
	browser := &mocks.MockBrowserController{}
	browser.On("GetState", mock.Anything, true).Return(pageState(), nil)
	browser.On("ClickElement", mock.Anything, mock.Anything).Return(schemas.Point{X: 10, Y: 10}, nil)
	browser.On("SendKeys", mock.Anything, "Escape").Return(nil)

	oracle := &mocks.MockOracle{}
	oracle.On("Decide", mock.Anything, mock.Anything).
		Return(oracleOutput(schemas.AgentAction{Name: "click", Params: json.RawMessage(`{"index": 1}`)}), nil)

	result, err := newTestAgent(browser, oracle, testConfig()).Run(context.Background())

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.FinalResult, "repeated 4 times")
	// Escape fires at repeat counts 2 and 3; count 4 aborts instead.
	browser.AssertNumberOfCalls(t, "SendKeys", 2)
	browser.AssertNumberOfCalls(t, "ClickElement", 4)
}

// -- Test Cases: Control --

func TestRunPauseAndStop(t *testing.T) {
	browser := &mocks.MockBrowserController{}
	oracle := &mocks.MockOracle{}

	agent := newTestAgent(browser, oracle, testConfig())
	agent.Pause()

	resultCh := make(chan *schemas.RunResult, 1)
	go func() {
		result, _ := agent.Run(context.Background())
		resultCh <- result
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, schemas.RunStatusPaused, agent.Status())

	agent.Stop()
	select {
	case result := <-resultCh:
		assert.Equal(t, schemas.RunStatusStopped, result.Status)
		assert.False(t, result.Success)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	browser.AssertNotCalled(t, "GetState")
}

func TestRunContextCancellation(t *testing.T) {
	browser := &mocks.MockBrowserController{}
	oracle := &mocks.MockOracle{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestAgent(browser, oracle, testConfig()).Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, schemas.RunStatusStopped, result.Status)
	assert.False(t, result.Success)
	assert.Contains(t, result.FinalResult, "Run cancelled")
	browser.AssertNotCalled(t, "GetState")
}
