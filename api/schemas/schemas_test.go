package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Test Cases: ActionResult Invariants --

func TestActionResultValidate(t *testing.T) {
	yes := true
	testCases := []struct {
		name    string
		result  ActionResult
		wantErr error
	}{
		{
			name:   "plain content result is valid",
			result: ActionResult{ExtractedContent: "clicked"},
		},
		{
			name:   "terminal result with success is valid",
			result: ActionResult{IsDone: true, Success: &yes},
		},
		{
			name:    "success without is_done is rejected",
			result:  ActionResult{Success: &yes},
			wantErr: ErrSuccessWithoutDone,
		},
		{
			name:   "error result is valid",
			result: ActionResult{Error: "element not found"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.result.Validate()
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestActionResultConstructors(t *testing.T) {
	r := ResultContent("some text")
	require.NoError(t, r.Validate())
	assert.Nil(t, r.Success)
	assert.False(t, r.IsDone)

	r = DoneResult("finished", true)
	require.NoError(t, r.Validate())
	require.NotNil(t, r.Success)
	assert.True(t, *r.Success)
	assert.True(t, r.IsDone)

	r = DoneResult("gave up", false)
	require.NoError(t, r.Validate())
	require.NotNil(t, r.Success)
	assert.False(t, *r.Success)
}

// -- Test Cases: AgentAction Wire Form --

func TestAgentActionUnmarshal(t *testing.T) {
	var out AgentOutput
	payload := `{
		"evaluation_previous_goal": "ok",
		"memory": "on search page",
		"next_goal": "open first result",
		"action": [
			{"click": {"index": 3}},
			{"wait": {"seconds": 2}}
		]
	}`
	require.NoError(t, json.Unmarshal([]byte(payload), &out))
	require.Len(t, out.Action, 2)
	assert.Equal(t, "click", out.Action[0].Name)
	assert.JSONEq(t, `{"index": 3}`, string(out.Action[0].Params))
	assert.Equal(t, "wait", out.Action[1].Name)
}

func TestAgentActionUnmarshalRejectsMultiKey(t *testing.T) {
	var action AgentAction
	err := json.Unmarshal([]byte(`{"click": {}, "wait": {}}`), &action)
	assert.Error(t, err)
}

func TestAgentActionMarshalRoundTrip(t *testing.T) {
	action := AgentAction{Name: "scroll", Params: json.RawMessage(`{"direction":"down"}`)}
	data, err := json.Marshal(action)
	require.NoError(t, err)
	assert.JSONEq(t, `{"scroll": {"direction": "down"}}`, string(data))

	// Empty params still produce a valid object.
	data, err = json.Marshal(AgentAction{Name: "go_back"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"go_back": {}}`, string(data))
}

// -- Test Cases: DOM Helpers --

func TestComputedStylesAllowsVisibility(t *testing.T) {
	testCases := []struct {
		name   string
		styles *ComputedStyles
		want   bool
	}{
		{"nil styles default to visible", nil, true},
		{"display none hides", &ComputedStyles{Display: "none"}, false},
		{"visibility hidden hides", &ComputedStyles{Visibility: "hidden"}, false},
		{"zero opacity hides", &ComputedStyles{Opacity: "0"}, false},
		{"negative opacity hides", &ComputedStyles{Opacity: "-1"}, false},
		{"partial opacity shows", &ComputedStyles{Opacity: "0.5"}, true},
		{"unparseable opacity shows", &ComputedStyles{Opacity: "inherit"}, true},
		{"block display shows", &ComputedStyles{Display: "block"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.styles.AllowsVisibility())
		})
	}
}

func TestAXInfoIsInteractiveRole(t *testing.T) {
	assert.True(t, (&AXInfo{Role: "button"}).IsInteractiveRole())
	assert.True(t, (&AXInfo{Role: "Combobox"}).IsInteractiveRole())
	assert.False(t, (&AXInfo{Role: "presentation"}).IsInteractiveRole())
	assert.False(t, (&AXInfo{}).IsInteractiveRole())
	var nilInfo *AXInfo
	assert.False(t, nilInfo.IsInteractiveRole())
}

func TestDOMRectHelpers(t *testing.T) {
	r := &DOMRect{X: 100, Y: 200, Width: 50, Height: 20}
	assert.InDelta(t, 125.0, r.CenterX(), 1e-9)
	assert.InDelta(t, 210.0, r.CenterY(), 1e-9)
	assert.InDelta(t, 220.0, r.Bottom(), 1e-9)
	assert.True(t, r.HasArea())

	assert.False(t, (&DOMRect{Width: 0, Height: 10}).HasArea())
	var nilRect *DOMRect
	assert.False(t, nilRect.HasArea())
}

func TestTabInfoShortID(t *testing.T) {
	assert.Equal(t, "BEEF", TabInfo{ID: "DEADBEEF"}.ShortID())
	assert.Equal(t, "AB", TabInfo{ID: "AB"}.ShortID())
}
