package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decision struct {
	NextGoal string   `json:"next_goal"`
	Action   []string `json:"action"`
}

// -- Test Cases: ParseJSONResponse --

func TestParseJSONResponse(t *testing.T) {
	testCases := []struct {
		name     string
		response string
		wantGoal string
		wantErr  bool
	}{
		{
			name:     "bare JSON object",
			response: `{"next_goal": "click login", "action": ["click"]}`,
			wantGoal: "click login",
		},
		{
			name:     "fenced json block",
			response: "```json\n{\"next_goal\": \"fenced\", \"action\": []}\n```",
			wantGoal: "fenced",
		},
		{
			name:     "fence without language tag",
			response: "```\n{\"next_goal\": \"plain fence\", \"action\": []}\n```",
			wantGoal: "plain fence",
		},
		{
			name:     "conversational wrapper",
			response: `Sure, here is the plan: {"next_goal": "embedded", "action": []} Hope that helps!`,
			wantGoal: "embedded",
		},
		{
			name:     "not JSON at all",
			response: "I cannot help with that.",
			wantErr:  true,
		},
		{
			name:     "malformed JSON",
			response: `{"next_goal": "broken", `,
			wantErr:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseJSONResponse[decision](tc.response)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantGoal, got.NextGoal)
		})
	}
}

func TestParseJSONResponseArray(t *testing.T) {
	got, err := ParseJSONResponse[[]int]("```json\n[1, 2, 3]\n```")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, *got)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 10))
	assert.Equal(t, "ab...", truncateString("abcdef", 2))
	assert.Equal(t, "", truncateString("abc", 0))
}
