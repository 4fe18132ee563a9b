// internal/agent/prompts.go
package agent

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
	"github.com/xkilldash9x/softlight-cli/internal/actions"
)

// generateSystemPrompt constructs the instruction set for the oracle: the
// persona, the response contract, and the action catalog.
func generateSystemPrompt(registry *actions.Registry, maxActions int) string {
	basePrompt := `You are an autonomous browser agent. You are given a task and, each step, an
observation of the current page: its interactive elements as an indexed list,
page statistics, scroll position, and the open tabs. You decide the next
actions to move the task forward.`

	responseContract := fmt.Sprintf(`

Respond with a single JSON object, no markdown fences, in exactly this shape:
{
  "thinking": "brief reasoning about the current state",
  "evaluation_previous_goal": "did the last goal succeed, fail, or remain unknown, and why",
  "memory": "facts worth carrying forward (results found, pages visited, progress)",
  "next_goal": "what the next actions should achieve",
  "action": [{"action_name": {"param": "value"}}]
}

The action list runs in order and may contain at most %d actions. Actions
after a page-changing one are re-planned on the next step, so prefer short
lists. Element indices like [3] refer to the numbered elements in the
observation; indices change between steps, always use the latest observation.
Elements marked with * are new since the previous step.`, maxActions)

	actionCatalog := "\n\nAvailable actions:\n" + registry.Describe()

	guidance := `

Rules:
- If the page does not contain what you need, scroll or navigate; do not
  invent element indices.
- If an action fails, read the error, adjust, and try a different approach
  rather than repeating the identical action.
- Use extract when you need page content to answer the task.
- When the task is complete (or impossible), call done with the final answer
  in text and success set accordingly. done must be the only action in its
  list.`

	return basePrompt + responseContract + actionCatalog + guidance
}

// generateUserPrompt renders one step's observation for the oracle.
func generateUserPrompt(req schemas.DecisionRequest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Task: %s\n\n", req.Task)
	fmt.Fprintf(&sb, "Step %d of %d\n\n", req.Step, req.MaxSteps)

	sb.WriteString("Previous steps:\n")
	sb.WriteString(req.HistoryText)
	sb.WriteString("\n\n")

	sb.WriteString("Current browser state:\n")
	sb.WriteString(req.BrowserState)

	if req.Screenshot != "" {
		sb.WriteString("\n\nA screenshot of the current viewport is attached.")
	}
	return sb.String()
}
