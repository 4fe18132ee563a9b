// internal/agent/oracle.go
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
	"github.com/xkilldash9x/softlight-cli/internal/actions"
	"github.com/xkilldash9x/softlight-cli/internal/llmutil"
)

// oracleTimeout bounds one decision call; slow models fail the step instead
// of hanging the run.
const oracleTimeout = 90 * time.Second

// LLMOracle asks an LLM for the next actions. It renders the decision
// request into prompts, forces JSON output, and tolerantly parses the reply.
type LLMOracle struct {
	client       schemas.LLMClient
	tier         schemas.ModelTier
	systemPrompt string
	logger       *zap.Logger
}

var _ schemas.Oracle = (*LLMOracle)(nil)

// NewLLMOracle builds the oracle. The system prompt is derived once from
// the action registry; the catalog is static for the life of the run.
func NewLLMOracle(client schemas.LLMClient, registry *actions.Registry, maxActions int, logger *zap.Logger) *LLMOracle {
	return &LLMOracle{
		client:       client,
		tier:         schemas.TierPowerful,
		systemPrompt: generateSystemPrompt(registry, maxActions),
		logger:       logger.Named("oracle"),
	}
}

// Decide maps one observation to an ordered action list. A reply that
// parses but proposes nothing is an error; the loop treats it as
// recoverable.
func (o *LLMOracle) Decide(ctx context.Context, req schemas.DecisionRequest) (*schemas.AgentOutput, error) {
	genReq := schemas.GenerationRequest{
		SystemPrompt: o.systemPrompt,
		UserPrompt:   generateUserPrompt(req),
		Tier:         o.tier,
		Options: schemas.GenerationOptions{
			ForceJSONFormat: true,
			Temperature:     0.2,
		},
	}
	if req.Screenshot != "" {
		genReq.Images = []schemas.ImagePart{{MIMEType: "image/png", Data: req.Screenshot}}
	}

	apiCtx, cancel := context.WithTimeout(ctx, oracleTimeout)
	defer cancel()

	response, err := o.client.Generate(apiCtx, genReq)
	if err != nil {
		return nil, fmt.Errorf("llm generation failed: %w", err)
	}

	output, err := llmutil.ParseJSONResponse[schemas.AgentOutput](response)
	if err != nil {
		return nil, Recoverablef("failed to parse oracle response: %w", err)
	}
	if len(output.Action) == 0 {
		return nil, Recoverablef("oracle proposed no actions")
	}

	o.logger.Debug("Oracle decision",
		zap.Int("step", req.Step),
		zap.Int("actions", len(output.Action)),
		zap.String("next_goal", output.NextGoal),
	)
	return output, nil
}
