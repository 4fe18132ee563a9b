// Package agent runs the observe-decide-act loop: extract a snapshot, ask
// the oracle for actions, execute them, and keep going until the task is
// done, the budget runs out, or something fatal happens.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
	"github.com/xkilldash9x/softlight-cli/internal/actions"
	"github.com/xkilldash9x/softlight-cli/internal/config"
	"github.com/xkilldash9x/softlight-cli/internal/dom"
)

const (
	defaultMaxSteps          = 25
	defaultMaxActionsPerStep = 4
	defaultMaxFailures       = 3
	defaultHistoryLookback   = 10
	defaultPausePoll         = 100 * time.Millisecond

	// forcedCompletionText is the fallback answer when the step budget runs
	// out and no extraction ever produced content.
	forcedCompletionText = "Task incomplete - max steps reached"
)

// Agent owns one run of one task.
type Agent struct {
	id       string
	task     string
	browser  schemas.BrowserController
	oracle   schemas.Oracle
	registry *actions.Registry
	ser      *dom.Serializer
	cfg      config.AgentConfig
	logger   *zap.Logger

	history *History
	stall   *stallDetector
	control *controlState

	stepCount           int
	consecutiveFailures int
	pendingScreenshot   bool
}

// New builds an agent for one task. The action registry is static; callers
// cannot extend it at runtime.
func New(task string, browser schemas.BrowserController, oracle schemas.Oracle, cfg config.AgentConfig, logger *zap.Logger) *Agent {
	id := uuid.NewString()
	return &Agent{
		id:       id,
		task:     task,
		browser:  browser,
		oracle:   oracle,
		registry: actions.NewRegistry(),
		ser:      dom.NewSerializer(cfg.SerializerMaxLen, logger),
		cfg:      cfg,
		logger:   logger.Named("agent").With(zap.String("run_id", id[:8])),
		history:  NewHistory(),
		stall:    newStallDetector(cfg.StallWindow, cfg.StallThreshold),
		control:  newControlState(),
	}
}

// ID returns the run identifier.
func (a *Agent) ID() string { return a.id }

// History returns the step log accumulated so far.
func (a *Agent) History() *History { return a.history }

// Status returns the externally visible loop state.
func (a *Agent) Status() schemas.RunStatus { return a.control.status() }

// Pause suspends the loop at the next iteration boundary.
func (a *Agent) Pause() { a.control.pause() }

// Resume continues a paused loop.
func (a *Agent) Resume() { a.control.resume() }

// Stop ends the run at the next iteration boundary.
func (a *Agent) Stop() { a.control.stop() }

// Run drives the loop to a terminal result. It never exits silently: every
// return path produces a RunResult describing what happened.
func (a *Agent) Run(ctx context.Context) (*schemas.RunResult, error) {
	a.logger.Info("Run started", zap.String("task", a.task), zap.Int("max_steps", a.maxSteps()))

	for {
		result, err := a.Step(ctx)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
}

// Step executes one loop iteration: observe, decide, act, and account the
// outcome against the failure and stall budgets. A non-nil RunResult means
// the run reached a terminal state; nil means keep stepping. Hosts that
// embed the agent in their own scheduler call this directly instead of Run.
func (a *Agent) Step(ctx context.Context) (*schemas.RunResult, error) {
	if a.stepCount >= a.maxSteps() {
		// Step budget exhausted: complete with the best content already
		// extracted, or the stock fallback text.
		final := a.history.FinalResult()
		if final == "" {
			final = forcedCompletionText
		}
		a.logger.Info("Step budget exhausted, forcing completion")
		return a.finish(schemas.RunStatusDone, false, final), nil
	}

	if err := a.waitWhilePaused(ctx); err != nil {
		return a.finish(schemas.RunStatusStopped, false, fmt.Sprintf("Run cancelled: %v", err)), nil
	}
	if a.control.status() == schemas.RunStatusStopped {
		return a.finish(schemas.RunStatusStopped, false, "Run stopped"), nil
	}

	a.stepCount++
	step := a.stepCount

	outcome, err := a.step(ctx, step)
	if err != nil {
		if IsFatal(err) {
			a.logger.Error("Fatal step failure", zap.Int("step", step), zap.Error(err))
			return a.finish(schemas.RunStatusDone, false, fmt.Sprintf("Run failed: %v", err)), nil
		}
		a.consecutiveFailures++
		a.logger.Warn("Step failed",
			zap.Int("step", step),
			zap.Int("consecutive_failures", a.consecutiveFailures),
			zap.Error(err),
		)
		if a.consecutiveFailures >= a.maxFailures() {
			return a.finish(schemas.RunStatusDone, false,
				fmt.Sprintf("Run failed after %d consecutive step failures: %v", a.consecutiveFailures, err)), nil
		}
		return nil, nil
	}

	if outcome.clean {
		a.consecutiveFailures = 0
	} else {
		a.consecutiveFailures++
		if a.consecutiveFailures >= a.maxFailures() {
			return a.finish(schemas.RunStatusDone, false,
				fmt.Sprintf("Run failed after %d consecutive step failures", a.consecutiveFailures)), nil
		}
	}

	if outcome.done != nil {
		success := outcome.done.Success != nil && *outcome.done.Success
		return a.finish(schemas.RunStatusDone, success, outcome.done.ExtractedContent), nil
	}

	if a.stall.exhausted(outcome.stallCount) {
		a.logger.Warn("Run is stuck repeating the same action, giving up", zap.Int("repeats", outcome.stallCount))
		return a.finish(schemas.RunStatusDone, false,
			fmt.Sprintf("Run aborted: the same action was repeated %d times without progress", outcome.stallCount)), nil
	}
	if a.stall.stalled(outcome.stallCount) {
		a.escapeStall(ctx, outcome.stallCount)
	}
	return nil, nil
}

// stepOutcome is what one executed step hands back to the loop.
type stepOutcome struct {
	done       *schemas.ActionResult
	clean      bool
	stallCount int
}

func (a *Agent) step(ctx context.Context, step int) (*stepOutcome, error) {
	started := time.Now()

	state, err := a.browser.GetState(ctx, true)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Fatal(err)
		}
		return nil, Recoverablef("failed to observe page: %w", err)
	}

	serialized := a.ser.Serialize(state)
	req := schemas.DecisionRequest{
		Task:         a.task,
		BrowserState: dom.RenderState(state, serialized),
		HistoryText:  a.history.Description(a.historyLookback()),
		Step:         step,
		MaxSteps:     a.maxSteps(),
	}
	if a.cfg.UseVision || a.pendingScreenshot {
		a.pendingScreenshot = false
		if shot, err := a.browser.Screenshot(ctx); err != nil {
			a.logger.Warn("Screenshot unavailable for this step", zap.Error(err))
		} else {
			req.Screenshot = shot
		}
	}

	output, err := a.oracle.Decide(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Fatal(err)
		}
		return nil, err
	}

	proposed := output.Action
	if limit := a.maxActionsPerStep(); len(proposed) > limit {
		a.logger.Warn("Oracle proposed too many actions, truncating",
			zap.Int("proposed", len(proposed)), zap.Int("limit", limit))
		proposed = proposed[:limit]
	}

	outcome := &stepOutcome{clean: true}
	env := &actions.Env{Browser: a.browser, State: state, Logger: a.logger}
	var results []*schemas.ActionResult
	var executed []schemas.AgentAction

	for i, action := range proposed {
		// A mutating action invalidates indices, so re-observe before
		// running anything after one.
		if i > 0 && !a.registry.IsPassive(proposed[i-1].Name) {
			fresh, err := a.browser.GetState(ctx, true)
			if err != nil {
				results = append(results, schemas.ResultError(fmt.Errorf("failed to refresh page state: %v", err)))
				outcome.clean = false
				break
			}
			env.State = fresh
		}

		result, err := a.registry.Execute(ctx, env, action)
		if err != nil {
			return nil, Fatal(err)
		}
		results = append(results, result)
		executed = append(executed, action)

		if result.RequestScreenshot {
			a.pendingScreenshot = true
		}
		if result.HasError() {
			outcome.clean = false
			break
		}
		if result.IsDone {
			outcome.done = result
			break
		}
	}

	outcome.stallCount = a.stall.observe(executed)

	a.history.Append(&schemas.StepRecord{
		Step:      step,
		URL:       state.URL,
		Title:     state.Title,
		Output:    output,
		Results:   results,
		StartedAt: started,
		Duration:  time.Since(started),
	})

	a.logger.Info("Step complete",
		zap.Int("step", step),
		zap.Int("actions", len(results)),
		zap.Bool("clean", outcome.clean),
		zap.Duration("duration", time.Since(started)),
	)
	return outcome, nil
}

// escapeStall tries to break a repetition loop by dismissing whatever might
// be swallowing the actions, typically a modal or focused overlay.
func (a *Agent) escapeStall(ctx context.Context, count int) {
	a.logger.Warn("Repetition detected, attempting escape", zap.Int("repeats", count))
	if err := a.browser.SendKeys(ctx, "Escape"); err != nil {
		a.logger.Warn("Escape attempt failed", zap.Error(err))
	}
}

// waitWhilePaused blocks at the iteration boundary while the run is paused.
func (a *Agent) waitWhilePaused(ctx context.Context) error {
	for a.control.status() == schemas.RunStatusPaused {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.pausePoll()):
		}
	}
	return ctx.Err()
}

func (a *Agent) finish(status schemas.RunStatus, success bool, final string) *schemas.RunResult {
	a.control.finish()
	result := &schemas.RunResult{
		RunID:       a.id,
		Task:        a.task,
		Status:      status,
		Success:     success,
		Steps:       a.history.Len(),
		FinalResult: final,
		History:     a.history.Records(),
	}
	a.logger.Info("Run finished",
		zap.String("status", string(status)),
		zap.Bool("success", success),
		zap.Int("steps", result.Steps),
	)
	return result
}

func (a *Agent) maxSteps() int {
	if a.cfg.MaxSteps > 0 {
		return a.cfg.MaxSteps
	}
	return defaultMaxSteps
}

func (a *Agent) maxActionsPerStep() int {
	if a.cfg.MaxActionsPerStep > 0 {
		return a.cfg.MaxActionsPerStep
	}
	return defaultMaxActionsPerStep
}

func (a *Agent) maxFailures() int {
	if a.cfg.MaxFailures > 0 {
		return a.cfg.MaxFailures
	}
	return defaultMaxFailures
}

func (a *Agent) historyLookback() int {
	if a.cfg.HistoryLookback > 0 {
		return a.cfg.HistoryLookback
	}
	return defaultHistoryLookback
}

func (a *Agent) pausePoll() time.Duration {
	if a.cfg.PausePollInterval > 0 {
		return a.cfg.PausePollInterval
	}
	return defaultPausePoll
}
