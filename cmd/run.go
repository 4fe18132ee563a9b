// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/softlight-cli/internal/actions"
	"github.com/xkilldash9x/softlight-cli/internal/agent"
	"github.com/xkilldash9x/softlight-cli/internal/browser"
	"github.com/xkilldash9x/softlight-cli/internal/config"
	"github.com/xkilldash9x/softlight-cli/internal/llmclient"
	"github.com/xkilldash9x/softlight-cli/internal/observability"
)

var (
	runMaxSteps int
	runHeadless bool
	runVision   bool
)

var runCmd = &cobra.Command{
	Use:   `run "task"`,
	Short: "Run a browser task to completion",
	Example: `  softlight run "find the current weather in Berlin"
  softlight run --max-steps 40 --vision "order the cheapest usb-c cable"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Flags override the file/env configuration only when set.
		if cmd.Flags().Changed("max-steps") {
			cfg.SetAgentMaxSteps(runMaxSteps)
		}
		if cmd.Flags().Changed("headless") {
			cfg.SetBrowserHeadless(runHeadless)
		}
		if cmd.Flags().Changed("vision") {
			cfg.SetAgentUseVision(runVision)
		}
		return runTask(cmd, cfg, args[0])
	},
}

func init() {
	runCmd.Flags().IntVar(&runMaxSteps, "max-steps", 25, "maximum number of agent steps before forced completion")
	runCmd.Flags().BoolVar(&runHeadless, "headless", true, "run the browser headless")
	runCmd.Flags().BoolVar(&runVision, "vision", false, "attach a screenshot to every oracle request")
	rootCmd.AddCommand(runCmd)
}

// runTask wires the session, the oracle, and the agent together and drives
// one task to its terminal result.
func runTask(cmd *cobra.Command, cfg *config.Config, task string) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router, err := llmclient.NewRouterFromConfig(cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("failed to build LLM clients: %w", err)
	}
	defer router.Close()

	session, err := browser.NewSession(ctx, cfg.Browser, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(context.Background()); err != nil {
			logger.Warn("Browser shutdown failed", zap.Error(err))
		}
	}()

	oracle := agent.NewLLMOracle(router, actions.NewRegistry(), cfg.Agent.MaxActionsPerStep, logger)
	runner := agent.New(task, session, oracle, cfg.Agent, logger)

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.FinalResult)
	if !result.Success {
		return fmt.Errorf("task finished without success (status %s, %d steps)", result.Status, result.Steps)
	}
	logger.Info("Task completed", zap.Int("steps", result.Steps))
	return nil
}
