package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/codewatch-ai/revbot/pkg/agent"
	"github.com/codewatch-ai/revbot/pkg/config"
	"github.com/codewatch-ai/revbot/pkg/events"
	"github.com/codewatch-ai/revbot/pkg/ingress"
	"github.com/codewatch-ai/revbot/pkg/llm"
	"github.com/codewatch-ai/revbot/pkg/pipeline"
	"github.com/codewatch-ai/revbot/pkg/procexec"
	"github.com/codewatch-ai/revbot/pkg/sourcehost"
	"github.com/codewatch-ai/revbot/pkg/terminal"
	"github.com/codewatch-ai/revbot/pkg/testagent"
	"github.com/codewatch-ai/revbot/pkg/workspace"
)

// NewServeCommand builds the "serve" subcommand: load configuration, wire
// every component, and run the ingress server until interrupted.
func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingress server and orchestrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "revbot.yaml", "path to the configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	bus := events.NewBus(events.AllPipelinesTopic)

	adapter := sourcehost.NewGitHubAdapter(cfg.SourceHost.BaseURL, cfg.SourceHost.Token)

	anthropicClient, err := llm.NewAnthropicClient(cfg.LLM.APIKey, llm.AnthropicOptions{
		DefaultModel:   anthropic.Model(cfg.LLM.DefaultModel),
		SmallModel:     anthropic.Model(cfg.LLM.SmallModel),
		MaxTokens:      int64(cfg.LLM.MaxTokens),
		Temperature:    cfg.LLM.Temperature,
		ThinkingBudget: int64(cfg.LLM.ThinkingBudget),
	})
	if err != nil {
		return fmt.Errorf("construct anthropic client: %w", err)
	}

	codeModel, err := llm.NewOpenAIClient(cfg.CodeModel.BaseURL, cfg.CodeModel.APIKey, cfg.CodeModel.Model)
	if err != nil {
		return fmt.Errorf("construct code model client: %w", err)
	}

	workspaceMgr := workspace.NewManager()
	builder := agent.NewWorkspaceBuilder(workspaceMgr, adapter)
	analyzer := agent.NewLLMAnalyzer(anthropicClient)
	fixer := agent.NewLLMFixer(anthropicClient, adapter)
	tester := testagent.NewTester(adapter, anthropicClient, codeModel, procexec.New())

	orch := pipeline.New(pipeline.Options{
		Bus:              bus,
		Adapter:          adapter,
		Builder:          builder,
		Analyzer:         analyzer,
		Fixer:            fixer,
		Tester:           tester,
		RecursionMarkers: cfg.Pipeline.RecursionMarkers,
		WebhookURL:       cfg.Results.WebhookURL,
		WebhookTimeout:   cfg.Results.WebhookTimeout,
		BackupDir:        cfg.Results.BackupDir,
	})

	streamer := terminal.NewStreamer(bus)

	server := ingress.NewServer(bus, orch, streamer)
	if err := server.ValidateWiring(); err != nil {
		return fmt.Errorf("server wiring: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("revbot listening", "addr", addr)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
