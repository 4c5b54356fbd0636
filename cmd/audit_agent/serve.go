package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/config"
	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/llm"
	"github.com/textaudit/layered-audit/internal/pipeline"
	"github.com/textaudit/layered-audit/internal/revision"
	"github.com/textaudit/layered-audit/internal/rewriting"
	"github.com/textaudit/layered-audit/internal/scoring"
	"github.com/textaudit/layered-audit/internal/selection"
	"github.com/textaudit/layered-audit/internal/server"
	"github.com/textaudit/layered-audit/internal/server/ratelimit"
)

var (
	serveConfigPath  string
	servePort        int
	serveConcurrency int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the audit stages, document versions and sessions as REST endpoints.

Configuration can be loaded from a JSON file using --config. Environment variables
(DATABASE_URL, REDIS_URL, GEMINI_API_KEY, AUDIT_PORT) override the file; --port overrides both.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to config.json file")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to config, then 8080)")
	serveCmd.Flags().IntVar(&serveConcurrency, "workflow-concurrency", 0, "Stages analysed in parallel per workflow wave (0 = unlimited)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or 'api_key' in config is required")
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return srv.Start(ctx)
}

// buildServer wires storage, analysis, the language model collaborators and
// the HTTP server. cleanup releases every connection it opened.
func buildServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*server.Server, func(), error) {
	stores, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	client, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.APIKey, logger)
	if err != nil {
		stores.Close()
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	cleanup := func() {
		_ = client.Close()
		stores.Close()
	}

	docs, sessions := stores.documents, stores.sessions
	advisor := rewriting.NewAdvisor(client, docs, logger)
	reviser := rewriting.NewReviser(client, docs, cfg.MaxRevisionAttempts, cfg.SessionTTL(), logger)

	limits, err := ratelimit.LoadConfig()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	srv, err := server.New(server.Config{
		Port:                cfg.Port,
		StageCacheSize:      cfg.StageCacheSize,
		WorkflowConcurrency: serveConcurrency,
		RateLimit:           limits,
	}, server.Deps{
		Documents: docs,
		Sessions:  sessions,
		Stages: pipeline.Deps{
			Resolver:    document.NewResolver(docs, sessions, logger),
			Analysis:    scoring.NewService(logger),
			Suggestions: selection.NewEngine(advisor, cfg.QuickSuggestions, logger),
			Revisions:   reviser,
			Versions:    revision.NewTransitioner(docs, sessions, logger),
			Metrics:     pipeline.NewMetrics(prometheus.DefaultRegisterer),
			Logger:      logger,
		},
		Gatherer: prometheus.DefaultGatherer,
		Health:   stores.health,
		Logger:   logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create server: %w", err)
	}
	return srv, cleanup, nil
}
