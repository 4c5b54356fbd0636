package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/textaudit/layered-audit/internal/config"
	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/observability"
	"github.com/textaudit/layered-audit/internal/pipeline"
	"github.com/textaudit/layered-audit/internal/pipeline/steps"
	"github.com/textaudit/layered-audit/internal/scoring"
	"github.com/textaudit/layered-audit/internal/types"
)

var (
	analyzeFile     string
	analyzeStages   []string
	analyzeJSON     bool
	analyzeVerbose  bool
	analyzeLogLevel string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run audit stages locally against a text file",
	Long: `Analyses a plain text, markdown or HTML file with the local scoring service and prints the
issues each stage reports. Without --stage every stage runs, coarse to fine; a stage whose
required upstream stage fails is reported as blocked.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "Path to the document to analyse (required)")
	analyzeCmd.Flags().StringSliceVarP(&analyzeStages, "stage", "s", nil, "Stage id to run (repeatable, defaults to all)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the workflow result as JSON")
	analyzeCmd.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false, "List every issue and metric")
	analyzeCmd.Flags().StringVar(&analyzeLogLevel, "log-level", "warn", "Log level written to stderr")

	_ = analyzeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	defs, err := selectStages(analyzeStages)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(analyzeFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", analyzeFile, err)
	}

	logger, err := logging.New(logging.Options{Level: analyzeLogLevel})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	stores, err := openBackends(ctx, config.Defaults(), logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	docID, err := stores.documents.Upload(ctx, &types.Upload{
		Filename:    filepath.Base(analyzeFile),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, "")
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	sess, err := stores.sessions.Create(ctx, docID)
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Resolver: document.NewResolver(stores.documents, stores.sessions, logger),
		Analysis: scoring.NewService(logger),
		Logger:   logger,
	}
	stages := make([]*pipeline.Stage, 0, len(defs))
	for _, def := range defs {
		stages = append(stages, pipeline.NewStage(def.StageDef, document.Ref{SessionID: sess.ID}, deps, nil))
	}

	result, err := pipeline.NewWorkflow(logger, 0).Run(ctx, stages, nil)
	if err != nil {
		return fmt.Errorf("audit interrupted: %w", err)
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		printer := observability.NewPrinter(out, analyzeVerbose)
		for _, def := range defs {
			printer.PrintStageResult(def.StageDef, result.Analyses[def.ID])
		}
		printer.PrintAuditSummary(result)
	}

	if len(result.Errors) > 0 {
		return fmt.Errorf("%d stage(s) failed", len(result.Errors))
	}
	return nil
}

// selectStages returns the named stages in canonical order, or every stage
// when names is empty.
func selectStages(names []string) ([]steps.StepDefinition, error) {
	if len(names) == 0 {
		return steps.Catalogue, nil
	}
	wanted := make(map[types.StageID]bool, len(names))
	for _, name := range names {
		def, err := steps.Lookup(types.StageID(name))
		if err != nil {
			return nil, err
		}
		wanted[def.ID] = true
	}
	defs := make([]steps.StepDefinition, 0, len(wanted))
	for _, def := range steps.Catalogue {
		if wanted[def.ID] {
			defs = append(defs, def)
		}
	}
	return defs, nil
}
