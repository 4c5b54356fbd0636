// Package pipeline orchestrates the layered audit: per-stage run guarding,
// upstream context fetching, analysis and issue derivation, and the workflow
// that chains stages from coarse to fine layers.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/pipeline/steps"
	"github.com/textaudit/layered-audit/internal/types"
)

// ProgressEvent represents a progress update during a workflow run
type ProgressEvent struct {
	Step     types.StageID    `json:"step,omitempty"`
	Category types.Layer      `json:"category,omitempty"`
	Status   steps.StepStatus `json:"status"`
	Message  string           `json:"message"`
	Content  any              `json:"content,omitempty"`
}

// ProgressCallback is called when workflow progress occurs
type ProgressCallback func(event ProgressEvent)

// WorkflowResult is the outcome of a workflow run.
type WorkflowResult struct {
	Statuses map[types.StageID]steps.StepStatus `json:"statuses"`
	Analyses map[types.StageID]*Analysis        `json:"analyses"`
	Errors   map[types.StageID]string           `json:"errors,omitempty"`
}

// Workflow runs a set of stage instances in dependency waves. Stages of a wave
// run concurrently; a stage whose required upstream stage failed is blocked.
type Workflow struct {
	logger      *zap.Logger
	concurrency int
}

// NewWorkflow creates a Workflow. concurrency <= 0 means unlimited.
func NewWorkflow(logger *zap.Logger, concurrency int) *Workflow {
	return &Workflow{logger: logging.OrNop(logger), concurrency: concurrency}
}

// Run executes every given stage once. Individual stage failures are recorded
// in the result, not returned; only cancellation of ctx aborts the run.
func (w *Workflow) Run(ctx context.Context, stages []*Stage, onProgress ProgressCallback) (*WorkflowResult, error) {
	var emitMu sync.Mutex
	emit := func(event ProgressEvent) {
		if onProgress == nil {
			return
		}
		emitMu.Lock()
		defer emitMu.Unlock()
		onProgress(event)
	}

	byID := make(map[types.StageID]*Stage, len(stages))
	result := &WorkflowResult{
		Statuses: make(map[types.StageID]steps.StepStatus, len(stages)),
		Analyses: make(map[types.StageID]*Analysis),
		Errors:   make(map[types.StageID]string),
	}
	for _, st := range stages {
		byID[st.Def().ID] = st
		result.Statuses[st.Def().ID] = steps.StatusPending
	}

	var mu sync.Mutex
	for wave := 1; ; wave++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		for _, id := range steps.GetBlockedSteps(result.Statuses) {
			result.Statuses[id] = steps.StatusBlocked
			emit(ProgressEvent{
				Step:     id,
				Category: byID[id].Def().Layer,
				Status:   steps.StatusBlocked,
				Message:  "Skipped: a required upstream stage did not complete",
			})
		}

		available := steps.GetAvailableSteps(result.Statuses)
		if len(available) == 0 {
			break
		}
		w.logger.Debug("starting workflow wave", zap.Int("wave", wave), zap.Int("stages", len(available)))

		var g errgroup.Group
		if w.concurrency > 0 {
			g.SetLimit(w.concurrency)
		}
		for _, id := range available {
			st := byID[id]
			result.Statuses[id] = steps.StatusInProgress
			emit(ProgressEvent{Step: id, Category: st.Def().Layer, Status: steps.StatusInProgress, Message: "Analyzing " + st.Def().Title})
		}
		for _, id := range available {
			st := byID[id]
			g.Go(func() error {
				a, err := st.Run(ctx)

				mu.Lock()
				if err != nil {
					result.Statuses[id] = steps.StatusFailed
					result.Errors[id] = err.Error()
				} else {
					result.Statuses[id] = steps.StatusCompleted
					result.Analyses[id] = a
				}
				mu.Unlock()

				if err != nil {
					emit(ProgressEvent{Step: id, Category: st.Def().Layer, Status: steps.StatusFailed, Message: err.Error()})
					return nil
				}
				emit(ProgressEvent{
					Step:     id,
					Category: st.Def().Layer,
					Status:   steps.StatusCompleted,
					Message:  fmt.Sprintf("%s: %s risk, %d issues", st.Def().Title, a.Result.RiskLevel, len(a.Issues)),
					Content:  a,
				})
				return nil
			})
		}
		_ = g.Wait()
	}

	emit(ProgressEvent{Status: steps.StatusCompleted, Message: summarize(result)})
	return result, nil
}

func summarize(r *WorkflowResult) string {
	counts := make(map[steps.StepStatus]int)
	for _, status := range r.Statuses {
		counts[status]++
	}
	return fmt.Sprintf("Audit finished: %d completed, %d failed, %d blocked",
		counts[steps.StatusCompleted], counts[steps.StatusFailed], counts[steps.StatusBlocked])
}
