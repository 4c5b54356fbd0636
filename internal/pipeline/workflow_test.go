package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textaudit/layered-audit/internal/pipeline/steps"
	"github.com/textaudit/layered-audit/internal/types"
)

func allStages(f *fixture) []*Stage {
	var stages []*Stage
	for _, id := range steps.Order() {
		stages = append(stages, f.stage(id))
	}
	return stages
}

type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) record(e ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) statuses(id types.StageID) []steps.StepStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []steps.StepStatus
	for _, e := range l.events {
		if e.Step == id {
			out = append(out, e.Status)
		}
	}
	return out
}

func TestWorkflow_RunsEveryStage(t *testing.T) {
	f := newFixture(t, "Some text.")
	f.analysis.Contexts[types.ContextParagraph] = paragraphContext()
	log := &eventLog{}

	result, err := NewWorkflow(nil, 2).Run(context.Background(), allStages(f), log.record)
	require.NoError(t, err)

	for _, id := range steps.Order() {
		assert.Equal(t, steps.StatusCompleted, result.Statuses[id], "stage %s", id)
		assert.NotNil(t, result.Analyses[id])
		assert.Equal(t, []steps.StepStatus{steps.StatusInProgress, steps.StatusCompleted}, log.statuses(id))
	}
	assert.Len(t, f.analysis.Calls(), len(steps.Order()))
	assert.Len(t, f.analysis.ContextCalls(), 3)

	last := log.events[len(log.events)-1]
	assert.Empty(t, last.Step)
	assert.Contains(t, last.Message, "7 completed")
}

func TestWorkflow_FailedDependencyBlocksDownstream(t *testing.T) {
	f := newFixture(t, "Some text.")
	f.analysis.ContextErr = errors.New("segmenter down")
	log := &eventLog{}

	result, err := NewWorkflow(nil, 0).Run(context.Background(), allStages(f), log.record)
	require.NoError(t, err)

	assert.Equal(t, steps.StatusFailed, result.Statuses["layer3-step3-1"])
	assert.Contains(t, result.Errors["layer3-step3-1"], string(types.ErrUpstreamContextUnavailable))
	assert.Equal(t, steps.StatusBlocked, result.Statuses["layer2-step4-1"])
	assert.Equal(t, steps.StatusBlocked, result.Statuses["layer2-step4-2"])
	assert.Equal(t, steps.StatusCompleted, result.Statuses["layer1-step5-1"])
	assert.Len(t, f.analysis.ContextCalls(), 1, "blocked stages never fetch context")
	assert.Equal(t, []steps.StepStatus{steps.StatusBlocked}, log.statuses("layer2-step4-1"))
}

func TestWorkflow_SubsetIgnoresUnscheduledDependencies(t *testing.T) {
	f := newFixture(t, "Some text.")
	f.analysis.Contexts[types.ContextParagraph] = paragraphContext()

	result, err := NewWorkflow(nil, 0).Run(context.Background(), []*Stage{f.stage("layer2-step4-1")}, nil)
	require.NoError(t, err)
	assert.Equal(t, steps.StatusCompleted, result.Statuses["layer2-step4-1"])
}

func TestWorkflow_Cancelled(t *testing.T) {
	f := newFixture(t, "Some text.")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWorkflow(nil, 0).Run(ctx, allStages(f), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.analysis.Calls())
}
