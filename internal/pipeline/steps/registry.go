// Package steps provides the static stage graph of the audit pipeline, dependency
// validation between layers, and navigation between stages.
package steps

import (
	"fmt"

	"github.com/textaudit/layered-audit/internal/types"
)

// StepStatus is the progress of one stage within a workflow run.
type StepStatus string

// Step statuses.
const (
	StatusPending    StepStatus = "pending"
	StatusInProgress StepStatus = "in_progress"
	StatusCompleted  StepStatus = "completed"
	StatusFailed     StepStatus = "failed"
	StatusBlocked    StepStatus = "blocked"
)

// StepDefinition defines metadata for a pipeline stage
type StepDefinition struct {
	types.StageDef
	Dependencies []types.StageID
	Optional     []types.StageID
}

// Catalogue lists every stage in canonical order, coarse to fine.
// The order is the navigation graph: each stage's predecessor and successor
// are its neighbours in this slice.
var Catalogue = []StepDefinition{
	{
		StageDef: types.StageDef{
			ID: "layer5-step1-1", Layer: types.LayerDocument, Step: "1.1",
			Analyzer: types.AnalyzerParagraphLength, Title: "Paragraph length uniformity",
		},
	},
	{
		StageDef: types.StageDef{
			ID: "layer5-step1-2", Layer: types.LayerDocument, Step: "1.2",
			Analyzer: types.AnalyzerSubstantiality, Title: "Content substantiality",
		},
	},
	{
		StageDef: types.StageDef{
			ID: "layer4-step2-1", Layer: types.LayerSection, Step: "2.1",
			Analyzer: types.AnalyzerSectionOrder, Title: "Section order",
		},
	},
	{
		StageDef: types.StageDef{
			ID: "layer3-step3-1", Layer: types.LayerParagraph, Step: "3.1",
			Analyzer: types.AnalyzerAnchorDensity, Title: "Anchor density",
			Context: types.ContextSection,
		},
		Optional: []types.StageID{"layer4-step2-1"},
	},
	{
		StageDef: types.StageDef{
			ID: "layer2-step4-1", Layer: types.LayerSentence, Step: "4.1",
			Analyzer: types.AnalyzerSentenceLength, Title: "Sentence length uniformity",
			Context: types.ContextParagraph, ContextRequired: true,
		},
		Dependencies: []types.StageID{"layer3-step3-1"},
	},
	{
		StageDef: types.StageDef{
			ID: "layer2-step4-2", Layer: types.LayerSentence, Step: "4.2",
			Analyzer: types.AnalyzerSentencePattern, Title: "Sentence patterns",
			Context: types.ContextParagraph, ContextRequired: true,
		},
		Dependencies: []types.StageID{"layer3-step3-1"},
	},
	{
		StageDef: types.StageDef{
			ID: "layer1-step5-1", Layer: types.LayerLexical, Step: "5.1",
			Analyzer: types.AnalyzerLexical, Title: "Lexical fingerprints",
		},
	},
}

// StepRegistry indexes Catalogue by stage id.
var StepRegistry = func() map[types.StageID]StepDefinition {
	m := make(map[types.StageID]StepDefinition, len(Catalogue))
	for _, def := range Catalogue {
		m[def.ID] = def
	}
	return m
}()

// Lookup returns the definition of a stage, or an ErrUnknownStage error.
func Lookup(id types.StageID) (StepDefinition, error) {
	def, ok := StepRegistry[id]
	if !ok {
		return StepDefinition{}, types.NewStageError(types.ErrUnknownStage, id, "stage is not part of the pipeline", nil)
	}
	return def, nil
}

// Order returns the stage ids in canonical order.
func Order() []types.StageID {
	ids := make([]types.StageID, len(Catalogue))
	for i, def := range Catalogue {
		ids[i] = def.ID
	}
	return ids
}

// Neighbors returns the fixed predecessor and successor of a stage.
// The first stage has no predecessor and the last has no successor.
func Neighbors(id types.StageID) (prev, next *types.StageDef, err error) {
	for i, def := range Catalogue {
		if def.ID != id {
			continue
		}
		if i > 0 {
			p := Catalogue[i-1].StageDef
			prev = &p
		}
		if i < len(Catalogue)-1 {
			n := Catalogue[i+1].StageDef
			next = &n
		}
		return prev, next, nil
	}
	return nil, nil, types.NewStageError(types.ErrUnknownStage, id, "stage is not part of the pipeline", nil)
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                types.StageID
	MissingDependencies []types.StageID
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("missing dependencies: %v", e.MissingDependencies)
}

// ValidateDependencies checks if all required dependencies for a stage are completed.
// Dependencies that are not part of the run (absent from statuses) are not checked.
func ValidateDependencies(statuses map[types.StageID]StepStatus, id types.StageID) error {
	def, err := Lookup(id)
	if err != nil {
		return err
	}

	var missing []types.StageID
	for _, dep := range def.Dependencies {
		if s, ok := statuses[dep]; ok && s != StatusCompleted {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                id,
			MissingDependencies: missing,
		}
	}
	return nil
}

// settled reports whether a stage has finished one way or another.
func settled(status StepStatus) bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusBlocked
}

// GetAvailableSteps returns pending stages, in canonical order, whose required
// dependencies are completed and whose optional dependencies have settled.
// Optional dependencies absent from statuses are not part of the run and are ignored.
func GetAvailableSteps(statuses map[types.StageID]StepStatus) []types.StageID {
	var available []types.StageID

	for _, def := range Catalogue {
		status, scheduled := statuses[def.ID]
		if !scheduled || status != StatusPending {
			continue
		}
		if err := ValidateDependencies(statuses, def.ID); err != nil {
			continue
		}
		ready := true
		for _, opt := range def.Optional {
			if s, ok := statuses[opt]; ok && !settled(s) {
				ready = false
				break
			}
		}
		if ready {
			available = append(available, def.ID)
		}
	}
	return available
}

// GetBlockedSteps returns pending stages with a required dependency that
// failed or was itself blocked; they can never become available in this run.
func GetBlockedSteps(statuses map[types.StageID]StepStatus) []types.StageID {
	var blocked []types.StageID

	for _, def := range Catalogue {
		if statuses[def.ID] != StatusPending {
			continue
		}
		for _, dep := range def.Dependencies {
			if s := statuses[dep]; s == StatusFailed || s == StatusBlocked {
				blocked = append(blocked, def.ID)
				break
			}
		}
	}
	return blocked
}
