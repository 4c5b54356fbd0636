//nolint:revive // types is a standard Go package name pattern
package types

// StageID is the stable progress tag of a pipeline stage, e.g. "layer3-step3-1".
type StageID string

// Layer names one granularity of analysis.
type Layer string

// Layers, coarse to fine.
const (
	LayerDocument  Layer = "document"
	LayerSection   Layer = "section"
	LayerParagraph Layer = "paragraph"
	LayerSentence  Layer = "sentence"
	LayerLexical   Layer = "lexical"
)

// AnalyzerKind selects the analysis operation a stage invokes.
type AnalyzerKind string

// Analyzer kinds, one per analysis operation.
const (
	AnalyzerParagraphLength AnalyzerKind = "paragraph-length"
	AnalyzerSubstantiality  AnalyzerKind = "content-substantiality"
	AnalyzerSectionOrder    AnalyzerKind = "section-order"
	AnalyzerAnchorDensity   AnalyzerKind = "anchor-density"
	AnalyzerSentenceLength  AnalyzerKind = "sentence-length"
	AnalyzerSentencePattern AnalyzerKind = "sentence-pattern"
	AnalyzerLexical         AnalyzerKind = "lexical"
)

// ContextKind identifies an upstream context snapshot a downstream stage consumes.
type ContextKind string

// Context kinds. ContextNone means the stage needs no upstream context.
const (
	ContextNone      ContextKind = ""
	ContextParagraph ContextKind = "paragraph"
	ContextSection   ContextKind = "section"
)

// StageDef is the static definition of one stage in the pipeline graph.
type StageDef struct {
	ID              StageID      `json:"id"`
	Layer           Layer        `json:"layer"`
	Step            string       `json:"step"`
	Analyzer        AnalyzerKind `json:"analyzer"`
	Context         ContextKind  `json:"context,omitempty"`
	ContextRequired bool         `json:"context_required,omitempty"`
	Title           string       `json:"title"`
}
