//nolint:revive // types is a standard Go package name pattern
package types

// RiskLevel is the coarse risk classification of an analysis result.
type RiskLevel string

// Risk levels.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Severity tags an Issue.
type Severity string

// Severities.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Metric is a single named stage-specific measurement.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// AnalysisResult is the output of running a stage against a document.
type AnalysisResult struct {
	Stage        StageID      `json:"stage"`
	RiskScore    float64      `json:"risk_score"`
	RiskLevel    RiskLevel    `json:"risk_level"`
	Metrics      []Metric     `json:"metrics,omitempty"`
	Measurements Measurements `json:"measurements"`
}

// Measurements carries the raw values issue derivation works from.
// Only the fields relevant to the producing analyzer are populated.
type Measurements struct {
	// Paragraph-length uniformity
	ParagraphLengthCV *float64 `json:"paragraph_length_cv,omitempty"`

	// Per-paragraph statistics (anchor density, sentence length)
	Paragraphs []ParagraphStats `json:"paragraphs,omitempty"`

	// Document-wide anchors per 100 words
	DocumentAnchorDensity *float64 `json:"document_anchor_density,omitempty"`

	// Section order match percentage (0-100)
	SectionOrderMatch *float64 `json:"section_order_match,omitempty"`

	// Content substantiality
	Substantiality              Level `json:"substantiality,omitempty"`
	LowSubstantialityParagraphs []int `json:"low_substantiality_paragraphs,omitempty"`
	GenericPhraseCount          int   `json:"generic_phrase_count,omitempty"`

	// Lexical fingerprints
	Fingerprints []FingerprintHit `json:"fingerprints,omitempty"`

	// Sentence patterns
	Patterns []PatternFinding `json:"patterns,omitempty"`
}

// Level is a categorical low/medium/high value reported by an analysis service.
type Level string

// Levels.
const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// ParagraphStats describes one paragraph.
type ParagraphStats struct {
	Index            int      `json:"index"`
	WordCount        int      `json:"word_count"`
	SentenceCount    int      `json:"sentence_count"`
	AnchorCount      int      `json:"anchor_count"`
	SentenceLengthCV *float64 `json:"sentence_length_cv,omitempty"`
}

// FingerprintHit is one lexical fingerprint found in the text.
type FingerprintHit struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
	Tier  Level  `json:"tier"`
}

// PatternFinding is a sentence-level pattern reported by an analysis service.
type PatternFinding struct {
	Pattern       string   `json:"pattern"`
	Description   string   `json:"description"`
	DescriptionZH string   `json:"description_zh,omitempty"`
	Severity      Severity `json:"severity"`
	Paragraph     *int     `json:"paragraph,omitempty"`
}

// Context is a read-only snapshot produced by an upstream layer.
type Context struct {
	Kind       ContextKind        `json:"kind"`
	Paragraphs []ParagraphContext `json:"paragraphs,omitempty"`
	Sections   []SectionContext   `json:"sections,omitempty"`
}

// ParagraphContext is one segmented paragraph and its rhetorical role.
type ParagraphContext struct {
	Index   int    `json:"index"`
	Role    string `json:"role"`
	Text    string `json:"text"`
	Section int    `json:"section"`
}

// SectionContext is one detected section.
type SectionContext struct {
	Index      int    `json:"index"`
	Title      string `json:"title"`
	Role       string `json:"role"`
	Paragraphs []int  `json:"paragraphs"`
}
