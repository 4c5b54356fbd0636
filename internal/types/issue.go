//nolint:revive // types is a standard Go package name pattern
package types

import "fmt"

// Location points at the part of a document an Issue refers to.
type Location struct {
	Paragraph *int `json:"paragraph,omitempty"`
	Section   *int `json:"section,omitempty"`
}

// Issue is a normalized, severity-tagged finding derived from an AnalysisResult.
type Issue struct {
	Kind            string    `json:"kind"`
	Description     string    `json:"description"`
	DescriptionZH   string    `json:"description_zh,omitempty"`
	Severity        Severity  `json:"severity"`
	Layer           Layer     `json:"layer"`
	Location        *Location `json:"location,omitempty"`
	FabricationRisk bool      `json:"fabrication_risk"`
}

// String renders the issue for prompts and logs.
func (i Issue) String() string {
	if i.Location != nil && i.Location.Paragraph != nil {
		return fmt.Sprintf("[%s/%s] %s (paragraph %d)", i.Layer, i.Severity, i.Description, *i.Location.Paragraph)
	}
	return fmt.Sprintf("[%s/%s] %s", i.Layer, i.Severity, i.Description)
}
