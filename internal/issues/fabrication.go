package issues

import (
	"strings"

	"github.com/textaudit/layered-audit/internal/types"
)

// fabricationVocabulary lists the terms whose remediation could introduce
// unverified anchors, citations, data or statistics.
var fabricationVocabulary = []string{
	"anchor",
	"citation",
	"data",
	"statistic",
	"number",
	"numeric",
	"reference",
	"evidence",
	"锚点",
	"引用",
	"文献",
	"数据",
	"统计",
	"数字",
	"证据",
}

// IsFabricationRisk reports whether any of the texts mention the fabrication-risk vocabulary.
// Matching is case-insensitive.
func IsFabricationRisk(texts ...string) bool {
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, term := range fabricationVocabulary {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}

// Tag sets FabricationRisk on an issue from its kind and both description variants.
func Tag(issue types.Issue) types.Issue {
	issue.FabricationRisk = issue.FabricationRisk || IsFabricationRisk(issue.Kind, issue.Description, issue.DescriptionZH)
	return issue
}

// AnyFabricationRisk reports whether at least one issue carries the tag.
func AnyFabricationRisk(list []types.Issue) bool {
	for _, issue := range list {
		if issue.FabricationRisk {
			return true
		}
	}
	return false
}
