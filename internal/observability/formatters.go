// Package observability provides formatted output utilities for the audit CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/textaudit/layered-audit/internal/pipeline"
	"github.com/textaudit/layered-audit/internal/pipeline/steps"
	"github.com/textaudit/layered-audit/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out     io.Writer
	verbose bool
}

// NewPrinter creates a new Printer that writes to the given writer.
// A verbose printer lists every issue and metric instead of the first few.
func NewPrinter(out io.Writer, verbose bool) *Printer {
	return &Printer{out: out, verbose: verbose}
}

func (p *Printer) limit(n int) int {
	if p.verbose {
		return n
	}
	return min(n, maxItemsToShow)
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintStageCatalogue outputs the stages in canonical order with their dependencies.
func (p *Printer) PrintStageCatalogue(catalogue []steps.StepDefinition) {
	if len(catalogue) == 0 {
		return
	}

	var sb strings.Builder
	for i, def := range catalogue {
		sb.WriteString(fmt.Sprintf("%d. %s  %s\n", i+1, def.ID, def.Title))
		sb.WriteString(fmt.Sprintf("   layer: %s, analyzer: %s\n", def.Layer, def.Analyzer))
		if def.Context != types.ContextNone {
			need := "optional"
			if def.ContextRequired {
				need = "required"
			}
			sb.WriteString(fmt.Sprintf("   context: %s (%s)\n", def.Context, need))
		}
		if len(def.Dependencies) > 0 {
			sb.WriteString(fmt.Sprintf("   after: %s\n", joinIDs(def.Dependencies)))
		}
		if len(def.Optional) > 0 {
			sb.WriteString(fmt.Sprintf("   after if scheduled: %s\n", joinIDs(def.Optional)))
		}
	}

	p.printBox("AUDIT STAGES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStageResult outputs the risk, metrics and issues of one analysed stage.
func (p *Printer) PrintStageResult(def types.StageDef, analysis *pipeline.Analysis) {
	if analysis == nil || analysis.Result == nil {
		return
	}
	result := analysis.Result

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Layer:  %s\n", def.Layer))
	sb.WriteString(fmt.Sprintf("Risk:   %s (score %.0f)\n", result.RiskLevel, result.RiskScore))

	if len(result.Metrics) > 0 {
		sb.WriteString("\nMetrics:\n")
		count := p.limit(len(result.Metrics))
		for _, m := range result.Metrics[:count] {
			sb.WriteString(fmt.Sprintf("  • %s: %.2f", m.Name, m.Value))
			if m.Unit != "" {
				sb.WriteString(" " + m.Unit)
			}
			sb.WriteString("\n")
		}
		if len(result.Metrics) > count {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(result.Metrics)-count))
		}
	}

	sb.WriteString("\n")
	if len(analysis.Issues) == 0 {
		sb.WriteString("No issues found.\n")
	} else {
		sb.WriteString(fmt.Sprintf("Issues (%d):\n", len(analysis.Issues)))
		count := p.limit(len(analysis.Issues))
		for i, issue := range analysis.Issues[:count] {
			sb.WriteString(fmt.Sprintf("  %d. [%s] %s\n", i, issue.Severity, issue.Description))
			if issue.Location != nil && issue.Location.Paragraph != nil {
				sb.WriteString(fmt.Sprintf("     paragraph %d\n", *issue.Location.Paragraph))
			}
			if issue.FabricationRisk {
				sb.WriteString("     rewriting may add unsupported detail\n")
			}
		}
		if len(analysis.Issues) > count {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(analysis.Issues)-count))
		}
	}

	p.printBox(fmt.Sprintf("%s  %s", def.Step, strings.ToUpper(def.Title)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAuditSummary outputs the status of every stage of a workflow run in canonical order.
func (p *Printer) PrintAuditSummary(result *pipeline.WorkflowResult) {
	if result == nil || len(result.Statuses) == 0 {
		return
	}

	var sb strings.Builder
	counts := make(map[steps.StepStatus]int)
	totalIssues := 0
	for _, id := range steps.Order() {
		status, ok := result.Statuses[id]
		if !ok {
			continue
		}
		counts[status]++

		line := fmt.Sprintf("%-15s %-10s", id, status)
		if a := result.Analyses[id]; a != nil && a.Result != nil {
			totalIssues += len(a.Issues)
			line += fmt.Sprintf(" %s risk, %d issues", a.Result.RiskLevel, len(a.Issues))
		} else if msg := result.Errors[id]; msg != "" {
			line += " " + msg
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString(fmt.Sprintf("\nCompleted: %d  Failed: %d  Blocked: %d\n",
		counts[steps.StatusCompleted], counts[steps.StatusFailed], counts[steps.StatusBlocked]))
	sb.WriteString(fmt.Sprintf("Total issues: %d", totalIssues))

	p.printBox("AUDIT SUMMARY", sb.String())
}

func joinIDs(ids []types.StageID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
