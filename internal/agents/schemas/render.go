package schemas

import (
	"fmt"
	"strings"

	"marketresearch/pkg/templates"
)

// Markdown renders the industry analysis for display.
func (r ResearchResponse) Markdown() string {
	a := r.IndustryAnalysis
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.Overview))
	writeSection(&b, "Key Players", a.KeyPlayers)
	writeSection(&b, "Technology Trends", a.TechTrends)
	writeSection(&b, "Opportunities", a.Opportunities)
	writeSection(&b, "Challenges", a.Challenges)
	return b.String()
}

// Markdown renders the use cases for display, one heading per use case.
func (r MarketResponse) Markdown() string {
	parts := make([]string, 0, len(r.UseCases))
	for i, uc := range r.UseCases {
		parts = append(parts, fmt.Sprintf("### %d. %s\n%s\n\n- **Priority:** %s\n- **Complexity:** %s\n- **Expected impact:** %s",
			i+1, uc.Title, strings.TrimSpace(uc.Description), uc.Priority, uc.Complexity, uc.ExpectedImpact))
	}
	return strings.Join(parts, "\n\n")
}

// Markdown renders the resources as a linked list.
func (r ResourceResponse) Markdown() string {
	lines := make([]string, 0, len(r.Resources))
	for _, res := range r.Resources {
		title := res.Title
		if strings.Contains(res.URL, "://") {
			title = fmt.Sprintf("[%s](%s)", res.Title, res.URL)
		} else if res.URL != "" {
			title = fmt.Sprintf("%s (%s)", res.Title, res.URL)
		}
		lines = append(lines, fmt.Sprintf("- %s: %s _%s_", title, strings.TrimSpace(res.Description), res.QualityAssessment))
	}
	return strings.Join(lines, "\n")
}

func writeSection(b *strings.Builder, heading string, items []string) {
	list := templates.Bullets(items)
	if list == "" {
		return
	}
	fmt.Fprintf(b, "\n\n**%s**\n%s", heading, list)
}
