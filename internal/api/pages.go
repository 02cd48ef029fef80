package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"marketresearch/internal/agents"
)

//go:embed web/*.html
var webFS embed.FS

// Section headings, in pipeline order
const (
	HeadingIndustryAnalysis = "Industry Analysis"
	HeadingUseCases         = "AI/ML Use Cases"
	HeadingResources        = "Implementation Resources"
)

var stageHeadings = map[agents.AgentType]string{
	agents.AgentResearch: HeadingIndustryAnalysis,
	agents.AgentMarket:   HeadingUseCases,
	agents.AgentResource: HeadingResources,
}

type pageData struct {
	Company  string
	Industry string
	Error    string
	Warning  string
	Result   *resultView
}

type resultView struct {
	ID       string
	Sections []sectionView
	Elapsed  string
	Tokens   string
}

type sectionView struct {
	Heading string
	Content string
	Failed  bool
	Kind    string
}

func parsePages() (*template.Template, error) {
	return template.ParseFS(webFS, "web/index.html")
}

func newResultView(result *agents.AnalysisResult) *resultView {
	view := &resultView{
		ID:      result.ID,
		Elapsed: humanDuration(result.Duration),
		Tokens:  humanize.Comma(int64(result.TotalUsage().TotalTokens)),
	}

	texts := map[agents.AgentType]string{
		agents.AgentResearch: result.IndustryAnalysis,
		agents.AgentMarket:   result.UseCases,
		agents.AgentResource: result.Resources,
	}
	for _, t := range agents.AgentTypes() {
		section := sectionView{Heading: stageHeadings[t], Content: texts[t]}
		if stage, ok := result.Stage(t); ok && stage.Status == agents.StageError {
			section.Failed = true
			section.Kind = stage.Kind.String()
		}
		view.Sections = append(view.Sections, section)
	}
	return view
}

// humanDuration renders "12 seconds"; sub-second runs read "less than a second".
func humanDuration(d time.Duration) string {
	if d < time.Second {
		return "less than a second"
	}
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now.Add(-d), now, "", ""))
}

func (h *Handlers) renderPage(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, "index.html", data); err != nil {
		h.log.Errorw("Failed to render page", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
