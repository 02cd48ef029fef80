package schemas

import (
	"fmt"
	"net/url"
	"strings"

	"marketresearch/pkg/errors"
)

// Level is the shared High/Medium/Low scale.
type Level string

const (
	LevelHigh   Level = "High"
	LevelMedium Level = "Medium"
	LevelLow    Level = "Low"
)

// PriorityLevel ranks a use case by business value.
type PriorityLevel = Level

// ComplexityLevel ranks a use case by implementation effort.
type ComplexityLevel = Level

// Levels lists the scale from highest to lowest.
func Levels() []Level {
	return []Level{LevelHigh, LevelMedium, LevelLow}
}

// LevelNames returns the scale as plain strings.
func LevelNames() []string {
	names := make([]string, 0, 3)
	for _, l := range Levels() {
		names = append(names, string(l))
	}
	return names
}

// Valid reports whether l is one of the three levels (exact case).
func (l Level) Valid() bool {
	switch l {
	case LevelHigh, LevelMedium, LevelLow:
		return true
	default:
		return false
	}
}

// ============================================================================
// Research stage
// ============================================================================

// IndustryAnalysis is the research agent's structured view of an industry.
type IndustryAnalysis struct {
	Overview      string   `json:"overview"`
	KeyPlayers    []string `json:"key_players"`
	TechTrends    []string `json:"tech_trends"`
	Opportunities []string `json:"opportunities"`
	Challenges    []string `json:"challenges"`
}

// Validate checks required fields.
func (a IndustryAnalysis) Validate() error {
	var errs errors.MultiError
	requireText(&errs, "industry_analysis.overview", a.Overview)
	requireList(&errs, "industry_analysis.key_players", a.KeyPlayers)
	requireList(&errs, "industry_analysis.tech_trends", a.TechTrends)
	requireList(&errs, "industry_analysis.opportunities", a.Opportunities)
	requireList(&errs, "industry_analysis.challenges", a.Challenges)
	return errs.ToError()
}

// ResearchResponse wraps the research stage output.
type ResearchResponse struct {
	IndustryAnalysis IndustryAnalysis `json:"industry_analysis"`
}

// Validate checks required fields.
func (r ResearchResponse) Validate() error {
	return r.IndustryAnalysis.Validate()
}

// ============================================================================
// Market stage
// ============================================================================

// UseCase is one AI/ML opportunity proposed by the market agent.
type UseCase struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Priority       PriorityLevel   `json:"priority"`
	Complexity     ComplexityLevel `json:"complexity"`
	ExpectedImpact string          `json:"expected_impact"`
}

// Validate checks required fields and enumerations.
func (u UseCase) Validate() error {
	var errs errors.MultiError
	requireText(&errs, "title", u.Title)
	requireText(&errs, "description", u.Description)
	requireText(&errs, "expected_impact", u.ExpectedImpact)
	if !u.Priority.Valid() {
		errs.Add(errors.NewValidationError("priority", "must be High, Medium or Low", u.Priority))
	}
	if !u.Complexity.Valid() {
		errs.Add(errors.NewValidationError("complexity", "must be High, Medium or Low", u.Complexity))
	}
	return errs.ToError()
}

// MarketResponse wraps the market stage output.
type MarketResponse struct {
	UseCases []UseCase `json:"use_cases"`
}

// Validate checks every use case; at least one is required.
func (r MarketResponse) Validate() error {
	if len(r.UseCases) == 0 {
		return errors.NewValidationError("use_cases", "at least one use case is required", 0)
	}
	var errs errors.MultiError
	for i, uc := range r.UseCases {
		if err := uc.Validate(); err != nil {
			errs.Add(errors.Wrapf(err, "use_cases[%d]", i))
		}
	}
	return errs.ToError()
}

// ============================================================================
// Resource stage
// ============================================================================

// Resource is one implementation reference found by the resource agent.
type Resource struct {
	Title             string `json:"title"`
	URL               string `json:"url"`
	Description       string `json:"description"`
	QualityAssessment string `json:"quality_assessment"`
}

// Validate checks required fields. URL may be a bare source name but must not be blank.
func (r Resource) Validate() error {
	var errs errors.MultiError
	requireText(&errs, "title", r.Title)
	requireText(&errs, "url", r.URL)
	requireText(&errs, "description", r.Description)
	requireText(&errs, "quality_assessment", r.QualityAssessment)
	if strings.Contains(r.URL, "://") {
		if u, err := url.Parse(r.URL); err != nil || u.Host == "" {
			errs.Add(errors.NewValidationError("url", "malformed URL", r.URL))
		}
	}
	return errs.ToError()
}

// ResourceResponse wraps the resource stage output.
type ResourceResponse struct {
	Resources []Resource `json:"resources"`
}

// Validate checks every resource; at least one is required.
func (r ResourceResponse) Validate() error {
	if len(r.Resources) == 0 {
		return errors.NewValidationError("resources", "at least one resource is required", 0)
	}
	var errs errors.MultiError
	for i, res := range r.Resources {
		if err := res.Validate(); err != nil {
			errs.Add(errors.Wrapf(err, "resources[%d]", i))
		}
	}
	return errs.ToError()
}

func requireText(errs *errors.MultiError, field, value string) {
	if strings.TrimSpace(value) == "" {
		errs.Add(errors.NewValidationError(field, "is required", value))
	}
}

func requireList(errs *errors.MultiError, field string, values []string) {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return
		}
	}
	errs.Add(errors.NewValidationError(field, "needs at least one entry", fmt.Sprintf("%d items", len(values))))
}
