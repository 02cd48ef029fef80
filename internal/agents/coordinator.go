package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"marketresearch/internal/adapters/ai"
	"marketresearch/internal/adapters/config"
	"marketresearch/internal/agents/schemas"
	"marketresearch/internal/events"
	"marketresearch/internal/metrics"
	"marketresearch/pkg/errors"
	"marketresearch/pkg/logger"
	"marketresearch/pkg/templates"
)

// Responder is one pipeline stage as seen by the coordinator.
type Responder interface {
	Name() string
	Run(ctx context.Context, prompt string) (*Outcome, error)
}

// StageStatus is the outcome of one stage.
type StageStatus string

const (
	StageOK    StageStatus = "ok"
	StageError StageStatus = "error"
)

// Overall analysis status
const (
	AnalysisOK      = "ok"
	AnalysisPartial = "partial"
	AnalysisFailed  = "error"
)

// StageResult is the typed result of one stage. Content always holds
// displayable text, the error string when the stage failed.
type StageResult struct {
	Stage      AgentType     `json:"stage"`
	Status     StageStatus   `json:"status"`
	Kind       errors.Kind   `json:"kind,omitempty"`
	Content    string        `json:"content"`
	Duration   time.Duration `json:"duration"`
	Iterations int           `json:"iterations"`
	ToolCalls  int           `json:"tool_calls"`
	Usage      ai.Usage      `json:"usage"`
}

// AnalysisResult holds the three stage answers of one run.
type AnalysisResult struct {
	ID               string        `json:"id"`
	Company          string        `json:"company_name"`
	Industry         string        `json:"industry"`
	Mode             string        `json:"mode"`
	IndustryAnalysis string        `json:"industry_analysis"`
	UseCases         string        `json:"use_cases"`
	Resources        string        `json:"resources"`
	Stages           []StageResult `json:"stages"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
}

// Stage returns the result of stage t.
func (r *AnalysisResult) Stage(t AgentType) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == t {
			return s, true
		}
	}
	return StageResult{}, false
}

// Status summarizes the stages: ok, partial or error.
func (r *AnalysisResult) Status() string {
	failed := 0
	for _, s := range r.Stages {
		if s.Status == StageError {
			failed++
		}
	}
	switch {
	case failed == 0:
		return AnalysisOK
	case failed == len(r.Stages):
		return AnalysisFailed
	default:
		return AnalysisPartial
	}
}

// TotalUsage sums token usage across stages.
func (r *AnalysisResult) TotalUsage() ai.Usage {
	var total ai.Usage
	for _, s := range r.Stages {
		total = total.Add(s.Usage)
	}
	return total
}

// CoordinatorOptions tunes execution. Zero value runs sequentially in free-text mode.
type CoordinatorOptions struct {
	Mode       string
	Structured bool
	Publisher  events.Publisher
	Tracker    errors.Tracker
	Templates  *templates.Registry
	Source     string
}

var _ Responder = (*Agent)(nil)

// Coordinator runs the three stages over one (company, industry) query.
type Coordinator struct {
	stages     map[AgentType]Responder
	mode       string
	structured bool
	publisher  events.Publisher
	tracker    errors.Tracker
	templates  *templates.Registry
	source     string
	log        *logger.Logger
}

// NewCoordinator wires three responders into a pipeline.
func NewCoordinator(research, market, resource Responder, opts CoordinatorOptions) (*Coordinator, error) {
	if research == nil || market == nil || resource == nil {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "coordinator needs all three agents")
	}

	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	switch mode {
	case "":
		mode = config.PipelineModeSequential
	case config.PipelineModeSequential, config.PipelineModeParallel:
	default:
		return nil, errors.NewConfigError("coordinator", "PIPELINE_MODE", errors.Wrapf(errors.ErrInvalidConfig, "unknown mode %q", opts.Mode))
	}

	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	reg := opts.Templates
	if reg == nil {
		reg = templates.Get()
	}
	source := opts.Source
	if source == "" {
		source = "marketresearch"
	}

	return &Coordinator{
		stages: map[AgentType]Responder{
			AgentResearch: research,
			AgentMarket:   market,
			AgentResource: resource,
		},
		mode:       mode,
		structured: opts.Structured,
		publisher:  publisher,
		tracker:    opts.Tracker,
		templates:  reg,
		source:     source,
		log:        logger.Get().With("component", "coordinator"),
	}, nil
}

// NewCoordinatorFromConfig builds all three agents on one shared provider.
// Any failure aborts; there is no partially built coordinator.
func NewCoordinatorFromConfig(cfg *config.Config, deps Deps, publisher events.Publisher) (*Coordinator, error) {
	deps.AI = cfg.AI

	// Checked here too so no provider is built without a key
	if err := checkCredential(cfg.AI); err != nil {
		return nil, err
	}
	if deps.Provider == nil {
		provider, err := ai.NewChatProvider(cfg.AI, deps.Redis)
		if err != nil {
			return nil, errors.Wrap(err, "build chat provider")
		}
		deps.Provider = provider
	}

	research, err := NewResearchAgent(deps)
	if err != nil {
		return nil, err
	}
	market, err := NewMarketAgent(deps)
	if err != nil {
		return nil, err
	}
	resource, err := NewResourceAgent(deps)
	if err != nil {
		return nil, err
	}

	return NewCoordinator(research, market, resource, CoordinatorOptions{
		Mode:       cfg.Pipeline.Mode,
		Structured: cfg.Pipeline.StructuredOutput,
		Publisher:  publisher,
		Tracker:    deps.Tracker,
		Templates:  deps.Templates,
		Source:     cfg.App.Name,
	})
}

// Mode returns the execution mode
func (c *Coordinator) Mode() string { return c.mode }

// AnalyzeCompany runs research, market and resource stages. It always returns
// a result with all three text fields set; a failed stage never affects the others.
func (c *Coordinator) AnalyzeCompany(ctx context.Context, company, industry string) *AnalysisResult {
	result := &AnalysisResult{
		ID:        uuid.New().String(),
		Company:   company,
		Industry:  industry,
		Mode:      c.mode,
		StartedAt: time.Now(),
	}
	ctx = errors.WithAnalysisID(ctx, result.ID)

	c.log.Infow("Starting analysis",
		"analysis_id", result.ID,
		"company", company,
		"industry", industry,
		"mode", c.mode,
	)

	order := AgentTypes()
	stages := make([]StageResult, len(order))
	data := templates.PromptData{Company: company, Industry: industry, Levels: schemas.LevelNames()}

	if c.mode == config.PipelineModeParallel {
		var g errgroup.Group
		g.SetLimit(len(order))
		for i, t := range order {
			g.Go(func() error {
				stages[i] = c.runStage(ctx, t, data)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, t := range order {
			stages[i] = c.runStage(ctx, t, data)
		}
	}

	result.Stages = stages
	result.Duration = time.Since(result.StartedAt)
	for _, s := range stages {
		switch s.Stage {
		case AgentResearch:
			result.IndustryAnalysis = s.Content
		case AgentMarket:
			result.UseCases = s.Content
		case AgentResource:
			result.Resources = s.Content
		}
	}

	status := result.Status()
	metrics.RecordAnalysis(c.mode, status)
	c.publish(ctx, result, status)

	c.log.Infow("Analysis finished",
		"analysis_id", result.ID,
		"status", status,
		"duration", result.Duration,
		"tokens", result.TotalUsage().TotalTokens,
	)
	return result
}

func (c *Coordinator) runStage(ctx context.Context, t AgentType, data templates.PromptData) StageResult {
	start := time.Now()
	res := StageResult{Stage: t, Status: StageOK}

	if c.tracker != nil {
		c.tracker.AddBreadcrumb(ctx, "stage started", "pipeline.stage", errors.LevelInfo, map[string]interface{}{
			"stage": t.String(),
		})
	}

	prompt, err := c.buildPrompt(t, data)
	if err != nil {
		return c.failStage(ctx, res, start, errors.Wrap(errors.ErrInternal, err.Error()))
	}

	out, err := c.stages[t].Run(ctx, prompt)
	if err == nil && out == nil {
		err = errors.Wrap(errors.ErrEmptyResponse, "no outcome")
	}
	if out != nil {
		res.Iterations = out.Iterations
		res.ToolCalls = out.ToolCalls
		res.Usage = out.Usage
	}

	switch {
	case err == nil:
		res.Content = out.Text
	case errors.Is(err, errors.ErrIterationLimit) && out != nil:
		// Best-effort text is still shown
		res.Status = StageError
		res.Kind = errors.KindLimit
		res.Content = out.Text
		res.Duration = time.Since(start)
		c.log.Warnw("Stage hit iteration limit", "stage", t, "rounds", res.Iterations)
		metrics.RecordStage(t.String(), string(res.Status), res.Kind.String(), res.Duration)
		return res
	default:
		return c.failStage(ctx, res, start, err)
	}

	if c.structured {
		rendered, err := renderStructured(t, res.Content)
		if err != nil {
			return c.failStage(ctx, res, start, err)
		}
		res.Content = rendered
	}

	res.Duration = time.Since(start)
	metrics.RecordStage(t.String(), string(res.Status), "", res.Duration)
	return res
}

func (c *Coordinator) failStage(ctx context.Context, res StageResult, start time.Time, err error) StageResult {
	stageErr := errors.NewStageError(res.Stage.String(), err)
	res.Status = StageError
	res.Kind = stageErr.Kind
	res.Content = fmt.Sprintf("Error getting response: %v", err)
	res.Duration = time.Since(start)

	c.log.Warnw("Stage failed", "stage", res.Stage, "kind", res.Kind, "error", err)
	if c.tracker != nil {
		_ = c.tracker.CaptureError(ctx, stageErr, map[string]string{"stage": res.Stage.String()})
	}
	metrics.RecordStage(res.Stage.String(), string(res.Status), res.Kind.String(), res.Duration)
	return res
}

func (c *Coordinator) buildPrompt(t AgentType, data templates.PromptData) (string, error) {
	cfg, err := ConfigFor(t)
	if err != nil {
		return "", err
	}
	prompt, err := c.templates.Render(cfg.PromptTemplate, data)
	if err != nil {
		return "", err
	}
	if !c.structured {
		return prompt, nil
	}
	contract, err := c.templates.Render(cfg.StructuredTemplate, data)
	if err != nil {
		return "", err
	}
	return prompt + "\n\n" + contract, nil
}

func renderStructured(t AgentType, text string) (string, error) {
	switch t {
	case AgentResearch:
		resp, err := schemas.Parse[schemas.ResearchResponse](text)
		if err != nil {
			return "", err
		}
		return resp.Markdown(), nil
	case AgentMarket:
		resp, err := schemas.Parse[schemas.MarketResponse](text)
		if err != nil {
			return "", err
		}
		return resp.Markdown(), nil
	case AgentResource:
		resp, err := schemas.Parse[schemas.ResourceResponse](text)
		if err != nil {
			return "", err
		}
		return resp.Markdown(), nil
	default:
		return "", errors.Wrapf(errors.ErrInternal, "no schema for stage %q", t)
	}
}

func (c *Coordinator) publish(ctx context.Context, result *AnalysisResult, status string) {
	summaries := make([]events.StageSummary, 0, len(result.Stages))
	for _, s := range result.Stages {
		summaries = append(summaries, events.StageSummary{
			Stage:      s.Stage.String(),
			Status:     string(s.Status),
			Kind:       s.Kind.String(),
			DurationMs: s.Duration.Milliseconds(),
		})
	}

	event := events.NewAnalysisCompleted(result.ID, c.source, result.Company, result.Industry,
		c.mode, status, result.StartedAt, summaries)
	if err := c.publisher.PublishAnalysisCompleted(ctx, event); err != nil {
		c.log.Warnw("Failed to publish analysis event", "analysis_id", result.ID, "error", err)
	}
}
