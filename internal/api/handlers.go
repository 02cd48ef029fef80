package api

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"marketresearch/internal/adapters/search"
	"marketresearch/internal/agents"
	"marketresearch/pkg/errors"
	"marketresearch/pkg/logger"
)

// User-facing messages
const (
	MsgMissingFields = "Please provide both company name and industry."
	MsgMissingAPIKey = "Please set your OpenAI API key in the .env file"
	MsgMissingQuery  = "Please provide a search query."
)

const (
	maxBodyBytes   = 1 << 20
	maxSourceLimit = 20
)

// Analyzer runs the three-stage pipeline.
type Analyzer interface {
	AnalyzeCompany(ctx context.Context, company, industry string) *agents.AnalysisResult
}

// SourceFinder returns the tagged search records an agent's web_search would see.
type SourceFinder interface {
	SearchWithMetadata(ctx context.Context, query string, numResults int) []search.Metadata
}

// Handlers serves the form UI and the JSON API.
type Handlers struct {
	analyzer Analyzer
	setupErr error
	sources  SourceFinder
	pages    *template.Template
	log      *logger.Logger
}

// NewHandlers builds the handlers. analyzer is nil when the pipeline could not
// be constructed; setupErr then says why and every analysis request answers 503.
func NewHandlers(analyzer Analyzer, setupErr error, log *logger.Logger) (*Handlers, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, errors.Wrap(err, "parse pages")
	}
	if log == nil {
		log = logger.Get()
	}
	return &Handlers{
		analyzer: analyzer,
		setupErr: setupErr,
		pages:    pages,
		log:      log.With("component", "http_handlers"),
	}, nil
}

// WithSources enables the source preview endpoint.
func (h *Handlers) WithSources(sources SourceFinder) *Handlers {
	h.sources = sources
	return h
}

// Ready reports whether the pipeline is available.
func (h *Handlers) Ready(context.Context) error {
	if h.analyzer != nil {
		return nil
	}
	if h.setupErr != nil {
		return h.setupErr
	}
	return errors.Wrap(errors.ErrUnavailable, "pipeline not configured")
}

// HandleIndex renders the empty form
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{}
	if h.analyzer == nil {
		data.Warning = MsgMissingAPIKey
	}
	h.renderPage(w, http.StatusOK, data)
}

// HandleAnalyzeForm validates the form and renders the three sections
func (h *Handlers) HandleAnalyzeForm(w http.ResponseWriter, r *http.Request) {
	if h.analyzer == nil {
		h.renderPage(w, http.StatusServiceUnavailable, pageData{Warning: MsgMissingAPIKey})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.renderPage(w, http.StatusBadRequest, pageData{Error: "Invalid form submission."})
		return
	}

	company := strings.TrimSpace(r.PostFormValue("company_name"))
	industry := strings.TrimSpace(r.PostFormValue("industry"))
	data := pageData{Company: company, Industry: industry}

	if company == "" || industry == "" {
		data.Error = MsgMissingFields
		h.renderPage(w, http.StatusUnprocessableEntity, data)
		return
	}

	result := h.analyzer.AnalyzeCompany(r.Context(), company, industry)
	data.Result = newResultView(result)
	h.renderPage(w, http.StatusOK, data)
}

type analysisRequest struct {
	CompanyName string `json:"company_name"`
	Industry    string `json:"industry"`
}

type stageResponse struct {
	Stage      string `json:"stage"`
	Heading    string `json:"heading"`
	Status     string `json:"status"`
	Kind       string `json:"kind,omitempty"`
	Content    string `json:"content"`
	DurationMs int64  `json:"duration_ms"`
	Iterations int    `json:"iterations"`
	ToolCalls  int    `json:"tool_calls"`
	Tokens     int    `json:"tokens"`
}

type analysisResponse struct {
	ID               string          `json:"id"`
	CompanyName      string          `json:"company_name"`
	Industry         string          `json:"industry"`
	Mode             string          `json:"mode"`
	Status           string          `json:"status"`
	IndustryAnalysis string          `json:"industry_analysis"`
	UseCases         string          `json:"use_cases"`
	Resources        string          `json:"resources"`
	Stages           []stageResponse `json:"stages"`
	DurationMs       int64           `json:"duration_ms"`
	Tokens           int             `json:"tokens"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleAnalyzeAPI is the JSON form of HandleAnalyzeForm
func (h *Handlers) HandleAnalyzeAPI(w http.ResponseWriter, r *http.Request) {
	if h.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, MsgMissingAPIKey)
		return
	}

	req, ok := readJSON[analysisRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}

	company := strings.TrimSpace(req.CompanyName)
	industry := strings.TrimSpace(req.Industry)
	if company == "" || industry == "" {
		writeError(w, http.StatusUnprocessableEntity, MsgMissingFields)
		return
	}

	result := h.analyzer.AnalyzeCompany(r.Context(), company, industry)
	writeJSON(w, http.StatusOK, toAnalysisResponse(result))
}

type sourcesResponse struct {
	Query   string            `json:"query"`
	Results []search.Metadata `json:"results"`
}

// HandleSourcesAPI previews web search records for ?q= (limit ?n=, default per config).
// It needs no API key, so it works while the pipeline is unavailable.
func (h *Handlers) HandleSourcesAPI(w http.ResponseWriter, r *http.Request) {
	if h.sources == nil {
		writeError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusUnprocessableEntity, MsgMissingQuery)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		limit = min(n, maxSourceLimit)
	}

	results := h.sources.SearchWithMetadata(r.Context(), query, limit)
	if results == nil {
		results = []search.Metadata{}
	}
	writeJSON(w, http.StatusOK, sourcesResponse{Query: query, Results: results})
}

func toAnalysisResponse(result *agents.AnalysisResult) analysisResponse {
	resp := analysisResponse{
		ID:               result.ID,
		CompanyName:      result.Company,
		Industry:         result.Industry,
		Mode:             result.Mode,
		Status:           result.Status(),
		IndustryAnalysis: result.IndustryAnalysis,
		UseCases:         result.UseCases,
		Resources:        result.Resources,
		Stages:           make([]stageResponse, 0, len(result.Stages)),
		DurationMs:       result.Duration.Milliseconds(),
		Tokens:           result.TotalUsage().TotalTokens,
	}
	for _, s := range result.Stages {
		resp.Stages = append(resp.Stages, stageResponse{
			Stage:      s.Stage.String(),
			Heading:    stageHeadings[s.Stage],
			Status:     string(s.Status),
			Kind:       s.Kind.String(),
			Content:    s.Content,
			DurationMs: s.Duration.Milliseconds(),
			Iterations: s.Iterations,
			ToolCalls:  s.ToolCalls,
			Tokens:     s.Usage.TotalTokens,
		})
	}
	return resp
}

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Get().Warnw("Failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
