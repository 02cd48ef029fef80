package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"marketresearch/internal/adapters/config"
	"marketresearch/pkg/errors"
	"marketresearch/pkg/logger"
)

// SourceDuckDuckGo is reported as the source of every metadata record.
const SourceDuckDuckGo = "DuckDuckGo"

// NoResults is returned by Run when the query matched nothing.
const NoResults = "No good DuckDuckGo Search Result was found"

// Result is one organic search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Line renders the result the way it is shown to a model.
func (r Result) Line() string {
	var b strings.Builder
	b.WriteString(r.Title)
	if r.Snippet != "" {
		b.WriteString(": ")
		b.WriteString(r.Snippet)
	}
	if r.URL != "" {
		fmt.Fprintf(&b, " (%s)", r.URL)
	}
	return b.String()
}

// Metadata is a search line tagged with the query that produced it.
type Metadata struct {
	Content string `json:"content"`
	Query   string `json:"query"`
	Source  string `json:"source"`
}

// DuckDuckGo queries the DuckDuckGo HTML endpoint and scrapes organic results.
type DuckDuckGo struct {
	baseURL    string
	region     string
	userAgent  string
	maxResults int
	timeout    time.Duration
	client     *http.Client
	log        *logger.Logger
}

// NewDuckDuckGo creates a searcher from configuration.
func NewDuckDuckGo(cfg config.SearchConfig) *DuckDuckGo {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}

	return &DuckDuckGo{
		baseURL:    cfg.BaseURL,
		region:     cfg.Region,
		userAgent:  cfg.UserAgent,
		maxResults: maxResults,
		timeout:    timeout,
		client:     &http.Client{Timeout: timeout},
		log:        logger.Get().With("component", "duckduckgo"),
	}
}

// Search returns up to maxResults organic results.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.NewValidationError("query", "must not be empty", query)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("q", query)
	if d.region != "" {
		form.Set("kl", d.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "create search request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("search %q: %w: %w", query, errors.ErrTimeout, err)
		}
		return nil, fmt.Errorf("search %q: %w: %w", query, errors.ErrExternal, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrExternal, "duckduckgo returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "parse search results")
	}

	results := parseResults(doc, d.maxResults)
	d.log.Debugw("search completed", "query", query, "results", len(results))

	return results, nil
}

// Run returns results as newline-delimited text for the tool binding.
func (d *DuckDuckGo) Run(ctx context.Context, query string) (string, error) {
	results, err := d.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return NoResults, nil
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, r.Line())
	}
	return strings.Join(lines, "\n"), nil
}

// SearchWithMetadata splits Run output into at most numResults tagged records.
// Failures are logged and yield an empty slice.
func (d *DuckDuckGo) SearchWithMetadata(ctx context.Context, query string, numResults int) []Metadata {
	if numResults <= 0 {
		numResults = d.maxResults
	}

	raw, err := d.Run(ctx, query)
	if err != nil {
		d.log.Warnw("error in web search", "query", query, "error", err)
		return []Metadata{}
	}

	records := make([]Metadata, 0, numResults)
	for _, line := range strings.Split(raw, "\n") {
		if len(records) == numResults {
			break
		}
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		records = append(records, Metadata{Content: line, Query: query, Source: SourceDuckDuckGo})
	}
	return records
}

func parseResults(doc *goquery.Document, limit int) []Result {
	var results []Result

	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		// Sponsored entries carry the result--ad modifier
		if s.HasClass("result--ad") {
			return true
		}

		link := s.Find("a.result__a").First()
		title := collapse(link.Text())
		if title == "" {
			return true
		}

		href, _ := link.Attr("href")
		results = append(results, Result{
			Title:   title,
			URL:     resolveRedirect(href),
			Snippet: collapse(s.Find(".result__snippet").First().Text()),
		})

		return len(results) < limit
	})

	return results
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= click-through links.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
