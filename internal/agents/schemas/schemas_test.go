package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketresearch/pkg/errors"
)

const validMarket = `Here is the analysis:
` + "```json" + `
{
  "use_cases": [
    {
      "title": "Demand forecasting",
      "description": "Predict store-level demand with gradient boosted trees.",
      "priority": "High",
      "complexity": "Medium",
      "expected_impact": "Lower stockouts"
    }
  ]
}
` + "```"

func TestParseMarketResponse(t *testing.T) {
	resp, err := Parse[MarketResponse](validMarket)
	require.NoError(t, err)
	require.Len(t, resp.UseCases, 1)
	assert.Equal(t, LevelHigh, resp.UseCases[0].Priority)
	assert.Equal(t, LevelMedium, resp.UseCases[0].Complexity)

	md := resp.Markdown()
	assert.Contains(t, md, "### 1. Demand forecasting")
	assert.Contains(t, md, "**Priority:** High")
}

func TestParseFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"free text", "Acme should invest in computer vision."},
		{"bad enum", `{"use_cases":[{"title":"t","description":"d","priority":"Urgent","complexity":"Low","expected_impact":"i"}]}`},
		{"lowercase enum", `{"use_cases":[{"title":"t","description":"d","priority":"high","complexity":"Low","expected_impact":"i"}]}`},
		{"missing field", `{"use_cases":[{"title":"t","priority":"High","complexity":"Low","expected_impact":"i"}]}`},
		{"unknown field", `{"use_cases":[],"notes":"x"}`},
		{"empty list", `{"use_cases":[]}`},
		{"unterminated", `{"use_cases":[{"title":"t"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse[MarketResponse](tt.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrSchemaMismatch))
			assert.Equal(t, errors.KindSchema, errors.KindOf(err))
		})
	}
}

func TestParseResearchResponse(t *testing.T) {
	text := `{"industry_analysis":{"overview":"Retail is digitising fast.","key_players":["Walmart"],"tech_trends":["GenAI assistants"],"opportunities":["Personalisation"],"challenges":["Data silos"]}}`

	resp, err := Parse[ResearchResponse](text)
	require.NoError(t, err)

	md := resp.Markdown()
	assert.Contains(t, md, "Retail is digitising fast.")
	assert.Contains(t, md, "**Key Players**\n- Walmart")
	assert.Contains(t, md, "**Challenges**\n- Data silos")
}

func TestResearchResponseRequiresLists(t *testing.T) {
	resp := ResearchResponse{IndustryAnalysis: IndustryAnalysis{Overview: "o", KeyPlayers: []string{" "}}}
	err := resp.Validate()
	require.Error(t, err)

	var multi *errors.MultiError
	require.True(t, errors.As(err, &multi))
	assert.Len(t, multi.Errors, 4)
}

func TestParseResourceResponse(t *testing.T) {
	text := `{"resources":[
		{"title":"Forecasting with Prophet","url":"https://github.com/facebook/prophet","description":"Time series library","quality_assessment":"Mature"},
		{"title":"Retail AI guide","url":"Vendor whitepaper","description":"Overview","quality_assessment":"Introductory"}
	]}`

	resp, err := Parse[ResourceResponse](text)
	require.NoError(t, err)

	md := resp.Markdown()
	assert.Contains(t, md, "[Forecasting with Prophet](https://github.com/facebook/prophet)")
	assert.Contains(t, md, "Retail AI guide (Vendor whitepaper)")
}

func TestResourceRejectsMalformedURL(t *testing.T) {
	res := Resource{Title: "t", URL: "https://", Description: "d", QualityAssessment: "q"}
	assert.Error(t, res.Validate())
}

func TestExtractJSONObjectHandlesBracesInStrings(t *testing.T) {
	raw, ok := extractJSONObject(`prefix {"a":"x}y","b":{"c":"\"}"}} suffix`)
	require.True(t, ok)
	assert.Equal(t, `{"a":"x}y","b":{"c":"\"}"}}`, raw)
}

func TestLevels(t *testing.T) {
	assert.Equal(t, []string{"High", "Medium", "Low"}, LevelNames())
	assert.True(t, LevelLow.Valid())
	assert.False(t, Level("").Valid())
}

func TestWebSearchParameters(t *testing.T) {
	params := WebSearchParameters()
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []string{"query"}, params["required"])
}
