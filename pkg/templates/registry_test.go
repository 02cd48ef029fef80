package templates

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLoadAndRender(t *testing.T) {
	fsys := fstest.MapFS{
		"agents/analyst.tmpl": {Data: []byte("Hello {{.Name}}\n")},
		"prompts/stage.tmpl":  {Data: []byte("Company {{.Company}} / {{bullets .Items}}")},
		"README.md":           {Data: []byte("not a template")},
	}

	reg, err := NewRegistryFromFS(fsys)
	require.NoError(t, err)

	tmpl, err := reg.GetTemplate("agents/analyst")
	require.NoError(t, err)

	rendered, err := tmpl.Render(map[string]string{"Name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice", rendered)

	rendered, err = reg.Render("prompts/stage", map[string]any{"Company": "Acme", "Items": []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "Company Acme / - a", rendered)

	_, err = reg.GetTemplate("README")
	require.Error(t, err)
}

func TestRegistryRejectsBrokenTemplate(t *testing.T) {
	_, err := NewRegistryFromFS(fstest.MapFS{
		"agents/broken.tmpl": {Data: []byte("{{.Name")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse template agents/broken")
}

func TestRegistryMissingTemplate(t *testing.T) {
	reg, err := NewRegistryFromFS(fstest.MapFS{})
	require.NoError(t, err)

	_, err = reg.Render("agents/unknown", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template not found")
}

func TestEmbeddedStagePrompts(t *testing.T) {
	reg := Get()
	data := PromptData{Company: "Acme", Industry: "Retail"}

	tests := []struct {
		id   string
		want string
	}{
		{"prompts/research", "Analyze the company Acme in the Retail industry"},
		{"prompts/market", "Generate AI/ML use cases for Acme in Retail"},
		{"prompts/resource", "Find implementation resources for Acme in Retail"},
		{"tools/research", "Search the web for information about companies and industries"},
		{"tools/market", "Search for AI/ML use cases and market trends"},
		{"tools/resource", "Search for AI/ML implementation resources, tutorials, and documentation"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := reg.Render(tt.id, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmbeddedPersonasMentionTool(t *testing.T) {
	reg := Get()
	for _, id := range []string{"agents/research", "agents/market", "agents/resource"} {
		got, err := reg.Render(id, nil)
		require.NoError(t, err, id)
		assert.True(t, strings.HasPrefix(got, "You are an expert"), id)
		assert.True(t, strings.HasSuffix(got, "use the web_search tool."), id)
	}
}

func TestStructuredTemplateUsesLevels(t *testing.T) {
	got, err := Get().Render("structured/market", PromptData{
		Company:  "Acme",
		Industry: "Retail",
		Levels:   []string{"High", "Medium", "Low"},
	})
	require.NoError(t, err)
	assert.Contains(t, got, `"priority": "High|Medium|Low"`)
	assert.Contains(t, got, "Acme in Retail")
}

func TestBullets(t *testing.T) {
	assert.Equal(t, "- a\n- b", Bullets([]string{"a", " ", "b "}))
	assert.Equal(t, "", Bullets(nil))
}
