package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketresearch/internal/adapters/ai"
	"marketresearch/pkg/errors"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    string
		wantErr bool
	}{
		{name: "valid", args: `{"query":"retail AI"}`, want: "retail AI"},
		{name: "extra fields ignored", args: `{"query":"x","region":"us"}`, want: "x"},
		{name: "empty", args: ``, wantErr: true},
		{name: "not json", args: `retail AI`, wantErr: true},
		{name: "array", args: `["retail"]`, wantErr: true},
		{name: "missing query", args: `{"q":"x"}`, wantErr: true},
		{name: "non-string query", args: `{"query":42}`, wantErr: true},
		{name: "blank query", args: `{"query":"  "}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseQuery(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToolBindingExecute(t *testing.T) {
	var seen string
	binding := NewWebSearchBinding("Search the web", func(_ context.Context, q string) (string, error) {
		seen = q
		return "result line", nil
	})

	def := binding.Definition()
	assert.Equal(t, WebSearchToolName, def.Name)
	assert.Equal(t, "Search the web", def.Description)
	assert.Equal(t, "object", def.Parameters["type"])

	obs, err := binding.Execute(context.Background(), ai.ToolCall{ID: "1", Name: WebSearchToolName, Arguments: `{"query":"acme"}`})
	require.NoError(t, err)
	assert.Equal(t, "result line", obs)
	assert.Equal(t, "acme", seen)
}

func TestToolBindingExecuteMalformed(t *testing.T) {
	binding := NewWebSearchBinding("d", func(context.Context, string) (string, error) {
		t.Fatal("search must not run for malformed calls")
		return "", nil
	})

	obs, err := binding.Execute(context.Background(), ai.ToolCall{Name: WebSearchToolName, Arguments: `{`})
	assert.True(t, errors.Is(err, errors.ErrMalformedToolCall))
	assert.Contains(t, obs, "Invalid or incomplete tool call: ")

	obs, err = binding.Execute(context.Background(), ai.ToolCall{Name: "calculator", Arguments: `{"query":"1+1"}`})
	assert.True(t, errors.Is(err, errors.ErrMalformedToolCall))
	assert.Contains(t, obs, "web_search")
}

func TestToolBindingEmptyResult(t *testing.T) {
	binding := NewWebSearchBinding("d", func(context.Context, string) (string, error) {
		return " ", nil
	})

	obs, err := binding.Execute(context.Background(), ai.ToolCall{Name: WebSearchToolName, Arguments: `{"query":"x"}`})
	require.NoError(t, err)
	assert.Equal(t, "No results found.", obs)
}
