package templates

import (
	"strings"
	"text/template"
)

// FuncMap returns the helpers available to every prompt template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"join":  strings.Join,
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
		"trim":  strings.TrimSpace,
		"bullets": func(items []string) string {
			return Bullets(items)
		},
	}
}

// Bullets renders items as a Markdown bullet list, skipping blank entries.
func Bullets(items []string) string {
	var b strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// PromptData is the input shared by stage prompt templates.
type PromptData struct {
	Company  string
	Industry string
	Levels   []string
}
