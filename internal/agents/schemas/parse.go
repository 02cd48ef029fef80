package schemas

import (
	"bytes"
	"encoding/json"
	"strings"

	"marketresearch/pkg/errors"
)

// Validator is implemented by every response type.
type Validator interface {
	Validate() error
}

// Parse extracts the JSON object from model text and decodes it strictly into T.
// Unknown fields, trailing data and failed validation all yield ErrSchemaMismatch.
func Parse[T Validator](text string) (T, error) {
	var out T

	raw, ok := extractJSONObject(text)
	if !ok {
		return out, errors.Wrap(errors.ErrSchemaMismatch, "no JSON object in response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, errors.Wrapf(errors.ErrSchemaMismatch, "decode: %v", err)
	}
	if dec.More() {
		return out, errors.Wrap(errors.ErrSchemaMismatch, "trailing data after JSON object")
	}

	if err := out.Validate(); err != nil {
		return out, errors.Wrapf(errors.ErrSchemaMismatch, "validate: %v", err)
	}

	return out, nil
}

// extractJSONObject returns the first balanced {...} block, looking inside
// a fenced code block when one is present.
func extractJSONObject(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if fenced, ok := fencedBlock(text); ok {
		text = fenced
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func fencedBlock(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	body := text[open+3:]
	// Drop the info string ("json") on the opening fence line
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	end := strings.Index(body, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}

// WebSearchParameters is the JSON schema advertised for the web_search tool.
func WebSearchParameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query",
			},
		},
		"required":             []string{"query"},
		"additionalProperties": false,
	}
}
