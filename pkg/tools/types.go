package tools

import (
	"context"
	"fmt"
	"strings"
)

// PartType tags a content part in a tool result.
type PartType string

const (
	// PartText is the only part kind currently produced by tools.
	PartText PartType = "text"
)

// Part is one piece of tool output content.
type Part struct {
	Type PartType `json:"type"`
	Text string   `json:"text,omitempty"`
}

// Result is the ordered content produced by one tool invocation. IsError
// marks results that carry an error message instead of tool output; the
// session that requested them stays open either way.
type Result struct {
	Parts   []Part `json:"parts"`
	IsError bool   `json:"is_error,omitempty"`
}

// Text joins all text parts into one string.
func (r Result) Text() string {
	texts := make([]string, 0, len(r.Parts))
	for _, p := range r.Parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// TextResult builds a single-part text result.
func TextResult(format string, args ...interface{}) Result {
	return Result{
		Parts: []Part{{Type: PartText, Text: fmt.Sprintf(format, args...)}},
	}
}

// ErrorResult builds a single-part textual error result.
func ErrorResult(format string, args ...interface{}) Result {
	return Result{
		Parts:   []Part{{Type: PartText, Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

// Param describes one named tool parameter.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, number, integer, boolean, object, array
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Descriptor describes a tool: its unique name, what it does, and the shape
// of its arguments. Immutable after registration.
type Descriptor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

// InputSchema renders the descriptor's parameters as a JSON Schema document,
// the shape advertised to planners and capability-discovery callers.
func (d Descriptor) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(d.Params))
	required := []string{}

	for _, param := range d.Params {
		properties[param.Name] = map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Handler executes one validated tool invocation. Handlers may fail with an
// error; the dispatch boundary converts it to a textual error result.
type Handler func(ctx context.Context, args map[string]interface{}) (Result, error)
