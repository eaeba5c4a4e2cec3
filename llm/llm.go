// Package llm talks to an OpenAI-compatible chat-completion gateway. Calls
// are either schema-constrained tool calls or JSON-mode completions, plus
// image generation for post artwork.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Tool is a function definition the model is forced to call. Parameters is a
// JSON Schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a single-turn completion.
type Request struct {
	System string
	Prompt string
	// Tool, when set, forces the model to answer through this function.
	Tool *Tool
	// JSON requests a bare JSON object answer when Tool is nil.
	JSON        bool
	Temperature float32
}

// Response carries the model's answer.
type Response struct {
	Content       string
	ToolArguments string
	Model         string
}

// Raw returns the text the structured answer should be decoded from.
func (r Response) Raw() string {
	if r.ToolArguments != "" {
		return r.ToolArguments
	}
	return r.Content
}

// Decode unmarshals the structured answer into v. Prose around the JSON,
// markdown fences, comments and trailing commas are tolerated.
func (r Response) Decode(v any) error {
	raw := r.Raw()
	if trimmed := strings.TrimSpace(raw); json.Valid([]byte(trimmed)) {
		if err := json.Unmarshal([]byte(trimmed), v); err != nil {
			return &ParseError{Raw: raw, Err: err}
		}
		return nil
	}
	cleaned := ExtractJSON(raw)
	if cleaned == "" {
		return &ParseError{Raw: raw, Err: fmt.Errorf("no JSON object in response")}
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return &ParseError{Raw: raw, Err: err}
	}
	return nil
}

// Gateway is the LLM surface the rest of leadpress depends on.
type Gateway interface {
	Complete(ctx context.Context, req Request) (Response, error)
	// GenerateImage returns the raw bytes of an image for prompt.
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// ObjectSchema builds a JSON Schema object with the given properties, all
// of them required.
func ObjectSchema(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	sort.Strings(required)
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// StringArray is the schema of a list of strings.
func StringArray(description string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": description}
}

// String is the schema of a string property.
func String(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// Integer is the schema of a bounded integer property.
func Integer(description string, min, max int) map[string]any {
	return map[string]any{"type": "integer", "description": description, "minimum": min, "maximum": max}
}
