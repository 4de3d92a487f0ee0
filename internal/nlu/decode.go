package nlu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/semlayer/internal/intent"
)

// StripFences removes a surrounding Markdown code fence, with or without
// a language tag, and trims whitespace.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Drop the language tag line, e.g. ```json
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.ContainsAny(text[:nl], "{[") {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// DecodeResponse parses a model response into an intent. A {"no_match"}
// response becomes a *NoMatchError; anything else must be a valid intent
// wire form.
func DecodeResponse(question, text string) (*intent.StructuredIntent, error) {
	body := StripFences(text)
	if body == "" {
		return nil, &NoMatchError{Question: question, Reason: "empty response"}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var node any
	if err := dec.Decode(&node); err != nil {
		return nil, fmt.Errorf("model response is not JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("model response has trailing content after the JSON object")
	}

	if m, ok := node.(map[string]any); ok {
		if reason, ok := m["no_match"]; ok {
			r, _ := reason.(string)
			return nil, &NoMatchError{Question: question, Reason: r}
		}
	}

	in, err := intent.FromNode(node)
	if err != nil {
		return nil, fmt.Errorf("model response: %w", err)
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("model response: %w", err)
	}
	return in, nil
}

// EncodeIntent is the cache serialization of an intent.
func EncodeIntent(in *intent.StructuredIntent) ([]byte, error) {
	return json.Marshal(in)
}

// DecodeIntent reverses EncodeIntent.
func DecodeIntent(data []byte) (*intent.StructuredIntent, error) {
	return intent.Parse(bytes.TrimSpace(data))
}
