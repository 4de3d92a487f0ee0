package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/semlayer/internal/intent"
	"github.com/roach88/semlayer/internal/ir"
)

// marshalIntent converts an intent to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so equal intents store identical text.
func marshalIntent(in *intent.StructuredIntent) (string, error) {
	if in == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(in.ToIR())
	if err != nil {
		return "", fmt.Errorf("marshal intent: %w", err)
	}
	return string(data), nil
}

// marshalIDs stores a sorted id list as a canonical JSON array.
func marshalIDs(ids []string) (string, error) {
	arr := make(ir.IRArray, len(ids))
	for i, id := range ids {
		arr[i] = ir.IRString(id)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal ids: %w", err)
	}
	return string(data), nil
}

// unmarshalIDs reverses marshalIDs. Returns an empty slice, never nil.
func unmarshalIDs(data string) ([]string, error) {
	ids := []string{}
	if data == "" || data == "[]" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	return ids, nil
}
