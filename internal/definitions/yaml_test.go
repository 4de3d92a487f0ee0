package definitions

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseYAML_Scalars(t *testing.T) {
	doc, err := parseYAML([]byte(`
int: 69000
decimal: 1000.50
negative: -3
bool: true
null_value: ~
date: 2014-01-01
quoted: "0042"
list: [1, two]
`))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"int":        json.Number("69000"),
		"decimal":    json.Number("1000.50"),
		"negative":   json.Number("-3"),
		"bool":       true,
		"null_value": nil,
		"date":       "2014-01-01",
		"quoted":     "0042",
		"list":       []any{json.Number("1"), "two"},
	}, doc)
}

func TestParseYAML_MergeKeys(t *testing.T) {
	doc, err := parseYAML([]byte(`
base: &base {type: numeric, owner: analytics}
derived:
  <<: *base
  owner: finance
  name: amount
`))
	require.NoError(t, err)

	derived := doc.(map[string]any)["derived"]
	assert.Equal(t, map[string]any{"type": "numeric", "owner": "finance", "name": "amount"}, derived)
}

func TestParseYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate key", "a: 1\na: 2\n"},
		{"syntax", "a: [1, 2\n"},
		{"merge non-mapping", "a:\n  <<: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseYAML([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseYAML_Empty(t *testing.T) {
	doc, err := parseYAML(nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}
