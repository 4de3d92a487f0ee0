package definitions

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// yamlToGeneric converts a YAML node into the same generic tree a JSON
// decoder with UseNumber produces: map[string]any, []any, string, bool,
// json.Number and nil.
func yamlToGeneric(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlToGeneric(n.Content[0])
	case yaml.AliasNode:
		return yamlToGeneric(n.Alias)
	case yaml.MappingNode:
		return yamlMapping(n)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := yamlToGeneric(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		return yamlScalar(n)
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}

// yamlMapping converts a mapping, applying "<<" merge keys. Explicit keys
// win over merged ones regardless of position.
func yamlMapping(n *yaml.Node) (map[string]any, error) {
	out := make(map[string]any, len(n.Content)/2)
	merged := map[string]any{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
		}
		if key.ShortTag() == "!!merge" {
			if err := yamlMerge(val, merged); err != nil {
				return nil, err
			}
			continue
		}
		if _, dup := out[key.Value]; dup {
			return nil, fmt.Errorf("line %d: duplicate key %q", key.Line, key.Value)
		}
		v, err := yamlToGeneric(val)
		if err != nil {
			return nil, err
		}
		out[key.Value] = v
	}
	for k, v := range merged {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out, nil
}

func yamlMerge(val *yaml.Node, into map[string]any) error {
	if val.Kind == yaml.SequenceNode {
		for _, item := range val.Content {
			if err := yamlMerge(item, into); err != nil {
				return err
			}
		}
		return nil
	}
	v, err := yamlToGeneric(val)
	if err != nil {
		return err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("line %d: merge value must be a mapping", val.Line)
	}
	for k, mv := range m {
		if _, ok := into[k]; !ok {
			into[k] = mv
		}
	}
	return nil
}

func yamlScalar(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return b, nil
	case "!!int", "!!float":
		// Keep the source text; the expression decoder picks int or decimal.
		return json.Number(n.Value), nil
	default:
		// Dates and other tagged scalars stay strings; the column type
		// decides what a literal means.
		return n.Value, nil
	}
}
