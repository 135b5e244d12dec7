package hierarchy

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// CodeList is a list of codes decoded from loosely-typed input such as a YAML
// or JSON codelist file. Decoding a bare string fails instead of being read
// as a one-element list.
type CodeList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *CodeList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return fmt.Errorf("%w: got single string %q, want a list of codes", ErrInvalidCodes, s)
	}
	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCodes, err)
	}
	return l.set(codes)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *CodeList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w: line %d: got %s %q, want a list of codes",
			ErrInvalidCodes, node.Line, kindName(node.Kind), node.Value)
	}
	var codes []string
	if err := node.Decode(&codes); err != nil {
		return fmt.Errorf("%w: line %d: %v", ErrInvalidCodes, node.Line, err)
	}
	return l.set(codes)
}

func (l *CodeList) set(codes []string) error {
	for i, c := range codes {
		if c == "" {
			return fmt.Errorf("%w: empty code at position %d", ErrInvalidCodes, i)
		}
	}
	*l = codes
	return nil
}

// Set returns the codes as a CodeSet.
func (l CodeList) Set() CodeSet {
	return NewCodeSet(l...)
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "node"
	}
}
