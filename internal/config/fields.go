package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/fenggwsx/RoomGate/internal/fields"
)

// HeaderField is one entry of socket.headerFields: either a bare name or a
// {key, header, required} mapping.
type HeaderField struct {
	Name       string
	Descriptor *fields.Descriptor
}

// HeaderFields is the ordered header field list as configured.
type HeaderFields []HeaderField

// UnmarshalYAML accepts a scalar name or a mapping. Any other node kind is
// a configuration error.
func (f *HeaderField) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		f.Name = node.Value
		return nil
	case yaml.MappingNode:
		var d fields.Descriptor
		if err := node.Decode(&d); err != nil {
			return &fields.ConfigurationError{Index: -1, Item: fmt.Sprintf("at line %d", node.Line), Reason: err.Error()}
		}
		f.Descriptor = &d
		return nil
	default:
		return &fields.ConfigurationError{
			Index:  -1,
			Item:   fmt.Sprintf("at line %d", node.Line),
			Reason: "not a name or descriptor",
		}
	}
}

// Items converts the configured list into resolver input.
func (h HeaderFields) Items() []fields.Item {
	items := make([]fields.Item, 0, len(h))
	for _, f := range h {
		if f.Descriptor != nil {
			items = append(items, *f.Descriptor)
			continue
		}
		items = append(items, fields.Name(f.Name))
	}
	return items
}
