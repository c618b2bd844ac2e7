package fields

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Item is one configured header field, either a bare Name or a Descriptor.
type Item interface {
	isItem()
}

// Name is a bare field key. It reads the header Decamelize(key) and is optional.
type Name string

// Descriptor spells out a field explicitly. An empty WireName defaults to
// "x-" + Decamelize(Key).
type Descriptor struct {
	Key      string `yaml:"key" json:"key"`
	WireName string `yaml:"header" json:"header,omitempty"`
	Required bool   `yaml:"required" json:"required,omitempty"`
}

func (Name) isItem()       {}
func (Descriptor) isItem() {}

// Spec is a resolved field.
type Spec struct {
	Key      string
	WireName string
	Required bool
}

// Table is the resolved, key-sorted field list. It is read-only after Resolve.
type Table []Spec

// ConfigurationError reports a malformed field item. The service must not
// start when one is returned. Index is -1 when the position is unknown.
type ConfigurationError struct {
	Index  int
	Item   any
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("header field %v: %s", e.Item, e.Reason)
	}
	return fmt.Sprintf("header field %d (%v): %s", e.Index, e.Item, e.Reason)
}

// Resolve normalizes items into a Table sorted by key.
func Resolve(items []Item) (Table, error) {
	table := make(Table, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for i, item := range items {
		if d, ok := item.(*Descriptor); ok && d != nil {
			item = *d
		}

		var spec Spec
		switch it := item.(type) {
		case Name:
			key := strings.TrimSpace(string(it))
			if key == "" {
				return nil, &ConfigurationError{Index: i, Item: item, Reason: "empty name"}
			}
			spec = Spec{Key: key, WireName: Decamelize(key)}
		case Descriptor:
			key := strings.TrimSpace(it.Key)
			if key == "" {
				return nil, &ConfigurationError{Index: i, Item: item, Reason: "descriptor without key"}
			}
			wire := it.WireName
			if wire == "" {
				wire = "x-" + Decamelize(key)
			}
			spec = Spec{Key: key, WireName: wire, Required: it.Required}
		default:
			return nil, &ConfigurationError{Index: i, Item: item, Reason: "not a name or descriptor"}
		}

		if _, dup := seen[spec.Key]; dup {
			return nil, &ConfigurationError{Index: i, Item: item, Reason: "duplicate key " + spec.Key}
		}
		seen[spec.Key] = struct{}{}
		table = append(table, spec)
	}

	sort.SliceStable(table, func(a, b int) bool { return table[a].Key < table[b].Key })
	return table, nil
}

// Keys returns the field keys in table order.
func (t Table) Keys() []string {
	keys := make([]string, len(t))
	for i, spec := range t {
		keys[i] = spec.Key
	}
	return keys
}

// WireNames returns the header names in table order.
func (t Table) WireNames() []string {
	names := make([]string, len(t))
	for i, spec := range t {
		names[i] = spec.WireName
	}
	return names
}

// Decamelize splits s before every upper-case letter and lower-cases the
// result: "tenantId" -> "tenant-id", "userID" -> "user-i-d".
func Decamelize(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
