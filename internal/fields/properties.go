package fields

import (
	"strconv"
	"strings"
)

// Properties maps field keys to the values extracted for a connection.
type Properties map[string]any

// Get resolves a dotted path such as "profile.tags[0]" and returns def when
// any segment is missing.
func (p Properties) Get(path string, def any) any {
	if p == nil {
		return def
	}
	if v, ok := p[path]; ok && v != nil {
		return v
	}
	v, ok := lookup(map[string]any(p), splitPath(path))
	if !ok || v == nil {
		return def
	}
	return v
}

// splitPath turns "a.b[0].c" into ["a", "b", "0", "c"].
func splitPath(path string) []string {
	var parts []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}
	for _, r := range path {
		switch r {
		case '.', '[', ']':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return parts
}

func lookup(node any, parts []string) (any, bool) {
	if len(parts) == 0 {
		return node, true
	}
	head, rest := parts[0], parts[1:]

	switch n := node.(type) {
	case map[string]any:
		child, ok := n[head]
		if !ok {
			return nil, false
		}
		return lookup(child, rest)
	case Properties:
		return lookup(map[string]any(n), parts)
	case map[string]string:
		child, ok := n[head]
		if !ok {
			return nil, false
		}
		return lookup(child, rest)
	case []any:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx >= len(n) {
			return nil, false
		}
		return lookup(n[idx], rest)
	case []string:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx >= len(n) {
			return nil, false
		}
		return lookup(n[idx], rest)
	default:
		return nil, false
	}
}
