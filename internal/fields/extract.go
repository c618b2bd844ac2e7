package fields

import (
	"fmt"
	"net/http"
	"strings"
)

// ReasonRequired marks a required field that was absent from the handshake.
const ReasonRequired = "required"

// Metadata holds a connection's handshake headers keyed by lower-cased name.
type Metadata map[string]string

// MetadataFromHeader lower-cases header names and joins repeated values
// with ", ".
func MetadataFromHeader(h http.Header) Metadata {
	md := make(Metadata, len(h))
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		md[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return md
}

// Lookup reads a header value. A present header with an empty value still
// reports ok.
func (m Metadata) Lookup(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[strings.ToLower(name)]
	return v, ok
}

// ValidationError describes one field that failed admission.
type ValidationError struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

// Extract reads every field of t from md. A missing required field is
// recorded in the returned errors and left out of the properties. A missing
// optional field is stored with a nil value. Extraction never fails.
func (t Table) Extract(md Metadata) (Properties, []ValidationError) {
	props := make(Properties, len(t))
	var errs []ValidationError

	for _, spec := range t {
		value, ok := md.Lookup(spec.WireName)
		if !ok {
			if spec.Required {
				errs = append(errs, ValidationError{Key: spec.Key, Reason: ReasonRequired})
				continue
			}
			props[spec.Key] = nil
			continue
		}
		props[spec.Key] = value
	}

	return props, errs
}
