// Package render holds the rendered side of pagination: opaque fragments, the
// container they are appended to, and the hooks that wire each fragment up
// once it is rendered.
package render

import (
	"encoding/json"
	"fmt"
)

// Fragment is an opaque unit of renderable content (one item card).
type Fragment string

// DecodeFragments converts the elements of a content endpoint response into
// fragments. JSON strings are unquoted; any other element is kept as its JSON text.
func DecodeFragments(items []json.RawMessage) ([]Fragment, error) {
	out := make([]Fragment, 0, len(items))
	for i, raw := range items {
		if len(raw) > 0 && raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, fmt.Errorf("decode fragment %d: %w", i, err)
			}
			out = append(out, Fragment(s))
			continue
		}
		out = append(out, Fragment(raw))
	}
	return out, nil
}
