// Package codec handles the JSON encode/decode of a document body and the
// select/omit projection rule applied after decode.
package codec

import "encoding/json"

// Encode marshals a document to the JSON bytes stored in the body column.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals the body column into a typed document.
func Decode(body []byte, v any) error {
	return json.Unmarshal(body, v)
}

// ToMap decodes a document body into a generic map, used by Project and by
// update-patch merging.
func ToMap(body []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Project applies a select/omit rule to a decoded document. An empty sel
// keeps every field; a non-empty sel keeps only the named fields. omit
// removes fields after sel is applied. sel and omit are mutually
// exclusive in practice, but both are honored if given together.
func Project(doc map[string]any, sel, omit []string) map[string]any {
	out := doc
	if len(sel) > 0 {
		filtered := make(map[string]any, len(sel))
		for _, field := range sel {
			if v, ok := doc[field]; ok {
				filtered[field] = v
			}
		}
		out = filtered
	}
	if len(omit) == 0 {
		return out
	}
	result := make(map[string]any, len(out))
	omitSet := make(map[string]bool, len(omit))
	for _, field := range omit {
		omitSet[field] = true
	}
	for k, v := range out {
		if !omitSet[k] {
			result[k] = v
		}
	}
	return result
}
