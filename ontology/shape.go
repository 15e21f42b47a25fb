package ontology

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeRows resolves the two published shapes of the mapping dump into one
// ordered row sequence. A SPARQL result document keeps the order of
// results.bindings; a UUID-keyed object keeps the document's key order.
func decodeRows(raw []byte) ([]map[string]any, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}

	if res, ok := top["results"]; ok && isObject(res) {
		var inner struct {
			Bindings []map[string]any `json:"bindings"`
		}
		if err := json.Unmarshal(res, &inner); err != nil {
			return nil, fmt.Errorf("%w: results is not a SPARQL result set: %v", ErrMalformedSource, err)
		}
		return inner.Bindings, nil
	}

	return decodeKeyedRows(raw)
}

// decodeKeyedRows walks a UUID-keyed document token by token so that rows
// come back in document order. encoding/json maps would lose it.
func decodeKeyedRows(raw []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrMalformedSource)
	}

	var rows []map[string]any
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
		}

		// Non-object values under a UUID key carry no row data.
		var row map[string]any
		if err := json.Unmarshal(val, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// isObject reports whether a raw JSON value is an object.
func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// extractField returns the value of a named row field. SPARQL bindings wrap
// values as {"value": "..."}; UUID-keyed rows may use either plain strings
// or the same wrapping. Absent or non-string fields come back empty.
func extractField(row map[string]any, field string) string {
	v, ok := row[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if inner, ok := t["value"].(string); ok {
			return inner
		}
	}
	return ""
}
