package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Shape identifies which response envelope a provider used.
type Shape string

const (
	// ShapeArray is a bare JSON array.
	ShapeArray Shape = "array"
	// ShapeDocs wraps the list in a "docs" field.
	ShapeDocs Shape = "docs"
	// ShapeData wraps the list in a "data" field.
	ShapeData Shape = "data"
	// ShapeUnknown is anything else; its payload is treated as empty.
	ShapeUnknown Shape = "unknown"
)

type wrappedList struct {
	Docs json.RawMessage `json:"docs"`
	Data json.RawMessage `json:"data"`
}

// DecodeList decodes a provider response into a list of T. Three
// envelope shapes are recognized: a bare array, {"docs": [...]}, and
// {"data": [...]}. An unrecognized envelope decodes to an empty list
// with ShapeUnknown so the caller can record the degradation; malformed
// JSON inside a recognized shape is an error.
func DecodeList[T any](body []byte) ([]T, Shape, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ShapeUnknown, nil
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, ShapeArray, fmt.Errorf("decode array envelope: %w", err)
		}
		return items, ShapeArray, nil
	}

	var wrapped wrappedList
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, ShapeUnknown, fmt.Errorf("decode envelope: %w", err)
	}

	if len(wrapped.Docs) > 0 && !bytes.Equal(wrapped.Docs, []byte("null")) {
		var items []T
		if err := json.Unmarshal(wrapped.Docs, &items); err != nil {
			return nil, ShapeDocs, fmt.Errorf("decode docs envelope: %w", err)
		}
		return items, ShapeDocs, nil
	}

	if len(wrapped.Data) > 0 && !bytes.Equal(wrapped.Data, []byte("null")) {
		var items []T
		if err := json.Unmarshal(wrapped.Data, &items); err != nil {
			return nil, ShapeData, fmt.Errorf("decode data envelope: %w", err)
		}
		return items, ShapeData, nil
	}

	return nil, ShapeUnknown, nil
}
