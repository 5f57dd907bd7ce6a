package device

import (
	"bytes"
	"encoding/json"
	"fmt"

	"walk-sensor/backend/pkg/utils"
)

// Field is a single key/value pair of a Document.
type Field struct {
	Key   string
	Value any
}

// Document is a key-ordered JSON object. Values are scalars, strings,
// nested Documents or slices of Documents.
type Document []Field

// Get returns the value stored under key.
func (d Document) Get(key string) (any, bool) {
	for _, f := range d {
		if f.Key == key {
			return f.Value, true
		}
	}

	return nil, false
}

// Keys returns the field names in order.
func (d Document) Keys() []string {
	keys := make([]string, len(d))
	for i, f := range d {
		keys[i] = f.Key
	}

	return keys
}

// MarshalJSON encodes the document as a JSON object, preserving field order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, f := range d {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key %q: %w", f.Key, err)
		}

		val, err := utils.ToJSON(f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %q: %w", f.Key, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Marshal renders e and encodes the result as compact JSON.
func Marshal(e Entity) ([]byte, error) {
	return utils.ToJSON(e.Render())
}

// MarshalIndent renders e and encodes the result as indented JSON.
func MarshalIndent(e Entity) ([]byte, error) {
	return utils.ToJSONIndent(e.Render())
}
