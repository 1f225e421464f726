package formats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MsgInvalidSchema is reported when a document has no recognized schema tag.
const MsgInvalidSchema = "Invalid schema."

// Normalize decodes a JSON pack document and normalizes it.
func Normalize(raw []byte) *ImportResult {
	doc, err := decodeJSON(raw)
	if err != nil {
		return SchemaError(fmt.Sprintf("Invalid JSON: %v.", err))
	}
	return NormalizeDocument(doc)
}

// NormalizeDocument dispatches a decoded document to the adapter for its schema tag.
// It always returns a result; malformed input becomes entries in Errors.
func NormalizeDocument(doc any) (res *ImportResult) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return SchemaError(MsgInvalidSchema)
	}
	tag, _ := obj["schema"].(string)
	a, ok := Lookup(tag)
	if !ok {
		return SchemaError(MsgInvalidSchema)
	}
	if err := CheckEnvelope(obj); err != nil {
		return SchemaError(fmt.Sprintf("Invalid pack structure: %v.", err))
	}
	defer func() {
		if p := recover(); p != nil {
			res = SchemaError(fmt.Sprintf("Import failed: %v.", p))
		}
	}()
	res = a.Import(obj)
	res.Schema = tag
	return res
}

// ReadDocument reads a pack file and returns its JSON encoding.
// Files named *.yaml or *.yml are converted from YAML.
func ReadDocument(r io.Reader, name string) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		return out, nil
	}
	return raw, nil
}

// Export renders the bank in the dialect registered for schema.
func Export(schema string, b Bank) (Document, error) {
	a, ok := Lookup(schema)
	if !ok {
		return nil, fmt.Errorf("unsupported export schema %q", schema)
	}
	return a.Export(b)
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
