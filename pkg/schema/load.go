package schema

import (
	"os"
	"path/filepath"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tabular/pkg/errors"
)

// Document is the serialized form of an overlay. Exactly one field may be
// set; the populated field selects the shape.
//
//	positional: ["int64", "string"]
//	flat:       {"a": "int64"}
//	nested:     {"a": {"type": "float64", "children": {...}}}
type Document struct {
	Positional []string                  `json:"positional" yaml:"positional"`
	Flat       map[string]string         `json:"flat" yaml:"flat"`
	Nested     map[string]DocumentEntry  `json:"nested" yaml:"nested"`
}

// DocumentEntry is one nested-shape override.
type DocumentEntry struct {
	Type     string                   `json:"type" yaml:"type"`
	Children map[string]DocumentEntry `json:"children" yaml:"children"`
}

// LoadFile reads an overlay document, picking the codec from the file
// extension (.json, .yaml, .yml).
func LoadFile(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to read schema file")
	}
	var doc Document
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to parse schema file")
		}
	default:
		if err := gojson.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to parse schema file")
		}
	}
	return doc.Overlay()
}

// Overlay converts the document into the tagged in-memory form.
func (d *Document) Overlay() (*Overlay, error) {
	populated := 0
	if len(d.Positional) > 0 {
		populated++
	}
	if len(d.Flat) > 0 {
		populated++
	}
	if len(d.Nested) > 0 {
		populated++
	}
	if populated > 1 {
		return nil, errors.New(errors.ErrorTypeSchema,
			"schema document must use exactly one of positional, flat, nested")
	}

	switch {
	case len(d.Positional) > 0:
		entries := make([]Entry, len(d.Positional))
		for i, s := range d.Positional {
			t, scale, err := ParseType(s)
			if err != nil {
				return nil, err
			}
			entries[i] = Entry{Type: t, Scale: scale}
		}
		return Positional(entries...), nil

	case len(d.Flat) > 0:
		entries := make(map[string]Entry, len(d.Flat))
		for name, s := range d.Flat {
			t, scale, err := ParseType(s)
			if err != nil {
				return nil, err
			}
			entries[name] = Entry{Type: t, Scale: scale}
		}
		return Flat(entries), nil

	case len(d.Nested) > 0:
		entries, err := nestedEntries(d.Nested)
		if err != nil {
			return nil, err
		}
		return Nested(entries), nil
	}
	return nil, nil
}

func nestedEntries(doc map[string]DocumentEntry) (map[string]Entry, error) {
	entries := make(map[string]Entry, len(doc))
	for name, de := range doc {
		var e Entry
		if de.Type != "" {
			t, scale, err := ParseType(de.Type)
			if err != nil {
				return nil, err
			}
			e.Type = t
			e.Scale = scale
		}
		if len(de.Children) > 0 {
			children, err := nestedEntries(de.Children)
			if err != nil {
				return nil, err
			}
			e.Children = Nested(children)
		}
		entries[name] = e
	}
	return entries, nil
}
