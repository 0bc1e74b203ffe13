package taxonomy

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"specsharp/internal/apperr"
)

//go:embed data/taxonomy.yaml
var defaultTaxonomy []byte

// Parse decodes a taxonomy document. Unknown keys are rejected so a
// misspelled field fails the load instead of silently defaulting to zero.
func Parse(data []byte) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Document{}, apperr.Wrap(apperr.CodeInvalidTaxonomy, err, "decode taxonomy")
	}
	return doc, nil
}

// Load parses and validates data.
func Load(data []byte) (*Registry, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return New(doc)
}

func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	reg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy %s: %w", path, err)
	}
	return reg, nil
}

// Default builds the registry from the taxonomy compiled into the
// binary.
func Default() (*Registry, error) {
	return Load(defaultTaxonomy)
}

// DefaultDocument returns the raw embedded taxonomy.
func DefaultDocument() []byte {
	return bytes.Clone(defaultTaxonomy)
}

// Open loads path, or the embedded taxonomy when path is empty.
func Open(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}
