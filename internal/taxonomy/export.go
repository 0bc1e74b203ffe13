package taxonomy

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"specsharp/internal/apperr"
)

// ErrExportDrift is returned when two stored copies of the export
// document disagree after canonicalization.
var ErrExportDrift = errors.New("taxonomy export drift")

// ExportEntry is the presentation-tier view of one profile.
type ExportEntry struct {
	Type          BuildingType `yaml:"type" json:"type"`
	Subtype       string       `yaml:"subtype" json:"subtype"`
	DisplayName   string       `yaml:"display_name" json:"display_name"`
	Keywords      []string     `yaml:"keywords" json:"keywords"`
	BaseCostPerSF float64      `yaml:"base_cost_per_sf" json:"base_cost_per_sf"`
}

type ExportDocument struct {
	Version int           `yaml:"version" json:"version"`
	Entries []ExportEntry `yaml:"entries" json:"entries"`
}

// Export serializes the fields a presentation tier needs. Entries are
// ordered by type then subtype.
func (r *Registry) Export() ExportDocument {
	doc := ExportDocument{Version: r.version}
	for _, p := range r.ordered {
		doc.Entries = append(doc.Entries, ExportEntry{
			Type:          p.Type,
			Subtype:       p.Subtype,
			DisplayName:   p.DisplayName,
			Keywords:      append([]string(nil), p.Hints.Keywords...),
			BaseCostPerSF: p.BaseCostPerSF,
		})
	}
	return doc
}

// MarshalExport writes doc in its canonical YAML form. doc is not
// modified.
func MarshalExport(doc ExportDocument) ([]byte, error) {
	doc.Entries = append([]ExportEntry(nil), doc.Entries...)
	sortEntries(doc.Entries)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return buf.Bytes(), nil
}

func ParseExport(data []byte) (ExportDocument, error) {
	var doc ExportDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return ExportDocument{}, apperr.Wrap(apperr.CodeInvalidTaxonomy, err, "decode taxonomy export")
	}
	return doc, nil
}

// Canonicalize parses an export document and re-encodes it, so copies that
// differ only in formatting or entry order compare equal.
func Canonicalize(data []byte) ([]byte, error) {
	doc, err := ParseExport(data)
	if err != nil {
		return nil, err
	}
	return MarshalExport(doc)
}

// VerifyCopies compares two stored export documents. A mismatch wraps
// ErrExportDrift and names the first differing canonical line.
func VerifyCopies(a, b []byte) error {
	ca, err := Canonicalize(a)
	if err != nil {
		return fmt.Errorf("first copy: %w", err)
	}
	cb, err := Canonicalize(b)
	if err != nil {
		return fmt.Errorf("second copy: %w", err)
	}
	if bytes.Equal(ca, cb) {
		return nil
	}

	la := strings.Split(string(ca), "\n")
	lb := strings.Split(string(cb), "\n")
	for i := 0; i < len(la) || i < len(lb); i++ {
		var x, y string
		if i < len(la) {
			x = la[i]
		}
		if i < len(lb) {
			y = lb[i]
		}
		if x != y {
			return fmt.Errorf("%w: line %d: %q != %q", ErrExportDrift, i+1, x, y)
		}
	}
	return ErrExportDrift
}

func sortEntries(entries []ExportEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type < entries[j].Type
		}
		return entries[i].Subtype < entries[j].Subtype
	})
}
