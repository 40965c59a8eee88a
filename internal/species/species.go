// Package species parses classifier labels into species names and holds the
// species records returned by the backend lookup.
package species

import "strings"

// Record is the backend's description of one species. Read-only once received.
type Record struct {
	Name            string            `json:"name"`
	Characteristics map[string]string `json:"characteristics,omitempty"`
	Locations       []string          `json:"locations,omitempty"`
	Taxonomy        map[string]string `json:"taxonomy,omitempty"`
}

// ScientificName returns the taxonomy entry for the scientific name, if present.
func (r Record) ScientificName() string {
	for _, key := range []string{"scientific_name", "scientificName"} {
		if v := r.Taxonomy[key]; v != "" {
			return v
		}
	}
	return ""
}

// Classification is the classifier's raw label and the name parsed from it.
type Classification struct {
	RawLabel   string
	ParsedName string
}

// ParseLabel takes the text before the first comma and replaces underscores
// with spaces: "red_fox, 0.92" becomes "red fox".
func ParseLabel(raw string) string {
	label, _, _ := strings.Cut(raw, ",")
	label = strings.ReplaceAll(label, "_", " ")
	return strings.Join(strings.Fields(label), " ")
}

// DefaultOverrides remaps classifier labels whose names differ from the
// species database.
var DefaultOverrides = map[string]string{
	"grey fox":         "gray fox",
	"African elephant": "African Bush elephant",
}

// Normalizer applies label overrides after parsing.
type Normalizer struct {
	overrides map[string]string
}

// NewNormalizer merges extra overrides over DefaultOverrides. Keys are parsed
// labels compared case-insensitively, so "Grey_Fox" and "grey fox" address the
// same entry. Config keys arrive lowercased.
func NewNormalizer(extra map[string]string) *Normalizer {
	overrides := make(map[string]string, len(DefaultOverrides)+len(extra))
	for from, to := range DefaultOverrides {
		overrides[overrideKey(from)] = to
	}
	for from, to := range extra {
		overrides[overrideKey(from)] = to
	}
	return &Normalizer{overrides: overrides}
}

func overrideKey(label string) string {
	return strings.ToLower(ParseLabel(label))
}

// Normalize returns the canonical name for a parsed label.
func (n *Normalizer) Normalize(name string) string {
	if n == nil {
		return name
	}
	if canonical, ok := n.overrides[overrideKey(name)]; ok {
		return canonical
	}
	return name
}

// Classify parses and normalizes a raw classifier label.
func (n *Normalizer) Classify(raw string) Classification {
	return Classification{
		RawLabel:   raw,
		ParsedName: n.Normalize(ParseLabel(raw)),
	}
}

// First returns the first record of a lookup result. Multiple matches are not
// disambiguated.
func First(records []Record) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	return records[0], true
}
