// Package insights parses the conservation commentary returned by the backend
// into its fixed sections.
package insights

import (
	"maps"
	"strings"

	"github.com/k3a/html2text"
)

// Section names, in display order.
const (
	PopulationTrend    = "Population Trend"
	MigrationPattern   = "Migration Pattern"
	HumanImpactAlert   = "Human Impact Alert"
	OptimalSpotting    = "Optimal Spotting Times/Locations"
	MissingPlaceholder = "No information available."
)

// SectionNames lists the recognised sections in display order.
var SectionNames = []string{PopulationTrend, MigrationPattern, HumanImpactAlert, OptimalSpotting}

// Section is one named block of commentary.
type Section struct {
	Name    string
	Content string
	Missing bool
}

// Insights maps section name to content. Unknown sections are dropped.
type Insights struct {
	sections map[string]string
}

// Parse splits blob on blank lines and reads each block as "Label:\ncontent".
// HTML bodies are flattened to text first; surrounding quotes are stripped.
func Parse(blob string) Insights {
	text := blob
	if looksLikeHTML(text) {
		text = html2text.HTML2Text(text)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	parsed := make(map[string]string)
	for block := range strings.SplitSeq(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		label, content, ok := splitBlock(block)
		if !ok {
			continue
		}
		name, known := canonicalName(label)
		if !known {
			continue
		}
		if content = unquote(content); content != "" {
			parsed[name] = content
		}
	}
	return Insights{sections: parsed}
}

func splitBlock(block string) (label, content string, ok bool) {
	first, rest, _ := strings.Cut(block, "\n")
	label, inline, found := strings.Cut(first, ":")
	if !found {
		return "", "", false
	}
	content = strings.TrimSpace(strings.TrimSpace(inline) + "\n" + rest)
	return label, content, true
}

// canonicalName matches a label such as "**Population Trend**" case-insensitively.
func canonicalName(label string) (string, bool) {
	label = strings.Trim(strings.TrimSpace(label), "*#_ ")
	for _, name := range SectionNames {
		if strings.EqualFold(label, name) {
			return name, true
		}
	}
	return "", false
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "<p>") || strings.Contains(lower, "<br") || strings.Contains(lower, "</")
}

// Section returns the content of name, or MissingPlaceholder.
func (in Insights) Section(name string) string {
	if content, ok := in.sections[name]; ok {
		return content
	}
	return MissingPlaceholder
}

// Has reports whether the section was present in the blob.
func (in Insights) Has(name string) bool {
	_, ok := in.sections[name]
	return ok
}

// Map returns the parsed sections only, without placeholders.
func (in Insights) Map() map[string]string {
	return maps.Clone(in.sections)
}

// Sections returns all four sections in display order, placeholders included.
func (in Insights) Sections() []Section {
	out := make([]Section, 0, len(SectionNames))
	for _, name := range SectionNames {
		out = append(out, Section{Name: name, Content: in.Section(name), Missing: !in.Has(name)})
	}
	return out
}

// Empty reports whether no recognised section was found.
func (in Insights) Empty() bool {
	return len(in.sections) == 0
}
