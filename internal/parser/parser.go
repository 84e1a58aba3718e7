// Package parser extracts identifiers, label/value pairs and meta fields
// from raw detail and list page markup.
package parser

import (
	"regexp"
	"strings"

	"sjsage522/harvester/internal/record"
)

var (
	labelValuePair = regexp.MustCompile(`(?s)<dt[^>]*>(.*?)</dt>\s*<dd[^>]*>(.*?)</dd>`)
	tag            = regexp.MustCompile(`<[^>]+>`)
	lineBreak      = regexp.MustCompile(`<br\s*/?>`)
	blankLines     = regexp.MustCompile(`\n{2,}`)
	defaultTitle   = regexp.MustCompile(`(?s)<title[^>]*>(.*?)</title>`)
)

// TitleField is the meta field every detail page gets from its <title>
const TitleField = "title"

// MetaPattern is a named, compiled meta field pattern
type MetaPattern struct {
	Name  string
	Regex *regexp.Regexp
}

// ExtractIdentifiers returns every identifier matched by pattern in
// first-occurrence order, without duplicates. When the pattern has capture
// groups the first group is the identifier, otherwise the whole match.
func ExtractIdentifiers(html string, pattern *regexp.Regexp) []string {
	matches := pattern.FindAllStringSubmatch(html, -1)
	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := m[0]
		if len(m) > 1 {
			id = m[1]
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// ParseLabelValues reads every <dt>label</dt><dd>value</dd> pair.
// The first occurrence of a label wins and empty labels are skipped.
func ParseLabelValues(html string) *record.Record {
	out := record.New()
	for _, m := range labelValuePair.FindAllStringSubmatch(html, -1) {
		label := StripTags(m[1])
		if label == "" {
			continue
		}
		value := lineBreak.ReplaceAllString(m[2], "\n")
		value = tag.ReplaceAllString(value, "")
		value = strings.TrimSpace(blankLines.ReplaceAllString(value, "\n"))
		out.Add(label, value)
	}
	return out
}

// ParseMeta applies the default title pattern followed by the configured
// patterns. A configured pattern named "title" replaces the default.
// Patterns that do not match produce no field.
func ParseMeta(html string, patterns []MetaPattern) *record.Record {
	all := make([]MetaPattern, 0, len(patterns)+1)
	all = append(all, MetaPattern{Name: TitleField, Regex: defaultTitle})
	for _, p := range patterns {
		if p.Name == TitleField {
			all[0] = p
			continue
		}
		all = append(all, p)
	}

	out := record.New()
	for _, p := range all {
		m := p.Regex.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		raw := m[0]
		if len(m) > 1 {
			raw = m[1]
		}
		out.Set(p.Name, StripTags(raw))
	}
	return out
}

// ParseDetail builds the raw record of a detail page: label/value pairs,
// then meta fields overwriting on collision, then the identifier under idField.
func ParseDetail(html string, patterns []MetaPattern, idField, id string) *record.Record {
	data := ParseLabelValues(html)
	// Meta wins on collision. Kept as is until confirmed per site.
	data.Merge(ParseMeta(html, patterns))
	data.Set(idField, id)
	return data
}

// StripTags removes markup and trims surrounding whitespace
func StripTags(s string) string {
	return strings.TrimSpace(tag.ReplaceAllString(s, ""))
}
