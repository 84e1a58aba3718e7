package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"sjsage522/harvester/helpers"
)

var (
	titleSelectors   = []string{"title", "h1", `[data-testid*="title"]`, ".title"}
	contentSelectors = []string{"main", "article", ".content", ".post", "#content"}
)

const (
	minContentLength   = 100
	minParagraphLength = 20
)

// FieldValue is the text found for one selector: a single string when exactly
// one element matched, a list otherwise.
type FieldValue []string

// MarshalJSON encodes a single value as a string and several as an array
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	return json.Marshal([]string(v))
}

// TextBundle is the heuristic text extraction of a page. Empty parts are omitted.
type TextBundle struct {
	Title           string              `json:"title,omitempty"`
	Content         string              `json:"content,omitempty"`
	Paragraphs      []string            `json:"paragraphs,omitempty"`
	Headings        map[string][]string `json:"headings,omitempty"`
	MetaDescription string              `json:"meta_description,omitempty"`
}

// TextResult holds either the heuristic bundle or the selector fields
type TextResult struct {
	Bundle *TextBundle
	Fields map[string]FieldValue
}

// MarshalJSON writes whichever form was extracted
func (r TextResult) MarshalJSON() ([]byte, error) {
	if r.Bundle != nil {
		return json.Marshal(r.Bundle)
	}
	if r.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Fields)
}

// Empty reports whether nothing was extracted
func (r TextResult) Empty() bool {
	if r.Bundle != nil {
		b := r.Bundle
		return b.Title == "" && b.Content == "" && len(b.Paragraphs) == 0 && len(b.Headings) == 0 && b.MetaDescription == ""
	}
	return len(r.Fields) == 0
}

func (e *Engine) extractText(ctx context.Context, page Page) *TextBundle {
	b := &TextBundle{
		Title:           e.pageTitle(ctx, page),
		Content:         e.mainContent(ctx, page),
		MetaDescription: e.metaDescription(ctx, page),
	}

	for _, el := range e.query(ctx, page, "p") {
		text := e.text(ctx, el)
		if utf8.RuneCountInString(text) > minParagraphLength {
			b.Paragraphs = append(b.Paragraphs, text)
		}
	}

	for level := 1; level <= 6; level++ {
		tag := fmt.Sprintf("h%d", level)
		var texts []string
		for _, el := range e.query(ctx, page, tag) {
			if text := e.text(ctx, el); text != "" {
				texts = append(texts, text)
			}
		}
		if len(texts) > 0 {
			if b.Headings == nil {
				b.Headings = make(map[string][]string)
			}
			b.Headings[tag] = texts
		}
	}
	return b
}

func (e *Engine) pageTitle(ctx context.Context, page Page) string {
	for _, sel := range titleSelectors {
		if el := e.first(ctx, page, sel); el != nil {
			if text := e.text(ctx, el); text != "" {
				return text
			}
		}
	}
	title, err := page.Title(ctx)
	if err != nil {
		e.log.Debug().Err(err).Msg("document title unavailable")
		return ""
	}
	return strings.TrimSpace(title)
}

func (e *Engine) mainContent(ctx context.Context, page Page) string {
	for _, sel := range contentSelectors {
		if el := e.first(ctx, page, sel); el != nil {
			if text := e.text(ctx, el); utf8.RuneCountInString(text) > minContentLength {
				return helpers.CollapseWhitespace(text)
			}
		}
	}
	if body := e.first(ctx, page, "body"); body != nil {
		return helpers.CollapseWhitespace(e.text(ctx, body))
	}
	return ""
}

func (e *Engine) metaDescription(ctx context.Context, page Page) string {
	el := e.first(ctx, page, `meta[name="description"]`)
	if el == nil {
		return ""
	}
	content, _ := el.Attribute("content")
	return strings.TrimSpace(content)
}

func (e *Engine) textWithSelectors(ctx context.Context, page Page, selectors map[string]string) map[string]FieldValue {
	out := make(map[string]FieldValue)
	for _, key := range sortedKeys(selectors) {
		var texts FieldValue
		for _, el := range e.query(ctx, page, selectors[key]) {
			if text := e.text(ctx, el); text != "" {
				texts = append(texts, text)
			}
		}
		if len(texts) > 0 {
			out[key] = texts
		}
	}
	return out
}
