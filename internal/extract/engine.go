package extract

import (
	"context"
	"sort"
	"strings"

	"sjsage522/harvester/config"
	"sjsage522/harvester/logger"
)

// Options selects what to extract and how
type Options struct {
	// Kinds lists text, links and/or images; empty means all three
	Kinds []string
	// Selectors switches every requested kind to selector mode
	Selectors map[string]string
}

// Bundle is everything extracted from one page
type Bundle struct {
	Text   *TextResult  `json:"text,omitempty"`
	Links  *LinkResult  `json:"links,omitempty"`
	Images *ImageResult `json:"images,omitempty"`
}

// Engine runs the extractors against a Page. A failing selector or element
// is skipped; extraction always returns a partial bundle.
type Engine struct {
	log *logger.Logger
}

// NewEngine creates an engine
func NewEngine() *Engine {
	return &Engine{log: logger.ForEngine()}
}

// Extract runs the requested kinds against page
func (e *Engine) Extract(ctx context.Context, page Page, opts Options) *Bundle {
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = config.DefaultExtract
	}
	selectorMode := len(opts.Selectors) > 0

	b := &Bundle{}
	for _, kind := range kinds {
		switch kind {
		case config.ExtractText:
			if selectorMode {
				b.Text = &TextResult{Fields: e.textWithSelectors(ctx, page, opts.Selectors)}
			} else {
				b.Text = &TextResult{Bundle: e.extractText(ctx, page)}
			}
		case config.ExtractLinks:
			if selectorMode {
				b.Links = &LinkResult{Fields: e.linksWithSelectors(ctx, page, opts.Selectors)}
			} else {
				b.Links = &LinkResult{Bundle: e.extractLinks(ctx, page)}
			}
		case config.ExtractImages:
			if selectorMode {
				b.Images = &ImageResult{Fields: e.imagesWithSelectors(ctx, page, opts.Selectors)}
			} else {
				b.Images = &ImageResult{Bundle: e.extractImages(ctx, page)}
			}
		default:
			e.log.Warn().Str("kind", kind).Msg("unknown extraction kind")
		}
	}
	return b
}

// query runs a selector and treats any failure as no match
func (e *Engine) query(ctx context.Context, page Page, selector string) []Element {
	els, err := page.QueryAll(ctx, selector)
	if err != nil {
		e.log.Debug().Err(err).Str("selector", selector).Msg("selector failed")
		return nil
	}
	return els
}

func (e *Engine) first(ctx context.Context, page Page, selector string) Element {
	if els := e.query(ctx, page, selector); len(els) > 0 {
		return els[0]
	}
	return nil
}

// text reads trimmed element text, treating failures as empty
func (e *Engine) text(ctx context.Context, el Element) string {
	text, err := el.Text(ctx)
	if err != nil {
		e.log.Debug().Err(err).Str("tag", el.TagName()).Msg("text read failed")
		return ""
	}
	return strings.TrimSpace(text)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
