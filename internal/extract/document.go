package extract

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

var styleBackground = regexp.MustCompile(`(?i)background(?:-image)?\s*:[^;]*url\(\s*['"]?([^'")]+)['"]?\s*\)`)

// DocumentPage is a static, browserless Page backed by goquery
type DocumentPage struct {
	url string
	doc *goquery.Document
}

var _ Page = (*DocumentPage)(nil)

// NewDocumentPage parses markup fetched from pageURL
func NewDocumentPage(pageURL string, r io.Reader) (*DocumentPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("HTML parsing error: %w", err)
	}
	return &DocumentPage{url: pageURL, doc: doc}, nil
}

// URL returns the page URL
func (p *DocumentPage) URL() string {
	return p.url
}

// Title returns the text of the document's <title>
func (p *DocumentPage) Title(ctx context.Context) (string, error) {
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

// QueryAll returns every node matching selector in document order
func (p *DocumentPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return wrapSelection(p.doc.FindMatcher(m)), nil
}

// Evaluate always fails: static documents cannot run scripts
func (p *DocumentPage) Evaluate(ctx context.Context, script string, res interface{}) error {
	return ErrScriptUnsupported
}

type docElement struct {
	sel *goquery.Selection
}

func wrapSelection(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, docElement{sel: s})
	})
	return out
}

func (e docElement) TagName() string {
	return strings.ToLower(goquery.NodeName(e.sel))
}

func (e docElement) Attribute(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e docElement) Text(ctx context.Context) (string, error) {
	return e.sel.Text(), nil
}

func (e docElement) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return wrapSelection(e.sel.FindMatcher(m)), nil
}

func (e docElement) Closest(ctx context.Context, selector string) (bool, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return false, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return e.sel.ClosestMatcher(m).Length() > 0, nil
}

// BackgroundImage reads inline style only; there is no computed style without a browser
func (e docElement) BackgroundImage(ctx context.Context) (string, error) {
	style, ok := e.sel.Attr("style")
	if !ok {
		return "", nil
	}
	if m := styleBackground.FindStringSubmatch(style); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	return "", nil
}
