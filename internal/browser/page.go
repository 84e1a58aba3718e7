package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"sjsage522/harvester/internal/extract"
	"sjsage522/harvester/logger"
)

const (
	textFunction    = `function() { return this.innerText || this.textContent || ''; }`
	closestFunction = `function(sel) { return this.closest(sel) !== null; }`
	// computed style, so stylesheet backgrounds are found too
	backgroundFunction = `function() {
		const bg = window.getComputedStyle(this).backgroundImage;
		if (!bg || bg === 'none') return '';
		const m = bg.match(/url\(['"]?([^'"]+)['"]?\)/);
		return m ? m[1] : '';
	}`
)

// Page is one loaded browser tab
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	url    string
	log    *logger.Logger
}

var (
	_ extract.Page          = (*Page)(nil)
	_ extract.Screenshotter = (*Page)(nil)
)

// URL returns the address the tab ended up on after redirects
func (p *Page) URL() string {
	return p.url
}

// Title returns the document title
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := run(ctx, p.ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

// QueryAll returns every node matching selector; no match is not an error
func (p *Page) QueryAll(ctx context.Context, selector string) ([]extract.Element, error) {
	return p.queryAll(ctx, selector)
}

func (p *Page) queryAll(ctx context.Context, selector string, opts ...chromedp.QueryOption) ([]extract.Element, error) {
	var nodes []*cdp.Node
	opts = append([]chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}, opts...)
	if err := run(ctx, p.ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("query %q failed: %w", selector, err)
	}
	out := make([]extract.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{page: p, node: n})
	}
	return out, nil
}

// Evaluate runs script in the page and decodes its value into res.
// A nil res discards the value.
func (p *Page) Evaluate(ctx context.Context, script string, res interface{}) error {
	if err := run(ctx, p.ctx, chromedp.Evaluate(script, res)); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// Screenshot captures the full page as PNG
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := run(ctx, p.ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Close closes the tab
func (p *Page) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

type element struct {
	page *Page
	node *cdp.Node
}

func (e *element) TagName() string {
	return e.node.LocalName
}

func (e *element) Attribute(name string) (string, bool) {
	return e.node.Attribute(name)
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.call(ctx, textFunction, &text)
	return text, err
}

func (e *element) QueryAll(ctx context.Context, selector string) ([]extract.Element, error) {
	return e.page.queryAll(ctx, selector, chromedp.FromNode(e.node))
}

func (e *element) Closest(ctx context.Context, selector string) (bool, error) {
	var found bool
	err := e.call(ctx, closestFunction, &found, selector)
	return found, err
}

func (e *element) BackgroundImage(ctx context.Context) (string, error) {
	var raw string
	err := e.call(ctx, backgroundFunction, &raw)
	return raw, err
}

// call invokes fn with the element bound to this
func (e *element) call(ctx context.Context, fn string, res interface{}, args ...interface{}) error {
	return run(ctx, e.page.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve <%s>: %w", e.node.LocalName, err)
		}
		defer runtime.ReleaseObject(obj.ObjectID).Do(ctx)

		return chromedp.CallFunctionOn(fn, res,
			func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
				return p.WithObjectID(obj.ObjectID)
			},
			args...,
		).Do(ctx)
	}))
}
