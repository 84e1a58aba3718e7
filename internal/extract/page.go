// Package extract turns a loaded page into text, link and image bundles,
// using selector maps when given and ordered fallback heuristics otherwise.
package extract

import (
	"context"
	"errors"
)

// ErrScriptUnsupported is returned by pages that cannot run scripts, such as static documents
var ErrScriptUnsupported = errors.New("script evaluation not supported")

// Page is a loaded document the engine can query
type Page interface {
	URL() string
	Title(ctx context.Context) (string, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	Evaluate(ctx context.Context, script string, res interface{}) error
}

// Element is a handle to one node of a Page
type Element interface {
	TagName() string
	Attribute(name string) (string, bool)
	Text(ctx context.Context) (string, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// Closest reports whether the element or one of its ancestors matches selector
	Closest(ctx context.Context, selector string) (bool, error)
	// BackgroundImage returns the raw url() of the element's background image, or ""
	BackgroundImage(ctx context.Context) (string, error)
}

// Screenshotter is implemented by pages that can render themselves
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}
