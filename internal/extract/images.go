package extract

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/url"
	"regexp"
	"strings"

	"sjsage522/harvester/helpers"
)

var (
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".bmp"}
	excludedImage   = regexp.MustCompile(`(?i)data:image|\.ico$|pixel\.gif|1x1\.`)
)

// UnknownImageType buckets images without a recognized extension
const UnknownImageType = "unknown"

// backgroundScript collects computed background images across the document
const backgroundScript = `(() => {
	const out = [];
	document.querySelectorAll('*').forEach(el => {
		const bg = window.getComputedStyle(el).backgroundImage;
		if (bg && bg !== 'none' && bg.includes('url(')) {
			const m = bg.match(/url\(['"]?([^'"]+)['"]?\)/);
			if (m) {
				out.push({url: m[1], element: {tagName: el.tagName.toLowerCase(), className: typeof el.className === 'string' ? el.className : '', id: el.id}});
			}
		}
	});
	return out;
})()`

// Image types
const (
	ImageTypeInline     = "img"
	ImageTypeBackground = "background"
)

// Image is one inline or background image resolved against the page URL
type Image struct {
	URL         string            `json:"url"`
	Alt         string            `json:"alt,omitempty"`
	Title       string            `json:"title,omitempty"`
	OriginalSrc string            `json:"original_src,omitempty"`
	Type        string            `json:"type"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Srcset      string            `json:"srcset,omitempty"`
	Element     *ElementRef       `json:"element,omitempty"`
}

// ElementRef identifies the element carrying a background image
type ElementRef struct {
	TagName   string `json:"tagName"`
	ClassName string `json:"className"`
	ID        string `json:"id"`
}

// ImageBundle is the heuristic image extraction of a page.
// ByType only counts inline images.
type ImageBundle struct {
	Images           []Image        `json:"images"`
	BackgroundImages []Image        `json:"background_images"`
	TotalCount       int            `json:"total_count"`
	ByType           map[string]int `json:"by_type"`
}

// ImageResult holds either the heuristic bundle or the selector fields
type ImageResult struct {
	Bundle *ImageBundle
	Fields map[string][]Image
}

// MarshalJSON writes whichever form was extracted
func (r ImageResult) MarshalJSON() ([]byte, error) {
	if r.Bundle != nil {
		return json.Marshal(r.Bundle)
	}
	if r.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Fields)
}

// Empty reports whether nothing was extracted
func (r ImageResult) Empty() bool {
	if r.Bundle != nil {
		return r.Bundle.TotalCount == 0
	}
	return len(r.Fields) == 0
}

func excludedImageSrc(src string) bool {
	return strings.TrimSpace(src) == "" || excludedImage.MatchString(src)
}

// ImageType returns the extension bucket of an image URL
func ImageType(imageURL string) string {
	path := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return strings.TrimPrefix(ext, ".")
		}
	}
	return UnknownImageType
}

func (e *Engine) extractImages(ctx context.Context, page Page) *ImageBundle {
	current := page.URL()
	b := &ImageBundle{
		Images:           []Image{},
		BackgroundImages: []Image{},
		ByType:           map[string]int{},
	}

	for _, el := range e.query(ctx, page, "img") {
		if img, ok := imageData(el, current); ok {
			b.Images = append(b.Images, img)
		}
	}

	b.BackgroundImages = e.backgroundImages(ctx, page)

	for _, img := range b.Images {
		b.ByType[ImageType(img.URL)]++
	}
	b.TotalCount = len(b.Images) + len(b.BackgroundImages)
	return b
}

func imageData(el Element, current string) (Image, bool) {
	src, _ := el.Attribute("src")
	if excludedImageSrc(src) {
		return Image{}, false
	}

	alt, _ := el.Attribute("alt")
	title, _ := el.Attribute("title")
	img := Image{
		URL:         helpers.ResolveURL(current, src),
		Alt:         alt,
		Title:       title,
		OriginalSrc: src,
		Type:        ImageTypeInline,
	}
	for _, name := range []string{"width", "height"} {
		if v, ok := el.Attribute(name); ok && v != "" {
			if img.Attributes == nil {
				img.Attributes = make(map[string]string)
			}
			img.Attributes[name] = v
		}
	}
	img.Srcset, _ = el.Attribute("srcset")
	return img, true
}

type backgroundHit struct {
	URL     string     `json:"url"`
	Element ElementRef `json:"element"`
}

// backgroundImages prefers computed style through the page script engine and
// falls back to inline style declarations when scripts are unavailable.
func (e *Engine) backgroundImages(ctx context.Context, page Page) []Image {
	current := page.URL()
	out := []Image{}

	var hits []backgroundHit
	err := page.Evaluate(ctx, backgroundScript, &hits)
	if err != nil {
		if !stderrors.Is(err, ErrScriptUnsupported) {
			e.log.Debug().Err(err).Msg("computed style scan failed, reading inline styles")
		}
		hits = e.inlineBackgrounds(ctx, page)
	}

	for _, hit := range hits {
		if excludedImageSrc(hit.URL) {
			continue
		}
		ref := hit.Element
		out = append(out, Image{
			URL:     helpers.ResolveURL(current, hit.URL),
			Type:    ImageTypeBackground,
			Element: &ref,
		})
	}
	return out
}

func (e *Engine) inlineBackgrounds(ctx context.Context, page Page) []backgroundHit {
	var hits []backgroundHit
	for _, el := range e.query(ctx, page, `[style*="background"]`) {
		raw, err := el.BackgroundImage(ctx)
		if err != nil || raw == "" {
			continue
		}
		class, _ := el.Attribute("class")
		id, _ := el.Attribute("id")
		hits = append(hits, backgroundHit{
			URL:     raw,
			Element: ElementRef{TagName: el.TagName(), ClassName: class, ID: id},
		})
	}
	return hits
}

func (e *Engine) imagesWithSelectors(ctx context.Context, page Page, selectors map[string]string) map[string][]Image {
	out := make(map[string][]Image)
	current := page.URL()
	for _, key := range sortedKeys(selectors) {
		var images []Image
		for _, el := range e.query(ctx, page, selectors[key]) {
			if el.TagName() == "img" {
				if img, ok := imageData(el, current); ok {
					images = append(images, img)
				}
				continue
			}

			children, err := el.QueryAll(ctx, "img")
			if err != nil {
				e.log.Debug().Err(err).Str("field", key).Msg("child image query failed")
			}
			for _, child := range children {
				if img, ok := imageData(child, current); ok {
					images = append(images, img)
				}
			}

			raw, err := el.BackgroundImage(ctx)
			if err == nil && !excludedImageSrc(raw) {
				images = append(images, Image{
					URL:         helpers.ResolveURL(current, raw),
					Type:        ImageTypeBackground,
					OriginalSrc: raw,
				})
			}
		}
		if len(images) > 0 {
			out[key] = images
		}
	}
	return out
}
