package extract

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"sjsage522/harvester/helpers"
)

// LandmarkSelector matches the page regions whose links count as navigation
const LandmarkSelector = "nav, .nav, .navigation, .menu, header, footer, .sidebar"

var excludedSchemes = []string{"javascript:", "mailto:", "tel:"}

// Link is one anchor resolved against the page URL
type Link struct {
	URL          string     `json:"url"`
	Text         string     `json:"text"`
	Title        string     `json:"title"`
	OriginalHref string     `json:"original_href"`
	Image        *LinkImage `json:"image,omitempty"`
}

// LinkImage is the image carried by an anchor
type LinkImage struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// LinkBundle classifies every link on two axes: origin and placement
type LinkBundle struct {
	Internal        []Link `json:"internal_links"`
	External        []Link `json:"external_links"`
	Navigation      []Link `json:"navigation_links"`
	Content         []Link `json:"content_links"`
	ImagesWithLinks []Link `json:"images_with_links"`
	TotalCount      int    `json:"total_count"`
}

// LinkResult holds either the heuristic bundle or the selector fields
type LinkResult struct {
	Bundle *LinkBundle
	Fields map[string][]Link
}

// MarshalJSON writes whichever form was extracted
func (r LinkResult) MarshalJSON() ([]byte, error) {
	if r.Bundle != nil {
		return json.Marshal(r.Bundle)
	}
	if r.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Fields)
}

// Empty reports whether nothing was extracted
func (r LinkResult) Empty() bool {
	if r.Bundle != nil {
		return r.Bundle.TotalCount == 0
	}
	return len(r.Fields) == 0
}

func newLinkBundle() *LinkBundle {
	return &LinkBundle{
		Internal:        []Link{},
		External:        []Link{},
		Navigation:      []Link{},
		Content:         []Link{},
		ImagesWithLinks: []Link{},
	}
}

// excludedHref reports hrefs that never lead to another document
func excludedHref(href string) bool {
	h := strings.ToLower(strings.TrimSpace(href))
	if h == "" || strings.HasPrefix(h, "#") {
		return true
	}
	for _, scheme := range excludedSchemes {
		if strings.HasPrefix(h, scheme) {
			return true
		}
	}
	return false
}

// isInternal reports whether resolved has no host or the same scheme and
// host (port included) as the page
func isInternal(resolved string, origin *url.URL) bool {
	u, err := url.Parse(resolved)
	if err != nil {
		return false
	}
	if u.Host == "" {
		return true
	}
	return origin != nil &&
		strings.EqualFold(u.Scheme, origin.Scheme) &&
		strings.EqualFold(u.Host, origin.Host)
}

func pageOrigin(pageURL string) *url.URL {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

func (e *Engine) extractLinks(ctx context.Context, page Page) *LinkBundle {
	b := newLinkBundle()
	current := page.URL()
	origin := pageOrigin(current)

	for _, a := range e.query(ctx, page, "a[href]") {
		href, _ := a.Attribute("href")
		if excludedHref(href) {
			continue
		}
		link := e.linkData(ctx, a, current, href)
		if imgs, err := a.QueryAll(ctx, "img"); err == nil && len(imgs) > 0 {
			src, _ := imgs[0].Attribute("src")
			alt, _ := imgs[0].Attribute("alt")
			link.Image = &LinkImage{Alt: alt}
			if src != "" {
				link.Image.Src = helpers.ResolveURL(current, src)
			}
		}

		if isInternal(link.URL, origin) {
			b.Internal = append(b.Internal, link)
		} else {
			b.External = append(b.External, link)
		}

		inNav, err := a.Closest(ctx, LandmarkSelector)
		if err != nil {
			e.log.Debug().Err(err).Str("href", href).Msg("landmark check failed")
		}
		if inNav {
			b.Navigation = append(b.Navigation, link)
		} else {
			b.Content = append(b.Content, link)
		}

		if link.Image != nil {
			b.ImagesWithLinks = append(b.ImagesWithLinks, link)
		}
	}

	b.TotalCount = len(b.Internal) + len(b.External)
	return b
}

func (e *Engine) linkData(ctx context.Context, el Element, current, href string) Link {
	title, _ := el.Attribute("title")
	return Link{
		URL:          helpers.ResolveURL(current, href),
		Text:         e.text(ctx, el),
		Title:        title,
		OriginalHref: href,
	}
}

func (e *Engine) linksWithSelectors(ctx context.Context, page Page, selectors map[string]string) map[string][]Link {
	out := make(map[string][]Link)
	current := page.URL()
	for _, key := range sortedKeys(selectors) {
		var links []Link
		for _, el := range e.query(ctx, page, selectors[key]) {
			href, _ := el.Attribute("href")
			if href == "" {
				if children, err := el.QueryAll(ctx, "a[href]"); err == nil && len(children) > 0 {
					href, _ = children[0].Attribute("href")
				}
			}
			if excludedHref(href) {
				continue
			}
			links = append(links, e.linkData(ctx, el, current, href))
		}
		if len(links) > 0 {
			out[key] = links
		}
	}
	return out
}
