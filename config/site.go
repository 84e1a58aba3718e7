package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sjsage522/harvester/pkg/errors"
)

const (
	defaultPageParam = "p"
	defaultIDField   = "original_id"
	defaultSiteDelay = 1.0
)

// MetaPattern names a regular expression applied to a whole detail page
type MetaPattern struct {
	Name    string
	Pattern string
}

// MetaPatterns keeps meta patterns in document order
type MetaPatterns []MetaPattern

// UnmarshalYAML decodes a YAML mapping while preserving key order.
// A repeated name replaces the earlier pattern in place.
func (m *MetaPatterns) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: meta_patterns must be a mapping", node.Line)
	}

	out := make(MetaPatterns, 0, len(node.Content)/2)
	index := make(map[string]int)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name, pattern string
		if err := node.Content[i].Decode(&name); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&pattern); err != nil {
			return err
		}
		if pos, ok := index[name]; ok {
			out[pos].Pattern = pattern
			continue
		}
		index[name] = len(out)
		out = append(out, MetaPattern{Name: name, Pattern: pattern})
	}
	*m = out
	return nil
}

// SiteConfig describes how to walk one site's list pages and parse its detail pages
type SiteConfig struct {
	Name         string            `yaml:"name"`
	BaseURL      string            `yaml:"base_url"`
	ListURL      string            `yaml:"list_url"`
	PageParam    string            `yaml:"page_param"`
	StartPage    int               `yaml:"start_page"`
	EndPage      int               `yaml:"end_page"`
	Delay        *float64          `yaml:"delay"`
	IDPattern    string            `yaml:"id_pattern"`
	DetailURL    string            `yaml:"detail_url"`
	IDField      string            `yaml:"id_field"`
	MetaPatterns MetaPatterns      `yaml:"meta_patterns"`
	Mapping      map[string]string `yaml:"mapping"`

	idRegex     *regexp.Regexp
	metaRegexes []*regexp.Regexp
}

// LoadSiteConfig reads, defaults and validates a site document
func LoadSiteConfig(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("cannot read site config %s", path), err)
	}
	return ParseSiteConfig(data)
}

// ParseSiteConfig decodes a site document, applies defaults and validates it
func ParseSiteConfig(data []byte) (*SiteConfig, error) {
	var cfg SiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfiguration("invalid site config", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *SiteConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = "unknown"
	}
	if c.PageParam == "" {
		c.PageParam = defaultPageParam
	}
	if c.StartPage == 0 {
		c.StartPage = 1
	}
	if c.EndPage == 0 {
		c.EndPage = 1
	}
	if c.IDField == "" {
		c.IDField = defaultIDField
	}
	if c.Delay == nil {
		d := defaultSiteDelay
		c.Delay = &d
	}
}

// Validate checks required keys and compiles every pattern once
func (c *SiteConfig) Validate() error {
	if strings.TrimSpace(c.ListURL) == "" {
		return errors.NewConfiguration(fmt.Sprintf("site %s: list_url is required", c.Name), nil)
	}
	if strings.TrimSpace(c.IDPattern) == "" {
		return errors.NewConfiguration(fmt.Sprintf("site %s: id_pattern is required", c.Name), nil)
	}
	if strings.TrimSpace(c.DetailURL) == "" {
		return errors.NewConfiguration(fmt.Sprintf("site %s: detail_url is required", c.Name), nil)
	}
	if c.Delay != nil && *c.Delay < 0 {
		return errors.NewConfiguration(fmt.Sprintf("site %s: delay must not be negative", c.Name), nil)
	}
	if c.EndPage < c.StartPage {
		return errors.NewConfiguration(fmt.Sprintf("site %s: end_page %d is before start_page %d", c.Name, c.EndPage, c.StartPage), nil)
	}

	re, err := regexp.Compile(c.IDPattern)
	if err != nil {
		return errors.NewConfiguration(fmt.Sprintf("site %s: invalid id_pattern", c.Name), err)
	}
	c.idRegex = re

	c.metaRegexes = make([]*regexp.Regexp, len(c.MetaPatterns))
	for i, mp := range c.MetaPatterns {
		// Meta patterns span lines, so dot matches newline.
		re, err := regexp.Compile("(?s)" + mp.Pattern)
		if err != nil {
			return errors.NewConfiguration(fmt.Sprintf("site %s: invalid meta pattern %q", c.Name, mp.Name), err)
		}
		c.metaRegexes[i] = re
	}
	return nil
}

// IDRegex returns the compiled identifier pattern. Validate must have succeeded.
func (c *SiteConfig) IDRegex() *regexp.Regexp {
	return c.idRegex
}

// MetaRegexes returns the compiled meta patterns, parallel to MetaPatterns.
func (c *SiteConfig) MetaRegexes() []*regexp.Regexp {
	return c.metaRegexes
}

// PageDelay is the politeness delay between two requests
func (c *SiteConfig) PageDelay() time.Duration {
	if c.Delay == nil {
		return time.Duration(defaultSiteDelay * float64(time.Second))
	}
	return time.Duration(*c.Delay * float64(time.Second))
}

// SetDelay overrides the configured delay in seconds
func (c *SiteConfig) SetDelay(seconds float64) {
	c.Delay = &seconds
}

// ListPageURL builds the list URL for one page. Templates without a {page}
// placeholder get the page number as the page_param query parameter.
func (c *SiteConfig) ListPageURL(page int) string {
	raw := c.BaseURL + c.ListURL
	num := fmt.Sprintf("%d", page)
	if strings.Contains(raw, "{page}") {
		return strings.ReplaceAll(raw, "{page}", num)
	}
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + c.PageParam + "=" + num
}

// DetailPageURL builds the detail URL for one identifier
func (c *SiteConfig) DetailPageURL(id string) string {
	return c.BaseURL + strings.ReplaceAll(c.DetailURL, "{id}", id)
}
