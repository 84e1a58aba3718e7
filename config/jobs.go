package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"sjsage522/harvester/pkg/errors"
)

// Extraction kinds understood by the content engine
const (
	ExtractText   = "text"
	ExtractLinks  = "links"
	ExtractImages = "images"
)

// DefaultExtract is used when a job names no extraction kinds
var DefaultExtract = []string{ExtractText, ExtractLinks, ExtractImages}

// BrowserSettings are shared by every job of a batch document
type BrowserSettings struct {
	DelayMS    int    `yaml:"delay"`
	TimeoutMS  int    `yaml:"timeout"`
	UserAgent  string `yaml:"user_agent"`
	Screenshot bool   `yaml:"screenshot"`
	Profile    string `yaml:"profile"`
}

// DebugSettings toggles developer affordances
type DebugSettings struct {
	Headful bool `yaml:"headful"`
}

// Job is one rendered page to extract
type Job struct {
	Name        string            `yaml:"name"`
	URL         string            `yaml:"url"`
	WaitMS      int               `yaml:"wait"`
	Scroll      bool              `yaml:"scroll"`
	ScrollCount int               `yaml:"scroll_count"`
	Extract     []string          `yaml:"extract"`
	Selectors   map[string]string `yaml:"selectors"`
	Screenshot  *bool             `yaml:"screenshot"`
}

// BatchConfig is a document of browser jobs sharing one session
type BatchConfig struct {
	Settings BrowserSettings `yaml:"settings"`
	Debug    DebugSettings   `yaml:"debug"`
	Jobs     []Job           `yaml:"jobs"`
}

// DefaultBatchConfig mirrors the settings used when no document is supplied
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Settings: BrowserSettings{
			DelayMS:   2000,
			TimeoutMS: 30000,
			UserAgent: DefaultUserAgent,
		},
	}
}

// LoadBatchConfig reads a batch document on top of the defaults
func LoadBatchConfig(path string) (*BatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("cannot read batch config %s", path), err)
	}
	return ParseBatchConfig(data)
}

// ParseBatchConfig decodes a batch document on top of the defaults and validates it
func ParseBatchConfig(data []byte) (*BatchConfig, error) {
	cfg := DefaultBatchConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfiguration("invalid batch config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every job can be run
func (c *BatchConfig) Validate() error {
	if len(c.Jobs) == 0 {
		return errors.NewConfiguration("no jobs defined in batch config", nil)
	}
	for i, job := range c.Jobs {
		if job.URL == "" {
			return errors.NewConfiguration(fmt.Sprintf("job %d (%s): url is required", i+1, job.Name), nil)
		}
		for _, kind := range job.Extract {
			if kind != ExtractText && kind != ExtractLinks && kind != ExtractImages {
				return errors.NewConfiguration(fmt.Sprintf("job %d (%s): unknown extract kind %q", i+1, job.Name, kind), nil)
			}
		}
	}
	if c.Settings.TimeoutMS < 0 || c.Settings.DelayMS < 0 {
		return errors.NewConfiguration("settings.delay and settings.timeout must not be negative", nil)
	}
	return nil
}

// JobName returns the configured name or a positional fallback
func (c *BatchConfig) JobName(i int) string {
	if c.Jobs[i].Name != "" {
		return c.Jobs[i].Name
	}
	return fmt.Sprintf("job_%d", i+1)
}

// Delay is the pause between two jobs
func (s BrowserSettings) Delay() time.Duration {
	return time.Duration(s.DelayMS) * time.Millisecond
}

// Timeout is the navigation timeout
func (s BrowserSettings) Timeout() time.Duration {
	if s.TimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// Wait is the settle time after navigation; the job's own wait wins over the shared delay
func (j Job) Wait(settings BrowserSettings) time.Duration {
	if j.WaitMS > 0 {
		return time.Duration(j.WaitMS) * time.Millisecond
	}
	return settings.Delay()
}

// Kinds returns the extraction kinds, defaulting to all of them
func (j Job) Kinds() []string {
	if len(j.Extract) == 0 {
		return DefaultExtract
	}
	return j.Extract
}

// WantsScreenshot resolves the job override against the shared setting
func (j Job) WantsScreenshot(settings BrowserSettings) bool {
	if j.Screenshot != nil {
		return *j.Screenshot
	}
	return settings.Screenshot
}

// ResolveProfile maps a profile name to a browser user data directory.
// Existing paths are used as is; otherwise the name is looked up under profileRoot.
func ResolveProfile(name, profileRoot string) (string, bool) {
	if name == "" {
		return "", false
	}
	if info, err := os.Stat(name); err == nil && info.IsDir() {
		return name, true
	}
	candidate := filepath.Join(profileRoot, name)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, true
	}
	return "", false
}
