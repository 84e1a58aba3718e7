// Package store writes run artifacts: single and batch documents, JSONL record
// streams, screenshots and summary reports.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"sjsage522/harvester/internal/extract"
	"sjsage522/harvester/logger"
	"sjsage522/harvester/pkg/errors"
)

// CrawlerVersion is written into every artifact envelope
const CrawlerVersion = "1.0.0"

const (
	fileTimestamp      = "20060102_150405"
	maxFilenameURLPart = 50
)

var filenameUnsafe = strings.NewReplacer("/", "_", "?", "_", "&", "_", "=", "_", "#", "_", ":", "_")

// PageResult is the outcome of fetching and extracting one page
type PageResult struct {
	Name       string                `json:"name,omitempty"`
	URL        string                `json:"url"`
	FinalURL   string                `json:"final_url,omitempty"`
	Title      string                `json:"title,omitempty"`
	Success    bool                  `json:"success"`
	Error      string                `json:"error,omitempty"`
	Data       *extract.Bundle       `json:"data,omitempty"`
	Scroll     *extract.ScrollReport `json:"scroll,omitempty"`
	Screenshot string                `json:"screenshot,omitempty"`
	Elapsed    float64               `json:"elapsed_seconds"`
}

// Metadata is the envelope header of every document
type Metadata struct {
	CrawledAt      string `json:"crawled_at,omitempty"`
	GeneratedAt    string `json:"generated_at,omitempty"`
	URL            string `json:"url,omitempty"`
	TotalURLs      *int   `json:"total_urls,omitempty"`
	RunID          string `json:"run_id"`
	CrawlerVersion string `json:"crawler_version"`
}

// Statistics summarises a batch run
type Statistics struct {
	TotalURLs             int     `json:"total_urls"`
	SuccessfulCrawls      int     `json:"successful_crawls"`
	FailedCrawls          int     `json:"failed_crawls"`
	SuccessRate           float64 `json:"success_rate"`
	TextExtractionCount   int     `json:"text_extraction_count"`
	LinksExtractionCount  int     `json:"links_extraction_count"`
	ImagesExtractionCount int     `json:"images_extraction_count"`
}

// JSONStore writes artifacts into one output directory
type JSONStore struct {
	dir   string
	runID string
	now   func() time.Time
	log   *logger.Logger
}

// NewJSONStore creates the output directory if needed
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewPersistence(dir, "cannot create output directory", err)
	}
	return &JSONStore{
		dir:   dir,
		runID: uuid.NewString(),
		now:   time.Now,
		log:   logger.ForStore(),
	}, nil
}

// Dir returns the output directory
func (s *JSONStore) Dir() string {
	return s.dir
}

// RunID identifies this process run in every envelope
func (s *JSONStore) RunID() string {
	return s.runID
}

func (s *JSONStore) timestamp() string {
	return s.now().Format(fileTimestamp)
}

func (s *JSONStore) isoNow() string {
	return s.now().Format(time.RFC3339)
}

// SaveSingle writes one page result wrapped in a metadata envelope.
// An empty filename is derived from the timestamp and the page URL.
func (s *JSONStore) SaveSingle(res *PageResult, filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("crawl_%s_%s.json", s.timestamp(), SanitizeFilename(res.URL))
	}
	doc := struct {
		Metadata Metadata    `json:"metadata"`
		Data     *PageResult `json:"data"`
	}{
		Metadata: Metadata{CrawledAt: s.isoNow(), URL: res.URL, RunID: s.runID, CrawlerVersion: CrawlerVersion},
		Data:     res,
	}
	path, err := s.writeDocument(withExt(filename, ".json"), doc)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("path", path).Msg("result saved")
	return path, nil
}

// SaveBatch writes every result of a batch run into one document
func (s *JSONStore) SaveBatch(results []*PageResult, filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("batch_crawl_%s.json", s.timestamp())
	}
	total := len(results)
	doc := struct {
		Metadata Metadata      `json:"metadata"`
		Results  []*PageResult `json:"results"`
	}{
		Metadata: Metadata{CrawledAt: s.isoNow(), TotalURLs: &total, RunID: s.runID, CrawlerVersion: CrawlerVersion},
		Results:  nonNil(results),
	}
	path, err := s.writeDocument(withExt(filename, ".json"), doc)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("path", path).Int("results", total).Msg("batch saved")
	return path, nil
}

// CreateSummary writes a summary report with success and extraction statistics
func (s *JSONStore) CreateSummary(results []*PageResult) (string, error) {
	stats := Summarize(results)
	doc := struct {
		Metadata        Metadata      `json:"metadata"`
		Statistics      Statistics    `json:"statistics"`
		DetailedResults []*PageResult `json:"detailed_results"`
	}{
		Metadata:        Metadata{GeneratedAt: s.isoNow(), RunID: s.runID, CrawlerVersion: CrawlerVersion},
		Statistics:      stats,
		DetailedResults: nonNil(results),
	}
	path, err := s.writeDocument(fmt.Sprintf("summary_report_%s.json", s.timestamp()), doc)
	if err != nil {
		return "", err
	}
	s.log.Info().
		Str("path", path).
		Int("successful", stats.SuccessfulCrawls).
		Int("failed", stats.FailedCrawls).
		Float64("success_rate", stats.SuccessRate).
		Msg("summary report saved")
	return path, nil
}

// Summarize computes the statistics block of a summary report
func Summarize(results []*PageResult) Statistics {
	st := Statistics{TotalURLs: len(results)}
	for _, r := range results {
		if r.Success {
			st.SuccessfulCrawls++
		}
		if r.Data == nil {
			continue
		}
		if r.Data.Text != nil && !r.Data.Text.Empty() {
			st.TextExtractionCount++
		}
		if r.Data.Links != nil && !r.Data.Links.Empty() {
			st.LinksExtractionCount++
		}
		if r.Data.Images != nil && !r.Data.Images.Empty() {
			st.ImagesExtractionCount++
		}
	}
	st.FailedCrawls = st.TotalURLs - st.SuccessfulCrawls
	if st.TotalURLs > 0 {
		rate := float64(st.SuccessfulCrawls) / float64(st.TotalURLs) * 100
		st.SuccessRate = float64(int64(rate*100+0.5)) / 100
	}
	return st
}

// SaveScreenshot writes PNG bytes named after the page URL
func (s *JSONStore) SaveScreenshot(png []byte, pageURL, suffix string) (string, error) {
	name := fmt.Sprintf("screenshot_%s_%s", s.timestamp(), SanitizeFilename(pageURL))
	if suffix != "" {
		name += "_" + suffix
	}
	path := filepath.Join(s.dir, name+".png")
	if err := writeFileAtomic(path, png); err != nil {
		return "", errors.NewPersistence(path, "cannot write screenshot", err)
	}
	s.log.Info().Str("path", path).Int("bytes", len(png)).Msg("screenshot saved")
	return path, nil
}

// ListOutputFiles returns the .json and .jsonl files of the output directory,
// most recent first. File names carry their creation timestamp, so reverse
// name order is creation order.
func (s *JSONStore) ListOutputFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.NewPersistence(s.dir, "cannot list output directory", err)
	}
	files := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".json", ".jsonl":
			files = append(files, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

// SanitizeFilename turns a URL into a file name fragment: the scheme is
// dropped, separators become underscores and the result is cut to 50 characters.
func SanitizeFilename(rawURL string) string {
	if rawURL == "" {
		return "unknown"
	}
	clean := strings.TrimPrefix(strings.TrimPrefix(rawURL, "http://"), "https://")
	clean = filenameUnsafe.Replace(clean)
	if r := []rune(clean); len(r) > maxFilenameURLPart {
		clean = string(r[:maxFilenameURLPart])
	}
	return clean
}

func (s *JSONStore) writeDocument(filename string, doc interface{}) (string, error) {
	path := filepath.Join(s.dir, filename)
	data, err := marshalIndent(doc)
	if err != nil {
		return "", errors.NewPersistence(path, "cannot encode document", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", errors.NewPersistence(path, "cannot write document", err)
	}
	return path, nil
}

// marshalIndent encodes with two-space indentation, leaving HTML characters unescaped
func marshalIndent(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes through a temp file so readers never see a partial document
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func withExt(filename, ext string) string {
	if strings.HasSuffix(filename, ext) {
		return filename
	}
	return filename + ext
}

func nonNil(results []*PageResult) []*PageResult {
	if results == nil {
		return []*PageResult{}
	}
	return results
}
