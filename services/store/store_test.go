package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/harvester/internal/extract"
	"sjsage522/harvester/pkg/errors"
)

func newTestStore(t *testing.T) *JSONStore {
	t.Helper()
	s, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC) }
	return s
}

func readJSON(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "example.com_path_a_1_b_2_top", SanitizeFilename("https://example.com/path?a=1&b=2#top"))
	assert.Equal(t, "localhost_8080_x", SanitizeFilename("http://localhost:8080/x"))
	assert.Equal(t, "unknown", SanitizeFilename(""))
	assert.Len(t, SanitizeFilename("https://example.com/"+strings.Repeat("a", 100)), 50)
}

func TestSanitizeFilenameMultibyte(t *testing.T) {
	name := SanitizeFilename("https://example.jp/求人/看護師/東京都/渋谷区/詳細/" + strings.Repeat("職", 60))
	assert.True(t, utf8.ValidString(name))
	assert.Equal(t, 50, utf8.RuneCountInString(name))
	assert.True(t, strings.HasPrefix(name, "example.jp_求人_看護師_"))
}

func TestSaveSingle(t *testing.T) {
	s := newTestStore(t)
	res := &PageResult{URL: "https://example.com/a?b=<c>", Title: "A & B", Success: true}

	path, err := s.SaveSingle(res, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "crawl_20240309_140506_example.com_a_b_<c>.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"title": "A & B"`)

	doc := readJSON(t, path)
	meta := doc["metadata"].(map[string]interface{})
	assert.Equal(t, "1.0.0", meta["crawler_version"])
	assert.Equal(t, s.RunID(), meta["run_id"])
	assert.Equal(t, res.URL, meta["url"])
	assert.Equal(t, "2024-03-09T14:05:06Z", meta["crawled_at"])
	assert.Equal(t, true, doc["data"].(map[string]interface{})["success"])

	named, err := s.SaveSingle(res, "custom")
	require.NoError(t, err)
	assert.Equal(t, "custom.json", filepath.Base(named))
}

func TestSaveBatch(t *testing.T) {
	s := newTestStore(t)
	path, err := s.SaveBatch([]*PageResult{{URL: "a", Success: true}, {URL: "b", Error: "timeout"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "batch_crawl_20240309_140506.json", filepath.Base(path))

	doc := readJSON(t, path)
	meta := doc["metadata"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["total_urls"])
	assert.Len(t, doc["results"], 2)

	empty, err := s.SaveBatch(nil, "empty.json")
	require.NoError(t, err)
	emptyDoc := readJSON(t, empty)
	assert.Equal(t, float64(0), emptyDoc["metadata"].(map[string]interface{})["total_urls"])
	assert.Equal(t, []interface{}{}, emptyDoc["results"])
}

func TestSummarize(t *testing.T) {
	text := &extract.TextResult{Bundle: &extract.TextBundle{Title: "t"}}
	emptyLinks := &extract.LinkResult{Bundle: &extract.LinkBundle{}}
	images := &extract.ImageResult{Fields: map[string][]extract.Image{"hero": {{URL: "x"}}}}

	st := Summarize([]*PageResult{
		{Success: true, Data: &extract.Bundle{Text: text, Links: emptyLinks}},
		{Success: true, Data: &extract.Bundle{Images: images}},
		{Success: false},
	})

	assert.Equal(t, 3, st.TotalURLs)
	assert.Equal(t, 2, st.SuccessfulCrawls)
	assert.Equal(t, 1, st.FailedCrawls)
	assert.Equal(t, 66.67, st.SuccessRate)
	assert.Equal(t, 1, st.TextExtractionCount)
	assert.Equal(t, 0, st.LinksExtractionCount)
	assert.Equal(t, 1, st.ImagesExtractionCount)

	assert.Equal(t, 0.0, Summarize(nil).SuccessRate)
}

func TestCreateSummary(t *testing.T) {
	s := newTestStore(t)
	path, err := s.CreateSummary([]*PageResult{{URL: "a", Success: true}})
	require.NoError(t, err)
	assert.Equal(t, "summary_report_20240309_140506.json", filepath.Base(path))

	doc := readJSON(t, path)
	assert.Equal(t, "2024-03-09T14:05:06Z", doc["metadata"].(map[string]interface{})["generated_at"])
	assert.Equal(t, float64(100), doc["statistics"].(map[string]interface{})["success_rate"])
	assert.Len(t, doc["detailed_results"], 1)
}

func TestSaveScreenshot(t *testing.T) {
	s := newTestStore(t)
	path, err := s.SaveScreenshot([]byte{0x89, 'P', 'N', 'G'}, "https://example.com/x", "job_1")
	require.NoError(t, err)
	assert.Equal(t, "screenshot_20240309_140506_example.com_x_job_1.png", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
}

func TestListOutputFiles(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"crawl_20240101_000000_a.json", "jobs_20240301_000000.jsonl", "screenshot_x.png", "notes.txt", "crawl_20240201_000000_b.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), name), []byte("{}"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "sub.json"), 0o755))

	files, err := s.ListOutputFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs_20240301_000000.jsonl", "crawl_20240201_000000_b.json", "crawl_20240101_000000_a.json"}, files)
}

func TestListOutputFilesMissingDirectory(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.RemoveAll(s.Dir()))

	_, err := s.ListOutputFiles()
	assert.True(t, errors.IsType(err, errors.ErrorTypePersistence))
}

func TestNewJSONStoreFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewJSONStore(filepath.Join(blocker, "out"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePersistence))
}
