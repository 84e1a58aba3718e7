package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newJobSite serves a paginated listing with a detail page per posting
func newJobSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("p") {
		case "1":
			fmt.Fprint(w, `<a href="/job/101">a</a><a href="/job/102">b</a>`)
		case "2":
			fmt.Fprint(w, `<a href="/job/102">b</a>`)
		default:
			http.Error(w, "unexpected page", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/job/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/job/")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Posting %s</title></head><body>
<h2 class="facility">Clinic %s</h2>
<dl><dt>給与</dt><dd>月給<br>30万円</dd><dt>勤務地</dt><dd>Tokyo</dd></dl>
</body></html>`, id, id)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setupEnv(t *testing.T) string {
	t.Helper()
	out := t.TempDir()
	t.Setenv("OUTPUT_DIR", out)
	t.Setenv("ERROR_LOG_PATH", filepath.Join(out, "errors.log"))
	t.Setenv("MEMCACHE_ADDR", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("LOG_LEVEL", "error")
	return out
}

func TestCrawlCommand(t *testing.T) {
	out := setupEnv(t)
	server := newJobSite(t)

	siteFile := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(siteFile, []byte(`
name: clinics
base_url: `+server.URL+`
list_url: /jobs
page_param: p
end_page: 5
delay: 0
id_pattern: /job/(\d+)
detail_url: /job/{id}
meta_patterns:
  facility_name: <h2 class="facility">(.*?)</h2>
mapping:
  original_id: original_id
  facility_name: facility_name
  給与: price
`), 0o644))

	code := run([]string{"crawl", siteFile, "--output", "clinics"})
	require.Equal(t, exitOK, code)

	f, err := os.Open(filepath.Join(out, "clinics.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"facility_name":"Clinic 101"`)
	assert.Contains(t, lines[0], `"price":"月給\n30万円"`)
	assert.Contains(t, lines[0], `"original_id":"101"`)
	assert.Contains(t, lines[0], `"_extra":{"勤務地":"Tokyo","title":"Posting 101"}`)
	assert.Contains(t, lines[1], `"original_id":"102"`)
}

func TestFetchStaticAndList(t *testing.T) {
	out := setupEnv(t)
	server := newJobSite(t)

	code := run([]string{"fetch", "--static", "--extract", "text,links", server.URL + "/job/7", "--output", "single"})
	require.Equal(t, exitOK, code)
	assert.FileExists(t, filepath.Join(out, "single.json"))

	data, err := os.ReadFile(filepath.Join(out, "single.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title": "Posting 7"`)
	assert.NotContains(t, string(data), `"images"`)

	assert.Equal(t, exitOK, run([]string{"list"}))
}

func TestConfigurationErrors(t *testing.T) {
	setupEnv(t)

	missing := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(missing, []byte("name: broken\nid_pattern: x\n"), 0o644))
	assert.Equal(t, exitFailure, run([]string{"crawl", missing}))

	assert.Equal(t, exitUsage, run([]string{"crawl"}))
	assert.Equal(t, exitUsage, run([]string{"unknown"}))
	assert.Equal(t, exitUsage, run(nil))

	t.Setenv("NAV_TIMEOUT_MS", "-1")
	assert.Equal(t, exitFailure, run([]string{"list"}))
}

func TestParseArgs(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	maxPages := fs.Int("max-pages", 0, "")
	static := fs.Bool("static", false, "")

	positional, err := parseArgs(fs, []string{"--max-pages", "3", "site.yaml", "--static", "extra"})
	require.NoError(t, err)
	assert.Equal(t, []string{"site.yaml", "extra"}, positional)
	assert.Equal(t, 3, *maxPages)
	assert.True(t, *static)

	_, err = parseArgs(fs, []string{"--nope"})
	assert.True(t, isUsage(err))
}
