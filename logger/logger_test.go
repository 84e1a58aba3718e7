package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentLoggers(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	InitWithWriter(&buf)
	buf.Reset()

	ForCrawler("jobs").Info().Int("page", 2).Msg("list page fetched")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "crawler", entry["component"])
	assert.Equal(t, "jobs", entry["site"])
	assert.Equal(t, float64(2), entry["page"])
	assert.Equal(t, "list page fetched", entry["message"])
}

func TestLogErrorIncludesCause(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	var buf bytes.Buffer
	InitWithWriter(&buf)
	buf.Reset()

	LogError("store", errors.New("disk full"), "cannot write %s", "out.json")

	assert.Contains(t, buf.String(), `"error":"disk full"`)
	assert.Contains(t, buf.String(), `"message":"cannot write out.json"`)
}

func TestLevelFromEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("HARVEST_ENVIRONMENT", "production")
	assert.Equal(t, "info", getLogLevel().String())

	t.Setenv("HARVEST_ENVIRONMENT", "development")
	assert.Equal(t, "debug", getLogLevel().String())

	t.Setenv("LOG_LEVEL", "not-a-level")
	assert.Equal(t, "info", getLogLevel().String())
}

func TestWithErrorAndPackageHelpers(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	InitWithWriter(&buf)
	buf.Reset()

	Default.WithError(errors.New("boom")).Error().Msg("run failed")
	assert.Contains(t, buf.String(), `"error":"boom"`)

	buf.Reset()
	Debug("cleaned %d services", 2)
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), `"message":"cleaned 2 services"`)

	buf.Reset()
	Error("server on %s stopped", ":9090")
	assert.Contains(t, buf.String(), `"level":"error"`)
}
