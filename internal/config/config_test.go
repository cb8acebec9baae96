package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tagnav/api"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, api.URLModeSlug, cfg.URL.Mode)
	assert.Equal(t, "|", cfg.URL.Separator)
	assert.Equal(t, "None", cfg.PageToken)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadJSONPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "version": "2",
  "page_token": "tab",
  "dimensions": [
    {"name": "Model", "keys": ["modelA", "modelB"]},
    {"name": "Lead time", "keys": ["t0", "t6", "t12"]}
  ],
  "documents": ["page_0.json.zlib", "page.json.zlib"],
  "compressed": true,
  "url": {"mode": "int"},
  "animation": {"dimension": 1}
}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "2", cfg.Version)
	assert.Equal(t, "tab", cfg.PageToken)
	assert.Equal(t, [][]string{{"modelA", "modelB"}, {"t0", "t6", "t12"}}, cfg.KeyLists())
	assert.Equal(t, "zlib", cfg.CompressionName())
	assert.Equal(t, api.URLModeInt, cfg.URL.Mode)
	assert.Equal(t, "|", cfg.URL.Separator, "unset fields keep their defaults")
	require.NotNil(t, cfg.Animation)
	assert.Equal(t, 1, cfg.Animation.Dimension)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TAGNAV_LISTEN", ":9999")
	t.Setenv("TAGNAV_LOG_LEVEL", "debug")
	t.Setenv("TAGNAV_URL__MODE", "int")
	t.Setenv("TAGNAV_PREFETCH", "12")
	t.Setenv("TAGNAV_BASE", "https://example.org/wx/")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, api.URLModeInt, cfg.URL.Mode)
	assert.Equal(t, 12, cfg.Prefetch)
	assert.Equal(t, "https://example.org/wx/", cfg.Base)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagnav.yml")
	cfg := Default()
	cfg.Title = "Forecasts"
	cfg.Dimensions = []api.Dimension{{Name: "Model", Keys: []string{"a", "b"}}}
	cfg.Documents = []string{"page.json"}
	cfg.Initial = []string{"b"}
	cfg.Listen = "0.0.0.0:8000"

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Dimensions = []api.Dimension{{Name: "Model"}}
	assert.Error(t, cfg.Validate(), "documents are required")

	cfg.Documents = []string{"page.json"}
	require.NoError(t, cfg.Validate())

	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	l, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, l)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}
