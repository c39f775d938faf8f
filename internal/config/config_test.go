package config_test

import (
	"testing"

	"github.com/ogero/allocine-weekly/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":3594", cfg.ServerListenAddr)
	assert.Equal(t, "http://127.0.0.1:3594", cfg.AddonHost)
	assert.Equal(t, "https://www.allocine.fr/film/sorties-semaine/", cfg.SourceURL)
	assert.Equal(t, 3, cfg.TopN)
	assert.Equal(t, ".cache/posters", cfg.CacheDir)
	assert.Empty(t, cfg.MemoDir, "poster memo stays in memory unless configured")
	assert.Equal(t, "0 0 3 * * WED", cfg.WeeklySchedule)
	assert.Equal(t, "releases", cfg.WebsocketChannel)
	assert.Empty(t, cfg.OtelExporterEndpoint)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ADDON_HOST", "https://posters.example.com/ignored/path")
	t.Setenv("TOP_N", "5")
	t.Setenv("CACHE_DIR", "/tmp/posters")
	t.Setenv("MEMO_DIR", "/tmp/memo")
	t.Setenv("WEEKLY_SCHEDULE", "0 30 6 * * MON")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://posters.example.com", cfg.AddonHost)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, "/tmp/posters", cfg.CacheDir)
	assert.Equal(t, "/tmp/memo", cfg.MemoDir)
	assert.Equal(t, "0 30 6 * * MON", cfg.WeeklySchedule)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"top n", "TOP_N", "0"},
		{"top n not a number", "TOP_N", "three"},
		{"schedule", "WEEKLY_SCHEDULE", "every wednesday"},
		{"addon host", "ADDON_HOST", "not a url"},
		{"source url", "SOURCE_URL", "/relative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
