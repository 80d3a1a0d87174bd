package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "/dev/shm", cfg.Shm.Dir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Equal(t, []string{"*"}, cfg.Metrics.AllowedOrigins)
	assert.Equal(t, 20, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 40, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 33*time.Millisecond, cfg.Viewer.MinUpdatePeriod())
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.NotZero(t, cfg.Viewer.MinUpdateMS)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"SHMFLOW_SHM_DIR":       "/tmp/shm",
		"LOG_LEVEL":             "debug",
		"LOG_DEV":               "true",
		"METRICS_ADDR":          ":9100",
		"METRICS_CORS_ORIGINS":  "http://a,http://b",
		"DIAG_RATE_LIMIT_RPS":   "5",
		"DIAG_RATE_LIMIT_BURST": "7",
		"VIEWER_MIN_UPDATE_MS":  "100",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/shm", cfg.Shm.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Metrics.AllowedOrigins)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
	assert.Equal(t, 100*time.Millisecond, cfg.Viewer.MinUpdatePeriod())
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("DIAG_RATE_LIMIT_RPS", "fast")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 20, cfg.RateLimit.RequestsPerSecond)
}

type detectorConfig struct {
	Threshold int     `json:"threshold"`
	MinArea   float64 `json:"min_area"`
	Invert    bool    `json:"invert"`
	Name      string  `json:"name"`
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSectionFormats(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "toml",
			file: "c.toml",
			body: "[posidet]\nthreshold = 120\nmin_area = 4.5\ninvert = true\n",
		},
		{
			name: "yaml",
			file: "c.yaml",
			body: "posidet:\n  threshold: 120\n  min_area: 4.5\n  invert: true\n",
		},
		{
			name: "json",
			file: "c.json",
			body: `{"posidet": {"threshold": 120, "min_area": 4.5, "invert": true}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.body)
			cfg := detectorConfig{Name: "keep"}

			require.NoError(t, LoadSection(path, "posidet", &cfg))
			assert.Equal(t, detectorConfig{Threshold: 120, MinArea: 4.5, Invert: true, Name: "keep"}, cfg)
		})
	}
}

func TestLoadSectionNestedKey(t *testing.T) {
	path := writeFile(t, "c.toml", "[stages.posidet]\nthreshold = 9\n")

	var cfg detectorConfig
	require.NoError(t, LoadSection(path, "stages.posidet", &cfg))
	assert.Equal(t, 9, cfg.Threshold)

	assert.ErrorIs(t, LoadSection(path, "stages.view", &cfg), ErrMissingKey)
	assert.ErrorIs(t, LoadSection(path, "stages.posidet.threshold.x", &cfg), ErrMissingKey)
}

func TestLoadSectionErrors(t *testing.T) {
	var cfg detectorConfig

	assert.ErrorIs(t, LoadSection(writeFile(t, "c.ini", "x=1"), "", &cfg), ErrUnknownFormat)
	assert.Error(t, LoadSection(filepath.Join(t.TempDir(), "missing.toml"), "", &cfg))
	assert.Error(t, LoadSection(writeFile(t, "c.toml", "[broken"), "", &cfg))
}

func TestApplyFileFlagsWin(t *testing.T) {
	path := writeFile(t, "c.toml", "[posidet]\nthreshold = 120\nmin_area = 4.5\n")

	var cfg detectorConfig
	fs := flag.NewFlagSet("posidet", flag.ContinueOnError)
	fs.IntVar(&cfg.Threshold, "threshold", 10, "")
	fs.Float64Var(&cfg.MinArea, "min-area", 1, "")
	require.NoError(t, fs.Parse([]string{"-threshold", "200"}))

	require.NoError(t, ApplyFile(fs, path, "posidet", &cfg))
	assert.Equal(t, 200, cfg.Threshold)
	assert.Equal(t, 4.5, cfg.MinArea)
}

func TestApplyFileWithoutPath(t *testing.T) {
	cfg := detectorConfig{Threshold: 3}
	fs := flag.NewFlagSet("x", flag.ContinueOnError)
	require.NoError(t, ApplyFile(fs, "", "", &cfg))
	assert.Equal(t, 3, cfg.Threshold)
}
