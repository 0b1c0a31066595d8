package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 3, cfg.Pipeline.MinYield)
	assert.Equal(t, 0.5, cfg.Pipeline.MinConfidence)
	assert.Equal(t, 0, cfg.Pipeline.FailureYield)
	assert.Equal(t, 120, cfg.Pipeline.LayerTimeoutSecs)
	assert.False(t, cfg.Pipeline.ExplodeFinishPrices)
	assert.Equal(t, 200, cfg.Loader.RasterDPI)
	assert.True(t, cfg.Vision.Enabled)
	assert.Equal(t, 640, cfg.Vision.InputSize)
	assert.Equal(t, "eng", cfg.OCR.Languages)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PRICEBOOK_PIPELINE_WORKERS", "9")
	t.Setenv("PRICEBOOK_VISION_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Pipeline.Workers)
	assert.False(t, cfg.Vision.Enabled)
}

func TestLoadVocabulary_Defaults(t *testing.T) {
	vocab, err := LoadVocabulary(PatternConfig{})
	require.NoError(t, err)
	require.NotNil(t, vocab)
}

func TestLoadVocabulary_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finishes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("finishes:\n  - US3\n  - CUSTOM9\n"), 0o644))

	vocab, err := LoadVocabulary(PatternConfig{FinishVocabularyPath: path})
	require.NoError(t, err)
	require.NotNil(t, vocab)
}

func TestLoadVocabulary_EmptyFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finishes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("finishes: []\n"), 0o644))

	_, err := LoadVocabulary(PatternConfig{FinishVocabularyPath: path})
	assert.Error(t, err)
}

func TestInitLogger_BadLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "chatty", Format: "json"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}
