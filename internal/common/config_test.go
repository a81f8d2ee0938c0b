package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFiles_Defaults(t *testing.T) {
	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 8085, config.Server.Port)
	assert.Equal(t, "24h", config.Feeds.FDATimeframe)
	assert.Equal(t, "30m", config.Feeds.SECTimeframe)
	assert.Equal(t, LLMProviderClaude, config.LLM.DefaultProvider)
	assert.Equal(t, 50, config.Classifier.BatchLimit)
	assert.Equal(t, 2, config.Classifier.SubBatchSize)
}

func TestLoadFromFiles_LaterFileOverrides(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.toml")
	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9000

[classifier]
batch_limit = 25
`), 0644))

	override := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(override, []byte(`
[server]
port = 9100
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, 25, config.Classifier.BatchLimit)
	// Untouched values keep their defaults
	assert.Equal(t, "localhost", config.Server.Host)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/regwatch.toml")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		c := NewDefaultConfig()
		c.Claude.APIKey = "test-key"
		return c
	}

	t.Run("valid default", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing api key for selected provider", func(t *testing.T) {
		c := NewDefaultConfig()
		assert.Error(t, c.Validate())
	})

	t.Run("gemini provider checks gemini key", func(t *testing.T) {
		c := valid()
		c.LLM.DefaultProvider = LLMProviderGemini
		assert.Error(t, c.Validate())

		c.Gemini.APIKey = "gemini-key"
		assert.NoError(t, c.Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		c := valid()
		c.LLM.DefaultProvider = "openai"
		assert.Error(t, c.Validate())
	})

	t.Run("bad durations", func(t *testing.T) {
		c := valid()
		c.Feeds.Timeout = "30 seconds"
		assert.Error(t, c.Validate())

		c = valid()
		c.Classifier.BatchDelay = "soon"
		assert.Error(t, c.Validate())

		c = valid()
		c.Scheduler.LeaseTimeout = ""
		assert.Error(t, c.Validate())
	})

	t.Run("threshold ordering", func(t *testing.T) {
		c := valid()
		c.Classifier.DiscardThreshold = 60
		c.Classifier.PublishThreshold = 50
		assert.Error(t, c.Validate())
	})
}
