package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxleaf/voxleaf/internal/provider"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 50, cfg.PDF.MaxWords)
	assert.Equal(t, 3, cfg.TTS.BatchWidth)
	assert.Equal(t, 2, cfg.TTS.PrefetchWindow)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
redis:
  enabled: true
  addr: redis.internal:6379
storage:
  bucket: voxleaf-audio
  region: auto
  endpoint: https://account.r2.cloudflarestorage.com
tts:
  placeholder: true
  providers:
    - name: elevenlabs
      voice: custom-voice
    - name: polly
      region: us-east-1
pdf:
  max_words: 40
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "voxleaf-audio", cfg.Storage.Bucket)
	require.Len(t, cfg.TTS.Providers, 2)
	assert.Equal(t, provider.NameElevenLabs, cfg.TTS.Providers[0].Name)
	assert.Equal(t, "custom-voice", cfg.TTS.Providers[0].Voice)
	assert.Equal(t, "us-east-1", cfg.TTS.Providers[1].Region)
	assert.True(t, cfg.TTS.Placeholder)
	assert.Equal(t, 40, cfg.PDF.MaxWords)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOXLEAF_SERVER_PORT", "9999")
	t.Setenv("VOXLEAF_REDIS_ENABLED", "true")
	t.Setenv("VOXLEAF_TTS_PROVIDERS", "cartesia, openai")
	t.Setenv("VOXLEAF_PDF_MAX_WORDS", "30")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	require.Len(t, cfg.TTS.Providers, 2)
	assert.Equal(t, provider.NameCartesia, cfg.TTS.Providers[0].Name)
	assert.Equal(t, provider.NameOpenAI, cfg.TTS.Providers[1].Name)
	assert.Equal(t, 30, cfg.PDF.MaxWords)
}

func TestLogLevel(t *testing.T) {
	t.Run("configured level is parsed", func(t *testing.T) {
		path := writeConfig(t, `
log_level: warn
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, zerolog.WarnLevel, cfg.Level())
	})

	t.Run("empty level falls back to info", func(t *testing.T) {
		var cfg Config
		assert.Equal(t, zerolog.InfoLevel, cfg.Level())
	})

	t.Run("unknown level is rejected", func(t *testing.T) {
		path := writeConfig(t, `
log_level: chatty
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log_level")
	})
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
tts:
  providers:
    - name: espeak
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestValidateRejectsBadPort(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 70000
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsEmptyProvidersWithoutPlaceholder(t *testing.T) {
	path := writeConfig(t, `
tts:
  providers: []
  placeholder: false
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tts.providers")
}

func TestValidateRejectsSpeedOutOfRange(t *testing.T) {
	path := writeConfig(t, `
tts:
  speed: 9.5
`)
	_, err := Load(path)
	assert.Error(t, err)
}
