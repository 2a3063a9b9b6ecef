package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
lyria:
  api_key: test-key
  lead_seconds: 2.5
audio:
  output: stdout
  sample_rate: 44100
  channels: 1
web:
  port: 9000
  username: ops
  password: secret
db:
  path: /tmp/test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.Lyria.APIKey)
	assert.Equal(t, 2.5, cfg.Lyria.LeadSeconds)
	assert.Equal(t, "stdout", cfg.Audio.Output)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.Equal(t, 9000, cfg.Web.Port)
	assert.Equal(t, "ops", cfg.Web.Username)
	assert.Equal(t, "/tmp/test.db", cfg.DB.Path)

	// Defaults fill what the file omits.
	assert.Equal(t, "models/lyria-realtime-exp", cfg.Lyria.Model)
	assert.True(t, cfg.Lyria.AutoReconnect)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
lyria:
  api_key: k
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1.8, cfg.Lyria.LeadSeconds)
	assert.Equal(t, "ffplay", cfg.Audio.Output)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, 2, cfg.Audio.Channels)
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, "admin", cfg.Web.Username)
	assert.Equal(t, "underlay.db", cfg.DB.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "lyria: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadOutput(t *testing.T) {
	path := writeConfig(t, `
audio:
  output: pulseaudio
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadChannels(t *testing.T) {
	path := writeConfig(t, `
audio:
  channels: 6
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestHotConfigReloadKeepsPreviousOnError(t *testing.T) {
	path := writeConfig(t, "lyria:\n  api_key: first\n")

	hc, err := NewHotConfig(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("lyria: [broken"), 0644))
	hc.reload()

	assert.Equal(t, "first", hc.Get().Lyria.APIKey)
}

func TestWatchCoalescesWriteBursts(t *testing.T) {
	path := writeConfig(t, "lyria:\n  api_key: first\n")

	hc, err := NewHotConfig(path)
	require.NoError(t, err)

	var mu sync.Mutex
	var keys []string
	hc.OnReload(func(c *Config) {
		mu.Lock()
		keys = append(keys, c.Lyria.APIKey)
		mu.Unlock()
	})
	hc.Watch()

	// A save burst: several writes inside the settle window.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("lyria:\n  api_key: second\n"), 0644))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(keys) > 0
	}, 2*time.Second, 10*time.Millisecond)

	// Let any stragglers past the settle window land.
	time.Sleep(2 * reloadSettle)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "second", keys[len(keys)-1])
	assert.LessOrEqual(t, len(keys), 2, "write burst should coalesce into one reload")
}

func TestHotConfigReload(t *testing.T) {
	path := writeConfig(t, `
lyria:
  api_key: first
`)

	hc, err := NewHotConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "first", hc.Get().Lyria.APIKey)

	var gotKey string
	hc.OnReload(func(c *Config) { gotKey = c.Lyria.APIKey })

	require.NoError(t, os.WriteFile(path, []byte("lyria:\n  api_key: second\n"), 0644))
	hc.reload()

	assert.Equal(t, "second", hc.Get().Lyria.APIKey)
	assert.Equal(t, "second", gotKey)
}
