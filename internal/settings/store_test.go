package settings

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annsts/underlay/internal/player"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureAdminAndAuthenticate(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.EnsureAdmin("admin", "hunter2"))

	id, err := s.Authenticate("admin", "hunter2")
	require.NoError(t, err)
	assert.NotZero(t, id)

	id, err = s.Authenticate("admin", "wrong")
	require.NoError(t, err)
	assert.Zero(t, id)

	id, err = s.Authenticate("nobody", "hunter2")
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestEnsureAdminUpdatesPassword(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.EnsureAdmin("admin", "old"))
	require.NoError(t, s.EnsureAdmin("admin", "new"))

	id, err := s.Authenticate("admin", "old")
	require.NoError(t, err)
	assert.Zero(t, id)

	id, err = s.Authenticate("admin", "new")
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestSessionsPersist(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureAdmin("admin", "pw"))
	id, _ := s.Authenticate("admin", "pw")

	require.NoError(t, s.SaveSession("tok-live", id, time.Now().Add(time.Hour)))
	require.NoError(t, s.SaveSession("tok-dead", id, time.Now().Add(-time.Hour)))

	sessions, err := s.LoadSessions()
	require.NoError(t, err)
	assert.Contains(t, sessions, "tok-live")
	assert.NotContains(t, sessions, "tok-dead")

	require.NoError(t, s.DeleteSession("tok-live"))
	sessions, err = s.LoadSessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSeedIsStable(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Seed()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, first, int32(0))

	second, err := s.Seed()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestVolumeRoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, ok := s.Volume()
	assert.False(t, ok)

	require.NoError(t, s.SaveVolume(65))
	v, ok := s.Volume()
	require.True(t, ok)
	assert.Equal(t, 65, v)
}

func TestAutoReconnectRoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, ok := s.AutoReconnect()
	assert.False(t, ok)

	require.NoError(t, s.SaveAutoReconnect(false))
	v, ok := s.AutoReconnect()
	require.True(t, ok)
	assert.False(t, v)
}

func TestLayersRoundTrip(t *testing.T) {
	s := newTestStore(t)

	layers := []player.Layer{
		{ID: "1", Text: "dreamy synth pads", Weight: 1.0, Enabled: true},
		{ID: "2", Text: "soft piano melody", Weight: 0.8, Enabled: false},
	}
	require.NoError(t, s.SaveLayers(layers))

	got, ok := s.Layers()
	require.True(t, ok)
	assert.Equal(t, layers, got)
}

func TestConfigRoundTrip(t *testing.T) {
	s := newTestStore(t)

	cfg := player.DefaultConfig()
	cfg.BPM = 95
	cfg.Density = 0.4
	require.NoError(t, s.SaveConfig(cfg))

	got, ok := s.Config()
	require.True(t, ok)
	assert.Equal(t, cfg, got)
}
