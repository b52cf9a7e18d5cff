package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "settings.json"))

	s, err := mgr.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, s.Server.Port)
	assert.True(t, s.Providers.TMDB.Enabled)
	assert.Equal(t, 40, s.Providers.TMDB.RequestsPer)
	assert.Equal(t, 7*24, s.Cache.TTLHours)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "settings.json"))

	s := DefaultSettings()
	s.Server.Port = 9090
	s.Providers.TVDB.APIKey = "abc123"
	s.Providers.Gemini.Enabled = false
	require.NoError(t, mgr.Save(s))

	got, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, got.Server.Port)
	assert.Equal(t, "abc123", got.Providers.TVDB.APIKey)
	assert.False(t, got.Providers.Gemini.Enabled)

	// Atomic save leaves no temp file behind.
	_, err = os.Stat(mgr.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestEnvOverridesAPIKeys(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "settings.json"))

	s := DefaultSettings()
	s.Providers.TMDB.APIKey = "from-file"
	require.NoError(t, mgr.Save(s))

	t.Setenv("TMDB_API_KEY", "from-env")
	got, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", got.Providers.TMDB.APIKey)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewManager(path).Load()
	assert.Error(t, err)
}
