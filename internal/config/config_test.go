package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.Host)
	assert.True(t, cfg.Frontend.Enabled)
	assert.Equal(t, 1830, cfg.Calendar.MaxWindowDays)
	assert.Equal(t, 30, cfg.Calendar.UpcomingDays)
	assert.Equal(t, 50, cfg.Calendar.UpcomingLimit)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "application.yaml")
	content := []byte("calendar:\n  upcomingdays: 14\n  upcominglimit: 20\ndb:\n  host: db.internal\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Calendar.UpcomingDays)
	assert.Equal(t, 20, cfg.Calendar.UpcomingLimit)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	// untouched values keep their defaults
	assert.Equal(t, 1830, cfg.Calendar.MaxWindowDays)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db:\n  host: from-file\n"), 0o600))

	t.Setenv("SCHEDR_DB_HOST", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Host)
}
