package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, BackendFilesystem, cfg.StorageBackend)
	require.Equal(t, "shards", cfg.ShardsDir)
	require.Equal(t, "state.seal", cfg.StateFile)
	require.Equal(t, uint64(30), cfg.BanTimeMinutes)

	// Loading the generated file again parses cleanly.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadAppliesDefaultsToSparseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("DataDir = \"/var/lib/tee\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/tee", cfg.DataDir)
	require.Equal(t, filepath.Join("/var/lib/tee", "sealing.key"), cfg.SealKeyFile)
	require.Equal(t, BackendFilesystem, cfg.StorageBackend)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("StorageBackend = \"s3\"\n"), 0o600))

	_, err := Load(path)
	require.ErrorContains(t, err, "unknown storage backend")
}

func TestValidateRejectsPathInStateFile(t *testing.T) {
	cfg := Default()
	cfg.StateFile = "../escape"
	require.Error(t, cfg.Validate())
}
