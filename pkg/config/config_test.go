package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"stegodb/pkg/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, "data", cfg.DataDir)
	require.Equal(t, config.DefaultMaxPagesInBuffer, cfg.MaxPagesInBuffer)
	require.EqualValues(t, 0, cfg.LeafMaxSize)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stegodb.ini")
	contents := `data_dir = /tmp/stego
max_pages_in_buffer = 64
log_level = debug
leaf_max_size = 8
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/stego", cfg.DataDir)
	require.Equal(t, 64, cfg.MaxPagesInBuffer)
	require.Equal(t, "debug", cfg.LogLevel)
	require.EqualValues(t, 8, cfg.LeafMaxSize)
	// Keys absent from the file keep their defaults.
	require.EqualValues(t, 0, cfg.InternalMaxSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.ini"))
	require.Error(t, err)
}
