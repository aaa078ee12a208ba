package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := &Config{
		LocalDir:  "/tmp/nanogit",
		RelayURL:  "ws://localhost:9999/relay",
		Origin:    "https://app.example.com",
		OpenProxy: "https://proxy.example.com/fetch",
	}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.LocalDir, loaded.LocalDir)
	assert.Equal(t, cfg.RelayURL, loaded.RelayURL)
	assert.Equal(t, cfg.Origin, loaded.Origin)
	assert.Equal(t, path, loaded.Path)
}

func TestLoad_FillsRelayDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, (&Config{LocalDir: "/tmp/x"}).Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRelayURL, loaded.RelayURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.NoError(t, (&Config{LocalDir: "/tmp/x"}).Validate())
}
