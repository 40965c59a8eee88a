package configcmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/birdo-app/birdo/internal/conf"
	"github.com/birdo-app/birdo/internal/errors"
)

func TestWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "birdo", "config.yaml")
	settings := &conf.Settings{}
	settings.Backend.BaseURL = "https://api.example.com"

	got, err := writeConfig(settings, path, false)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var back conf.Settings
	require.NoError(t, yaml.Unmarshal(raw, &back))
	assert.Equal(t, "https://api.example.com", back.Backend.BaseURL)
}

func TestWriteConfigRefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug: true\n"), 0o600))

	_, err := writeConfig(&conf.Settings{}, path, false)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = writeConfig(&conf.Settings{}, path, true)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "debug: true")
}
