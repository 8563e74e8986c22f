package config

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yamlv2 "gopkg.in/yaml.v2"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.NotEmpty(t, cfg.Prompt)
	assert.NotEmpty(t, cfg.DefaultPath)
	assert.Greater(t, cfg.History.Size, 0)
}

func TestEmbeddedDefaultIsWellFormedYAML(t *testing.T) {
	var raw map[string]interface{}
	require.NoError(t, yamlv2.Unmarshal(defaultConfigData, &raw))
	assert.Contains(t, raw, "prompt")
	assert.Contains(t, raw, "default_path")
}

func TestValidateReportsJSONNames(t *testing.T) {
	cfg := Default()
	cfg.DefaultPath = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_path")
}

func TestValidateRejectsNegativeHistorySize(t *testing.T) {
	cfg := Default()
	cfg.History.Size = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	contents := []byte("prompt: '> '\ncolor: false\ndefault_path: /bin:/usr/bin\nhistory:\n  size: 50\n")
	require.NoError(t, afero.WriteFile(fs, "/etc/thrash/config.yaml", contents, 0o600))

	cfg, err := loadFs(fs, "/etc/thrash")
	require.NoError(t, err)
	assert.Equal(t, "> ", cfg.Prompt)
	assert.Equal(t, "/bin:/usr/bin", cfg.DefaultPath)
	assert.Equal(t, 50, cfg.History.Size)
}

func TestLoadFsAcceptsFilePath(t *testing.T) {
	fs := afero.NewMemMapFs()
	contents := []byte("prompt: '> '\ndefault_path: /bin\n")
	require.NoError(t, afero.WriteFile(fs, "/etc/thrash/config.yaml", contents, 0o600))

	cfg, err := loadFs(fs, "/etc/thrash/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "> ", cfg.Prompt)
}

func TestLoadFsRejectsUnknownKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	contents := []byte("prompt: '> '\ndefault_path: /bin\nno_such_key: true\n")
	require.NoError(t, afero.WriteFile(fs, "/etc/thrash/config.yaml", contents, 0o600))

	_, err := loadFs(fs, "/etc/thrash")
	assert.Error(t, err)
}

func TestLoadFsMissingFile(t *testing.T) {
	_, err := loadFs(afero.NewMemMapFs(), "/nowhere")
	assert.True(t, os.IsNotExist(err))
}

func TestInitializeFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	logger := log.New(os.Stderr, "", 0)

	cfg, err := initializeFs(fs, "/home/u/.config/thrash", logger)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	exists, err := afero.Exists(fs, filepath.Join("/home/u/.config/thrash", ConfigurationName))
	require.NoError(t, err)
	assert.True(t, exists)

	// A second initialize must refuse to clobber.
	_, err = initializeFs(fs, "/home/u/.config/thrash", logger)
	assert.ErrorContains(t, err, "already exists")
}

func TestOpenAppLogScopedToConfigDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	logger := log.New(os.Stderr, "", 0)

	cfg, err := initializeFs(fs, "/cfg", logger)
	require.NoError(t, err)

	f, err := cfg.OpenAppLog()
	require.NoError(t, err)
	_, err = f.WriteString("hello\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	exists, err := afero.Exists(fs, filepath.Join("/cfg", AppLogName))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDefaultDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	dir, err := DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, "/xdg/config/thrash", dir)

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/u")
	dir, err = DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/u/.config/thrash", dir)
}
