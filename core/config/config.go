package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	AppLogName        = "app.log"
)

// HistoryOptions controls the persistent history behavior.
type HistoryOptions struct {
	Size        int  `json:"size" validate:"gte=0"`
	IgnoreDups  bool `json:"ignore_dups"`
	IgnoreSpace bool `json:"ignore_space"`
}

// Configuration is the shell's on-disk settings.
type Configuration struct {
	configFs afero.Fs

	// Prompt is the PS1 template; \u \h \w \$ expand as usual.
	Prompt string `json:"prompt" validate:"required"`
	// Color toggles colored prompts and diagnostics.
	Color bool `json:"color"`
	// DefaultPath seeds PATH when the environment has none.
	DefaultPath string `json:"default_path" validate:"required"`
	// Startup commands run before the first prompt.
	Startup []string `json:"startup"`

	History HistoryOptions `json:"history"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		return afero.NewOsFs()
	}
	return c.configFs
}

// OpenAppLog opens the application log in an append only state.
func (c *Configuration) OpenAppLog() (afero.File, error) {
	return c.fs().OpenFile(AppLogName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}

// DefaultDir returns the configuration directory:
// $XDG_CONFIG_HOME/thrash, falling back to ~/.config/thrash.
func DefaultDir() (string, error) {
	if cfg := os.Getenv("XDG_CONFIG_HOME"); cfg != "" {
		return filepath.Join(cfg, "thrash"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "thrash"), nil
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// Default returns the built-in configuration, used when no config file
// exists on disk.
func Default() *Configuration {
	return defaultConfig()
}
