package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory.
func Load(path string) (*Configuration, error) {
	return loadFs(afero.NewOsFs(), path)
}

func loadFs(fs afero.Fs, path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	configContents, err := afero.ReadFile(fs, filepath.Join(path, ConfigurationName))
	if err != nil {
		return nil, err
	}
	var out Configuration
	if err := yaml.UnmarshalStrict(configContents, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	out.configFs = afero.NewBasePathFs(fs, path)
	return &out, nil
}

// Initialize writes the default configuration into dir, refusing to
// clobber an existing file.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	return initializeFs(afero.NewOsFs(), dir, logger)
}

func initializeFs(fs afero.Fs, dir string, logger *log.Logger) (*Configuration, error) {
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	target := filepath.Join(dir, ConfigurationName)
	if _, err := fs.Stat(target); err == nil {
		return nil, fmt.Errorf("%s already exists", target)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := afero.WriteFile(fs, target, defaultConfigData, 0o600); err != nil {
		return nil, err
	}
	logger.Printf("wrote %s", target)

	return loadFs(fs, dir)
}
