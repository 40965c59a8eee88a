package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/birdo-app/birdo/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml. When
// one of them already holds a config file only that directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	configPaths := []string{"."}
	if runtime.GOOS == "windows" {
		configPaths = append(configPaths, filepath.Join(homeDir, "AppData", "Roaming", "birdo"))
	} else {
		configPaths = append(configPaths, filepath.Join(homeDir, ".config", "birdo"), "/etc/birdo")
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}
	return configPaths, nil
}

// FindConfigFile locates an existing config.yaml.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, path := range configPaths {
		configFilePath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFilePath); err == nil {
			return configFilePath, nil
		}
	}
	return "", errors.Newf("config file not found").
		Component("conf").
		Category(errors.CategoryNotFound).
		Context("operation", "find-config-file").
		Build()
}

// UserConfigPath is where `birdo config init` writes by default.
func UserConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(homeDir, "AppData", "Roaming", "birdo", "config.yaml"), nil
	}
	return filepath.Join(homeDir, ".config", "birdo", "config.yaml"), nil
}
