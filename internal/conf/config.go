// Package conf loads Birdo settings from flags, BIRDO_* environment variables,
// config.yaml and built-in defaults, in that order of precedence.
package conf

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/logger"
)

// Settings is the complete application configuration.
type Settings struct {
	Debug bool `yaml:"debug" mapstructure:"debug"`

	Backend      BackendSettings      `yaml:"backend" mapstructure:"backend"`
	Auth         AuthSettings         `yaml:"auth" mapstructure:"auth"`
	Geocode      GeocodeSettings      `yaml:"geocode" mapstructure:"geocode"`
	Map          MapSettings          `yaml:"map" mapstructure:"map"`
	WebServer    WebServerSettings    `yaml:"webserver" mapstructure:"webserver"`
	Datastore    DatastoreSettings    `yaml:"datastore" mapstructure:"datastore"`
	Notification NotificationSettings `yaml:"notification" mapstructure:"notification"`
	MQTT         MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`
	Telemetry    TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
	Species      SpeciesSettings      `yaml:"species" mapstructure:"species"`

	Logging logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// BackendSettings configures the observation backend the client talks to.
type BackendSettings struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	CacheTTL  time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"` // species lookup cache
}

// AuthSettings holds the credentials used by the terminal workflow.
type AuthSettings struct {
	Email    string `yaml:"email" mapstructure:"email"`
	Password string `yaml:"password" mapstructure:"password"`
}

// GeocodeSettings configures reverse geocoding. An empty APIKey falls back to Map.APIKey.
type GeocodeSettings struct {
	Endpoint  string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CacheTTL  time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	RateLimit float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
}

// MapSettings configures the location picker. The default coordinate is the
// fallback location shown before the user clicks.
type MapSettings struct {
	APIKey           string  `yaml:"api_key" mapstructure:"api_key"`
	DefaultLatitude  float64 `yaml:"default_latitude" mapstructure:"default_latitude"`
	DefaultLongitude float64 `yaml:"default_longitude" mapstructure:"default_longitude"`
	Zoom             int     `yaml:"zoom" mapstructure:"zoom"`
}

// WebServerSettings configures the local web front-end.
type WebServerSettings struct {
	Listen        string        `yaml:"listen" mapstructure:"listen"`
	SessionSecret string        `yaml:"session_secret" mapstructure:"session_secret"`
	SessionMaxAge time.Duration `yaml:"session_max_age" mapstructure:"session_max_age"`
	Metrics       bool          `yaml:"metrics" mapstructure:"metrics"`
}

// DatastoreSettings configures the local observation journal.
type DatastoreSettings struct {
	Enabled bool           `yaml:"enabled" mapstructure:"enabled"`
	Type    string         `yaml:"type" mapstructure:"type"` // sqlite or mysql
	SQLite  SQLiteSettings `yaml:"sqlite" mapstructure:"sqlite"`
	MySQL   MySQLSettings  `yaml:"mysql" mapstructure:"mysql"`
}

type SQLiteSettings struct {
	Path string `yaml:"path" mapstructure:"path"`
}

type MySQLSettings struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

// NotificationSettings configures push notifications through shoutrrr URLs.
type NotificationSettings struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	URLs    []string      `yaml:"urls" mapstructure:"urls"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// MQTTSettings configures publishing of saved observations.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Retain   bool   `yaml:"retain" mapstructure:"retain"`
}

// TelemetrySettings configures Sentry error reporting. Off by default.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

// SpeciesSettings holds classifier label remaps, merged over the built-in ones.
type SpeciesSettings struct {
	Overrides map[string]string `yaml:"overrides" mapstructure:"overrides"`
}

// GeocodeKey returns the key used for reverse geocoding.
func (s *Settings) GeocodeKey() string {
	if s.Geocode.APIKey != "" {
		return s.Geocode.APIKey
	}
	return s.Map.APIKey
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads .env, environment variables and the config file into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if settings.WebServer.SessionSecret == "" {
		settings.WebServer.SessionSecret = GenerateRandomSecret()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settings, nil
}

// initViper registers defaults, env bindings and config paths, then reads the
// config file. A missing file is not an error; `birdo config init` creates one.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("operation", "read-config").
			Build()
	}
	return nil
}

// GetSettings returns the settings from the last successful Load, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically, creating the directory.
// Comments and ordering of an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "create-config-dir").
			Build()
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Chmod(0o600); err != nil {
		tempFile.Close()
		return fmt.Errorf("error setting config permissions: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "replace-config").
			Build()
	}
	return nil
}

// GenerateRandomSecret returns 256 bits of URL-safe base64 randomness, used
// for the session cookie key when none is configured.
func GenerateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
