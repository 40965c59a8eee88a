package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/birdo-app/birdo/internal/errors"
)

// envBinding maps a config key to an environment variable, with optional validation
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "BIRDO_DEBUG", validateEnvBool},

		{"backend.base_url", "BIRDO_BACKEND_URL", validateEnvURL},
		{"backend.timeout", "BIRDO_BACKEND_TIMEOUT", nil},

		{"auth.email", "BIRDO_EMAIL", nil},
		{"auth.password", "BIRDO_PASSWORD", nil},

		{"geocode.endpoint", "BIRDO_GEOCODE_ENDPOINT", validateEnvURL},
		{"geocode.api_key", "BIRDO_GEOCODE_API_KEY", nil},

		{"map.api_key", "BIRDO_MAP_API_KEY", nil},
		{"map.default_latitude", "BIRDO_MAP_LATITUDE", validateEnvLatitude},
		{"map.default_longitude", "BIRDO_MAP_LONGITUDE", validateEnvLongitude},

		{"webserver.listen", "BIRDO_LISTEN", nil},
		{"webserver.session_secret", "BIRDO_SESSION_SECRET", nil},

		{"datastore.type", "BIRDO_DATASTORE_TYPE", validateEnvDatastoreType},
		{"datastore.sqlite.path", "BIRDO_SQLITE_PATH", nil},
		{"datastore.mysql.password", "BIRDO_MYSQL_PASSWORD", nil},

		{"mqtt.password", "BIRDO_MQTT_PASSWORD", nil},
		{"telemetry.enabled", "BIRDO_TELEMETRY", validateEnvBool},
		{"telemetry.dsn", "BIRDO_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds the explicit variables above, plus BIRDO_<SECTION>_<KEY>
// for every other key. Invalid values are reported together.
func bindEnvVars() error {
	viper.SetEnvPrefix("BIRDO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var problems []string
	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s value: %v", binding.EnvVar, err))
			}
		}
	}

	if len(problems) > 0 {
		return errors.Newf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - ")).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// loadDotEnv loads KEY=VALUE pairs from path without overriding the environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("operation", "load-dotenv").
			Build()
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https, got %q", value)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host, got %q", value)
	}
	return nil
}

func validateEnvLatitude(value string) error {
	lat, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid latitude: %w", err)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %g", lat)
	}
	return nil
}

func validateEnvLongitude(value string) error {
	lng, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid longitude: %w", err)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %g", lng)
	}
	return nil
}

func validateEnvDatastoreType(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sqlite", "mysql":
		return nil
	default:
		return fmt.Errorf("datastore type must be sqlite or mysql, got %q", value)
	}
}
