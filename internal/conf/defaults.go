package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with the web and terminal front-ends.
const (
	DefaultBackendURL       = "http://localhost:5000"
	DefaultGeocodeEndpoint  = "https://maps.googleapis.com/maps/api/geocode/json"
	DefaultMapLatitude      = 20.0
	DefaultMapLongitude     = 0.0
	DefaultMapZoom          = 2
	DefaultMQTTTopic        = "birdo/observations"
	DefaultListenAddress    = "127.0.0.1:8080"
	DefaultSQLitePath       = "birdo.db"
	defaultBackendTimeout   = 60 * time.Second
	defaultGeocodeTimeout   = 10 * time.Second
	defaultSessionMaxAge    = 7 * 24 * time.Hour
	defaultNotifyTimeout    = 10 * time.Second
	defaultSpeciesCacheTTL  = 24 * time.Hour
	defaultGeocodeCacheTTL  = 7 * 24 * time.Hour
	defaultGeocodeRateLimit = 5.0
)

// setDefaultConfig registers the default value of every configuration key.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("backend.base_url", DefaultBackendURL)
	viper.SetDefault("backend.timeout", defaultBackendTimeout)
	viper.SetDefault("backend.user_agent", "Birdo")
	viper.SetDefault("backend.cache_ttl", defaultSpeciesCacheTTL)

	viper.SetDefault("auth.email", "")
	viper.SetDefault("auth.password", "")

	viper.SetDefault("geocode.endpoint", DefaultGeocodeEndpoint)
	viper.SetDefault("geocode.api_key", "")
	viper.SetDefault("geocode.timeout", defaultGeocodeTimeout)
	viper.SetDefault("geocode.cache_ttl", defaultGeocodeCacheTTL)
	viper.SetDefault("geocode.rate_limit", defaultGeocodeRateLimit)

	viper.SetDefault("map.api_key", "")
	viper.SetDefault("map.default_latitude", DefaultMapLatitude)
	viper.SetDefault("map.default_longitude", DefaultMapLongitude)
	viper.SetDefault("map.zoom", DefaultMapZoom)

	viper.SetDefault("webserver.listen", DefaultListenAddress)
	viper.SetDefault("webserver.session_secret", "")
	viper.SetDefault("webserver.session_max_age", defaultSessionMaxAge)
	viper.SetDefault("webserver.metrics", true)

	viper.SetDefault("datastore.enabled", true)
	viper.SetDefault("datastore.type", "sqlite")
	viper.SetDefault("datastore.sqlite.path", DefaultSQLitePath)
	viper.SetDefault("datastore.mysql.host", "localhost")
	viper.SetDefault("datastore.mysql.port", 3306)
	viper.SetDefault("datastore.mysql.username", "birdo")
	viper.SetDefault("datastore.mysql.password", "")
	viper.SetDefault("datastore.mysql.database", "birdo")

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})
	viper.SetDefault("notification.timeout", defaultNotifyTimeout)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", DefaultMQTTTopic)
	viper.SetDefault("mqtt.client_id", "birdo")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")

	viper.SetDefault("species.overrides", map[string]string{})

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/birdo.log")
	viper.SetDefault("logging.file_output.level", "debug")
	viper.SetDefault("logging.module_levels", map[string]string{})
}
