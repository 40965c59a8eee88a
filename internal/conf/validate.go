package conf

import (
	"fmt"
	"strings"
)

// ValidationError collects every problem found in the settings
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings checks URLs, coordinates, datastore type and enabled
// integrations. A missing map API key is allowed; the map degrades to a placeholder.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}
	add := func(err error) {
		if err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	add(validateHTTPURL("backend.base_url", settings.Backend.BaseURL))
	if settings.Backend.Timeout <= 0 {
		add(fmt.Errorf("backend.timeout must be positive"))
	}
	add(validateHTTPURL("geocode.endpoint", settings.Geocode.Endpoint))
	if settings.Geocode.RateLimit <= 0 {
		add(fmt.Errorf("geocode.rate_limit must be positive"))
	}
	add(validateMapSettings(&settings.Map))
	add(validateDatastoreSettings(&settings.Datastore))

	if settings.MQTT.Enabled && settings.MQTT.Broker == "" {
		add(fmt.Errorf("mqtt.broker is required when mqtt is enabled"))
	}
	if settings.Notification.Enabled && len(settings.Notification.URLs) == 0 {
		add(fmt.Errorf("notification.urls is required when notifications are enabled"))
	}
	if settings.Telemetry.Enabled && settings.Telemetry.DSN == "" {
		add(fmt.Errorf("telemetry.dsn is required when telemetry is enabled"))
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateHTTPURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	if err := validateEnvURL(raw); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func validateMapSettings(m *MapSettings) error {
	if m.DefaultLatitude < -90 || m.DefaultLatitude > 90 {
		return fmt.Errorf("map.default_latitude must be between -90 and 90, got %g", m.DefaultLatitude)
	}
	if m.DefaultLongitude < -180 || m.DefaultLongitude > 180 {
		return fmt.Errorf("map.default_longitude must be between -180 and 180, got %g", m.DefaultLongitude)
	}
	if m.Zoom < 0 || m.Zoom > 22 {
		return fmt.Errorf("map.zoom must be between 0 and 22, got %d", m.Zoom)
	}
	return nil
}

func validateDatastoreSettings(d *DatastoreSettings) error {
	if !d.Enabled {
		return nil
	}
	d.Type = strings.ToLower(d.Type)
	switch d.Type {
	case "sqlite":
		if d.SQLite.Path == "" {
			return fmt.Errorf("datastore.sqlite.path is required")
		}
	case "mysql":
		if d.MySQL.Host == "" || d.MySQL.Database == "" {
			return fmt.Errorf("datastore.mysql.host and datastore.mysql.database are required")
		}
	default:
		return fmt.Errorf("datastore.type must be sqlite or mysql, got %q", d.Type)
	}
	return nil
}
