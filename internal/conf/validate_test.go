package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return &Settings{
		Backend:   BackendSettings{BaseURL: DefaultBackendURL, Timeout: time.Minute},
		Geocode:   GeocodeSettings{Endpoint: DefaultGeocodeEndpoint, RateLimit: 5},
		Map:       MapSettings{DefaultLatitude: 20, DefaultLongitude: 0, Zoom: 2},
		Datastore: DatastoreSettings{Enabled: true, Type: "sqlite", SQLite: SQLiteSettings{Path: "birdo.db"}},
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"relative backend url", func(s *Settings) { s.Backend.BaseURL = "/api" }, "backend.base_url"},
		{"ftp backend url", func(s *Settings) { s.Backend.BaseURL = "ftp://example.org" }, "backend.base_url"},
		{"latitude out of range", func(s *Settings) { s.Map.DefaultLatitude = 91 }, "map.default_latitude"},
		{"longitude out of range", func(s *Settings) { s.Map.DefaultLongitude = -181 }, "map.default_longitude"},
		{"unknown datastore", func(s *Settings) { s.Datastore.Type = "postgres" }, "datastore.type"},
		{"disabled datastore skips type check", func(s *Settings) {
			s.Datastore.Enabled = false
			s.Datastore.Type = "postgres"
		}, ""},
		{"mqtt without broker", func(s *Settings) { s.MQTT.Enabled = true }, "mqtt.broker"},
		{"telemetry without dsn", func(s *Settings) { s.Telemetry.Enabled = true }, "telemetry.dsn"},
		{"notification without urls", func(s *Settings) { s.Notification.Enabled = true }, "notification.urls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateEnvBool(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"true", false},
		{"0", false},
		{" TRUE ", false},
		{"yes", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := validateEnvBool(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
