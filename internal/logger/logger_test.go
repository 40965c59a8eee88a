package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLoggerLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	log.Debug("hidden")
	log.Info("shown", String("species", "red fox"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, `species="red fox"`)
}

func TestTraceLevelRendersAsTrace(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelTrace, time.UTC)

	log.Trace("sql query")

	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestModuleScoping(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelDebug, time.UTC)

	log.Module("web").Module("session").Info("login")

	assert.Contains(t, buf.String(), "module=web.session")
}

func TestWithDoesNotMutateParent(t *testing.T) {
	buf := &bytes.Buffer{}
	parent := NewSlogLogger(buf, LogLevelInfo, time.UTC).Module("workflow")
	child := parent.With(String("draft_id", "d-1"))

	parent.Info("parent line")
	child.Info("child line")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "draft_id")
	assert.Contains(t, lines[1], "draft_id=d-1")
}

func TestWithContextAddsTraceID(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	ctx := WithTraceID(context.Background(), "req-42")
	log.WithContext(ctx).Info("handled")
	log.WithContext(context.Background()).Info("no trace")

	out := buf.String()
	assert.Contains(t, out, "trace_id=req-42")
	assert.Equal(t, 1, strings.Count(out, "trace_id"))
}

func TestFieldToAttr(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{"float rounded", Float64("lat", 10.123456), "10.123"},
		{"duration rounded", Duration("elapsed", 1500*time.Microsecond), "2ms"},
		{"error", Error(errors.New("boom")), "boom"},
		{"int", Int("quantity", 1), "1"},
		{"sensitive key", String("mqtt_password", "hunter22"), "[REDACTED]"},
		{"api key", String("api_key", "AIzaSecretValue"), "[REDACTED]"},
		{"error scrubbed", Error(errors.New(`Get "https://geo.example.com/json?key=AIzaSecretValue&latlng=1,2": refused`)),
			`Get "https://geo.example.com/json?key=[REDACTED]&latlng=1,2": refused`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fieldToAttr(tt.field).Value.String())
		})
	}
}

func TestSensitiveFieldsNeverWritten(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelDebug, time.UTC)

	log.Module("mqtt").Info("connecting",
		String("broker", "tcp://broker:1883"),
		String("mqtt_password", "hunter22"),
		Error(errors.New("auth token=abcdef123 rejected")))

	out := buf.String()
	assert.NotContains(t, out, "hunter22")
	assert.NotContains(t, out, "abcdef123")
	assert.Contains(t, out, "broker=tcp://broker:1883")
}

func TestErrorFieldNil(t *testing.T) {
	f := Error(nil)
	assert.Equal(t, "error", f.Key)
	assert.Nil(t, f.Value)
}

func TestCentralLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "birdo.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"datastore": "warn"},
	})
	require.NoError(t, err)

	cl.Module("backend").Debug("request sent", String("endpoint", "/upload"))
	cl.Module("datastore").Info("suppressed")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "backend", rec["module"])
	assert.Equal(t, "/upload", rec["endpoint"])
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}

func TestRedactSensitiveData(t *testing.T) {
	in := "GET https://maps.example.com/json?latlng=10,20&key=AIzaSecretValue"
	out := RedactSensitiveData(in)

	assert.NotContains(t, out, "AIzaSecretValue")
	assert.Contains(t, out, "latlng=10,20")
	assert.True(t, IsSensitiveKey("mqtt_password"))
	assert.False(t, IsSensitiveKey("species"))
	assert.Equal(t, "j***@example.com", RedactEmail("jane@example.com"))
	assert.Equal(t, "[REDACTED]", RedactEmail("not-an-email"))
}
