package geocode

import (
	"bytes"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/logger"
)

const kenyaResponse = `{
  "status": "OK",
  "results": [{
    "address_components": [
      {"long_name": "Marsabit", "short_name": "Marsabit", "types": ["administrative_area_level_1", "political"]},
      {"long_name": "Kenya", "short_name": "KE", "types": ["country", "political"]}
    ]
  }]
}`

func newTestGeocoder(t *testing.T, handler http.HandlerFunc, apiKey string) (*Geocoder, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	g := New(Config{Endpoint: server.URL, APIKey: apiKey, RateLimit: 1000},
		logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, time.UTC), nil)
	t.Cleanup(g.Close)
	return g, &calls
}

func TestReverseGeocodeCountry(t *testing.T) {
	g, calls := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10,20", r.URL.Query().Get("latlng"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = io.WriteString(w, kenyaResponse)
	}, "test-key")

	country, err := g.ReverseGeocode(t.Context(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "Kenya", country)

	country, err = g.ReverseGeocode(t.Context(), 10.00001, 20.00001)
	require.NoError(t, err)
	assert.Equal(t, "Kenya", country)
	assert.Equal(t, int32(1), calls.Load(), "nearby coordinate served from cache")
}

func TestReverseGeocodeFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		category errors.ErrorCategory
	}{
		{"zero results", http.StatusOK, `{"status":"ZERO_RESULTS","results":[]}`, errors.CategoryGeocode},
		{"denied", http.StatusOK, `{"status":"REQUEST_DENIED","error_message":"bad key"}`, errors.CategoryGeocode},
		{"no country component", http.StatusOK, `{"status":"OK","results":[{"address_components":[{"long_name":"Ocean","types":["natural_feature"]}]}]}`, errors.CategoryGeocode},
		{"server error", http.StatusBadGateway, ``, errors.CategoryHTTP},
		{"not json", http.StatusOK, `<html>`, errors.CategoryValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, "test-key")

			_, err := g.ReverseGeocode(t.Context(), 0, -140)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "got %v", err)
		})
	}
}

func TestReverseGeocodeWithoutKey(t *testing.T) {
	g, calls := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {}, "")

	_, err := g.ReverseGeocode(t.Context(), 10, 20)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Zero(t, calls.Load())
}

func TestReverseGeocodeOutOfRange(t *testing.T) {
	g, calls := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {}, "k")

	coords := [][2]float64{
		{91, 0},
		{0, -181},
		{math.NaN(), 20},
		{10, math.NaN()},
		{math.Inf(1), 0},
	}
	for _, c := range coords {
		_, err := g.ReverseGeocode(t.Context(), c[0], c[1])
		require.Error(t, err, "%v", c)
		assert.True(t, errors.IsValidation(err), "%v", c)
	}
	assert.Zero(t, calls.Load())
}

func TestReverseGeocodeNeverLogsKey(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/geo"
	server.Close()

	var buf bytes.Buffer
	g := New(Config{Endpoint: endpoint, APIKey: "SUPERSECRETKEY123", RateLimit: 1000},
		logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC), nil)
	t.Cleanup(g.Close)

	_, err := g.ReverseGeocode(t.Context(), 10, 20)
	require.Error(t, err)
	assert.True(t, errors.IsNetwork(err))
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY123")
	assert.Contains(t, buf.String(), "reverse geocoding failed")
	assert.NotContains(t, buf.String(), "SUPERSECRETKEY123")
}

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []string
	hits     []bool
}

func (r *fakeRecorder) RecordRequest(service, endpoint, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, service+" "+endpoint+" "+status)
}

func (r *fakeRecorder) RecordCacheLookup(_ string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits = append(r.hits, hit)
}

func TestReverseGeocodeRecordsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, kenyaResponse)
	}))
	t.Cleanup(server.Close)

	rec := &fakeRecorder{}
	g := New(Config{Endpoint: server.URL, APIKey: "k", RateLimit: 1000},
		logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, time.UTC), rec)
	t.Cleanup(g.Close)

	for range 2 {
		country, err := g.ReverseGeocode(t.Context(), 2.5, 37.5)
		require.NoError(t, err)
		assert.Equal(t, "Kenya", country)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"geocode reverse 2xx"}, rec.statuses)
	assert.Equal(t, []bool{false, true}, rec.hits)
}
