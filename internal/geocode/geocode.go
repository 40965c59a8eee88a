// Package geocode resolves coordinates to a country name through a Google
// Geocoding API compatible endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/httpclient"
	"github.com/birdo-app/birdo/internal/logger"
)

const (
	componentName = "geocode"

	// DefaultEndpoint is the Google reverse geocoding endpoint.
	DefaultEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

	defaultTimeout   = 10 * time.Second
	defaultCacheTTL  = 24 * time.Hour
	defaultRateLimit = 5.0
	maxBodySize      = 1 << 20
)

// Recorder receives per-call metrics.
type Recorder interface {
	RecordRequest(service, endpoint, status string, elapsed time.Duration)
	RecordCacheLookup(service string, hit bool)
}

// Config holds the geocoder configuration.
type Config struct {
	Endpoint  string
	APIKey    string
	Timeout   time.Duration
	CacheTTL  time.Duration
	RateLimit float64 // requests per second
	UserAgent string

	Transport http.RoundTripper
}

// Geocoder is safe for concurrent use.
type Geocoder struct {
	config   Config
	http     *httpclient.Client
	cache    *cache.Cache
	limiter  *rate.Limiter
	log      logger.Logger
	recorder Recorder
}

// New creates a Geocoder. A missing API key is not an error here; calls fail
// with a configuration error instead so the caller can still run without a map.
func New(cfg Config, log logger.Logger, recorder Recorder) *Geocoder {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}

	g := &Geocoder{
		config: cfg,
		http: httpclient.New(&httpclient.Config{
			DefaultTimeout: cfg.Timeout,
			UserAgent:      cfg.UserAgent,
			Transport:      cfg.Transport,
		}),
		cache:    cache.New(cfg.CacheTTL, cfg.CacheTTL),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		log:      log.Module(componentName),
		recorder: recorder,
	}
	g.http.SetAfterResponseHook(g.observe)
	return g
}

// Close releases idle connections.
func (g *Geocoder) Close() {
	g.http.Close()
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		AddressComponents []addressComponent `json:"address_components"`
	} `json:"results"`
}

// validCoordinate rejects NaN and infinities along with out of range values.
func validCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lng)
}

// ReverseGeocode returns the long name of the country containing lat, lng.
func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if g.config.APIKey == "" {
		return "", errors.Newf("no geocoding API key configured").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if !validCoordinate(lat, lng) {
		return "", errors.Newf("coordinate %f,%f out of range", lat, lng).
			Component(componentName).
			Category(errors.CategoryValidation).
			Build()
	}

	key := cacheKey(lat, lng)
	if country, found := g.cache.Get(key); found {
		g.recordCache(true)
		return country.(string), nil
	}
	g.recordCache(false)

	if err := g.limiter.Wait(ctx); err != nil {
		return "", errors.New(err).
			Component(componentName).
			Category(errors.CategoryCancellation).
			Build()
	}

	country, err := g.lookup(ctx, lat, lng)
	if err != nil {
		g.log.Warn("reverse geocoding failed",
			logger.String("coordinate", key),
			logger.Error(err))
		return "", err
	}

	g.cache.Set(key, country, cache.DefaultExpiration)
	g.log.Debug("reverse geocoded",
		logger.String("coordinate", key),
		logger.String("country", country))
	return country, nil
}

func (g *Geocoder) lookup(ctx context.Context, lat, lng float64) (string, error) {
	query := url.Values{}
	query.Set("latlng", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
	query.Set("key", g.config.APIKey)
	reqURL := g.config.Endpoint + "?" + query.Encode()

	resp, err := g.http.Get(ctx, reqURL)
	if err != nil {
		// The request URL carries the API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = g.config.Endpoint
		}
		return "", errors.New(fmt.Errorf("geocoding request failed: %w", err)).
			Component(componentName).
			Category(errors.CategoryNetwork).
			Context("endpoint", g.config.Endpoint).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.log.Debug("failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Newf("geocoder returned status %d", resp.StatusCode).
			Component(componentName).
			Category(errors.CategoryHTTP).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var payload geocodeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		return "", errors.New(fmt.Errorf("decode geocoder response: %w", err)).
			Component(componentName).
			Category(errors.CategoryValidation).
			Build()
	}

	if payload.Status != "OK" {
		return "", errors.Newf("geocoder status %s", payload.Status).
			Component(componentName).
			Category(errors.CategoryGeocode).
			Context("status", payload.Status).
			Context("error_message", payload.ErrorMessage).
			Build()
	}

	if country, ok := countryOf(payload); ok {
		return country, nil
	}
	return "", errors.Newf("no country for %s", cacheKey(lat, lng)).
		Component(componentName).
		Category(errors.CategoryGeocode).
		Context("status", payload.Status).
		Build()
}

// countryOf returns the first component typed "country" across all results.
func countryOf(payload geocodeResponse) (string, bool) {
	for _, result := range payload.Results {
		for _, c := range result.AddressComponents {
			if slices.Contains(c.Types, "country") && c.LongName != "" {
				return c.LongName, true
			}
		}
	}
	return "", false
}

// observe is the transport hook reporting each outbound call.
func (g *Geocoder) observe(_ *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	if g.recorder == nil {
		return
	}
	status := "network"
	if err == nil {
		status = fmt.Sprintf("%dxx", resp.StatusCode/100)
	}
	g.recorder.RecordRequest(componentName, "reverse", status, elapsed)
}

func (g *Geocoder) recordCache(hit bool) {
	if g.recorder != nil {
		g.recorder.RecordCacheLookup(componentName, hit)
	}
}
