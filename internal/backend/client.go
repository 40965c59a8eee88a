// Package backend is the client for the Birdo observation backend: image
// upload, classification, species lookup, observation save, insights and login.
//
// Every call is a single request with no retries. Failures are EnhancedErrors
// with component "backend" in one of three categories: network when the
// request never completed, http-request for a non-2xx answer and validation
// when the body does not have the expected shape.
package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/httpclient"
	"github.com/birdo-app/birdo/internal/logger"
)

const (
	componentName = "backend"

	// maxBodySize caps how much of a response is read.
	maxBodySize = 4 << 20

	requestIDHeader = "X-Request-ID"

	defaultTimeout  = 60 * time.Second
	defaultCacheTTL = time.Hour
)

// Recorder receives per-call metrics.
type Recorder interface {
	RecordRequest(service, endpoint, status string, elapsed time.Duration)
	RecordCacheLookup(service string, hit bool)
}

// Config holds the backend client configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	CacheTTL  time.Duration // species lookup cache, zero for the default

	// Transport overrides the HTTP transport, used by tests.
	Transport http.RoundTripper
}

// Client is safe for concurrent use.
type Client struct {
	config   Config
	http     *httpclient.Client
	cache    *cache.Cache
	log      logger.Logger
	recorder Recorder
	basePath string
}

// Option configures a Client.
type Option func(*Client)

// WithRecorder reports request and cache metrics to r.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// NewClient creates a backend client.
func NewClient(cfg Config, log logger.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.Newf("backend base URL is required").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	c := &Client{
		config: cfg,
		http: httpclient.New(&httpclient.Config{
			DefaultTimeout:        cfg.Timeout,
			UserAgent:             cfg.UserAgent,
			ResponseHeaderTimeout: cfg.Timeout,
			Transport:             cfg.Transport,
		}),
		cache: cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		log:   log.Module(componentName),
	}
	if u, err := url.Parse(cfg.BaseURL); err == nil {
		c.basePath = u.Path
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.SetBeforeRequestHook(propagateRequestID)
	c.http.SetAfterResponseHook(c.observe)
	return c, nil
}

// propagateRequestID forwards the web request ID so backend logs line up.
func propagateRequestID(req *http.Request) {
	if id := logger.TraceIDFromContext(req.Context()); id != "" && req.Header.Get(requestIDHeader) == "" {
		req.Header.Set(requestIDHeader, id)
	}
}

// observe is the transport hook reporting each outbound call.
func (c *Client) observe(req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	if c.recorder == nil {
		return
	}
	endpoint := strings.TrimPrefix(req.URL.Path, c.basePath)
	status := "network"
	if err == nil {
		status = statusClass(resp.StatusCode)
	}
	c.recorder.RecordRequest(componentName, endpoint, status, elapsed)
}

// HTTPClient exposes the transport client so tests can install httpmock.
func (c *Client) HTTPClient() *http.Client {
	return c.http.HTTPClient()
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// roundTrip performs one call and reads the body. Only transport and read
// failures are errors here; status handling is up to the caller.
func (c *Client) roundTrip(endpoint string, call func(target string) (*http.Response, error)) (*response, error) {
	target := c.config.BaseURL + endpoint
	start := time.Now()

	resp, err := call(target)
	if err != nil {
		c.log.Warn("backend request failed",
			logger.String("endpoint", endpoint),
			logger.Error(err))
		return nil, errors.New(fmt.Errorf("request to %s failed: %w", endpoint, err)).
			Component(componentName).
			Category(errors.CategoryNetwork).
			Context("endpoint", endpoint).
			Context("url", target).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Debug("failed to close response body", logger.Error(err))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read %s response: %w", endpoint, err)).
			Component(componentName).
			Category(errors.CategoryNetwork).
			Context("endpoint", endpoint).
			Context("status_code", resp.StatusCode).
			Build()
	}

	elapsed := time.Since(start)
	c.log.Debug("backend response",
		logger.String("endpoint", endpoint),
		logger.Int("status_code", resp.StatusCode),
		logger.Duration("elapsed", elapsed),
		logger.Int("bytes", len(body)))

	return &response{status: resp.StatusCode, body: body}, nil
}

// statusError maps a non-2xx response to an http-request error.
func statusError(endpoint string, r *response) error {
	preview := strings.TrimSpace(string(r.body))
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	category := errors.CategoryHTTP
	if r.status == http.StatusNotFound {
		category = errors.CategoryNotFound
	}
	return errors.Newf("backend %s returned status %d", endpoint, r.status).
		Component(componentName).
		Category(category).
		Context("endpoint", endpoint).
		Context("status_code", r.status).
		Context("response_preview", preview).
		Build()
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) (*response, error) {
	r, err := c.roundTrip(endpoint, func(target string) (*http.Response, error) {
		return c.http.Post(ctx, target, "", payload)
	})
	if err != nil {
		return nil, err
	}
	if !r.ok() {
		return nil, statusError(endpoint, r)
	}
	return r, nil
}

// UploadImage posts the image as multipart field "file" and returns the hosted URL.
func (c *Client) UploadImage(ctx context.Context, img Image) (*UploadResult, error) {
	if len(img.Data) == 0 {
		return nil, errors.Newf("no image data to upload").
			Component(componentName).
			Category(errors.CategoryValidation).
			Context("endpoint", endpointUpload).
			Build()
	}
	filename := img.Filename
	if filename == "" {
		filename = "upload"
	}

	r, err := c.roundTrip(endpointUpload, func(target string) (*http.Response, error) {
		return c.http.PostMultipart(ctx, target, "file", filename, img.Data)
	})
	if err != nil {
		return nil, err
	}
	if !r.ok() {
		return nil, statusError(endpointUpload, r)
	}
	return decodeUpload(r.body)
}

// ClassifyAnimal asks the classifier for the raw label of a hosted image,
// e.g. "red_fox, 0.92".
func (c *Client) ClassifyAnimal(ctx context.Context, imageURL string) (string, error) {
	r, err := c.postJSON(ctx, endpointClassify, map[string]string{"image_url": imageURL})
	if err != nil {
		return "", err
	}
	return decodeLabel(r.body)
}

// FetchSpeciesInfo looks up a species by name. Lookups are cached per name;
// an empty list is a not-found error.
func (c *Client) FetchSpeciesInfo(ctx context.Context, name string) (SpeciesInfo, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, errors.ValidationError("species name is empty")
	}

	if cached, found := c.cache.Get(key); found {
		c.recordCache(true)
		return cached.(SpeciesInfo), nil
	}
	c.recordCache(false)

	r, err := c.postJSON(ctx, endpointSpecies, map[string]string{"species": name})
	if err != nil {
		return nil, err
	}
	records, err := decodeSpecies(r.body)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Newf("no species information for %q", name).
			Component(componentName).
			Category(errors.CategoryNotFound).
			Context("endpoint", endpointSpecies).
			Context("species", name).
			Build()
	}

	c.cache.Set(key, records, cache.DefaultExpiration)
	return records, nil
}

func (c *Client) recordCache(hit bool) {
	if c.recorder != nil {
		c.recorder.RecordCacheLookup(componentName, hit)
	}
}

// SaveObservation persists a confirmed observation. Any 2xx is an ack.
func (c *Client) SaveObservation(ctx context.Context, obs Observation) error {
	if strings.TrimSpace(obs.Animal) == "" {
		return errors.ValidationError("observation has no animal")
	}
	if obs.Quantity <= 0 {
		return errors.ValidationError("observation quantity must be positive")
	}
	_, err := c.postJSON(ctx, endpointSave, obs)
	return err
}

// FetchInsights returns the raw conservation insight text for a species.
func (c *Client) FetchInsights(ctx context.Context, name string) (string, error) {
	r, err := c.postJSON(ctx, endpointInsights, map[string]string{"species": name})
	if err != nil {
		return "", err
	}
	return decodeInsights(r.body)
}

// Login checks credentials. A 401 carrying {"success": false} is a rejection,
// returned as LoginResult{Success: false} without error.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	payload := map[string]string{"email": email, "password": password}
	r, err := c.roundTrip(endpointLogin, func(target string) (*http.Response, error) {
		return c.http.Post(ctx, target, "", payload)
	})
	if err != nil {
		return LoginResult{}, err
	}

	if r.status == http.StatusUnauthorized {
		c.log.Info("login rejected", logger.String("email", logger.RedactEmail(email)))
		return LoginResult{Success: false}, nil
	}
	if !r.ok() {
		return LoginResult{}, statusError(endpointLogin, r)
	}

	var result LoginResult
	if err := decodeJSON(r.body, &result); err != nil {
		return LoginResult{}, shapeError(endpointLogin, "login response: %v", err)
	}
	return result, nil
}

// CheckAuth reports whether the backend session is authenticated.
func (c *Client) CheckAuth(ctx context.Context) (bool, error) {
	r, err := c.roundTrip(endpointCheckAuth, func(target string) (*http.Response, error) {
		return c.http.Get(ctx, target)
	})
	if err != nil {
		return false, err
	}
	if !r.ok() {
		return false, statusError(endpointCheckAuth, r)
	}

	var result struct {
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	if err := decodeJSON(r.body, &result); err != nil {
		return false, shapeError(endpointCheckAuth, "check-auth response: %v", err)
	}
	return result.IsAuthenticated, nil
}
