package backend

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/logger"
)

const testBaseURL = "http://backend.test"

type fakeRecorder struct {
	mu       sync.Mutex
	requests []string
	hits     int
	misses   int
}

func (r *fakeRecorder) RecordRequest(service, endpoint, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, service+" "+endpoint+" "+status)
}

func (r *fakeRecorder) RecordCacheLookup(_ string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func newMockedClient(t *testing.T, opts ...Option) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	client, err := NewClient(Config{BaseURL: testBaseURL + "/", Transport: mock},
		logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, time.UTC), opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client, mock
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, time.UTC))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestUploadImage(t *testing.T) {
	client, mock := newMockedClient(t)
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/upload",
		func(req *http.Request) (*http.Response, error) {
			file, header, err := req.FormFile("file")
			if err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, `{"error":"No file part"}`), nil
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, "elephant.jpg", header.Filename)
			assert.Equal(t, "jpeg", string(data))
			return httpmock.NewStringResponse(http.StatusOK,
				`{"imageUrl":"https://img.example/e.jpg","metadata":{"Model":"X100","ISOSpeedRatings":200}}`), nil
		})

	result, err := client.UploadImage(t.Context(), Image{Filename: "elephant.jpg", Data: []byte("jpeg")})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/e.jpg", result.ImageURL)
	assert.Equal(t, map[string]string{"Model": "X100", "ISOSpeedRatings": "200"}, result.Metadata)
}

func TestUploadImageRejectsBadShape(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not an object", `["x"]`},
		{"missing imageUrl", `{"metadata":{}}`},
		{"empty imageUrl", `{"imageUrl":""}`},
		{"relative imageUrl", `{"imageUrl":"/images/e.jpg"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := newMockedClient(t)
			mock.RegisterResponder(http.MethodPost, testBaseURL+"/upload",
				httpmock.NewStringResponder(http.StatusOK, tt.body))

			_, err := client.UploadImage(t.Context(), Image{Filename: "a.jpg", Data: []byte("x")})
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err), "got %v", err)
		})
	}
}

func TestUploadImageWithoutDataMakesNoCall(t *testing.T) {
	client, mock := newMockedClient(t)

	_, err := client.UploadImage(t.Context(), Image{Filename: "empty.jpg"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		check     func(error) bool
	}{
		{"transport failure is network", httpmock.NewErrorResponder(stderrors.New("connection refused")), errors.IsNetwork},
		{"500 is server", httpmock.NewStringResponder(http.StatusInternalServerError, `{"error":"Internal Server Error"}`), errors.IsServer},
		{"404 is not found", httpmock.NewStringResponder(http.StatusNotFound, ``), errors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			client, mock := newMockedClient(t, WithRecorder(rec))
			mock.RegisterResponder(http.MethodPost, testBaseURL+"/classify-animal", tt.responder)

			_, err := client.ClassifyAnimal(t.Context(), "https://img.example/e.jpg")
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
			assert.Len(t, rec.requests, 1)
		})
	}
}

func TestRequestMetricsAndRequestID(t *testing.T) {
	rec := &fakeRecorder{}
	mock := httpmock.NewMockTransport()
	client, err := NewClient(Config{BaseURL: testBaseURL + "/api", Transport: mock},
		logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, time.UTC), WithRecorder(rec))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	mock.RegisterResponder(http.MethodGet, testBaseURL+"/api/check-auth",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "req-7", req.Header.Get("X-Request-ID"))
			return httpmock.NewStringResponse(http.StatusOK, `{"isAuthenticated": true}`), nil
		})
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/api/get-insights",
		httpmock.NewStringResponder(http.StatusBadGateway, ``))

	ok, err := client.CheckAuth(logger.WithTraceID(t.Context(), "req-7"))
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = client.FetchInsights(t.Context(), "elephant")
	require.Error(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"backend /check-auth 2xx", "backend /get-insights 5xx"}, rec.requests)
}

func TestClassifyAnimalShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"json string", `"red_fox, 0.92"`, "red_fox, 0.92", false},
		{"plain text", "grey_fox, 0.81\n", "grey_fox, 0.81", false},
		{"object label", `{"label":"African_elephant, 0.77"}`, "African_elephant, 0.77", false},
		{"object prediction", `{"prediction":"lion"}`, "lion", false},
		{"empty body", "", "", true},
		{"empty json string", `""`, "", true},
		{"object without label", `{"score":0.9}`, "", true},
		{"number", `42`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := newMockedClient(t)
			mock.RegisterResponder(http.MethodPost, testBaseURL+"/classify-animal",
				func(req *http.Request) (*http.Response, error) {
					var payload map[string]string
					require.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
					assert.Equal(t, "https://img.example/e.jpg", payload["image_url"])
					return httpmock.NewStringResponse(http.StatusOK, tt.body), nil
				})

			got, err := client.ClassifyAnimal(t.Context(), "https://img.example/e.jpg")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchSpeciesInfoFirstRecordAndCache(t *testing.T) {
	rec := &fakeRecorder{}
	client, mock := newMockedClient(t, WithRecorder(rec))
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/animal-info",
		httpmock.NewStringResponder(http.StatusOK, `[
			{"name":"gray fox","characteristics":{"diet":"omnivore","weight_kg":5},"locations":["North America"],"taxonomy":{"scientific_name":"Urocyon cinereoargenteus"}},
			{"name":"island fox"}
		]`))

	info, err := client.FetchSpeciesInfo(t.Context(), "gray fox")
	require.NoError(t, err)
	require.Len(t, info, 2)
	assert.Equal(t, "gray fox", info[0].Name)
	assert.Equal(t, "5", info[0].Characteristics["weight_kg"])
	assert.Equal(t, []string{"North America"}, info[0].Locations)
	assert.Equal(t, "Urocyon cinereoargenteus", info[0].ScientificName())

	_, err = client.FetchSpeciesInfo(t.Context(), "Gray Fox")
	require.NoError(t, err)
	assert.Equal(t, 1, mock.GetTotalCallCount())
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
}

func TestFetchSpeciesInfoEmptyIsNotFound(t *testing.T) {
	client, mock := newMockedClient(t)
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/animal-info",
		httpmock.NewStringResponder(http.StatusOK, `[]`))

	_, err := client.FetchSpeciesInfo(t.Context(), "dodo")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = client.FetchSpeciesInfo(t.Context(), "dodo")
	require.Error(t, err)
	assert.Equal(t, 2, mock.GetTotalCallCount(), "misses are not cached")
}

func TestSaveObservation(t *testing.T) {
	client, mock := newMockedClient(t)
	var got map[string]any
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/save-data",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			return httpmock.NewStringResponse(http.StatusCreated, `{"ok":true}`), nil
		})

	err := client.SaveObservation(t.Context(), Observation{
		Animal:      "African Bush elephant",
		Species:     "African Bush elephant",
		Location:    "Kenya",
		Quantity:    1,
		Coordinates: [2]float64{10, 20},
	})
	require.NoError(t, err)
	assert.Equal(t, "Kenya", got["location"])
	assert.InDelta(t, 1, got["quantity"], 0)
	assert.Equal(t, []any{10.0, 20.0}, got["coordinates"])
}

func TestSaveObservationValidates(t *testing.T) {
	client, mock := newMockedClient(t)

	err := client.SaveObservation(t.Context(), Observation{Animal: "lion"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestFetchInsightsShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"object", `{"insights":"Population Trend:\nStable"}`, "Population Trend:\nStable"},
		{"json string", `"Population Trend:\nStable"`, "Population Trend:\nStable"},
		{"text", "Population Trend:\nStable\n", "Population Trend:\nStable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := newMockedClient(t)
			mock.RegisterResponder(http.MethodPost, testBaseURL+"/get-insights",
				httpmock.NewStringResponder(http.StatusOK, tt.body))

			got, err := client.FetchInsights(t.Context(), "lion")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{"accepted", http.StatusOK, `{"success":true}`, true, false},
		{"rejected", http.StatusUnauthorized, `{"success":false}`, false, false},
		{"server error", http.StatusInternalServerError, `oops`, false, true},
		{"bad shape", http.StatusOK, `not json`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := newMockedClient(t)
			mock.RegisterResponder(http.MethodPost, testBaseURL+"/login",
				httpmock.NewStringResponder(tt.status, tt.body))

			result, err := client.Login(t.Context(), "jane@example.com", "secret")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Success)
		})
	}
}

func TestCheckAuth(t *testing.T) {
	client, mock := newMockedClient(t)
	mock.RegisterResponder(http.MethodGet, testBaseURL+"/check-auth",
		httpmock.NewStringResponder(http.StatusOK, `{"isAuthenticated":true}`))

	ok, err := client.CheckAuth(t.Context())
	require.NoError(t, err)
	assert.True(t, ok)
}
