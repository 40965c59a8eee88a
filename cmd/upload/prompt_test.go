package upload

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdo-app/birdo/internal/backend"
	"github.com/birdo-app/birdo/internal/conf"
	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/logger"
	"github.com/birdo-app/birdo/internal/species"
	"github.com/birdo-app/birdo/internal/workflow"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

type fakeBackend struct {
	label       string
	speciesErr  error
	insightsErr error
	saved       []backend.Observation
	lookups     []string
}

func (f *fakeBackend) UploadImage(context.Context, backend.Image) (*backend.UploadResult, error) {
	return &backend.UploadResult{ImageURL: "https://cdn.example.com/a.png"}, nil
}

func (f *fakeBackend) ClassifyAnimal(context.Context, string) (string, error) {
	return f.label, nil
}

func (f *fakeBackend) FetchSpeciesInfo(_ context.Context, name string) (backend.SpeciesInfo, error) {
	f.lookups = append(f.lookups, name)
	if f.speciesErr != nil {
		return nil, f.speciesErr
	}
	return backend.SpeciesInfo{{
		Name:      "African Bush elephant",
		Locations: []string{"Kenya", "Tanzania"},
		Taxonomy:  map[string]string{"scientific_name": "Loxodonta africana"},
	}}, nil
}

func (f *fakeBackend) SaveObservation(_ context.Context, obs backend.Observation) error {
	f.saved = append(f.saved, obs)
	return nil
}

func (f *fakeBackend) FetchInsights(context.Context, string) (string, error) {
	if f.insightsErr != nil {
		return "", f.insightsErr
	}
	return "Population Trend:\nDeclining\n\nMigration Pattern:\nSeasonal", nil
}

type fakeGeocoder struct{ country string }

func (g fakeGeocoder) ReverseGeocode(context.Context, float64, float64) (string, error) {
	if g.country == "" {
		return "", stderrors.New("ZERO_RESULTS")
	}
	return g.country, nil
}

func newController(fb *fakeBackend, geo fakeGeocoder) *workflow.Controller {
	return workflow.NewController(workflow.Dependencies{
		Backend:    fb,
		Geocoder:   geo,
		Normalizer: species.NewNormalizer(nil),
		Logger:     logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, time.UTC),
		Fallback:   workflow.Location{Latitude: 20, Longitude: 0},
	})
}

func runPrompt(t *testing.T, ctrl controller, input string, opts promptOptions) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newPrompter(ctrl, strings.NewReader(input), &out, opts).run(t.Context(), backend.Image{Filename: "a.png", Data: pngBytes})
	return out.String(), err
}

func TestPromptConfirmAndLocationFlags(t *testing.T) {
	fb := &fakeBackend{label: "elephant, 0.97"}
	ctrl := newController(fb, fakeGeocoder{country: "Kenya"})

	out, err := runPrompt(t, ctrl, "y\n", promptOptions{location: true, lat: 10, lng: 20})
	require.NoError(t, err)

	assert.Contains(t, out, "Is this a elephant? [y]es/[n]o/[c]ancel: ")
	assert.Contains(t, out, "Scientific name: Loxodonta africana")
	assert.Contains(t, out, "Country: Kenya")
	assert.Contains(t, out, workflow.MsgSaved)
	require.Len(t, fb.saved, 1)
	assert.Equal(t, [2]float64{10, 20}, fb.saved[0].Coordinates)
	assert.Equal(t, 1, fb.saved[0].Quantity)
}

func TestPromptCorrectionRepromptsOnEmptyName(t *testing.T) {
	fb := &fakeBackend{label: "grey_fox, 0.81"}
	ctrl := newController(fb, fakeGeocoder{country: "Kenya"})

	out, err := runPrompt(t, ctrl, "maybe\nn\n   \nAfrican  elephant\n\n", promptOptions{})
	require.NoError(t, err)

	assert.Contains(t, out, "Is this a gray fox?")
	assert.Contains(t, out, "Please answer y, n or c.")
	assert.Contains(t, out, workflow.MsgEmptyCorrection)
	assert.Equal(t, []string{"African elephant"}, fb.lookups)
	require.Len(t, fb.saved, 1)
	assert.Equal(t, [2]float64{20, 0}, fb.saved[0].Coordinates)
}

func TestPromptCorrectionBackendShapeErrorFails(t *testing.T) {
	fb := &fakeBackend{
		label: "elephant",
		speciesErr: errors.Newf("animal-info response: expected a list").
			Component("backend").
			Category(errors.CategoryValidation).
			Build(),
	}
	ctrl := newController(fb, fakeGeocoder{country: "Kenya"})

	out, err := runPrompt(t, ctrl, "n\nlion\ntiger\n", promptOptions{})
	require.Error(t, err)
	assert.Contains(t, out, workflow.MsgSpeciesFailed)
	assert.NotContains(t, out, workflow.MsgEmptyCorrection)
	assert.Equal(t, []string{"lion"}, fb.lookups)
	assert.Empty(t, fb.saved)
}

func TestPromptCancel(t *testing.T) {
	fb := &fakeBackend{label: "elephant"}
	ctrl := newController(fb, fakeGeocoder{country: "Kenya"})

	out, err := runPrompt(t, ctrl, "c\n", promptOptions{})
	assert.ErrorIs(t, err, errCancelled)
	assert.Contains(t, out, "Cancelled.")
	assert.Empty(t, fb.saved)
	assert.Equal(t, workflow.FileSelected, ctrl.State())
}

func TestPromptLocationInput(t *testing.T) {
	fb := &fakeBackend{label: "elephant"}
	ctrl := newController(fb, fakeGeocoder{country: "Kenya"})

	out, err := runPrompt(t, ctrl, "y\nnorth\n95,20\nNaN,20\n10, 20\n", promptOptions{})
	require.NoError(t, err)
	assert.Contains(t, out, "expected lat,lng")
	assert.Equal(t, 2, strings.Count(out, "Coordinates out of range."))
	require.Len(t, fb.saved, 1)
	assert.Equal(t, [2]float64{10, 20}, fb.saved[0].Coordinates)
}

func TestPromptGeocodeFailureIsSurfaced(t *testing.T) {
	fb := &fakeBackend{label: "elephant"}
	ctrl := newController(fb, fakeGeocoder{})

	out, err := runPrompt(t, ctrl, "y\n", promptOptions{location: true, lat: 10, lng: 20})
	require.Error(t, err)
	assert.Contains(t, out, workflow.MsgNoCountry)
	assert.Empty(t, fb.saved)
}

func TestPromptInsights(t *testing.T) {
	fb := &fakeBackend{label: "elephant"}
	ctrl := newController(fb, fakeGeocoder{country: "Kenya"})

	out, err := runPrompt(t, ctrl, "y\n", promptOptions{location: true, lat: 1, lng: 2, insights: true})
	require.NoError(t, err)
	assert.Contains(t, out, "Population Trend: Declining")
	assert.Contains(t, out, "Human Impact Alert: No information available.")
}

func TestPromptInsightsFailureDoesNotStopSave(t *testing.T) {
	fb := &fakeBackend{label: "elephant", insightsErr: stderrors.New("boom")}
	ctrl := newController(fb, fakeGeocoder{country: "Kenya"})

	out, err := runPrompt(t, ctrl, "y\n", promptOptions{location: true, lat: 1, lng: 2, insights: true})
	require.NoError(t, err)
	assert.Contains(t, out, workflow.MsgInsightsFailed)
	assert.Len(t, fb.saved, 1)
}

func TestPromptInputClosed(t *testing.T) {
	fb := &fakeBackend{label: "elephant"}
	ctrl := newController(fb, fakeGeocoder{country: "Kenya"})

	_, err := runPrompt(t, ctrl, "", promptOptions{})
	assert.ErrorIs(t, err, io.EOF)
}

func TestPromptRejectsNonImage(t *testing.T) {
	ctrl := newController(&fakeBackend{label: "elephant"}, fakeGeocoder{country: "Kenya"})
	var out bytes.Buffer
	err := newPrompter(ctrl, strings.NewReader(""), &out, promptOptions{}).
		run(t.Context(), backend.Image{Filename: "notes.txt", Data: []byte("plain text")})
	require.Error(t, err)
	assert.Contains(t, out.String(), workflow.MsgNotImage)
}

func TestParseCoordinates(t *testing.T) {
	lat, lng, err := parseCoordinates(" -1.5 , 36.8 ")
	require.NoError(t, err)
	assert.InDelta(t, -1.5, lat, 1e-9)
	assert.InDelta(t, 36.8, lng, 1e-9)

	_, _, err = parseCoordinates("1.5")
	assert.Error(t, err)
	_, _, err = parseCoordinates("a,b")
	assert.Error(t, err)
}

func TestLocationFlagsDefaultToFallback(t *testing.T) {
	var opts promptOptions
	fs := locationFlags(&opts, conf.MapSettings{DefaultLatitude: 20, DefaultLongitude: 0})

	require.NoError(t, fs.Parse([]string{"--lng", "35.5"}))
	assert.InDelta(t, 20.0, opts.lat, 0)
	assert.InDelta(t, 35.5, opts.lng, 0)
	assert.True(t, fs.Changed("lng"))
	assert.False(t, fs.Changed("lat"))
}
