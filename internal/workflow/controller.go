package workflow

import (
	"context"
	"encoding/base64"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/birdo-app/birdo/internal/backend"
	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/events"
	"github.com/birdo-app/birdo/internal/insights"
	"github.com/birdo-app/birdo/internal/logger"
	"github.com/birdo-app/birdo/internal/session"
	"github.com/birdo-app/birdo/internal/species"
)

// User-facing messages. Error detail is logged, never shown.
const (
	MsgNoFile          = "Please select an image file."
	MsgNotImage        = "The selected file is not an image."
	MsgEmptyCorrection = "Please enter the correct species name."
	MsgUploadFailed    = "Failed to upload image. Please try again."
	MsgSpeciesFailed   = "Failed to fetch species information. Please try again."
	MsgNoCountry       = "Could not determine the country for this location. Pick another point or try again."
	MsgSaveFailed      = "Failed to save the observation. Please try again."
	MsgInsightsFailed  = "Failed to fetch conservation insights. Please try again."
	MsgUploaded        = "Image uploaded successfully!"
	MsgSaved           = "Observation saved successfully!"

	// DefaultQuantity is the head count saved with every observation.
	DefaultQuantity = 1
)

// ErrEmptyCorrection is returned by Correct for a blank species name.
var ErrEmptyCorrection = errors.NewStd("species correction is empty")

// Backend is the subset of *backend.Client the workflow calls.
type Backend interface {
	UploadImage(ctx context.Context, img backend.Image) (*backend.UploadResult, error)
	ClassifyAnimal(ctx context.Context, imageURL string) (string, error)
	FetchSpeciesInfo(ctx context.Context, name string) (backend.SpeciesInfo, error)
	SaveObservation(ctx context.Context, obs backend.Observation) error
	FetchInsights(ctx context.Context, name string) (string, error)
}

// Geocoder resolves a coordinate to a country name.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Metrics receives workflow progress.
type Metrics interface {
	RecordTransition(from, to string)
	RecordIllegalEvent(state, event string)
	RecordStageError(stage string)
	RecordSaved()
}

// Draft is the in-progress submission. It is replaced on file selection and
// discarded after a successful save.
type Draft struct {
	ID               string
	File             backend.Image
	PreviewURL       string // data: URL of the selected bytes
	UploadedImageURL string
	ImageMetadata    map[string]string
}

// Location is the pending or confirmed observation point.
type Location struct {
	Latitude  float64
	Longitude float64
	Country   string
	Picked    bool // false while showing the fallback coordinate
}

// Snapshot is a copy of the controller's view state.
type Snapshot struct {
	State            State
	FailedStage      State
	Draft            *Draft
	Classification   *species.Classification
	ConfirmedSpecies string
	Species          *species.Record
	Location         Location
	Success          string
	Error            string
	Insights         *insights.Insights
	InsightsError    string
}

// Dependencies wires a Controller.
type Dependencies struct {
	Backend    Backend
	Geocoder   Geocoder
	Normalizer *species.Normalizer
	Session    *session.Session
	Publisher  events.Publisher // optional
	Metrics    Metrics          // optional
	Logger     logger.Logger

	// Fallback is the coordinate shown before the user picks one.
	Fallback Location
}

// Controller runs one workflow instance. Methods are serialized; a call that
// performs network requests holds the controller until they finish, so one
// draft never has overlapping calls.
type Controller struct {
	deps Dependencies
	log  logger.Logger

	mu               sync.Mutex
	state            State
	failedStage      State
	draft            *Draft
	classification   *species.Classification
	confirmedSpecies string
	record           *species.Record
	location         Location
	success          string
	errMsg           string
	insights         *insights.Insights
	insightsErr      string
}

// NewController creates a controller in Idle.
func NewController(deps Dependencies) *Controller {
	if deps.Normalizer == nil {
		deps.Normalizer = species.NewNormalizer(nil)
	}
	deps.Fallback = Location{Latitude: deps.Fallback.Latitude, Longitude: deps.Fallback.Longitude}
	return &Controller{
		deps:     deps,
		log:      deps.Logger.Module("workflow"),
		state:    Idle,
		location: deps.Fallback,
	}
}

// SelectFile starts a new draft, clearing everything derived from the
// previous one.
func (c *Controller) SelectFile(img backend.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(img.Data) == 0 {
		c.errMsg = MsgNoFile
		return errors.ValidationError("no file selected")
	}
	if img.ContentType == "" {
		img.ContentType = http.DetectContentType(img.Data)
	}
	if !strings.HasPrefix(img.ContentType, "image/") {
		c.errMsg = MsgNotImage
		return errors.Newf("selected file has content type %s", img.ContentType).
			Component("workflow").
			Category(errors.CategoryValidation).
			Build()
	}

	return c.dispatch(context.Background(), SelectFile{File: img})
}

// Upload uploads the selected file and classifies it. Without a file it does
// nothing.
func (c *Controller) Upload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatch(ctx, Upload{HasFile: c.draft != nil})
}

// Confirm accepts the classifier's guess and fetches species information.
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatch(ctx, Confirm{HasClassification: c.classification != nil})
}

// Correct replaces the guess with name and fetches species information.
func (c *Controller) Correct(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		c.errMsg = MsgEmptyCorrection
		return errors.New(ErrEmptyCorrection).
			Component("workflow").
			Category(errors.CategoryValidation).
			Build()
	}
	return c.dispatch(ctx, Correct{Species: name, HasClassification: c.classification != nil})
}

// Cancel discards the classifier's guess.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatch(context.Background(), Cancel{})
}

// PickLocation sets the pending coordinate.
func (c *Controller) PickLocation(lat, lng float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !ValidCoordinate(lat, lng) {
		return errors.Newf("coordinate %f,%f out of range", lat, lng).
			Component("workflow").
			Category(errors.CategoryValidation).
			Build()
	}
	return c.dispatch(context.Background(), PickLocation{Latitude: lat, Longitude: lng, HasSpecies: c.record != nil})
}

// ValidCoordinate reports whether lat, lng is a finite in-range coordinate.
func ValidCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// ConfirmLocation resolves the country and saves the observation.
func (c *Controller) ConfirmLocation(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatch(ctx, ConfirmLocation{HasSpecies: c.record != nil})
}

// RequestInsights fetches conservation insights for the current species.
// It never changes the main state and may be repeated.
func (c *Controller) RequestInsights(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.record == nil {
		err := errors.Newf("insights need a species record").
			Component("workflow").
			Category(errors.CategoryState).
			Context("state", string(c.state)).
			Build()
		c.recordIllegal("RequestInsights")
		return err
	}

	name := c.record.Name
	if name == "" {
		name = c.confirmedSpecies
	}
	raw, err := c.deps.Backend.FetchInsights(ctx, name)
	if err != nil {
		c.insightsErr = MsgInsightsFailed
		c.log.Warn("insights request failed",
			logger.String("species", name),
			logger.Error(err))
		c.recordStageError("insights")
		return err
	}

	parsed := insights.Parse(raw)
	c.insights = &parsed
	c.insightsErr = ""
	return nil
}

// Snapshot returns a copy of the current view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:            c.state,
		FailedStage:      c.failedStage,
		ConfirmedSpecies: c.confirmedSpecies,
		Location:         c.location,
		Success:          c.success,
		Error:            c.errMsg,
		InsightsError:    c.insightsErr,
	}
	if c.draft != nil {
		d := *c.draft
		d.ImageMetadata = maps.Clone(c.draft.ImageMetadata)
		snap.Draft = &d
	}
	if c.classification != nil {
		cl := *c.classification
		snap.Classification = &cl
	}
	if c.record != nil {
		r := *c.record
		snap.Species = &r
	}
	if c.insights != nil {
		in := *c.insights
		snap.Insights = &in
	}
	return snap
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// dispatch applies ev and every follow-up event produced by effects.
// It returns the first failure, after the controller has moved to Error.
func (c *Controller) dispatch(ctx context.Context, ev Event) error {
	var firstErr error
	queue := []Event{ev}

	for len(queue) > 0 {
		ev, queue = queue[0], queue[1:]

		from := c.state
		next, effects, err := Transition(from, ev)
		if err != nil {
			c.log.Warn("illegal workflow event",
				logger.String("state", string(from)),
				logger.String("event", ev.Name()))
			c.recordIllegal(ev.Name())
			return err
		}

		c.apply(ev)
		c.state = next
		if from != next {
			c.log.Debug("workflow transition",
				logger.String("from", string(from)),
				logger.String("to", string(next)),
				logger.String("event", ev.Name()))
			if c.deps.Metrics != nil {
				c.deps.Metrics.RecordTransition(string(from), string(next))
			}
		}

		for _, effect := range effects {
			follow, err := c.run(ctx, effect)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if follow != nil {
				queue = append(queue, follow)
			}
		}
	}
	return firstErr
}

// apply updates the draft for an accepted event.
func (c *Controller) apply(ev Event) {
	switch e := ev.(type) {
	case SelectFile:
		c.draft = &Draft{
			ID:         uuid.NewString(),
			File:       e.File,
			PreviewURL: previewURL(e.File),
		}
		c.classification = nil
		c.confirmedSpecies = ""
		c.record = nil
		c.location = c.deps.Fallback
		c.success = ""
		c.errMsg = ""
		c.failedStage = ""
		c.insights = nil
		c.insightsErr = ""
		c.log.Info("file selected",
			logger.String("draft_id", c.draft.ID),
			logger.String("filename", e.File.Filename),
			logger.Int("bytes", len(e.File.Data)))

	case Upload, ConfirmLocation:
		c.clearFailure()

	case Confirm:
		c.clearFailure()
		c.confirmedSpecies = c.classification.ParsedName

	case Correct:
		c.clearFailure()
		c.confirmedSpecies = e.Species

	case Cancel:
		c.classification = nil
		c.confirmedSpecies = ""

	case SpeciesReceived:
		c.location = c.deps.Fallback

	case PickLocation:
		c.location = Location{Latitude: e.Latitude, Longitude: e.Longitude, Picked: true}
		c.clearFailure()

	case Saved:
		c.success = MsgSaved

	case Failed:
		c.failedStage = e.Stage
		c.success = ""
	}
}

func (c *Controller) clearFailure() {
	c.errMsg = ""
	c.failedStage = ""
}

// run executes one effect and returns the event it produced.
func (c *Controller) run(ctx context.Context, effect Effect) (Event, error) {
	log := c.log.WithContext(ctx).With(logger.String("effect", effect.String()))
	if c.draft != nil {
		log = log.With(logger.String("draft_id", c.draft.ID))
	}

	switch effect {
	case EffectUpload:
		result, err := c.deps.Backend.UploadImage(ctx, c.draft.File)
		if err != nil {
			return c.fail(log, Uploading, MsgUploadFailed, err)
		}
		c.draft.UploadedImageURL = result.ImageURL
		c.draft.ImageMetadata = result.Metadata
		c.success = MsgUploaded
		log.Info("image uploaded", logger.String("image_url", result.ImageURL))
		return UploadSucceeded{}, nil

	case EffectClassify:
		label, err := c.deps.Backend.ClassifyAnimal(ctx, c.draft.UploadedImageURL)
		if err != nil {
			return c.fail(log, Uploading, MsgUploadFailed, err)
		}
		cl := c.deps.Normalizer.Classify(label)
		c.classification = &cl
		log.Info("image classified",
			logger.String("raw_label", cl.RawLabel),
			logger.String("species", cl.ParsedName))
		return ClassificationReceived{}, nil

	case EffectFetchSpecies:
		records, err := c.deps.Backend.FetchSpeciesInfo(ctx, c.confirmedSpecies)
		if err != nil {
			return c.fail(log, FetchingSpeciesInfo, MsgSpeciesFailed, err)
		}
		first, ok := species.First(records)
		if !ok {
			return c.fail(log, FetchingSpeciesInfo, MsgSpeciesFailed,
				errors.Newf("species lookup for %q returned no records", c.confirmedSpecies).
					Component("workflow").
					Category(errors.CategoryNotFound).
					Build())
		}
		c.record = &first
		if len(records) > 1 {
			log.Debug("species lookup returned several records, using the first",
				logger.Int("count", len(records)),
				logger.String("species", first.Name))
		}
		return SpeciesReceived{}, nil

	case EffectReverseGeocode:
		country, err := c.deps.Geocoder.ReverseGeocode(ctx, c.location.Latitude, c.location.Longitude)
		if err != nil {
			return c.fail(log, Saving, MsgNoCountry, err)
		}
		c.location.Country = country
		return CountryResolved{}, nil

	case EffectSave:
		obs := c.observation()
		if err := c.deps.Backend.SaveObservation(ctx, obs); err != nil {
			return c.fail(log, Saving, MsgSaveFailed, err)
		}
		log.Info("observation saved",
			logger.String("animal", obs.Animal),
			logger.String("species", obs.Species),
			logger.String("country", obs.Location))
		return Saved{}, nil

	case EffectPublishSaved:
		c.publishSaved()
		c.draft = nil
		return nil, nil
	}
	return nil, nil
}

func (c *Controller) observation() backend.Observation {
	canonical := c.confirmedSpecies
	if c.record != nil && c.record.Name != "" {
		canonical = c.record.Name
	}
	return backend.Observation{
		Animal:      c.confirmedSpecies,
		Species:     canonical,
		Location:    c.location.Country,
		Quantity:    DefaultQuantity,
		Coordinates: [2]float64{c.location.Latitude, c.location.Longitude},
	}
}

func (c *Controller) publishSaved() {
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordSaved()
	}
	if c.deps.Publisher == nil {
		return
	}

	obs := c.observation()
	event := events.ObservationSaved{
		ID:        uuid.NewString(),
		Animal:    obs.Animal,
		Species:   obs.Species,
		Country:   obs.Location,
		Quantity:  obs.Quantity,
		Latitude:  obs.Coordinates[0],
		Longitude: obs.Coordinates[1],
		SavedAt:   time.Now(),
	}
	if c.draft != nil {
		event.ImageURL = c.draft.UploadedImageURL
	}
	if c.deps.Session != nil {
		if user, ok := c.deps.Session.Current(); ok {
			event.UserEmail = user.Email
		}
	}
	if !c.deps.Publisher.TryPublish(event) {
		c.log.Debug("observation event not published", logger.String("observation_id", event.ID))
	}
}

// fail logs the detail and returns the Failed event with the user message set.
func (c *Controller) fail(log logger.Logger, stage State, message string, err error) (Event, error) {
	c.errMsg = message
	log.Error("workflow stage failed",
		logger.String("stage", string(stage)),
		logger.String("cause", failureCause(err)),
		logger.Error(err))
	c.recordStageError(string(stage))
	return Failed{Stage: stage, Err: err}, err
}

func failureCause(err error) string {
	switch {
	case errors.IsNetwork(err):
		return "network"
	case errors.IsServer(err):
		return "server"
	case errors.IsGeocode(err):
		return "geocode"
	case errors.IsNotFound(err):
		return "not_found"
	case errors.IsValidation(err):
		return "response"
	default:
		return "unknown"
	}
}

func (c *Controller) recordIllegal(event string) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordIllegalEvent(string(c.state), event)
	}
}

func (c *Controller) recordStageError(stage string) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordStageError(stage)
	}
}

func previewURL(img backend.Image) string {
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
