// Package workflow drives one observation from file selection to a saved
// record: upload, classification, user confirmation, species lookup,
// location and save.
//
// Transition is a pure function of (state, event) returning the next state
// and the effects to run. Controller owns the draft and executes effects
// against the backend and the geocoder.
package workflow

import (
	"fmt"

	"github.com/birdo-app/birdo/internal/backend"
	"github.com/birdo-app/birdo/internal/errors"
)

// State of the upload workflow.
type State string

const (
	Idle                 State = "Idle"
	FileSelected         State = "FileSelected"
	Uploading            State = "Uploading"
	AwaitingConfirmation State = "AwaitingConfirmation"
	FetchingSpeciesInfo  State = "FetchingSpeciesInfo"
	AwaitingLocation     State = "AwaitingLocation"
	Saving               State = "Saving"
	Complete             State = "Complete"
	Error                State = "Error"
)

// inFlight reports whether a network call is outstanding in s.
func (s State) inFlight() bool {
	return s == Uploading || s == FetchingSpeciesInfo || s == Saving
}

// Effect is work the controller performs after a transition.
type Effect int

const (
	EffectUpload Effect = iota + 1
	EffectClassify
	EffectFetchSpecies
	EffectReverseGeocode
	EffectSave
	EffectPublishSaved
)

var effectNames = map[Effect]string{
	EffectUpload:         "upload",
	EffectClassify:       "classify",
	EffectFetchSpecies:   "fetch-species",
	EffectReverseGeocode: "reverse-geocode",
	EffectSave:           "save",
	EffectPublishSaved:   "publish-saved",
}

func (e Effect) String() string {
	if name, ok := effectNames[e]; ok {
		return name
	}
	return fmt.Sprintf("effect(%d)", int(e))
}

// Event is an input to Transition. Guard fields carry the draft facts a
// transition depends on so Transition needs no other input.
type Event interface {
	Name() string
}

type (
	// SelectFile replaces the draft with a new file.
	SelectFile struct{ File backend.Image }

	// Upload starts the upload chain. Without a file it is a no-op.
	Upload struct{ HasFile bool }

	UploadSucceeded        struct{}
	ClassificationReceived struct{}

	// Confirm accepts the classifier's guess.
	Confirm struct{ HasClassification bool }

	// Correct replaces the guess with a user supplied name.
	Correct struct {
		Species           string
		HasClassification bool
	}

	// Cancel discards the guess and returns to FileSelected.
	Cancel struct{}

	SpeciesReceived struct{}

	// PickLocation overwrites the pending coordinate. Last click wins.
	PickLocation struct {
		Latitude, Longitude float64
		HasSpecies          bool
	}

	// ConfirmLocation resolves the country and saves.
	ConfirmLocation struct{ HasSpecies bool }

	CountryResolved struct{}
	Saved           struct{}

	// Failed reports a failed network call in Stage.
	Failed struct {
		Stage State
		Err   error
	}
)

func (SelectFile) Name() string             { return "SelectFile" }
func (Upload) Name() string                 { return "Upload" }
func (UploadSucceeded) Name() string        { return "UploadSucceeded" }
func (ClassificationReceived) Name() string { return "ClassificationReceived" }
func (Confirm) Name() string                { return "Confirm" }
func (Correct) Name() string                { return "Correct" }
func (Cancel) Name() string                 { return "Cancel" }
func (SpeciesReceived) Name() string        { return "SpeciesReceived" }
func (PickLocation) Name() string           { return "PickLocation" }
func (ConfirmLocation) Name() string        { return "ConfirmLocation" }
func (CountryResolved) Name() string        { return "CountryResolved" }
func (Saved) Name() string                  { return "Saved" }
func (Failed) Name() string                 { return "Failed" }

// Transition returns the state after ev and the effects to run. An event that
// is not allowed in s returns s unchanged and a state error.
//
// From Error, repeating the action that failed is allowed as long as the
// data it needs survived: Upload with a file, Confirm or Correct with a
// classification, PickLocation or ConfirmLocation with a species record.
func Transition(s State, ev Event) (State, []Effect, error) {
	switch e := ev.(type) {
	case SelectFile:
		if s.inFlight() {
			break
		}
		return FileSelected, nil, nil

	case Upload:
		switch {
		case !e.HasFile && (s == Idle || s == FileSelected || s == Complete):
			return s, nil, nil
		case e.HasFile && (s == FileSelected || s == Error):
			return Uploading, []Effect{EffectUpload}, nil
		}

	case UploadSucceeded:
		if s == Uploading {
			return Uploading, []Effect{EffectClassify}, nil
		}

	case ClassificationReceived:
		if s == Uploading {
			return AwaitingConfirmation, nil, nil
		}

	case Confirm:
		if s == AwaitingConfirmation || (s == Error && e.HasClassification) {
			return FetchingSpeciesInfo, []Effect{EffectFetchSpecies}, nil
		}

	case Correct:
		if s == AwaitingConfirmation || (s == Error && e.HasClassification) {
			return FetchingSpeciesInfo, []Effect{EffectFetchSpecies}, nil
		}

	case Cancel:
		if s == AwaitingConfirmation {
			return FileSelected, nil, nil
		}

	case SpeciesReceived:
		if s == FetchingSpeciesInfo {
			return AwaitingLocation, nil, nil
		}

	case PickLocation:
		if s == AwaitingLocation || (s == Error && e.HasSpecies) {
			return AwaitingLocation, nil, nil
		}

	case ConfirmLocation:
		if s == AwaitingLocation || (s == Error && e.HasSpecies) {
			return Saving, []Effect{EffectReverseGeocode}, nil
		}

	case CountryResolved:
		if s == Saving {
			return Saving, []Effect{EffectSave}, nil
		}

	case Saved:
		if s == Saving {
			return Complete, []Effect{EffectPublishSaved}, nil
		}

	case Failed:
		if s.inFlight() {
			return Error, nil, nil
		}
	}

	return s, nil, illegalEvent(s, ev)
}

func illegalEvent(s State, ev Event) error {
	name := "<nil>"
	if ev != nil {
		name = ev.Name()
	}
	return errors.Newf("event %s is not allowed in state %s", name, s).
		Component("workflow").
		Category(errors.CategoryState).
		Context("state", string(s)).
		Context("event", name).
		Build()
}

// IsIllegalEvent reports whether err was returned for an event not allowed
// in the current state.
func IsIllegalEvent(err error) bool {
	return errors.IsCategory(err, errors.CategoryState)
}
