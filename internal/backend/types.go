package backend

import "github.com/birdo-app/birdo/internal/species"

// Image is a file selected for upload.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadResult is the hosted image reference returned by /upload.
type UploadResult struct {
	ImageURL string
	Metadata map[string]string // EXIF tag name to value, may be empty
}

// Observation is the payload posted to /save-data.
type Observation struct {
	Animal      string     `json:"animal"`
	Species     string     `json:"species"`
	Location    string     `json:"location"`
	Quantity    int        `json:"quantity"`
	Coordinates [2]float64 `json:"coordinates"` // latitude, longitude
}

// LoginResult reports whether the backend accepted the credentials.
type LoginResult struct {
	Success bool `json:"success"`
}

// SpeciesInfo is the ordered list of records returned by /animal-info.
type SpeciesInfo []species.Record

// Endpoint paths relative to the base URL.
const (
	endpointUpload    = "/upload"
	endpointClassify  = "/classify-animal"
	endpointSpecies   = "/animal-info"
	endpointSave      = "/save-data"
	endpointInsights  = "/get-insights"
	endpointLogin     = "/login"
	endpointCheckAuth = "/check-auth"
)
