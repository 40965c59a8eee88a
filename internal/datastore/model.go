package datastore

import "time"

// Observation is one saved observation in the local journal.
type Observation struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Animal    string    `gorm:"index;size:255;not null" json:"animal"`
	Species   string    `gorm:"size:255" json:"species"`
	Location  string    `gorm:"size:255" json:"location"` // country
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	ImageURL  string    `gorm:"size:1024" json:"image_url"`
	UserEmail string    `gorm:"size:255" json:"user_email,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Population is the summed quantity for one animal, a bar in the Data chart.
type Population struct {
	Animal   string `json:"animal"`
	Quantity int    `gorm:"column:total" json:"quantity"`
}

// EndangeredThreshold is the population below which a marker is flagged.
const EndangeredThreshold = 100

// Marker is one observation on the Data map.
type Marker struct {
	ID         string  `json:"id"`
	Animal     string  `json:"animal"`
	Location   string  `json:"location"`
	Quantity   int     `json:"quantity"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Endangered bool    `json:"endangered"`
}
