// Package events fans saved observations out to optional consumers (local
// journal, push notifications, MQTT) without blocking the workflow.
package events

import (
	"context"
	"time"
)

// ObservationSaved is published once the backend has acknowledged a save.
type ObservationSaved struct {
	ID        string
	Animal    string // name the user confirmed or corrected
	Species   string // canonical name from the species lookup
	Country   string
	Quantity  int
	Latitude  float64
	Longitude float64
	ImageURL  string
	UserEmail string
	SavedAt   time.Time
}

// EventConsumer processes saved observations. ProcessEvent runs on a bus
// worker; ctx is cancelled when the bus is shut down.
type EventConsumer interface {
	Name() string
	ProcessEvent(ctx context.Context, event ObservationSaved) error
}

// Publisher is the producer side of the bus.
type Publisher interface {
	TryPublish(event ObservationSaved) bool
}

// Recorder receives delivery metrics.
type Recorder interface {
	RecordDelivery(channel string, err error)
	RecordDropped()
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
