package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/birdo-app/birdo/internal/events"
)

// observationMessage is the JSON payload published for each observation.
type observationMessage struct {
	ID          string     `json:"id"`
	Animal      string     `json:"animal"`
	Species     string     `json:"species"`
	Location    string     `json:"location"`
	Quantity    int        `json:"quantity"`
	Coordinates [2]float64 `json:"coordinates"`
	ImageURL    string     `json:"image_url,omitempty"`
	SavedAt     time.Time  `json:"saved_at"`
}

// Publisher is the MQTT event consumer.
type Publisher struct {
	client *Client
	topic  string
	retain bool
}

// NewPublisher publishes saved observations to topic.
func NewPublisher(client *Client, topic string, retain bool) *Publisher {
	return &Publisher{client: client, topic: topic, retain: retain}
}

func (p *Publisher) Name() string { return "mqtt" }

// ProcessEvent implements events.EventConsumer.
func (p *Publisher) ProcessEvent(ctx context.Context, e events.ObservationSaved) error {
	payload, err := json.Marshal(observationMessage{
		ID:          e.ID,
		Animal:      e.Animal,
		Species:     e.Species,
		Location:    e.Country,
		Quantity:    e.Quantity,
		Coordinates: [2]float64{e.Latitude, e.Longitude},
		ImageURL:    e.ImageURL,
		SavedAt:     e.SavedAt.UTC(),
	})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.topic, payload, p.retain)
}
