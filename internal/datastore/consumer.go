package datastore

import (
	"context"

	"github.com/birdo-app/birdo/internal/events"
)

// JournalConsumer records saved observations in the Store.
type JournalConsumer struct {
	store *Store
}

// NewJournalConsumer creates the journal event consumer.
func NewJournalConsumer(store *Store) *JournalConsumer {
	return &JournalConsumer{store: store}
}

func (c *JournalConsumer) Name() string { return "journal" }

// ProcessEvent implements events.EventConsumer.
func (c *JournalConsumer) ProcessEvent(ctx context.Context, e events.ObservationSaved) error {
	return c.store.Save(ctx, &Observation{
		ID:        e.ID,
		Animal:    e.Animal,
		Species:   e.Species,
		Location:  e.Country,
		Quantity:  e.Quantity,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		ImageURL:  e.ImageURL,
		UserEmail: e.UserEmail,
		CreatedAt: e.SavedAt,
	})
}
