package datastore

import (
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/events"
	"github.com/birdo-app/birdo/internal/logger"
)

type opRecorder struct {
	ops []string
}

func (r *opRecorder) RecordOperation(op string, _ time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.ops = append(r.ops, op+":"+status)
}

func openTestStore(t *testing.T, rec Recorder) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "birdo.db")
	store, err := Open(Config{Type: TypeSQLite, SQLitePath: path},
		logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, time.UTC), rec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *Store, rows ...Observation) {
	t.Helper()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = fmt.Sprintf("obs-%d", i)
		}
		rows[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Save(t.Context(), &rows[i]))
	}
}

func TestOpenRejectsUnknownType(t *testing.T) {
	_, err := Open(Config{Type: "postgres"}, logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, time.UTC), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestSaveValidates(t *testing.T) {
	store := openTestStore(t, nil)
	err := store.Save(t.Context(), &Observation{Animal: "lion"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestSaveDuplicateIDIsDatabaseError(t *testing.T) {
	store := openTestStore(t, nil)
	seed(t, store, Observation{ID: "same", Animal: "lion", Quantity: 1})

	err := store.Save(t.Context(), &Observation{ID: "same", Animal: "lion", Quantity: 1})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}

func TestPopulationByAnimal(t *testing.T) {
	rec := &opRecorder{}
	store := openTestStore(t, rec)
	seed(t, store,
		Observation{Animal: "elephant", Quantity: 40},
		Observation{Animal: "lion", Quantity: 3},
		Observation{Animal: "elephant", Quantity: 80},
		Observation{Animal: "zebra", Quantity: 3},
	)

	pops, err := store.PopulationByAnimal(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []Population{
		{Animal: "elephant", Quantity: 120},
		{Animal: "lion", Quantity: 3},
		{Animal: "zebra", Quantity: 3},
	}, pops)
	assert.Contains(t, rec.ops, "population:ok")
}

func TestMarkersEndangeredFlag(t *testing.T) {
	store := openTestStore(t, nil)
	seed(t, store,
		Observation{Animal: "rhino", Quantity: 99, Latitude: -1.2, Longitude: 36.8, Location: "Kenya"},
		Observation{Animal: "wildebeest", Quantity: 100, Latitude: -2.3, Longitude: 34.8, Location: "Tanzania"},
	)

	markers, err := store.Markers(t.Context())
	require.NoError(t, err)
	require.Len(t, markers, 2)
	assert.True(t, markers[0].Endangered)
	assert.Equal(t, "Kenya", markers[0].Location)
	assert.False(t, markers[1].Endangered)
}

func TestRecentNewestFirst(t *testing.T) {
	store := openTestStore(t, nil)
	seed(t, store,
		Observation{Animal: "first", Quantity: 1},
		Observation{Animal: "second", Quantity: 1},
		Observation{Animal: "third", Quantity: 1},
	)

	rows, err := store.Recent(t.Context(), 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "third", rows[0].Animal)
	assert.Equal(t, "second", rows[1].Animal)
}

func TestJournalConsumer(t *testing.T) {
	store := openTestStore(t, nil)
	consumer := NewJournalConsumer(store)
	assert.Equal(t, "journal", consumer.Name())

	err := consumer.ProcessEvent(t.Context(), events.ObservationSaved{
		ID:        "e-1",
		Animal:    "elephant",
		Species:   "African Bush elephant",
		Country:   "Kenya",
		Quantity:  1,
		Latitude:  10,
		Longitude: 20,
		UserEmail: "jane@example.com",
		SavedAt:   time.Now(),
	})
	require.NoError(t, err)

	rows, err := store.Recent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "African Bush elephant", rows[0].Species)
	assert.Equal(t, "Kenya", rows[0].Location)
	assert.InDelta(t, 20, rows[0].Longitude, 0)
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLConfig{Host: "db", Port: 3306, Username: "birdo", Password: "p@ss", Database: "birdo"}.DSN()
	assert.Contains(t, dsn, "birdo:p@ss@tcp(db:3306)/birdo?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
