// Package journal owns the append-only activity journal and its
// presentation ordering.
package journal

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pilldock/internal/metrics"
	"pilldock/internal/model"
	"pilldock/internal/store"
)

// Journal records dispensing-related events at the remote store. Entries
// are append-only; the only destructive operation is a full clear.
type Journal struct {
	store  store.Store
	logger zerolog.Logger
}

// New creates a journal over the given store.
func New(st store.Store, logger *zerolog.Logger) *Journal {
	return &Journal{
		store:  st,
		logger: logger.With().Str("component", "journal").Logger(),
	}
}

// Append writes a new entry under a store-generated key and returns the key.
func (j *Journal) Append(ctx context.Context, entry model.Entry) (string, error) {
	key, err := j.store.AppendLog(ctx, entry.Record())
	if err != nil {
		return "", fmt.Errorf("append journal entry: %w", err)
	}
	metrics.IncJournalAppend(string(entry.Status))
	j.logger.Debug().
		Str("key", key).
		Str("status", string(entry.Status)).
		Int("slot", entry.Slot).
		Msg("journal entry appended")
	return key, nil
}

// Clear removes the whole journal subtree. Irreversible.
func (j *Journal) Clear(ctx context.Context) error {
	if err := j.store.ClearLogs(ctx); err != nil {
		return fmt.Errorf("clear journal: %w", err)
	}
	metrics.IncJournalCleared()
	j.logger.Info().Msg("journal cleared")
	return nil
}

// CurrentView reads the journal and returns it in display order.
func (j *Journal) CurrentView(ctx context.Context) ([]model.Entry, error) {
	records, err := j.store.AllLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return View(records), nil
}

// View derives the presentation ordering from raw records: the reverse of
// the store's insertion order, most recent append first. The ordering
// comes from the record sequence, not from parsing timestamps.
func View(records []store.LogRecord) []model.Entry {
	entries := make([]model.Entry, len(records))
	for i, rec := range records {
		entries[len(records)-1-i] = model.EntryFromRecord(rec.Fields)
	}
	return entries
}
