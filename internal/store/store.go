// Package store models the remote real-time store that holds slot records
// and the activity journal. The store is the single source of truth; the
// rest of the core only keeps derived, disposable views of it.
package store

import "context"

// LogRecord is one journal record together with its store-generated key.
// Subtree reads return records in the store's native insertion order.
type LogRecord struct {
	Key    string
	Fields map[string]string
}

// Store is the capability interface over the remote store for one device.
// All mutations are remote writes; none of them is retried here. Change
// notification channels are coalescing: a receive means "the subtree
// changed at least once", and the watcher re-reads the whole subtree.
type Store interface {
	// GetSlot reads one slot record. Returns a nil map when the record
	// does not exist.
	GetSlot(ctx context.Context, slotID int) (map[string]string, error)

	// SetSlot replaces the whole slot record.
	SetSlot(ctx context.Context, slotID int, fields map[string]string) error

	// UpdateSlot updates only the given fields of an existing record.
	UpdateSlot(ctx context.Context, slotID int, fields map[string]string) error

	// AllSlots reads the whole slot subtree keyed by slot number.
	AllSlots(ctx context.Context) (map[int]map[string]string, error)

	// AppendLog appends a journal record under a store-generated key and
	// returns that key. Generated keys are unique and preserve insertion
	// order from the store's perspective.
	AppendLog(ctx context.Context, fields map[string]string) (string, error)

	// AllLogs reads the whole journal subtree in insertion order.
	AllLogs(ctx context.Context) ([]LogRecord, error)

	// ClearLogs deletes the whole journal subtree. Irreversible.
	ClearLogs(ctx context.Context) error

	// WatchSlots subscribes to slot subtree change notifications. The
	// returned cancel func releases the subscription; the channel closes
	// when the subscription ends.
	WatchSlots(ctx context.Context) (<-chan struct{}, func())

	// WatchLogs subscribes to journal subtree change notifications.
	WatchLogs(ctx context.Context) (<-chan struct{}, func())

	// WatchConnection subscribes to connectivity transitions of the
	// underlying store. True means connected.
	WatchConnection(ctx context.Context) (<-chan bool, func())
}
