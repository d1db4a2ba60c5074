package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store with the same notification semantics
// as the Redis backend. It backs unit tests and the standalone dev mode.
type MemoryStore struct {
	mu        sync.Mutex
	slots     int
	records   map[int]map[string]string
	logs      []LogRecord
	nextKey   int64
	connected bool

	slotWatchers map[int]chan struct{}
	logWatchers  map[int]chan struct{}
	connWatchers map[int]chan bool
	nextWatcher  int
}

// NewMemoryStore creates an empty in-memory store with slotCount
// addressable slots. The store starts connected.
func NewMemoryStore(slotCount int) *MemoryStore {
	return &MemoryStore{
		slots:        slotCount,
		records:      make(map[int]map[string]string),
		connected:    true,
		slotWatchers: make(map[int]chan struct{}),
		logWatchers:  make(map[int]chan struct{}),
		connWatchers: make(map[int]chan bool),
	}
}

// SlotCount returns the number of addressable slots.
func (s *MemoryStore) SlotCount() int { return s.slots }

// GetSlot reads one slot record. A missing record yields a nil map.
func (s *MemoryStore) GetSlot(_ context.Context, slotID int) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.records[slotID]
	if !ok {
		return nil, nil
	}
	return copyFields(fields), nil
}

// SetSlot replaces the whole slot record and notifies slot watchers.
func (s *MemoryStore) SetSlot(_ context.Context, slotID int, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[slotID] = copyFields(fields)
	notifyStruct(s.slotWatchers)
	return nil
}

// UpdateSlot merges the given fields into an existing record. Updating an
// absent record creates it, mirroring a partial write at the remote store.
func (s *MemoryStore) UpdateSlot(_ context.Context, slotID int, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[slotID]
	if !ok {
		current = make(map[string]string)
		s.records[slotID] = current
	}
	for k, v := range fields {
		current[k] = v
	}
	notifyStruct(s.slotWatchers)
	return nil
}

// AllSlots reads the whole slot subtree.
func (s *MemoryStore) AllSlots(_ context.Context) (map[int]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]map[string]string, len(s.records))
	for slotID, fields := range s.records {
		out[slotID] = copyFields(fields)
	}
	return out, nil
}

// AppendLog appends a record under a generated key that preserves
// insertion order, then notifies log watchers.
func (s *MemoryStore) AppendLog(_ context.Context, fields map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextKey++
	key := fmt.Sprintf("log-%08d", s.nextKey)
	s.logs = append(s.logs, LogRecord{Key: key, Fields: copyFields(fields)})
	notifyStruct(s.logWatchers)
	return key, nil
}

// AllLogs reads the journal in insertion order.
func (s *MemoryStore) AllLogs(_ context.Context) ([]LogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogRecord, len(s.logs))
	for i, rec := range s.logs {
		out[i] = LogRecord{Key: rec.Key, Fields: copyFields(rec.Fields)}
	}
	return out, nil
}

// ClearLogs drops the whole journal and notifies log watchers.
func (s *MemoryStore) ClearLogs(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
	notifyStruct(s.logWatchers)
	return nil
}

// WatchSlots subscribes to slot change notifications.
func (s *MemoryStore) WatchSlots(_ context.Context) (<-chan struct{}, func()) {
	return s.watchStruct(s.slotWatchers)
}

// WatchLogs subscribes to journal change notifications.
func (s *MemoryStore) WatchLogs(_ context.Context) (<-chan struct{}, func()) {
	return s.watchStruct(s.logWatchers)
}

func (s *MemoryStore) watchStruct(watchers map[int]chan struct{}) (<-chan struct{}, func()) {
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	ch := make(chan struct{}, 1)
	watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(watchers, id)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// WatchConnection subscribes to connectivity transitions. The current
// state is emitted immediately so observers can leave the unknown state.
func (s *MemoryStore) WatchConnection(_ context.Context) (<-chan bool, func()) {
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	ch := make(chan bool, 4)
	s.connWatchers[id] = ch
	ch <- s.connected
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.connWatchers, id)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// SetConnected drives the connectivity signal; tests use it to simulate
// the store going away and coming back.
func (s *MemoryStore) SetConnected(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected == up {
		return
	}
	s.connected = up
	for _, ch := range s.connWatchers {
		select {
		case ch <- up:
		default:
		}
	}
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// notifyStruct is called with the store lock held so that sends can never
// race a watcher's cancel.
func notifyStruct(watchers map[int]chan struct{}) {
	for _, ch := range watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
