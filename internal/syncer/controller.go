// Package syncer owns the live subscriptions to the remote store and the
// derived local views rebuilt on every change notification.
package syncer

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"pilldock/internal/events"
	"pilldock/internal/journal"
	"pilldock/internal/metrics"
	"pilldock/internal/model"
	"pilldock/internal/schedule"
	"pilldock/internal/store"
)

// ConnState is the three-valued connectivity of the remote store. Unknown
// is the required initial value so observers can tell "no signal yet"
// apart from an actual disconnect.
type ConnState string

const (
	ConnUnknown      ConnState = "unknown"
	ConnConnected    ConnState = "connected"
	ConnDisconnected ConnState = "disconnected"
)

// Controller holds exactly one live subscription each to the slot subtree,
// the journal subtree and the store connectivity signal, and republishes
// derived snapshots on every notification. The cached views are mutated
// only by the controller's own Run loop; readers get copies.
type Controller struct {
	store  store.Store
	bus    *events.Bus
	logger zerolog.Logger

	mu        sync.RWMutex
	schedules map[string]model.Slot
	logs      []model.Entry
	conn      ConnState
}

// New creates a controller over the given store. bus may be nil when no
// in-process observers are interested in change events.
func New(st store.Store, bus *events.Bus, logger *zerolog.Logger) *Controller {
	return &Controller{
		store:     st,
		bus:       bus,
		logger:    logger.With().Str("component", "syncer").Logger(),
		schedules: make(map[string]model.Slot),
		conn:      ConnUnknown,
	}
}

// Run subscribes to all three change streams and serves notifications
// until the context is cancelled. Individual refresh failures are logged
// and counted; the subscriptions keep running regardless.
func (c *Controller) Run(ctx context.Context) error {
	slotCh, cancelSlots := c.store.WatchSlots(ctx)
	defer cancelSlots()
	logCh, cancelLogs := c.store.WatchLogs(ctx)
	defer cancelLogs()
	connCh, cancelConn := c.store.WatchConnection(ctx)
	defer cancelConn()

	// Prime both views so observers see current state before the first
	// notification arrives.
	c.refreshSlots(ctx)
	c.refreshLogs(ctx)

	c.logger.Info().Msg("synchronization controller started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("synchronization controller stopped")
			return ctx.Err()
		case _, ok := <-slotCh:
			if !ok {
				slotCh = nil
				continue
			}
			c.refreshSlots(ctx)
		case _, ok := <-logCh:
			if !ok {
				logCh = nil
				continue
			}
			c.refreshLogs(ctx)
		case up, ok := <-connCh:
			if !ok {
				connCh = nil
				continue
			}
			c.setConnection(up)
		}
	}
}

// refreshSlots re-reads the slot subtree and publishes a full replacement
// of the schedule view.
func (c *Controller) refreshSlots(ctx context.Context) {
	raw, err := c.store.AllSlots(ctx)
	if err != nil {
		metrics.IncSyncRefreshError("slots")
		c.logger.Error().Err(err).Msg("refresh slot view")
		return
	}
	view := schedule.BuildView(raw)

	c.mu.Lock()
	c.schedules = view
	c.mu.Unlock()

	metrics.IncSyncRefresh("slots")
	metrics.SetActiveSchedules(len(view))
	c.logger.Debug().Int("active", len(view)).Msg("slot view refreshed")
	c.publish(events.TypeSlotsUpdated)
}

// refreshLogs re-reads the journal subtree and publishes the recomputed
// display ordering.
func (c *Controller) refreshLogs(ctx context.Context) {
	records, err := c.store.AllLogs(ctx)
	if err != nil {
		metrics.IncSyncRefreshError("logs")
		c.logger.Error().Err(err).Msg("refresh journal view")
		return
	}
	view := journal.View(records)

	c.mu.Lock()
	c.logs = view
	c.mu.Unlock()

	metrics.IncSyncRefresh("logs")
	c.logger.Debug().Int("entries", len(view)).Msg("journal view refreshed")
	c.publish(events.TypeLogsUpdated)
}

func (c *Controller) setConnection(up bool) {
	state := ConnDisconnected
	value := 0.0
	if up {
		state = ConnConnected
		value = 1.0
	}

	c.mu.Lock()
	changed := c.conn != state
	c.conn = state
	c.mu.Unlock()

	if !changed {
		return
	}
	metrics.SetStoreConnected(value)
	c.logger.Info().Str("state", string(state)).Msg("store connectivity changed")
	c.publish(events.TypeConnectionChanged)
}

func (c *Controller) publish(eventType string) {
	if c.bus != nil {
		c.bus.Publish(eventType)
	}
}

// Schedules returns a copy of the current display mapping.
func (c *Controller) Schedules() map[string]model.Slot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]model.Slot, len(c.schedules))
	for key, slot := range c.schedules {
		out[key] = slot
	}
	return out
}

// Logs returns a copy of the current journal view, most recent first.
func (c *Controller) Logs() []model.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Entry, len(c.logs))
	copy(out, c.logs)
	return out
}

// Connection returns the current connectivity state.
func (c *Controller) Connection() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}
