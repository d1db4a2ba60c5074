package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore implements Store on Redis. Slot records are hashes at
// {device}:slots:slot{n}, the journal is a stream at {device}:logs (stream
// IDs serve as the generated keys) and change notifications are pub/sub
// messages on {device}:slots:changed and {device}:logs:changed published
// after every successful write. Connectivity is probed with a ping loop.
type RedisStore struct {
	client       *redis.Client
	device       string
	slots        int
	pingInterval time.Duration
	logger       zerolog.Logger
}

// NewRedisStore creates a Redis-backed store for the given device with
// slotCount addressable slots.
func NewRedisStore(client *redis.Client, device string, slotCount int, logger *zerolog.Logger) *RedisStore {
	return &RedisStore{
		client:       client,
		device:       device,
		slots:        slotCount,
		pingInterval: 5 * time.Second,
		logger:       logger.With().Str("component", "redis_store").Logger(),
	}
}

// SetPingInterval overrides the connectivity probe interval.
func (s *RedisStore) SetPingInterval(d time.Duration) {
	if d > 0 {
		s.pingInterval = d
	}
}

// SlotCount returns the number of addressable slots.
func (s *RedisStore) SlotCount() int { return s.slots }

func (s *RedisStore) slotKey(slotID int) string {
	return fmt.Sprintf("%s:slots:slot%d", s.device, slotID)
}

func (s *RedisStore) logsKey() string { return s.device + ":logs" }

func (s *RedisStore) slotsChannel() string { return s.device + ":slots:changed" }

func (s *RedisStore) logsChannel() string { return s.device + ":logs:changed" }

// GetSlot reads one slot hash. A missing record yields a nil map.
func (s *RedisStore) GetSlot(ctx context.Context, slotID int) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, s.slotKey(slotID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get slot %d: %w", slotID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// SetSlot replaces the slot hash as one transaction and notifies watchers.
func (s *RedisStore) SetSlot(ctx context.Context, slotID int, fields map[string]string) error {
	key := s.slotKey(slotID)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, toArgs(fields)...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set slot %d: %w", slotID, err)
	}
	s.notify(ctx, s.slotsChannel(), slotID)
	return nil
}

// UpdateSlot updates only the given fields and notifies watchers.
func (s *RedisStore) UpdateSlot(ctx context.Context, slotID int, fields map[string]string) error {
	if err := s.client.HSet(ctx, s.slotKey(slotID), toArgs(fields)...).Err(); err != nil {
		return fmt.Errorf("update slot %d: %w", slotID, err)
	}
	s.notify(ctx, s.slotsChannel(), slotID)
	return nil
}

// AllSlots reads every slot hash in the subtree.
func (s *RedisStore) AllSlots(ctx context.Context) (map[int]map[string]string, error) {
	out := make(map[int]map[string]string)
	for slotID := 1; slotID <= s.slots; slotID++ {
		fields, err := s.client.HGetAll(ctx, s.slotKey(slotID)).Result()
		if err != nil {
			return nil, fmt.Errorf("read slot subtree at %d: %w", slotID, err)
		}
		if len(fields) > 0 {
			out[slotID] = fields
		}
	}
	return out, nil
}

// AppendLog appends to the journal stream. The stream ID is the generated
// key: unique and monotonically increasing in insertion order.
func (s *RedisStore) AppendLog(ctx context.Context, fields map[string]string) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.logsKey(),
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("append log: %w", err)
	}
	s.notify(ctx, s.logsChannel(), id)
	return id, nil
}

// AllLogs reads the journal stream in insertion order.
func (s *RedisStore) AllLogs(ctx context.Context) ([]LogRecord, error) {
	msgs, err := s.client.XRange(ctx, s.logsKey(), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("read logs: %w", err)
	}
	records := make([]LogRecord, 0, len(msgs))
	for _, msg := range msgs {
		fields := make(map[string]string, len(msg.Values))
		for k, v := range msg.Values {
			fields[k] = fmt.Sprint(v)
		}
		records = append(records, LogRecord{Key: msg.ID, Fields: fields})
	}
	return records, nil
}

// ClearLogs drops the whole journal stream and notifies watchers.
func (s *RedisStore) ClearLogs(ctx context.Context) error {
	if err := s.client.Del(ctx, s.logsKey()).Err(); err != nil {
		return fmt.Errorf("clear logs: %w", err)
	}
	s.notify(ctx, s.logsChannel(), "cleared")
	return nil
}

// WatchSlots subscribes to slot change notifications.
func (s *RedisStore) WatchSlots(ctx context.Context) (<-chan struct{}, func()) {
	return s.watch(ctx, s.slotsChannel())
}

// WatchLogs subscribes to journal change notifications.
func (s *RedisStore) WatchLogs(ctx context.Context) (<-chan struct{}, func()) {
	return s.watch(ctx, s.logsChannel())
}

func (s *RedisStore) watch(ctx context.Context, channel string) (<-chan struct{}, func()) {
	sub := s.client.Subscribe(ctx, channel)
	ch := make(chan struct{}, 1)
	done := make(chan struct{})

	var once sync.Once
	closeSub := func() {
		once.Do(func() {
			close(done)
			if err := sub.Close(); err != nil {
				s.logger.Debug().Err(err).Str("channel", channel).Msg("close subscription")
			}
		})
	}

	go func() {
		defer close(ch)
		defer closeSub()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				// Coalesce bursts; the watcher re-reads the subtree anyway.
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch, closeSub
}

// WatchConnection probes the store with pings and emits connectivity
// transitions. The first probe result is always emitted so observers can
// leave the unknown state.
func (s *RedisStore) WatchConnection(ctx context.Context) (<-chan bool, func()) {
	ch := make(chan bool, 1)
	done := make(chan struct{})

	go func() {
		defer close(ch)
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()

		known := false
		last := false
		probe := func() bool {
			pctx, cancel := context.WithTimeout(ctx, s.pingInterval)
			err := s.client.Ping(pctx).Err()
			cancel()

			up := err == nil
			if known && up == last {
				return true
			}
			known = true
			last = up
			select {
			case ch <- up:
				return true
			case <-ctx.Done():
				return false
			case <-done:
				return false
			}
		}

		if !probe() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if !probe() {
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }
	return ch, cancel
}

// notify publishes a change notification. A failed publish is logged and
// swallowed: the write itself already succeeded.
func (s *RedisStore) notify(ctx context.Context, channel string, payload interface{}) {
	if err := s.client.Publish(ctx, channel, fmt.Sprint(payload)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("channel", channel).Msg("publish change notification")
	}
}

func toArgs(fields map[string]string) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
