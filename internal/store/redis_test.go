package store

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.New(io.Discard)
	return NewRedisStore(client, "my_device_1", 6, &logger), mr
}

func TestRedisSlotReadWrite(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestRedisStore(t)

	fields, err := st.GetSlot(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, fields)

	record := map[string]string{
		"enabled":        "true",
		"hour":           "8",
		"minute":         "30",
		"medicationName": "Aspirin",
		"status":         "pending",
	}
	require.NoError(t, st.SetSlot(ctx, 1, record))

	fields, err = st.GetSlot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, record, fields)
}

func TestRedisSetSlotReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestRedisStore(t)

	require.NoError(t, st.SetSlot(ctx, 2, map[string]string{
		"enabled":       "true",
		"manualTrigger": "true",
		"status":        "taken",
	}))
	require.NoError(t, st.SetSlot(ctx, 2, map[string]string{
		"enabled": "false",
		"status":  "pending",
	}))

	fields, err := st.GetSlot(ctx, 2)
	require.NoError(t, err)
	// The overwrite drops fields absent from the new record.
	_, ok := fields["manualTrigger"]
	assert.False(t, ok)
	assert.Equal(t, "pending", fields["status"])
}

func TestRedisUpdateSlotIsPartial(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestRedisStore(t)

	require.NoError(t, st.SetSlot(ctx, 3, map[string]string{
		"enabled":        "true",
		"hour":           "8",
		"minute":         "30",
		"medicationName": "Aspirin",
		"status":         "taken",
	}))
	require.NoError(t, st.UpdateSlot(ctx, 3, map[string]string{
		"status":        "pending",
		"manualTrigger": "false",
	}))

	fields, err := st.GetSlot(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "pending", fields["status"])
	assert.Equal(t, "Aspirin", fields["medicationName"])
	assert.Equal(t, "8", fields["hour"])
}

func TestRedisAllSlots(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestRedisStore(t)

	require.NoError(t, st.SetSlot(ctx, 1, map[string]string{"enabled": "true"}))
	require.NoError(t, st.SetSlot(ctx, 6, map[string]string{"enabled": "false"}))

	raw, err := st.AllSlots(ctx)
	require.NoError(t, err)
	assert.Len(t, raw, 2)
	assert.Contains(t, raw, 1)
	assert.Contains(t, raw, 6)
}

func TestRedisLogsAppendOrderAndClear(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestRedisStore(t)

	keyA, err := st.AppendLog(ctx, map[string]string{"details": "A", "slot": "1"})
	require.NoError(t, err)
	keyB, err := st.AppendLog(ctx, map[string]string{"details": "B", "slot": "2"})
	require.NoError(t, err)
	assert.NotEqual(t, keyA, keyB)

	records, err := st.AllLogs(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].Fields["details"])
	assert.Equal(t, "B", records[1].Fields["details"])
	assert.Equal(t, keyA, records[0].Key)

	require.NoError(t, st.ClearLogs(ctx))
	records, err = st.AllLogs(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRedisWatchSlotsNotifiesOnWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st, _ := newTestRedisStore(t)

	ch, stop := st.WatchSlots(ctx)
	defer stop()

	// Give the subscription time to establish before writing.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, st.SetSlot(ctx, 1, map[string]string{"enabled": "true"}))

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no slot change notification received")
	}
}

func TestRedisWatchLogsNotifiesOnAppendAndClear(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st, _ := newTestRedisStore(t)

	ch, stop := st.WatchLogs(ctx)
	defer stop()

	time.Sleep(100 * time.Millisecond)

	_, err := st.AppendLog(ctx, map[string]string{"details": "A"})
	require.NoError(t, err)
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no log change notification after append")
	}

	require.NoError(t, st.ClearLogs(ctx))
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no log change notification after clear")
	}
}

func TestRedisWatchStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st, _ := newTestRedisStore(t)

	ch, stop := st.WatchSlots(ctx)
	defer stop()

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel not closed after context cancel")
	}
}

func TestRedisWatchConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st, mr := newTestRedisStore(t)
	st.SetPingInterval(50 * time.Millisecond)

	ch, stop := st.WatchConnection(ctx)
	defer stop()

	select {
	case up := <-ch:
		assert.True(t, up)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial connectivity signal")
	}

	// Losing the server surfaces as a disconnect transition.
	mr.Close()
	select {
	case up := <-ch:
		assert.False(t, up)
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect signal after server loss")
	}
}
