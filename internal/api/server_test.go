package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pilldock/internal/journal"
	"pilldock/internal/schedule"
	"pilldock/internal/store"
	"pilldock/internal/syncer"
)

type testEnv struct {
	server *httptest.Server
	store  *store.MemoryStore
	ctrl   *syncer.Controller
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	mem := store.NewMemoryStore(6)
	jrnl := journal.New(mem, &logger)
	svc := schedule.NewService(mem, jrnl, 6, nil, &logger)
	ctrl := syncer.New(mem, nil, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = ctrl.Run(ctx) }()

	srv := httptest.NewServer(NewHTTPServer(ctrl, svc, jrnl, &logger).Routes())
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, store: mem, ctrl: ctrl}
}

func (e *testEnv) postJSON(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestConfigureAndListSchedules(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/slots/configure", ConfigureRequest{
		Slot: 3, Hour: 8, Minute: 30, MedicationName: "Aspirin",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])

	require.Eventually(t, func() bool {
		return len(env.ctrl.Schedules()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp = env.get(t, "/api/schedules")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, float64(1), body["count"])

	schedules := body["schedules"].([]interface{})
	first := schedules[0].(map[string]interface{})
	assert.Equal(t, "08:30", first["time"])
	assert.Equal(t, float64(3), first["slot"])
	assert.Equal(t, "Aspirin", first["medication_name"])
	assert.Equal(t, "pending", first["status"])
}

func TestConfigureValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  ConfigureRequest
	}{
		{"slot too low", ConfigureRequest{Slot: 0, Hour: 8, Minute: 0}},
		{"slot too high", ConfigureRequest{Slot: 7, Hour: 8, Minute: 0}},
		{"hour out of range", ConfigureRequest{Slot: 1, Hour: 24, Minute: 0}},
		{"minute out of range", ConfigureRequest{Slot: 1, Hour: 8, Minute: 60}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.postJSON(t, "/api/slots/configure", tt.req)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestTriggerAppendsJournalEntry(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/slots/configure", ConfigureRequest{Slot: 2, Hour: 9, Minute: 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.postJSON(t, "/api/slots/trigger", SlotRequest{Slot: 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return len(env.ctrl.Logs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp = env.get(t, "/api/logs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["count"])

	logs := body["logs"].([]interface{})
	entry := logs[0].(map[string]interface{})
	assert.Equal(t, "manual_trigger", entry["status"])
	assert.Equal(t, float64(2), entry["slot"])
	assert.Equal(t, "Manually triggered from dashboard", entry["details"])
}

func TestTriggerAbsentSlotIsNoop(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/slots/trigger", SlotRequest{Slot: 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/logs")
	body := decodeBody(t, resp)
	assert.Equal(t, float64(0), body["count"])
}

func TestDisableRemovesScheduleKeepsLogs(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/slots/configure", ConfigureRequest{Slot: 1, Hour: 7, Minute: 15})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.postJSON(t, "/api/slots/trigger", SlotRequest{Slot: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.postJSON(t, "/api/slots/disable", SlotRequest{Slot: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return len(env.ctrl.Schedules()) == 0 && len(env.ctrl.Logs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClearLogs(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/slots/configure", ConfigureRequest{Slot: 4, Hour: 12, Minute: 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = env.postJSON(t, "/api/slots/trigger", SlotRequest{Slot: 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return len(env.ctrl.Logs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp = env.postJSON(t, "/api/logs/clear", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return len(env.ctrl.Logs()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestExportLogsReturnsWorkbook(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/slots/configure", ConfigureRequest{Slot: 6, Hour: 22, Minute: 45})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = env.postJSON(t, "/api/slots/trigger", SlotRequest{Slot: 6})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return len(env.ctrl.Logs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp = env.get(t, "/api/logs/export")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "activity-log.xlsx")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	book, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Activity Log")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "manual_trigger", rows[1][3])
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)

	require.Eventually(t, func() bool {
		return env.ctrl.Connection() == syncer.ConnConnected
	}, 2*time.Second, 10*time.Millisecond)

	resp := env.get(t, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "connected", body["connection"])
	assert.Equal(t, float64(6), body["slots"])
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/slots/configure")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp2 := env.postJSON(t, "/api/schedules", struct{}{})
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}
