package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"dream_incubator/internal/models"
	"dream_incubator/internal/service"
)

func TestEventsHandler_ListAndValidation(t *testing.T) {
	auth := &mockAuth{parseID: 99}
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.RemEvent{
		{EventID: "e1", DeviceID: "w1", OccurredAt: now, Type: models.EventPhaseStart, Description: "phase 1 started"},
		{EventID: "e2", DeviceID: "w1", OccurredAt: now.Add(1 * time.Second), Type: models.EventPhaseEnd, Description: "phase 1 ended"},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		Authorization: auth,
		EventLog:      logs,
	}
	r := newTestRouterWith(s, Options{AuthEnabled: true})

	// Invalid 'from' → 400
	w := doJSON(t, r, http.MethodGet, "/api/v1/events?from=notatime", "", authHeader("valid"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// from after to → 400
	w = doJSON(t, r, http.MethodGet, "/api/v1/events?from=2025-08-02&to=2025-08-01", "", authHeader("valid"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for reversed range, got %d", w.Code)
	}

	// Valid range and type (lowercase type should be normalized to upper in service call)
	q := "/api/v1/events?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) +
		"&type=phase_end&device_id=%20w1%20&limit=10"
	w = doJSON(t, r, http.MethodGet, q, "", authHeader("valid"))
	if w.Code != http.StatusOK {
		t.Fatalf("events status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int               `json:"count"`
		Events []models.RemEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	f := logs.lastFilter
	if f.Type != models.EventPhaseEnd || f.DeviceID != "w1" || f.Limit != 10 || !f.From.Equal(now) {
		t.Fatalf("unexpected filter: %+v", f)
	}

	// no token → 401
	if w := doJSON(t, r, http.MethodGet, "/api/v1/events", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestEventsHandler_DateOnlyToIsEndOfDay(t *testing.T) {
	logs := &mockEventLog{}
	r := newTestRouter(&service.Service{EventLog: logs})

	w := doJSON(t, r, http.MethodGet, "/api/v1/events?from=2025-08-01&to=2025-08-01", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	want := time.Date(2025, 8, 1, 23, 59, 59, 999999999, time.UTC)
	if !logs.lastFilter.To.Equal(want) || logs.lastFilter.Limit != defaultEventLimit {
		t.Fatalf("unexpected filter: %+v", logs.lastFilter)
	}
	var out struct {
		Events []models.RemEvent `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || out.Events == nil {
		t.Fatalf("expected an empty list, got %s", w.Body.String())
	}
}

func TestEventsHandler_ServiceErrors(t *testing.T) {
	logs := &mockEventLog{err: service.ErrInvalidTimeRange}
	r := newTestRouter(&service.Service{EventLog: logs})

	if w := doJSON(t, r, http.MethodGet, "/api/v1/events", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid range: expected 400, got %d", w.Code)
	}
	logs.err = errors.New("db gone")
	if w := doJSON(t, r, http.MethodGet, "/api/v1/events", "", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestParseQueryTime(t *testing.T) {
	for _, s := range []string{"2025-08-27T15:04:05Z", "2025-08-27 15:04:05", "2025-08-27"} {
		if _, err := parseQueryTime(s); err != nil {
			t.Fatalf("%q: %v", s, err)
		}
	}
	if _, err := parseQueryTime("27/08/2025"); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}

func TestDevicesHandler(t *testing.T) {
	mon := &mockMonitoring{devices: []models.DeviceStatus{{DeviceID: "a"}, {DeviceID: "b", RemDetected: true}}}
	hist := &mockHistory{samples: []models.HeartRateSample{{HeartRate: 61, Timestamp: "t0"}}}
	r := newTestRouter(&service.Service{Monitoring: mon, SampleHistory: hist})

	w := doJSON(t, r, http.MethodGet, "/api/v1/devices", "", nil)
	var devices struct {
		Count   int                   `json:"count"`
		Devices []models.DeviceStatus `json:"devices"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &devices)
	if w.Code != http.StatusOK || devices.Count != 2 || !devices.Devices[1].RemDetected {
		t.Fatalf("devices: code=%d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/devices/w1/samples?from=2025-08-01&limit=50", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("samples: code=%d body=%s", w.Code, w.Body.String())
	}
	q := hist.lastQuery
	if q.DeviceID != "w1" || q.Limit != 50 || !q.From.Equal(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)) || !q.To.IsZero() {
		t.Fatalf("unexpected query: %+v", q)
	}
	if m := decodeBody(t, w); int(m["count"].(float64)) != 1 {
		t.Fatalf("unexpected body: %v", m)
	}

	if w := doJSON(t, r, http.MethodGet, "/api/v1/devices/w1/samples?limit=-3", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", w.Code)
	}

	hist.err = service.ErrArchiveDisabled
	if w := doJSON(t, r, http.MethodGet, "/api/v1/devices/w1/samples", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("archive off: expected 503, got %d", w.Code)
	}
	hist.err = errors.New("badger closed")
	if w := doJSON(t, r, http.MethodGet, "/api/v1/devices/w1/samples", "", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("archive failure: expected 500, got %d", w.Code)
	}
}
