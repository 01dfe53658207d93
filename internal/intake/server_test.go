package intake

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SimonWorku1/PrayerBuddy/internal/engine"
	"github.com/SimonWorku1/PrayerBuddy/internal/identity"
	"github.com/SimonWorku1/PrayerBuddy/internal/store/memstore"
)

func testServer(t *testing.T, intakeKey string) (*Server, *engine.Dispatcher) {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	eng := engine.New(log, memstore.New(), identity.NewMemDirectory())
	d := engine.NewDispatcher(log, eng, nil, 100)
	return NewServer(log, d, intakeKey), d
}

func post(t *testing.T, s *Server, body, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/changes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-Intake-Key", key)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPostChange_Queues(t *testing.T) {
	s, d := testServer(t, "")

	rec := post(t, s, `{"kind":"updated","path":"users/u1","before":{"isDeactivated":false},"after":{"isDeactivated":true}}`, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if d.QueueDepth() != 1 {
		t.Errorf("queue depth = %d, want 1", d.QueueDepth())
	}
}

func TestPostChange_RejectsBadPayload(t *testing.T) {
	s, d := testServer(t, "")

	cases := []string{
		`{"path":"users/u1"}`,                     // missing kind
		`{"kind":"updated"}`,                      // missing path
		`{"kind":"renamed","path":"users/u1"}`,    // unknown kind
		`not json`,
	}
	for _, body := range cases {
		if rec := post(t, s, body, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
	if d.QueueDepth() != 0 {
		t.Errorf("rejected payloads must not enqueue, depth = %d", d.QueueDepth())
	}
}

func TestAuthMiddleware(t *testing.T) {
	s, _ := testServer(t, "secret")
	body := `{"kind":"created","path":"users/u1/reactivate_requests/r1"}`

	if rec := post(t, s, body, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key: status = %d, want 401", rec.Code)
	}
	if rec := post(t, s, body, "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", rec.Code)
	}
	if rec := post(t, s, body, "secret"); rec.Code != http.StatusAccepted {
		t.Errorf("correct key: status = %d, want 202", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t, "ignored-for-health")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "queue_depth") {
		t.Errorf("health body missing queue depth: %s", rec.Body)
	}
}
