package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/erauner12/shopsync/internal/auth"
	"github.com/erauner12/shopsync/internal/service/collectionsvc"
	"github.com/erauner12/shopsync/internal/store/memory"
	"github.com/erauner12/shopsync/internal/summary"
)

const testUser = "test-user"

// newTestRouter builds a dev-mode router over an in-memory store
func newTestRouter(t *testing.T, rl RateLimitInfo) (*Server, http.Handler) {
	t.Helper()

	store := memory.New()
	srv := &Server{
		Svc:             collectionsvc.New(store, summary.DefaultRules()),
		Users:           store,
		Sessions:        NewSessionStore(DefaultSessionTTL),
		RateLimitConfig: rl,
	}
	return srv, srv.Routes(auth.JWTCfg{HS256Secret: "test-secret", DevMode: true})
}

// createTestSession creates a sync session for sub and returns it
func createTestSession(t *testing.T, router http.Handler, sub string) Session {
	t.Helper()

	req := httptest.NewRequest("POST", "/v1/sync/sessions", nil)
	req.Header.Set("X-Debug-Sub", sub)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != 201 {
		t.Fatalf("Failed to create session: got status %d, body: %s", w.Code, w.Body.String())
	}

	var session Session
	if err := json.NewDecoder(w.Body).Decode(&session); err != nil {
		t.Fatalf("Failed to decode session response: %v", err)
	}
	return session
}

// makeRequestWithSession makes an HTTP request carrying the session and epoch headers
func makeRequestWithSession(t *testing.T, router http.Handler, method, path string, body interface{}, sub string, session Session) *httptest.ResponseRecorder {
	t.Helper()

	bodyReader := bytes.NewReader([]byte{})
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Debug-Sub", sub)
	req.Header.Set("X-Sync-Session", session.ID)
	req.Header.Set("X-Sync-Epoch", strconv.Itoa(session.Epoch))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

// decodeResponse decodes a JSON response body into v
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v (body: %s)", err, w.Body.String())
	}
}
