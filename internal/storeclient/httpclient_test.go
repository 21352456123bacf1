package storeclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPClient_HeaderInjection(t *testing.T) {
	var capturedHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedHeaders = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sessionMgr := &mockSessionManager{session: &Session{ID: "session-456", Epoch: 99}}
	client := NewHTTPClient(server.URL, &mockTokenProvider{token: "test-token-123"}, sessionMgr, "")

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	if _, err := client.Do(context.Background(), req); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if auth := capturedHeaders.Get("Authorization"); auth != "Bearer test-token-123" {
		t.Errorf("unexpected Authorization header: %s", auth)
	}
	if session := capturedHeaders.Get("X-Sync-Session"); session != "session-456" {
		t.Errorf("unexpected X-Sync-Session header: %s", session)
	}
	if epoch := capturedHeaders.Get("X-Sync-Epoch"); epoch != "99" {
		t.Errorf("unexpected X-Sync-Epoch header: %s", epoch)
	}
	if corr := capturedHeaders.Get("X-Correlation-ID"); corr == "" {
		t.Error("missing X-Correlation-ID header")
	}
}

func TestHTTPClient_DevMode(t *testing.T) {
	var capturedHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedHeaders = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sessionMgr := &mockSessionManager{session: &Session{ID: "dev-session-1", Epoch: 1}}
	client := NewHTTPClient(server.URL, nil, sessionMgr, "dev-user-123")

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	if _, err := client.Do(context.Background(), req); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if debugSub := capturedHeaders.Get("X-Debug-Sub"); debugSub != "dev-user-123" {
		t.Errorf("unexpected X-Debug-Sub header: %s", debugSub)
	}
	if auth := capturedHeaders.Get("Authorization"); auth != "" {
		t.Errorf("unexpected Authorization header in dev mode: %s", auth)
	}
	if session := capturedHeaders.Get("X-Sync-Session"); session != "dev-session-1" {
		t.Errorf("unexpected X-Sync-Session header: %s", session)
	}
}

func TestHTTPClient_Retry401(t *testing.T) {
	callCount := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tokens := &mockTokenProvider{token: "fresh-token"}
	client := NewHTTPClient(server.URL, tokens, &mockSessionManager{session: &Session{ID: "s", Epoch: 1}}, "")

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after retry, got %d", resp.StatusCode)
	}
	if callCount != 2 {
		t.Errorf("expected 2 API calls (401 + retry), got %d", callCount)
	}
	if tokens.invalidateCalls != 1 {
		t.Errorf("expected 1 token invalidation, got %d", tokens.invalidateCalls)
	}
}

func TestHTTPClient_Retry409EpochMismatch(t *testing.T) {
	callCount := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount == 1 {
			w.Header().Set("X-Sync-Epoch", "99")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{"error": "epoch_mismatch", "epoch": 99})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sessionMgr := &mockSessionManager{session: &Session{ID: "session-1", Epoch: 1}}
	client := NewHTTPClient(server.URL, &mockTokenProvider{token: "t"}, sessionMgr, "")

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after retry, got %d", resp.StatusCode)
	}
	if sessionMgr.invalidateCalls != 1 {
		t.Errorf("expected 1 session invalidation, got %d", sessionMgr.invalidateCalls)
	}
}

func TestHTTPClient_BusinessConflictReturnedToCaller(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"already_exists"}`))
	}))
	defer server.Close()

	sessionMgr := &mockSessionManager{session: &Session{ID: "session-1", Epoch: 1}}
	client := NewHTTPClient(server.URL, &mockTokenProvider{token: "t"}, sessionMgr, "")

	req, _ := http.NewRequest("POST", server.URL+"/test", strings.NewReader(`{}`))
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "already_exists") {
		t.Errorf("body not preserved: %s", body)
	}
	if sessionMgr.invalidateCalls != 0 {
		t.Errorf("business conflict must not invalidate session")
	}
}

func TestHTTPClient_429ReturnsImmediately(t *testing.T) {
	callCount := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, &mockTokenProvider{token: "t"}, nil, "")

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	_, err := client.Do(context.Background(), req)

	var rl ErrRateLimited
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if rl.RetryAfter != 2*time.Second {
		t.Errorf("expected RetryAfter 2s, got %v", rl.RetryAfter)
	}
	if rl.RetryDelay() != rl.RetryAfter {
		t.Errorf("RetryDelay must expose RetryAfter")
	}
	if callCount != 1 {
		t.Errorf("expected a single request, got %d", callCount)
	}
}

func TestHTTPClient_429WithoutRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, &mockTokenProvider{token: "t"}, nil, "")

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	_, err := client.Do(context.Background(), req)

	var rl ErrRateLimited
	if !errors.As(err, &rl) || rl.RetryAfter != 0 {
		t.Fatalf("expected ErrRateLimited with no delay, got %v", err)
	}
}

func TestHTTPClient_Retry428(t *testing.T) {
	callCount := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount == 1 {
			w.WriteHeader(http.StatusPreconditionRequired)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sessionMgr := &mockSessionManager{session: &Session{ID: "session-1", Epoch: 1}}
	client := NewHTTPClient(server.URL, &mockTokenProvider{token: "t"}, sessionMgr, "")

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after retry, got %d", resp.StatusCode)
	}
	if sessionMgr.invalidateCalls != 1 {
		t.Errorf("expected 1 session invalidation, got %d", sessionMgr.invalidateCalls)
	}
}

func TestHTTPClient_MaxRecoveries(t *testing.T) {
	callCount := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, &mockTokenProvider{token: "t"}, nil, "")

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	_, err := client.Do(context.Background(), req)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if expected := MaxRecoveries + 1; callCount != expected {
		t.Errorf("expected %d calls (initial + %d replay), got %d", expected, MaxRecoveries, callCount)
	}
}

func TestHTTPClient_RequestCloning(t *testing.T) {
	callCount := 0
	var capturedBodies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		bodyBytes, _ := io.ReadAll(r.Body)
		capturedBodies = append(capturedBodies, string(bodyBytes))

		if callCount == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, &mockTokenProvider{token: "t"}, nil, "")

	reqBody := `{"productId":"p1"}`
	req, _ := http.NewRequest("POST", server.URL+"/test", strings.NewReader(reqBody))
	if _, err := client.Do(context.Background(), req); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if len(capturedBodies) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(capturedBodies))
	}
	for i, b := range capturedBodies {
		if b != reqBody {
			t.Errorf("request %d body incorrect: %s", i, b)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"0", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

type mockTokenProvider struct {
	token           string
	invalidateCalls int
}

func (m *mockTokenProvider) Token(ctx context.Context) (string, error) {
	return m.token, nil
}

func (m *mockTokenProvider) Invalidate() {
	m.invalidateCalls++
}

type mockSessionManager struct {
	session         *Session
	invalidateCalls int
}

func (m *mockSessionManager) EnsureSession(ctx context.Context) (*Session, error) {
	return m.session, nil
}

func (m *mockSessionManager) InvalidateSession() {
	m.invalidateCalls++
}
