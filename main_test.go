package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"guides-server/chat"
	"guides-server/core"
	"guides-server/editor"
	"guides-server/handlers/auth"
	"guides-server/handlers/live"
	"guides-server/stores/memory"
)

func testServer(t *testing.T) (*server, http.Handler) {
	t.Helper()
	t.Setenv("JWT_SECRET", "router-secret")
	t.Setenv("OIDC_ISSUER_URL", "")
	t.Setenv("GITHUB_CLIENT_ID", "")

	store := memory.NewStore()
	auth.InitAuth(store)
	hub := live.NewHub()
	s := &server{
		store:    store,
		media:    store,
		registry: editor.NewRegistry(time.Hour),
		room:     chat.NewRoom(hub),
		hub:      hub,
	}
	return s, setupRouter(s)
}

func tokenFor(t *testing.T, s *server, user *core.User) string {
	t.Helper()
	if err := s.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	token, err := auth.CreateJWT(user)
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}
	return token
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	_, h := testServer(t)
	rr := do(h, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Errorf("Health mismatch: %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouteGuards(t *testing.T) {
	s, h := testServer(t)
	pending := tokenFor(t, s, &core.User{Username: "pending", Role: core.RoleUser})
	member := tokenFor(t, s, &core.User{Username: "member", Role: core.RoleUser, Approved: true})

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"anonymous guides", http.MethodGet, "/api/guides", "", http.StatusUnauthorized},
		{"pending guides", http.MethodGet, "/api/guides", pending, http.StatusForbidden},
		{"member guides", http.MethodGet, "/api/guides", member, http.StatusOK},
		{"pending notifications", http.MethodGet, "/api/notifications", pending, http.StatusOK},
		{"public list", http.MethodGet, "/api/public/guides", "", http.StatusOK},
		{"member owner panel", http.MethodGet, "/api/owner/stats", member, http.StatusForbidden},
		{"provider login unconfigured", http.MethodGet, "/auth/login", "", http.StatusNotFound},
	}
	for _, c := range cases {
		rr := do(h, c.method, c.path, c.token, "")
		if rr.Code != c.status {
			t.Errorf("%s: status mismatch: got %d, want %d", c.name, rr.Code, c.status)
		}
	}
}

func TestGuideLifecycle(t *testing.T) {
	s, h := testServer(t)
	token := tokenFor(t, s, &core.User{Username: "author", Role: core.RoleUser, Approved: true})

	rr := do(h, http.MethodPost, "/api/guides", token, `{"title":"Welcome"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Create status mismatch: got %d (%s)", rr.Code, rr.Body.String())
	}
	var guide core.Guide
	json.NewDecoder(rr.Body).Decode(&guide)

	rr = do(h, http.MethodPost, "/api/guides/"+guide.ID+"/editor", token, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("Open status mismatch: got %d (%s)", rr.Code, rr.Body.String())
	}
	var state struct {
		SessionID string `json:"session_id"`
	}
	json.NewDecoder(rr.Body).Decode(&state)
	base := "/api/editor/" + state.SessionID

	if rr = do(h, http.MethodPost, base+"/elements", token, `{"type":"text","content":"Step 1"}`); rr.Code != http.StatusOK {
		t.Fatalf("Add status mismatch: got %d (%s)", rr.Code, rr.Body.String())
	}
	if rr = do(h, http.MethodPost, base+"/save", token, ""); rr.Code != http.StatusOK {
		t.Fatalf("Save status mismatch: got %d (%s)", rr.Code, rr.Body.String())
	}

	rr = do(h, http.MethodPut, "/api/guides/"+guide.ID, token, `{"title":"Welcome","is_published":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Publish status mismatch: got %d (%s)", rr.Code, rr.Body.String())
	}
	json.NewDecoder(rr.Body).Decode(&guide)
	if guide.Slug == "" {
		t.Fatal("Published guide has no slug")
	}

	rr = do(h, http.MethodGet, "/api/public/guides/"+guide.Slug, "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Step 1") {
		t.Errorf("Public guide mismatch: %d %s", rr.Code, rr.Body.String())
	}

	if rr = do(h, http.MethodDelete, "/api/guides/"+guide.ID, token, ""); rr.Code != http.StatusOK {
		t.Fatalf("Delete status mismatch: got %d", rr.Code)
	}
	if s.registry.Len() != 0 {
		t.Errorf("Editor sessions should close with the guide, got %d", s.registry.Len())
	}
}

func TestDurationEnv(t *testing.T) {
	t.Setenv("TEST_INTERVAL", "")
	if got := durationEnv("TEST_INTERVAL", time.Hour); got != time.Hour {
		t.Errorf("durationEnv() = %v, want 1h", got)
	}
	t.Setenv("TEST_INTERVAL", "15m")
	if got := durationEnv("TEST_INTERVAL", time.Hour); got != 15*time.Minute {
		t.Errorf("durationEnv() = %v, want 15m", got)
	}
	t.Setenv("TEST_INTERVAL", "soon")
	if got := durationEnv("TEST_INTERVAL", time.Hour); got != time.Hour {
		t.Errorf("durationEnv() = %v, want fallback", got)
	}
}
