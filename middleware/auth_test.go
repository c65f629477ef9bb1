package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"guides-server/core"
	"guides-server/handlers/auth"
	"guides-server/stores/memory"
)

func setupAuth(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "middleware-secret")
	t.Setenv("OIDC_ISSUER_URL", "")
	t.Setenv("GITHUB_CLIENT_ID", "")
	auth.InitAuth(memory.NewStore())
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	if user := UserFromContext(r.Context()); user != nil {
		w.Write([]byte(user.Username))
		return
	}
	w.Write([]byte("anonymous"))
}

func TestAuthenticate(t *testing.T) {
	setupAuth(t)
	store := memory.NewStore()
	user := &core.User{Username: "alice", Role: core.RoleUser, Approved: true}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	token, err := auth.CreateJWT(user)
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}
	handler := Authenticate(store)(http.HandlerFunc(echoUser))

	cases := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"no token", func(r *http.Request) {}, "anonymous"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "alice"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token}) }, "alice"},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, "anonymous"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c.setup(req)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Body.String() != c.want {
			t.Errorf("%s: got %q, want %q", c.name, rr.Body.String(), c.want)
		}
	}

	// Deleted users lose access even with a valid token.
	if err := store.DeleteUser(context.Background(), user.ID); err != nil {
		t.Fatalf("DeleteUser() failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Body.String() != "anonymous" {
		t.Errorf("Deleted user still authenticated: %q", rr.Body.String())
	}
}

func TestRequireChain(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	anonymous := (*core.User)(nil)
	pending := &core.User{Username: "p", Role: core.RoleUser}
	member := &core.User{Username: "m", Role: core.RoleUser, Approved: true}
	moderator := &core.User{Username: "mod", Role: core.RoleModerator, Approved: true}

	cases := []struct {
		name string
		mw   func(http.Handler) http.Handler
		user *core.User
		want int
	}{
		{"user/anonymous", RequireUser, anonymous, http.StatusUnauthorized},
		{"user/pending", RequireUser, pending, http.StatusOK},
		{"approved/anonymous", RequireApproved, anonymous, http.StatusUnauthorized},
		{"approved/pending", RequireApproved, pending, http.StatusForbidden},
		{"approved/member", RequireApproved, member, http.StatusOK},
		{"moderator/member", RequireModerator, member, http.StatusForbidden},
		{"moderator/moderator", RequireModerator, moderator, http.StatusOK},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if c.user != nil {
			req = req.WithContext(WithUser(req.Context(), c.user))
		}
		rr := httptest.NewRecorder()
		c.mw(ok).ServeHTTP(rr, req)
		if rr.Code != c.want {
			t.Errorf("%s: status mismatch: got %d, want %d", c.name, rr.Code, c.want)
		}
	}
}
