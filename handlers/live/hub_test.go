package live

import (
	"errors"
	"testing"
	"time"

	"guides-server/core"
	"guides-server/handlers/auth"
)

func TestSubscriber(t *testing.T) {
	t.Setenv("JWT_SECRET", "live-secret")
	t.Setenv("OIDC_ISSUER_URL", "")
	t.Setenv("GITHUB_CLIENT_ID", "")
	auth.InitAuth(nil)

	token, err := auth.CreateJWT(&core.User{ID: "alice", Username: "alice", Role: core.RoleUser})
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}

	id, err := subscriber([]any{token})
	if err != nil {
		t.Fatalf("subscriber() failed: %v", err)
	}
	if id != "alice" {
		t.Errorf("subscriber() mismatch: got %q, want alice", id)
	}

	for _, args := range [][]any{nil, {42}, {""}, {"garbage"}} {
		if _, err := subscriber(args); err == nil {
			t.Errorf("subscriber(%v) should fail", args)
		}
	}
}

func TestSplitCallback(t *testing.T) {
	var gotErr error
	var gotPayload map[string]any
	cb := func(err error, payload map[string]any) {
		gotErr = err
		gotPayload = payload
	}

	reply, args := splitCallback([]any{"token", cb})
	if reply == nil || len(args) != 1 || args[0] != "token" {
		t.Fatalf("splitCallback() mismatch: reply=%v args=%v", reply != nil, args)
	}
	reply(map[string]any{"status": "error"}, errors.New("boom"))
	if gotErr == nil || gotPayload["status"] != "error" {
		t.Errorf("Callback not invoked correctly: %v %v", gotErr, gotPayload)
	}

	if reply, args := splitCallback([]any{"token"}); reply != nil || len(args) != 1 {
		t.Errorf("splitCallback() should not treat a string as a callback")
	}
}

func TestSplitCallback_SingleArgument(t *testing.T) {
	var got any
	reply, _ := splitCallback([]any{func(v any) { got = v }})
	reply(map[string]any{"status": "ok"}, nil)

	payload, ok := got.(map[string]any)
	if !ok || payload["status"] != "ok" {
		t.Errorf("Single-argument callback should receive the payload, got %v", got)
	}
}

func TestSplitCallback_StringError(t *testing.T) {
	var got string
	reply, _ := splitCallback([]any{func(msg string, payload map[string]any) { got = msg }})
	reply(nil, errors.New("invalid token"))
	if got != "invalid token" {
		t.Errorf("Error should be passed as text, got %q", got)
	}
}

func TestPayloads(t *testing.T) {
	msg := core.ChatMessage{ID: "m1", UserID: "u", Username: "alice", Content: "hi", Timestamp: 5}
	if p := chatPayload(msg); p["content"] != "hi" || p["timestamp"] != int64(5) {
		t.Errorf("chatPayload() mismatch: %v", p)
	}

	created := time.UnixMilli(1000)
	n := &core.Notification{ID: "n1", Message: "hello", Type: core.NotificationWarning, CreatedAt: created}
	if p := notificationPayload(n); p["type"] != "warning" || p["created_at"] != int64(1000) {
		t.Errorf("notificationPayload() mismatch: %v", p)
	}
}
