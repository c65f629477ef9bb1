package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"guides-server/core"
	"guides-server/middleware"
	"guides-server/stores/memory"
)

type mockPusher struct {
	pushed map[string][]*core.Notification
}

func (m *mockPusher) Notify(userID string, n *core.Notification) {
	if m.pushed == nil {
		m.pushed = make(map[string][]*core.Notification)
	}
	m.pushed[userID] = append(m.pushed[userID], n)
}

type failingStore struct {
	core.NotificationStore
}

func (failingStore) AddNotification(ctx context.Context, n *core.Notification) error {
	return errors.New("insert failed")
}

var alice = &core.User{ID: "alice", Approved: true, Role: core.RoleUser}

func withUser(req *http.Request, user *core.User, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middleware.WithUser(ctx, user))
}

func TestSend(t *testing.T) {
	store := memory.NewStore()
	push := &mockPusher{}

	if err := Send(context.Background(), store, push, "alice", core.NotificationSuccess, "Approved"); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	list, _ := store.ListNotifications(context.Background(), "alice")
	if len(list) != 1 || list[0].Message != "Approved" {
		t.Errorf("Stored notifications mismatch: %+v", list)
	}
	if len(push.pushed["alice"]) != 1 || push.pushed["alice"][0].ID != list[0].ID {
		t.Errorf("Pushed notifications mismatch: %+v", push.pushed)
	}
}

func TestSend_StoreError(t *testing.T) {
	push := &mockPusher{}
	if err := Send(context.Background(), failingStore{}, push, "alice", core.NotificationInfo, "x"); err == nil {
		t.Fatal("Send() should fail when the store fails")
	}
	if len(push.pushed) != 0 {
		t.Error("Nothing should be pushed when storing fails")
	}
}

func TestHandleListAndMarkRead(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	Send(ctx, store, nil, "alice", core.NotificationInfo, "one")
	Send(ctx, store, nil, "alice", core.NotificationInfo, "two")
	Send(ctx, store, nil, "bob", core.NotificationInfo, "other")

	rr := httptest.NewRecorder()
	HandleList(store).ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodGet, "/", nil), alice, nil))
	var resp struct {
		Notifications []core.Notification `json:"notifications"`
		Unread        int                 `json:"unread"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Notifications) != 2 || resp.Unread != 2 || resp.Notifications[0].Message != "two" {
		t.Fatalf("List mismatch: %+v", resp)
	}

	id := resp.Notifications[0].ID
	rr = httptest.NewRecorder()
	HandleMarkRead(store).ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/", nil), alice, map[string]string{"id": id}))
	if rr.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rr.Code, http.StatusOK)
	}

	list, _ := store.ListNotifications(ctx, "alice")
	if !list[0].Read || list[1].Read {
		t.Errorf("Read flags mismatch: %v %v", list[0].Read, list[1].Read)
	}
}

func TestHandleMarkRead_OtherUsersNotification(t *testing.T) {
	store := memory.NewStore()
	Send(context.Background(), store, nil, "bob", core.NotificationInfo, "private")
	list, _ := store.ListNotifications(context.Background(), "bob")

	rr := httptest.NewRecorder()
	HandleMarkRead(store).ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/", nil), alice, map[string]string{"id": list[0].ID}))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
