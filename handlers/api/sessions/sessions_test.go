package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"guides-server/core"
	"guides-server/editor"
	"guides-server/middleware"
	"guides-server/stores/memory"
)

var (
	alice = &core.User{ID: "alice", Role: core.RoleUser, Approved: true}
	bob   = &core.User{ID: "bob", Role: core.RoleUser, Approved: true}
)

func request(body string, user *core.User, params map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.WithUser(ctx, user)
	return req.WithContext(ctx)
}

func call(t *testing.T, h http.HandlerFunc, body string, user *core.User, params map[string]string) (StateResponse, *httptest.ResponseRecorder) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, request(body, user, params))
	var resp StateResponse
	if rr.Code < 300 {
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp, rr
}

type fixture struct {
	store   core.GuideStore
	reg     *editor.Registry
	guideID string
	session map[string]string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	guide := &core.Guide{OwnerID: alice.ID, Title: "g"}
	if err := store.CreateGuide(context.Background(), guide); err != nil {
		t.Fatalf("CreateGuide() failed: %v", err)
	}
	reg := editor.NewRegistry(time.Hour)

	resp, rr := call(t, HandleOpen(store, reg), "", alice, map[string]string{"id": guide.ID})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Open status mismatch: got %d, want %d", rr.Code, http.StatusCreated)
	}
	return &fixture{
		store:   store,
		reg:     reg,
		guideID: guide.ID,
		session: map[string]string{"session": resp.SessionID},
	}
}

func (f *fixture) with(extra map[string]string) map[string]string {
	out := map[string]string{"session": f.session["session"]}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func TestOpen_Forbidden(t *testing.T) {
	f := setup(t)
	_, rr := call(t, HandleOpen(f.store, f.reg), "", bob, map[string]string{"id": f.guideID})
	if rr.Code != http.StatusForbidden {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestSession_OtherUserDenied(t *testing.T) {
	f := setup(t)
	_, rr := call(t, HandleState(f.reg), "", bob, f.session)
	if rr.Code != http.StatusForbidden {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	_, rr = call(t, HandleState(f.reg), "", alice, map[string]string{"session": "missing"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestEditFlow(t *testing.T) {
	f := setup(t)

	resp, rr := call(t, HandleAdd(f.reg), `{"type":"rectangle"}`, alice, f.session)
	if rr.Code != http.StatusOK {
		t.Fatalf("Add status mismatch: got %d (%s)", rr.Code, rr.Body.String())
	}
	if len(resp.Elements) != 1 || resp.Selected != resp.Elements[0].ID || !resp.Dirty {
		t.Fatalf("Add state mismatch: %+v", resp)
	}
	id := resp.Elements[0].ID

	resp, _ = call(t, HandleSetProperty(f.reg), `{"field":"width","value":"5"}`, alice, f.with(map[string]string{"element": id}))
	if w := resp.Elements[0].Frame.Width; w != editor.MinSize {
		t.Errorf("Width should be floored at %v, got %v", editor.MinSize, w)
	}

	resp, _ = call(t, HandleDrag(f.reg), `{"phase":"begin","id":"`+id+`","viewport":{"width":800,"height":600}}`, alice, f.session)
	if resp.Mode != editor.ModeDrag {
		t.Errorf("Mode mismatch: got %s, want drag", resp.Mode)
	}
	resp, _ = call(t, HandleDrag(f.reg), `{"phase":"update","x":-50,"y":-50}`, alice, f.session)
	if fr := resp.Elements[0].Frame; fr.X != 0 || fr.Y != 0 {
		t.Errorf("Drag should clamp to origin, got (%v,%v)", fr.X, fr.Y)
	}

	// Saving mid-drag keeps the drag going on the stored id.
	resp, rr = call(t, HandleSave(f.store, f.reg), "", alice, f.session)
	if rr.Code != http.StatusOK {
		t.Fatalf("Save status mismatch: got %d (%s)", rr.Code, rr.Body.String())
	}
	stored := resp.Elements[0].ID
	if strings.HasPrefix(stored, "temp-") || resp.Selected != stored || resp.Dirty || resp.Mode != editor.ModeDrag {
		t.Errorf("Save state mismatch: %+v", resp)
	}

	resp, _ = call(t, HandleDrag(f.reg), `{"phase":"end"}`, alice, f.session)
	if resp.Mode != editor.ModeNone {
		t.Errorf("Mode mismatch: got %s, want none", resp.Mode)
	}

	guide, err := f.store.GetGuide(context.Background(), f.guideID)
	if err != nil {
		t.Fatalf("GetGuide() failed: %v", err)
	}
	if len(guide.Elements) != 1 || guide.Elements[0].ID != stored {
		t.Errorf("Stored elements mismatch: %+v", guide.Elements)
	}
}

func TestResizeFlow(t *testing.T) {
	f := setup(t)
	resp, _ := call(t, HandleAdd(f.reg), `{"type":"circle"}`, alice, f.session)
	id := resp.Elements[0].ID

	_, rr := call(t, HandleResize(f.reg), `{"phase":"begin","id":"`+id+`","handle":"middle"}`, alice, f.session)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Bad handle status mismatch: got %d, want %d", rr.Code, http.StatusBadRequest)
	}

	call(t, HandleResize(f.reg), `{"phase":"begin","id":"`+id+`","handle":"se","viewport":{"width":800,"height":600}}`, alice, f.session)
	resp, _ = call(t, HandleResize(f.reg), `{"phase":"update","x":250,"y":250}`, alice, f.session)
	if fr := resp.Elements[0].Frame; fr.Width != 150 || fr.Height != 150 {
		t.Errorf("Resize mismatch: got %vx%v, want 150x150", fr.Width, fr.Height)
	}
	if resp.Mode != editor.ModeResize {
		t.Errorf("Mode mismatch: got %s, want resize", resp.Mode)
	}
	resp, _ = call(t, HandleResize(f.reg), `{"phase":"end"}`, alice, f.session)
	if resp.Mode != editor.ModeNone {
		t.Errorf("Mode mismatch: got %s, want none", resp.Mode)
	}
}

func TestPointer_ViewportRequired(t *testing.T) {
	f := setup(t)
	resp, _ := call(t, HandleAdd(f.reg), `{"type":"rectangle"}`, alice, f.session)
	id := resp.Elements[0].ID
	before := resp.Elements[0].Frame

	cases := []struct {
		name string
		h    http.HandlerFunc
		body string
	}{
		{"drag without viewport", HandleDrag(f.reg), `{"phase":"begin","id":"` + id + `"}`},
		{"drag zero height", HandleDrag(f.reg), `{"phase":"begin","id":"` + id + `","viewport":{"width":800,"height":0}}`},
		{"resize without viewport", HandleResize(f.reg), `{"phase":"begin","id":"` + id + `","handle":"se"}`},
		{"resize negative width", HandleResize(f.reg), `{"phase":"begin","id":"` + id + `","handle":"se","viewport":{"width":-1,"height":600}}`},
	}
	for _, c := range cases {
		_, rr := call(t, c.h, c.body, alice, f.session)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status mismatch: got %d, want %d", c.name, rr.Code, http.StatusBadRequest)
		}
	}

	// Updates after a rejected begin must not move or shrink the element.
	call(t, HandleResize(f.reg), `{"phase":"update","x":400,"y":400}`, alice, f.session)
	resp, _ = call(t, HandleDrag(f.reg), `{"phase":"update","x":300,"y":300}`, alice, f.session)
	if got := resp.Elements[0].Frame; got != before {
		t.Errorf("Frame changed after rejected begin: got %+v, want %+v", got, before)
	}
	if resp.Mode != editor.ModeNone {
		t.Errorf("Mode mismatch: got %s, want none", resp.Mode)
	}
}

func TestSelectAndDelete(t *testing.T) {
	f := setup(t)
	call(t, HandleAdd(f.reg), `{"type":"text","content":"one"}`, alice, f.session)
	resp, _ := call(t, HandleAdd(f.reg), `{"type":"link"}`, alice, f.session)
	first, second := resp.Elements[0].ID, resp.Elements[1].ID

	resp, _ = call(t, HandleSelect(f.reg), `{"id":"`+first+`"}`, alice, f.session)
	if resp.Selected != first {
		t.Errorf("Selected mismatch: got %q, want %q", resp.Selected, first)
	}
	resp, _ = call(t, HandleSelect(f.reg), `{"id":""}`, alice, f.session)
	if resp.Selected != "" {
		t.Errorf("Selection should be cleared, got %q", resp.Selected)
	}

	resp, _ = call(t, HandleDelete(f.reg), "", alice, f.with(map[string]string{"element": first}))
	if len(resp.Elements) != 1 || resp.Elements[0].ID != second {
		t.Errorf("Delete mismatch: %+v", resp.Elements)
	}
}

func TestBadRequests(t *testing.T) {
	f := setup(t)
	resp, _ := call(t, HandleAdd(f.reg), `{"type":"text"}`, alice, f.session)
	id := resp.Elements[0].ID

	cases := []struct {
		name string
		h    http.HandlerFunc
		body string
		p    map[string]string
	}{
		{"unknown kind", HandleAdd(f.reg), `{"type":"star"}`, f.session},
		{"bad json", HandleAdd(f.reg), `{`, f.session},
		{"unknown field", HandleSetProperty(f.reg), `{"field":"opacity","value":"1"}`, f.with(map[string]string{"element": id})},
		{"not editable", HandleSetProperty(f.reg), `{"field":"href","value":"x"}`, f.with(map[string]string{"element": id})},
		{"bad number", HandleSetProperty(f.reg), `{"field":"x","value":"abc"}`, f.with(map[string]string{"element": id})},
		{"bad phase", HandleDrag(f.reg), `{"phase":"hover"}`, f.session},
		{"content on shape", HandleAdd(f.reg), `{"type":"circle","content":"x"}`, f.session},
	}
	for _, c := range cases {
		_, rr := call(t, c.h, c.body, alice, c.p)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status mismatch: got %d, want %d", c.name, rr.Code, http.StatusBadRequest)
		}
	}
}

type failingReplacer struct{}

func (failingReplacer) ReplaceElements(ctx context.Context, guideID string, elements []core.Element) ([]core.Element, error) {
	return nil, errors.New("disk full")
}

func TestSave_FailureKeepsState(t *testing.T) {
	f := setup(t)
	resp, _ := call(t, HandleAdd(f.reg), `{"type":"image","content":"/api/media/1"}`, alice, f.session)
	temp := resp.Elements[0].ID

	_, rr := call(t, HandleSave(failingReplacer{}, f.reg), "", alice, f.session)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}

	resp, _ = call(t, HandleState(f.reg), "", alice, f.session)
	if resp.Elements[0].ID != temp || !resp.Dirty {
		t.Errorf("Failed save should leave state untouched: %+v", resp)
	}
}

func TestClose(t *testing.T) {
	f := setup(t)
	rr := httptest.NewRecorder()
	HandleClose(f.reg).ServeHTTP(rr, request("", alice, f.session))
	if rr.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rr.Code, http.StatusOK)
	}
	if f.reg.Len() != 0 {
		t.Errorf("Registry should be empty, got %d", f.reg.Len())
	}
}
