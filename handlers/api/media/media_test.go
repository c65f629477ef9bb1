package media

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"guides-server/stores/memory"
)

func upload(h http.HandlerFunc, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/media", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestUploadAndGet(t *testing.T) {
	store := memory.NewStore()

	rr := upload(HandleUpload(store), "image/png", []byte("png-bytes"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Status code mismatch: got %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var resp UploadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.URL != "/api/media/"+resp.ID {
		t.Errorf("URL mismatch: got %q", resp.URL)
	}

	req := httptest.NewRequest(http.MethodGet, resp.URL, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", resp.ID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr = httptest.NewRecorder()
	HandleGet(store).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Header().Get("Content-Type") != "image/png" || rr.Body.String() != "png-bytes" {
		t.Errorf("Media mismatch: %q %q", rr.Header().Get("Content-Type"), rr.Body.String())
	}
}

func TestUpload_Rejections(t *testing.T) {
	store := memory.NewStore()

	if rr := upload(HandleUpload(store), "text/html", []byte("<p>")); rr.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusUnsupportedMediaType)
	}
	if rr := upload(HandleUpload(store), "video/mp4", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	big := []byte(strings.Repeat("x", MaxUploadSize+1))
	if rr := upload(HandleUpload(store), "video/mp4", big); rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestGet_NotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "missing")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	HandleGet(memory.NewStore()).ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
