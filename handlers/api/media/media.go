package media

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"guides-server/core"
	"guides-server/handlers/api"
)

// MaxUploadSize bounds a single upload.
const MaxUploadSize = 10 << 20

type UploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func allowed(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "video/")
}

// HandleUpload stores the raw request body. Only images and videos are
// accepted.
func HandleUpload(store core.MediaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		if !allowed(contentType) {
			api.Error(w, r, http.StatusUnsupportedMediaType, "Only image and video uploads are supported")
			return
		}

		m := &core.Media{ContentType: contentType}
		_, err := m.Data.ReadFrom(http.MaxBytesReader(w, r.Body, MaxUploadSize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				api.Error(w, r, http.StatusRequestEntityTooLarge, "Upload exceeds 10 MB")
				return
			}
			logrus.WithError(err).Error("Failed to read upload")
			api.Error(w, r, http.StatusBadRequest, "Failed to read upload")
			return
		}
		if m.Data.Len() == 0 {
			api.Error(w, r, http.StatusBadRequest, "Upload is empty")
			return
		}

		id, err := store.Create(r.Context(), m)
		if err != nil {
			api.StoreError(w, r, err, "Media")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, UploadResponse{ID: id, URL: "/api/media/" + id})
	}
}

func HandleGet(store core.MediaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := store.FindID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			api.StoreError(w, r, err, "Media")
			return
		}

		contentType := m.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(m.Data.Len()))
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		io.Copy(w, &m.Data)
	}
}
