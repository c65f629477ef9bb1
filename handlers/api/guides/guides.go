package guides

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"guides-server/core"
	"guides-server/handlers/api"
	"guides-server/middleware"
)

const (
	slugAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	slugLength   = 10
	slugAttempts = 5
)

type (
	GuideRequest struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Published   bool   `json:"is_published"`
	}

	ElementsRequest struct {
		Elements []core.Element `json:"elements"`
	}

	// SessionCloser drops editor sessions of a deleted guide.
	SessionCloser interface {
		CloseGuide(guideID string)
	}
)

// Load fetches the guide named by the {id} URL parameter and checks that the
// signed-in user may change it. On failure it has already written the
// response.
func Load(w http.ResponseWriter, r *http.Request, store core.GuideStore) (*core.Guide, bool) {
	id := chi.URLParam(r, "id")
	user := middleware.UserFromContext(r.Context())

	guide, err := store.GetGuide(r.Context(), id)
	if err != nil {
		api.StoreError(w, r, err, "Guide")
		return nil, false
	}
	if !guide.EditableBy(user) {
		logrus.WithField("guide_id", id).Warn("Guide access denied")
		api.Error(w, r, http.StatusForbidden, "Forbidden")
		return nil, false
	}
	return guide, true
}

func HandleListGuides(store core.GuideStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())

		guides, err := store.ListGuides(r.Context(), core.GuideFilter{OwnerID: user.ID})
		if err != nil {
			api.StoreError(w, r, err, "Guide")
			return
		}
		render.JSON(w, r, guides)
	}
}

func HandleCreateGuide(store core.GuideStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())

		var req GuideRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			api.Error(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			api.Error(w, r, http.StatusBadRequest, "Title is required")
			return
		}

		guide := &core.Guide{
			OwnerID:     user.ID,
			Title:       title,
			Description: req.Description,
			Elements:    []core.Element{},
		}
		if err := store.CreateGuide(r.Context(), guide); err != nil {
			api.StoreError(w, r, err, "Guide")
			return
		}
		if req.Published {
			guide.Published = true
			if err := publish(r, store, guide); err != nil {
				api.StoreError(w, r, err, "Guide")
				return
			}
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, guide)
	}
}

func HandleGetGuide(store core.GuideStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guide, ok := Load(w, r, store)
		if !ok {
			return
		}
		render.JSON(w, r, guide)
	}
}

func HandleUpdateGuide(store core.GuideStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GuideRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			api.Error(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			api.Error(w, r, http.StatusBadRequest, "Title is required")
			return
		}

		guide, ok := Load(w, r, store)
		if !ok {
			return
		}
		guide.Title = title
		guide.Description = req.Description
		guide.Published = req.Published

		if err := publish(r, store, guide); err != nil {
			api.StoreError(w, r, err, "Guide")
			return
		}
		render.JSON(w, r, guide)
	}
}

// publish stores the guide, assigning a share slug the first time it is
// published. The slug is kept when the guide is unpublished.
func publish(r *http.Request, store core.GuideStore, guide *core.Guide) error {
	if !guide.Published || guide.Slug != "" {
		return store.UpdateGuide(r.Context(), guide)
	}

	var err error
	for i := 0; i < slugAttempts; i++ {
		guide.Slug, err = gonanoid.Generate(slugAlphabet, slugLength)
		if err != nil {
			return err
		}
		err = store.UpdateGuide(r.Context(), guide)
		if !errors.Is(err, core.ErrConflict) {
			break
		}
		logrus.WithField("guide_id", guide.ID).Warn("Share slug collision, retrying")
	}
	if err != nil {
		guide.Slug = ""
		return err
	}
	logrus.WithFields(logrus.Fields{"guide_id": guide.ID, "slug": guide.Slug}).Info("Guide published")
	return nil
}

func HandleDeleteGuide(store core.GuideStore, sessions SessionCloser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guide, ok := Load(w, r, store)
		if !ok {
			return
		}
		if err := store.DeleteGuide(r.Context(), guide.ID); err != nil {
			api.StoreError(w, r, err, "Guide")
			return
		}
		sessions.CloseGuide(guide.ID)

		render.JSON(w, r, map[string]bool{"success": true})
	}
}

// HandleReplaceElements overwrites the guide's element collection.
func HandleReplaceElements(store core.GuideStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ElementsRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			api.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}

		guide, ok := Load(w, r, store)
		if !ok {
			return
		}
		if req.Elements == nil {
			req.Elements = []core.Element{}
		}

		stored, err := store.ReplaceElements(r.Context(), guide.ID, req.Elements)
		if err != nil {
			api.StoreError(w, r, err, "Guide")
			return
		}
		render.JSON(w, r, map[string]any{"elements": stored})
	}
}

func HandleListPublic(store core.GuideStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guides, err := store.ListGuides(r.Context(), core.GuideFilter{PublishedOnly: true})
		if err != nil {
			api.StoreError(w, r, err, "Guide")
			return
		}
		render.JSON(w, r, guides)
	}
}

// HandleGetPublic serves a published guide with its elements in render
// order.
func HandleGetPublic(store core.GuideStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guide, err := store.GetGuideBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			api.StoreError(w, r, err, "Guide")
			return
		}
		guide.Elements = guide.RenderOrder()
		render.JSON(w, r, guide)
	}
}
