package sessions

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"guides-server/core"
	"guides-server/editor"
	"guides-server/handlers/api"
	"guides-server/handlers/api/guides"
	"guides-server/middleware"
)

type (
	// StateResponse is what every session endpoint returns so the client can
	// re-render.
	StateResponse struct {
		SessionID string         `json:"session_id"`
		GuideID   string         `json:"guide_id"`
		Elements  []core.Element `json:"elements"`
		Selected  string         `json:"selected"`
		Mode      editor.Mode    `json:"mode"`
		Dirty     bool           `json:"dirty"`
	}

	AddRequest struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}

	PropertyRequest struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}

	SelectRequest struct {
		ID string `json:"id"`
	}

	// PointerRequest drives drag and resize. Phase is begin, update or end.
	PointerRequest struct {
		Phase    string          `json:"phase"`
		ID       string          `json:"id"`
		Handle   string          `json:"handle"`
		Viewport editor.Viewport `json:"viewport"`
		X        float64         `json:"x"`
		Y        float64         `json:"y"`
	}
)

var errBadRequest = errors.New("bad request")

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }
func (e badRequest) Unwrap() error { return errBadRequest }

func state(id string, s *editor.Session) StateResponse {
	return StateResponse{
		SessionID: id,
		GuideID:   s.GuideID(),
		Elements:  s.Snapshot(),
		Selected:  s.Selected(),
		Mode:      s.Interaction().Mode(),
		Dirty:     s.Dirty(),
	}
}

// handle runs fn on the session named by the {session} URL parameter and
// answers with the resulting state.
func handle(reg *editor.Registry, fn func(r *http.Request, s *editor.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "session")
		user := middleware.UserFromContext(r.Context())

		var resp StateResponse
		err := reg.With(id, user.ID, func(s *editor.Session) error {
			if err := fn(r, s); err != nil {
				return err
			}
			resp = state(id, s)
			return nil
		})
		if err != nil {
			writeError(w, r, id, err)
			return
		}
		render.JSON(w, r, resp)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, editor.ErrUnknownField),
		errors.Is(err, editor.ErrFieldNotEditable),
		errors.Is(err, editor.ErrInvalidValue):
		api.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrForbidden), errors.Is(err, core.ErrInvalidElement):
		api.StoreError(w, r, err, "Editor session")
	default:
		logrus.WithError(err).WithField("session_id", id).Error("Editor request failed")
		api.Error(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return badRequest{"Invalid request body"}
	}
	return nil
}

// HandleOpen starts an editor session on the guide named by {id}.
func HandleOpen(store core.GuideStore, reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guide, ok := guides.Load(w, r, store)
		if !ok {
			return
		}
		user := middleware.UserFromContext(r.Context())

		id := reg.Open(guide, user.ID)
		var resp StateResponse
		err := reg.With(id, user.ID, func(s *editor.Session) error {
			resp = state(id, s)
			return nil
		})
		if err != nil {
			writeError(w, r, id, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, resp)
	}
}

func HandleState(reg *editor.Registry) http.HandlerFunc {
	return handle(reg, func(r *http.Request, s *editor.Session) error { return nil })
}

func HandleClose(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "session")
		user := middleware.UserFromContext(r.Context())

		if err := reg.Close(id, user.ID); err != nil {
			writeError(w, r, id, err)
			return
		}
		render.JSON(w, r, map[string]bool{"success": true})
	}
}

func HandleAdd(reg *editor.Registry) http.HandlerFunc {
	return handle(reg, func(r *http.Request, s *editor.Session) error {
		var req AddRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		kind, err := core.ParseKind(req.Type)
		if err != nil {
			return badRequest{err.Error()}
		}
		_, err = s.Add(kind, req.Content)
		return err
	})
}

func HandleSetProperty(reg *editor.Registry) http.HandlerFunc {
	return handle(reg, func(r *http.Request, s *editor.Session) error {
		var req PropertyRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		field, err := editor.ParseField(req.Field)
		if err != nil {
			return err
		}
		return s.SetProperty(chi.URLParam(r, "element"), field, req.Value)
	})
}

func HandleDelete(reg *editor.Registry) http.HandlerFunc {
	return handle(reg, func(r *http.Request, s *editor.Session) error {
		s.Delete(chi.URLParam(r, "element"))
		return nil
	})
}

// HandleSelect selects the element with the given id. An empty id clears the
// selection.
func HandleSelect(reg *editor.Registry) http.HandlerFunc {
	return handle(reg, func(r *http.Request, s *editor.Session) error {
		var req SelectRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		if req.ID == "" {
			s.ClearSelection()
			return nil
		}
		s.Select(req.ID)
		return nil
	})
}

func HandleDrag(reg *editor.Registry) http.HandlerFunc {
	return handle(reg, func(r *http.Request, s *editor.Session) error {
		var req PointerRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		switch req.Phase {
		case "begin":
			if err := checkViewport(req.Viewport); err != nil {
				return err
			}
			s.BeginDrag(req.ID, req.Viewport)
		case "update":
			s.UpdateDrag(req.X, req.Y)
		case "end":
			s.EndDrag()
		default:
			return badRequest{"phase must be begin, update or end"}
		}
		return nil
	})
}

// checkViewport rejects a canvas too small to hold a minimum-size element.
// Clamping against it would collapse the element.
func checkViewport(vp editor.Viewport) error {
	if vp.Width <= 0 || vp.Height <= 0 {
		return badRequest{"viewport width and height must be positive"}
	}
	return nil
}

func HandleResize(reg *editor.Registry) http.HandlerFunc {
	return handle(reg, func(r *http.Request, s *editor.Session) error {
		var req PointerRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		switch req.Phase {
		case "begin":
			h, err := editor.ParseHandle(req.Handle)
			if err != nil {
				return badRequest{err.Error()}
			}
			if err := checkViewport(req.Viewport); err != nil {
				return err
			}
			s.BeginResize(req.ID, h, req.Viewport)
		case "update":
			s.UpdateResize(req.X, req.Y)
		case "end":
			s.EndResize()
		default:
			return badRequest{"phase must be begin, update or end"}
		}
		return nil
	})
}

// HandleSave persists the session's elements as the guide's new collection.
func HandleSave(store core.ElementReplacer, reg *editor.Registry) http.HandlerFunc {
	return handle(reg, func(r *http.Request, s *editor.Session) error {
		return s.Save(r.Context(), store)
	})
}
