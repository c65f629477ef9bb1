// Package owner serves the moderation panel. Every route requires an owner
// or moderator; changing roles requires an owner.
package owner

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	chatroom "guides-server/chat"
	"guides-server/core"
	"guides-server/handlers/api"
	"guides-server/handlers/api/notifications"
	"guides-server/handlers/auth"
	"guides-server/middleware"
)

type (
	RoleRequest struct {
		Role core.Role `json:"role"`
	}

	BroadcastRequest struct {
		Message string                `json:"message"`
		Type    core.NotificationType `json:"type"`
	}

	ChatRequest struct {
		Disabled bool `json:"disabled"`
	}

	Stats struct {
		Users           int `json:"users"`
		PendingUsers    int `json:"pending_users"`
		Guides          int `json:"guides"`
		PublishedGuides int `json:"published_guides"`
		EditorSessions  int `json:"editor_sessions"`
		Connections     int `json:"connections"`
		ChatMessages    int `json:"chat_messages"`
	}

	// Counter reports a live gauge such as open connections.
	Counter interface {
		Len() int
	}
)

func HandleListUsers(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := core.UserFilter{PendingOnly: r.URL.Query().Get("pending") == "true"}

		list, err := users.ListUsers(r.Context(), filter)
		if err != nil {
			api.StoreError(w, r, err, "User")
			return
		}
		render.JSON(w, r, list)
	}
}

// loadTarget fetches the {id} user and refuses changes to oneself and, for
// moderators, to owners.
func loadTarget(w http.ResponseWriter, r *http.Request, users core.UserStore) (*core.User, bool) {
	actor := middleware.UserFromContext(r.Context())
	target, err := users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.StoreError(w, r, err, "User")
		return nil, false
	}
	if target.ID == actor.ID {
		api.Error(w, r, http.StatusBadRequest, "Cannot change your own account here")
		return nil, false
	}
	if target.Role == core.RoleOwner && actor.Role != core.RoleOwner {
		api.Error(w, r, http.StatusForbidden, "Insufficient permissions")
		return nil, false
	}
	return target, true
}

func HandleApproveUser(users core.UserStore, store core.NotificationStore, push notifications.Pusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := loadTarget(w, r, users)
		if !ok {
			return
		}
		if target.Approved {
			render.JSON(w, r, target)
			return
		}

		target.Approved = true
		if err := users.UpdateUser(r.Context(), target); err != nil {
			api.StoreError(w, r, err, "User")
			return
		}
		logrus.WithField("user_id", target.ID).Info("User approved")

		notifications.Send(r.Context(), store, push, target.ID, core.NotificationSuccess,
			"Your account has been approved. You can now create guides.")
		render.JSON(w, r, target)
	}
}

// HandleResetToken issues a password reset token for the user. The
// moderator hands it over out of band.
func HandleResetToken(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := loadTarget(w, r, users)
		if !ok {
			return
		}

		token, expires, err := auth.CreateResetToken(target)
		if err != nil {
			logrus.WithError(err).WithField("user_id", target.ID).Error("Failed to sign reset token")
			api.Error(w, r, http.StatusInternalServerError, "Failed to issue reset token")
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":  target.ID,
			"actor_id": middleware.UserFromContext(r.Context()).ID,
		}).Info("Password reset token issued")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{"token": token, "expires_at": expires})
	}
}

func HandleSetRole(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if middleware.UserFromContext(r.Context()).Role != core.RoleOwner {
			api.Error(w, r, http.StatusForbidden, "Only owners can change roles")
			return
		}

		var req RoleRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil || !req.Role.Valid() {
			api.Error(w, r, http.StatusBadRequest, "Role must be user, moderator or owner")
			return
		}

		target, ok := loadTarget(w, r, users)
		if !ok {
			return
		}
		target.Role = req.Role
		if err := users.UpdateUser(r.Context(), target); err != nil {
			api.StoreError(w, r, err, "User")
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": target.ID, "role": target.Role}).Info("User role changed")
		render.JSON(w, r, target)
	}
}

func HandleDeleteUser(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := loadTarget(w, r, users)
		if !ok {
			return
		}
		if err := users.DeleteUser(r.Context(), target.ID); err != nil {
			api.StoreError(w, r, err, "User")
			return
		}
		render.JSON(w, r, map[string]bool{"success": true})
	}
}

func HandleListGuides(guides core.GuideStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := guides.ListGuides(r.Context(), core.GuideFilter{})
		if err != nil {
			api.StoreError(w, r, err, "Guide")
			return
		}
		render.JSON(w, r, list)
	}
}

// HandleBroadcast notifies every approved user.
func HandleBroadcast(users core.UserStore, store core.NotificationStore, push notifications.Pusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BroadcastRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			api.Error(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Message = strings.TrimSpace(req.Message)
		if req.Message == "" {
			api.Error(w, r, http.StatusBadRequest, "Message is required")
			return
		}
		switch req.Type {
		case "":
			req.Type = core.NotificationInfo
		case core.NotificationInfo, core.NotificationSuccess, core.NotificationWarning:
		default:
			api.Error(w, r, http.StatusBadRequest, "Type must be info, success or warning")
			return
		}

		list, err := users.ListUsers(r.Context(), core.UserFilter{})
		if err != nil {
			api.StoreError(w, r, err, "User")
			return
		}
		sent := 0
		for _, u := range list {
			if !u.Approved {
				continue
			}
			if err := notifications.Send(r.Context(), store, push, u.ID, req.Type, req.Message); err == nil {
				sent++
			}
		}

		logrus.WithField("recipients", sent).Info("Notification broadcast")
		render.JSON(w, r, map[string]int{"sent": sent})
	}
}

func HandleSetChat(room *chatroom.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			api.Error(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		room.SetDisabled(req.Disabled)
		render.JSON(w, r, map[string]bool{"disabled": req.Disabled})
	}
}

func HandleClearChat(room *chatroom.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room.Clear()
		render.JSON(w, r, map[string]bool{"success": true})
	}
}

func HandleStats(users core.UserStore, guides core.GuideStore, sessions, connections Counter, room *chatroom.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userList, err := users.ListUsers(r.Context(), core.UserFilter{})
		if err != nil {
			api.StoreError(w, r, err, "User")
			return
		}
		guideList, err := guides.ListGuides(r.Context(), core.GuideFilter{})
		if err != nil {
			api.StoreError(w, r, err, "Guide")
			return
		}

		stats := Stats{
			Users:          len(userList),
			Guides:         len(guideList),
			EditorSessions: sessions.Len(),
			Connections:    connections.Len(),
			ChatMessages:   room.Len(),
		}
		for _, u := range userList {
			if !u.Approved {
				stats.PendingUsers++
			}
		}
		for _, g := range guideList {
			if g.Published {
				stats.PublishedGuides++
			}
		}
		render.JSON(w, r, stats)
	}
}
