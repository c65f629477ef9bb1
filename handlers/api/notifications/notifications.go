package notifications

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"guides-server/core"
	"guides-server/handlers/api"
	"guides-server/middleware"
)

// Pusher delivers a stored notification to the user's live connections.
type Pusher interface {
	Notify(userID string, n *core.Notification)
}

// Send stores a notification for the user and pushes it live.
func Send(ctx context.Context, store core.NotificationStore, push Pusher, userID string, kind core.NotificationType, message string) error {
	n := &core.Notification{
		UserID:  userID,
		Message: message,
		Type:    kind,
	}
	if err := store.AddNotification(ctx, n); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to add notification")
		return err
	}
	if push != nil {
		push.Notify(userID, n)
	}
	return nil
}

func HandleList(store core.NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())

		list, err := store.ListNotifications(r.Context(), user.ID)
		if err != nil {
			api.StoreError(w, r, err, "Notification")
			return
		}
		unread := 0
		for _, n := range list {
			if !n.Read {
				unread++
			}
		}
		render.JSON(w, r, map[string]any{"notifications": list, "unread": unread})
	}
}

func HandleMarkRead(store core.NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())

		if err := store.MarkNotificationRead(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
			api.StoreError(w, r, err, "Notification")
			return
		}
		render.JSON(w, r, map[string]bool{"success": true})
	}
}
