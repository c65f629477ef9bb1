package core

import (
	"context"
	"time"
)

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
)

type (
	Notification struct {
		ID        string           `json:"id"`
		UserID    string           `json:"-"`
		Message   string           `json:"message"`
		Type      NotificationType `json:"type"`
		Read      bool             `json:"read"`
		CreatedAt time.Time        `json:"created_at"`
	}

	NotificationStore interface {
		AddNotification(ctx context.Context, n *Notification) error
		// ListNotifications returns the user's notifications, newest first.
		ListNotifications(ctx context.Context, userID string) ([]*Notification, error)
		MarkNotificationRead(ctx context.Context, userID, id string) error
	}
)
