package sqlstore

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"guides-server/core"
)

func (s *Store) AddNotification(ctx context.Context, n *core.Notification) error {
	n.ID = ulid.Make().String()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := s.exec(ctx, s.db,
		"INSERT INTO notifications (id, user_id, message, type, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		n.ID, n.UserID, n.Message, string(n.Type), n.Read, millis(n.CreatedAt))
	return err
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]*core.Notification, error) {
	rows, err := s.query(ctx, s.db,
		"SELECT id, message, type, is_read, created_at FROM notifications WHERE user_id = ? ORDER BY id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]*core.Notification, 0)
	for rows.Next() {
		var (
			n       core.Notification
			kind    string
			created int64
		)
		if err := rows.Scan(&n.ID, &n.Message, &kind, &n.Read, &created); err != nil {
			return nil, err
		}
		n.UserID = userID
		n.Type = core.NotificationType(kind)
		n.CreatedAt = fromMillis(created)
		list = append(list, &n)
	}
	return list, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := s.exec(ctx, s.db, "UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?", true, id, userID)
	if err != nil {
		return err
	}
	return affected(res, "notification with id "+id)
}
