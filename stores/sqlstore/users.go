package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"guides-server/core"
)

const userColumns = "id, username, email, password_hash, subject, role, approved, created_at, updated_at"

func scanUser(row rowScanner) (*core.User, error) {
	var (
		u                core.User
		email, subject   sql.NullString
		role             string
		created, updated int64
	)
	if err := row.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &subject, &role, &u.Approved, &created, &updated); err != nil {
		return nil, err
	}
	u.Email = email.String
	u.Subject = subject.String
	u.Role = core.Role(role)
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user *core.User) error {
	now := time.Now()
	user.ID = ulid.Make().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	log := logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username})

	_, err := s.exec(ctx, s.db,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		user.ID, user.Username, nullable(user.Email), user.PasswordHash, nullable(user.Subject),
		string(user.Role), user.Approved, millis(now), millis(now))
	if err != nil {
		log.WithError(err).Error("Failed to create user")
		return s.conflict(err, "user "+user.Username)
	}
	log.Info("User created successfully")
	return nil
}

func (s *Store) getUserBy(ctx context.Context, column, value string) (*core.User, error) {
	u, err := scanUser(s.queryRow(ctx, s.db, "SELECT "+userColumns+" FROM users WHERE "+column+" = ?", value))
	if err != nil {
		return nil, notFound(err, "user with "+column+" "+value)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*core.User, error) {
	return s.getUserBy(ctx, "id", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	return s.getUserBy(ctx, "username", username)
}

func (s *Store) GetUserBySubject(ctx context.Context, subject string) (*core.User, error) {
	return s.getUserBy(ctx, "subject", subject)
}

func (s *Store) ListUsers(ctx context.Context, filter core.UserFilter) ([]*core.User, error) {
	query := "SELECT " + userColumns + " FROM users"
	var args []any
	if filter.PendingOnly {
		query += " WHERE approved = ?"
		args = append(args, false)
	}
	query += " ORDER BY id"

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*core.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, user *core.User) error {
	log := logrus.WithField("user_id", user.ID)
	now := time.Now()

	res, err := s.exec(ctx, s.db,
		"UPDATE users SET email = ?, password_hash = ?, role = ?, approved = ?, updated_at = ? WHERE id = ?",
		nullable(user.Email), user.PasswordHash, string(user.Role), user.Approved, millis(now), user.ID)
	if err != nil {
		log.WithError(err).Error("Failed to update user")
		return s.conflict(err, "user email "+user.Email)
	}
	if err := affected(res, "user with id "+user.ID); err != nil {
		return err
	}
	user.UpdatedAt = now
	log.Info("User updated successfully")
	return nil
}

// DeleteUser removes the user together with their guides and notifications.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	log := logrus.WithField("user_id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		"DELETE FROM elements WHERE guide_id IN (SELECT id FROM guides WHERE owner_id = ?)",
		"DELETE FROM guides WHERE owner_id = ?",
		"DELETE FROM notifications WHERE user_id = ?",
	}
	for _, stmt := range stmts {
		if _, err := s.exec(ctx, tx, stmt, id); err != nil {
			log.WithError(err).Error("Failed to delete user data")
			return err
		}
	}
	res, err := s.exec(ctx, tx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if err := affected(res, "user with id "+id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info("User deleted successfully")
	return nil
}
