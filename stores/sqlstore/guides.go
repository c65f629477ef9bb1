package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"guides-server/core"
)

const guideColumns = "id, owner_id, title, description, published, slug, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGuide(row rowScanner) (*core.Guide, error) {
	var (
		g                core.Guide
		slug             sql.NullString
		created, updated int64
	)
	if err := row.Scan(&g.ID, &g.OwnerID, &g.Title, &g.Description, &g.Published, &slug, &created, &updated); err != nil {
		return nil, err
	}
	g.Slug = slug.String
	g.CreatedAt = fromMillis(created)
	g.UpdatedAt = fromMillis(updated)
	return &g, nil
}

func (s *Store) ListGuides(ctx context.Context, filter core.GuideFilter) ([]*core.Guide, error) {
	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.PublishedOnly {
		where = append(where, "published = ?")
		args = append(args, true)
	}
	query := "SELECT " + guideColumns + " FROM guides"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		logrus.WithError(err).Error("Failed to list guides")
		return nil, err
	}
	defer rows.Close()

	guides := make([]*core.Guide, 0)
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		guides = append(guides, g)
	}
	return guides, rows.Err()
}

func (s *Store) GetGuide(ctx context.Context, id string) (*core.Guide, error) {
	log := logrus.WithField("guide_id", id)
	log.Debug("Retrieving guide by ID")

	g, err := scanGuide(s.queryRow(ctx, s.db, "SELECT "+guideColumns+" FROM guides WHERE id = ?", id))
	if err != nil {
		err = notFound(err, "guide with id "+id)
		log.WithError(err).Warn("Failed to retrieve guide")
		return nil, err
	}
	if g.Elements, err = s.loadElements(ctx, id); err != nil {
		log.WithError(err).Error("Failed to load guide elements")
		return nil, err
	}
	return g, nil
}

func (s *Store) GetGuideBySlug(ctx context.Context, slug string) (*core.Guide, error) {
	log := logrus.WithField("slug", slug)

	g, err := scanGuide(s.queryRow(ctx, s.db, "SELECT "+guideColumns+" FROM guides WHERE slug = ? AND published = ?", slug, true))
	if err != nil {
		err = notFound(err, "guide with slug "+slug)
		log.WithError(err).Warn("Failed to retrieve published guide")
		return nil, err
	}
	if g.Elements, err = s.loadElements(ctx, g.ID); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Store) CreateGuide(ctx context.Context, guide *core.Guide) error {
	now := time.Now()
	guide.ID = ulid.Make().String()
	guide.CreatedAt = now
	guide.UpdatedAt = now
	log := logrus.WithFields(logrus.Fields{"guide_id": guide.ID, "owner_id": guide.OwnerID})

	_, err := s.exec(ctx, s.db,
		"INSERT INTO guides ("+guideColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		guide.ID, guide.OwnerID, guide.Title, guide.Description, guide.Published, nullable(guide.Slug), millis(now), millis(now))
	if err != nil {
		log.WithError(err).Error("Failed to create guide")
		return s.conflict(err, "guide slug "+guide.Slug)
	}
	log.Info("Guide created successfully")
	return nil
}

func (s *Store) UpdateGuide(ctx context.Context, guide *core.Guide) error {
	log := logrus.WithField("guide_id", guide.ID)
	now := time.Now()

	res, err := s.exec(ctx, s.db,
		"UPDATE guides SET title = ?, description = ?, published = ?, slug = ?, updated_at = ? WHERE id = ?",
		guide.Title, guide.Description, guide.Published, nullable(guide.Slug), millis(now), guide.ID)
	if err != nil {
		log.WithError(err).Error("Failed to update guide")
		return s.conflict(err, "guide slug "+guide.Slug)
	}
	if err := affected(res, "guide with id "+guide.ID); err != nil {
		log.Warn("Guide not found for update")
		return err
	}
	guide.UpdatedAt = now
	log.Info("Guide updated successfully")
	return nil
}

func (s *Store) DeleteGuide(ctx context.Context, id string) error {
	log := logrus.WithField("guide_id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.exec(ctx, tx, "DELETE FROM elements WHERE guide_id = ?", id); err != nil {
		return err
	}
	res, err := s.exec(ctx, tx, "DELETE FROM guides WHERE id = ?", id)
	if err != nil {
		log.WithError(err).Error("Failed to delete guide")
		return err
	}
	if err := affected(res, "guide with id "+id); err != nil {
		log.Warn("Guide not found for deletion")
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info("Guide deleted successfully")
	return nil
}

// ReplaceElements deletes and reinserts the guide's elements in one
// transaction. Each stored element gets a fresh ULID.
func (s *Store) ReplaceElements(ctx context.Context, guideID string, elements []core.Element) ([]core.Element, error) {
	log := logrus.WithFields(logrus.Fields{"guide_id": guideID, "elements": len(elements)})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := s.exec(ctx, tx, "UPDATE guides SET updated_at = ? WHERE id = ?", millis(now), guideID)
	if err != nil {
		return nil, err
	}
	if err := affected(res, "guide with id "+guideID); err != nil {
		log.Warn("Guide not found for element replace")
		return nil, err
	}

	if _, err := s.exec(ctx, tx, "DELETE FROM elements WHERE guide_id = ?", guideID); err != nil {
		log.WithError(err).Error("Failed to delete guide elements")
		return nil, err
	}

	stored := make([]core.Element, len(elements))
	for i, e := range elements {
		e.ID = ulid.Make().String()
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if err := s.insertElement(ctx, tx, guideID, i, e); err != nil {
			log.WithError(err).Error("Failed to insert guide element")
			return nil, err
		}
		stored[i] = e
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	log.Info("Guide elements replaced successfully")
	return stored, nil
}

const elementColumns = "id, type, content, x, y, width, height, font_size, color, background_color, border_color, border_width, rotation, layer, href, created_at"

func (s *Store) insertElement(ctx context.Context, tx *sql.Tx, guideID string, position int, e core.Element) error {
	r := e.Record()
	_, err := s.exec(ctx, tx,
		"INSERT INTO elements (guide_id, position, "+elementColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		guideID, position, r.ID, string(r.Type), r.Content, r.X, r.Y,
		r.Width, r.Height, r.FontSize, r.Color, r.BackgroundColor, r.BorderColor, r.BorderWidth,
		r.Rotation, r.Layer, r.Href, millis(r.CreatedAt))
	return err
}

func (s *Store) loadElements(ctx context.Context, guideID string) ([]core.Element, error) {
	rows, err := s.query(ctx, s.db, "SELECT "+elementColumns+" FROM elements WHERE guide_id = ? ORDER BY position", guideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	elements := make([]core.Element, 0)
	for rows.Next() {
		var (
			r       core.ElementRecord
			kind    string
			created int64
		)
		err := rows.Scan(&r.ID, &kind, &r.Content, &r.X, &r.Y,
			&r.Width, &r.Height, &r.FontSize, &r.Color, &r.BackgroundColor, &r.BorderColor, &r.BorderWidth,
			&r.Rotation, &r.Layer, &r.Href, &created)
		if err != nil {
			return nil, err
		}
		r.Type = core.Kind(kind)
		r.CreatedAt = fromMillis(created)

		e, err := core.ElementFromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("element %s of guide %s: %w", r.ID, guideID, err)
		}
		elements = append(elements, e)
	}
	return elements, rows.Err()
}
