package sqlstore

import (
	"bytes"
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"guides-server/core"
)

func (s *Store) FindID(ctx context.Context, id string) (*core.Media, error) {
	log := logrus.WithField("media_id", id)
	log.Debug("Retrieving media by ID")

	var (
		contentType string
		data        []byte
	)
	err := s.queryRow(ctx, s.db, "SELECT content_type, data FROM media WHERE id = ?", id).Scan(&contentType, &data)
	if err != nil {
		err = notFound(err, "media with id "+id)
		log.WithError(err).Warn("Failed to retrieve media")
		return nil, err
	}

	media := &core.Media{
		ContentType: contentType,
		Data:        *bytes.NewBuffer(data),
	}
	log.Info("Media retrieved successfully")
	return media, nil
}

func (s *Store) Create(ctx context.Context, media *core.Media) (string, error) {
	id := ulid.Make().String()
	data := media.Data.Bytes()
	log := logrus.WithFields(logrus.Fields{
		"media_id":    id,
		"data_length": len(data),
	})

	_, err := s.exec(ctx, s.db, "INSERT INTO media (id, content_type, data) VALUES (?, ?, ?)", id, media.ContentType, data)
	if err != nil {
		log.WithError(err).Error("Failed to create media")
		return "", err
	}
	log.Info("Media created successfully")
	return id, nil
}
