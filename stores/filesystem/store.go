package filesystem

import (
	"bytes"
	"context"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"guides-server/core"
)

// Content types are kept in a sidecar file next to the data.
const typeSuffix = ".type"

type fsStore struct {
	basePath string
}

// NewStore creates a media store that writes one file per upload.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		stdlog.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

func (s *fsStore) path(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return "", fmt.Errorf("invalid media id %q: %w", id, core.ErrNotFound)
	}
	return filepath.Join(s.basePath, id), nil
}

func (s *fsStore) FindID(ctx context.Context, id string) (*core.Media, error) {
	log := logrus.WithField("media_id", id)
	filePath, err := s.path(id)
	if err != nil {
		log.Warn("Rejected media path")
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Media with specified ID not found")
			return nil, fmt.Errorf("media with id %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve media")
		return nil, err
	}
	contentType, err := os.ReadFile(filePath + typeSuffix)
	if err != nil && !os.IsNotExist(err) {
		log.WithError(err).Error("Failed to read media content type")
		return nil, err
	}

	log.Info("Media retrieved successfully")
	return &core.Media{
		ContentType: string(contentType),
		Data:        *bytes.NewBuffer(data),
	}, nil
}

func (s *fsStore) Create(ctx context.Context, media *core.Media) (string, error) {
	id := ulid.Make().String()
	filePath := filepath.Join(s.basePath, id)
	log := logrus.WithFields(logrus.Fields{
		"media_id":  id,
		"file_path": filePath,
	})

	if err := os.WriteFile(filePath, media.Data.Bytes(), 0644); err != nil {
		log.WithError(err).Error("Failed to create media")
		return "", err
	}
	if err := os.WriteFile(filePath+typeSuffix, []byte(media.ContentType), 0644); err != nil {
		log.WithError(err).Error("Failed to write media content type")
		return "", err
	}

	log.Info("Media created successfully")
	return id, nil
}
