package stores

import (
	"os"

	"github.com/sirupsen/logrus"

	"guides-server/core"
	"guides-server/stores/aws"
	"guides-server/stores/filesystem"
	"guides-server/stores/memory"
	"guides-server/stores/postgres"
	"guides-server/stores/sqlite"
)

// Store is everything the server persists.
type Store interface {
	core.GuideStore
	core.UserStore
	core.NotificationStore
	core.MediaStore
	Close() error
}

func GetStore() Store {
	storageType := os.Getenv("STORAGE_TYPE")
	var store Store

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "sqlite":
		dataSourceName := getenv("DATA_SOURCE_NAME", "guides.db")
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "postgres":
		store = postgres.NewStore(os.Getenv("DATABASE_URL"))
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}

// GetMediaStore picks where uploads go. Without MEDIA_STORAGE_TYPE the
// main store keeps them.
func GetMediaStore(fallback core.MediaStore) core.MediaStore {
	storageType := os.Getenv("MEDIA_STORAGE_TYPE")
	var store core.MediaStore

	storageField := logrus.Fields{
		"mediaStorageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := getenv("LOCAL_STORAGE_PATH", "./data")
		storageField["basePath"] = basePath
		store = filesystem.NewStore(basePath)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		storageField["bucketName"] = bucketName
		store = aws.NewStore(bucketName)
	default:
		store = fallback
		storageField["mediaStorageType"] = "store"
	}
	logrus.WithFields(storageField).Info("Use media storage")
	return store
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
