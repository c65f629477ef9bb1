package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"guides-server/core"
)

// objectAPI is the subset of the S3 client the store uses.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Store struct {
	client objectAPI
	bucket string
	prefix string
}

// NewStore creates a media store backed by an S3 bucket. Credentials and
// region come from the default AWS configuration chain.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		stdlog.Fatalf("unable to load SDK config, %v", err)
	}
	return newStore(s3.NewFromConfig(cfg), bucketName)
}

func newStore(client objectAPI, bucket string) *s3Store {
	return &s3Store{client: client, bucket: bucket, prefix: "media/"}
}

func (s *s3Store) key(id string) string {
	return s.prefix + id
}

func (s *s3Store) FindID(ctx context.Context, id string) (*core.Media, error) {
	log := logrus.WithField("media_id", id)

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Warn("Media with specified ID not found")
			return nil, fmt.Errorf("media with id %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to get media object")
		return nil, fmt.Errorf("failed to get media with id %s: %w", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read media data: %w", err)
	}

	log.Info("Media retrieved successfully")
	return &core.Media{
		ContentType: aws.ToString(resp.ContentType),
		Data:        *bytes.NewBuffer(data),
	}, nil
}

func (s *s3Store) Create(ctx context.Context, media *core.Media) (string, error) {
	id := ulid.Make().String()
	log := logrus.WithFields(logrus.Fields{
		"media_id":    id,
		"data_length": media.Data.Len(),
	})

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		Body:   bytes.NewReader(media.Data.Bytes()),
	}
	if media.ContentType != "" {
		input.ContentType = aws.String(media.ContentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		log.WithError(err).Error("Failed to upload media")
		return "", fmt.Errorf("failed to upload media: %w", err)
	}

	log.Info("Media created successfully")
	return id, nil
}
