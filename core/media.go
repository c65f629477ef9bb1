package core

import (
	"bytes"
	"context"
)

type (
	// Media is an uploaded image or video referenced from element content.
	Media struct {
		ContentType string
		Data        bytes.Buffer
	}

	MediaStore interface {
		FindID(ctx context.Context, id string) (*Media, error)
		Create(ctx context.Context, media *Media) (string, error)
	}
)
