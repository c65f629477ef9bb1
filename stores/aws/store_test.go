package aws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"guides-server/core"
)

type object struct {
	contentType *string
	data        []byte
}

type mockS3 struct {
	objects map[string]object
	putErr  error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string]object)}
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	o, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(o.data)),
		ContentType: o.contentType,
	}, nil
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = object{contentType: in.ContentType, data: data}
	return &s3.PutObjectOutput{}, nil
}

func TestCreateAndFind(t *testing.T) {
	client := newMockS3()
	store := newStore(client, "bucket")
	ctx := context.Background()

	media := &core.Media{ContentType: "image/webp"}
	media.Data.WriteString("webp")

	id, err := store.Create(ctx, media)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, ok := client.objects["bucket/media/"+id]; !ok {
		t.Errorf("Object not stored under the media prefix: %v", client.objects)
	}

	got, err := store.FindID(ctx, id)
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if got.ContentType != "image/webp" || got.Data.String() != "webp" {
		t.Errorf("Media mismatch: %q %q", got.ContentType, got.Data.String())
	}
}

func TestFindID_NotFound(t *testing.T) {
	store := newStore(newMockS3(), "bucket")
	_, err := store.FindID(context.Background(), "missing")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindID() error mismatch: got %v, want ErrNotFound", err)
	}
}

func TestCreate_UploadError(t *testing.T) {
	client := newMockS3()
	client.putErr = errors.New("access denied")
	store := newStore(client, "bucket")

	if _, err := store.Create(context.Background(), &core.Media{}); err == nil {
		t.Error("Create() should fail when the upload fails")
	}
}
