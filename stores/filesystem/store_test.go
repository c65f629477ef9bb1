package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"guides-server/core"
)

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "media")
	NewStore(dir)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("NewStore() did not create %s: %v", dir, err)
	}
}

func TestCreateAndFind(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	media := &core.Media{ContentType: "image/jpeg"}
	media.Data.WriteString("jpeg bytes")

	id, err := store.Create(ctx, media)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if len(id) != 26 {
		t.Errorf("Create() returned invalid ID length: got %d, want 26", len(id))
	}

	got, err := store.FindID(ctx, id)
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if got.ContentType != "image/jpeg" {
		t.Errorf("ContentType mismatch: got %q", got.ContentType)
	}
	if got.Data.String() != "jpeg bytes" {
		t.Errorf("Data mismatch: got %q", got.Data.String())
	}
}

func TestFindID_NotFound(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.FindID(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindID() error mismatch: got %v, want ErrNotFound", err)
	}
}

func TestFindID_PathTraversal(t *testing.T) {
	base := t.TempDir()
	secret := filepath.Join(filepath.Dir(base), "secret")
	_ = os.WriteFile(secret, []byte("nope"), 0644)
	t.Cleanup(func() { os.Remove(secret) })

	store := NewStore(base)
	for _, id := range []string{"../secret", "..", "a/b", ""} {
		if _, err := store.FindID(context.Background(), id); err == nil {
			t.Errorf("FindID(%q) should fail", id)
		}
	}
}
