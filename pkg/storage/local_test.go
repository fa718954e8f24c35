package storage_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/onyxia-store/onyxia/pkg/storage"
)

func TestLocal_PutGetDelete(t *testing.T) {
	d := storage.NewLocal(t.TempDir(), "http://localhost:8080/storage/")
	ctx := context.Background()

	if err := d.Put(ctx, "products/ring.jpg", strings.NewReader("jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := d.Get(ctx, "products/ring.jpg")
	if err != nil || string(got) != "jpeg" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if ok, _ := d.Exists(ctx, "products/ring.jpg"); !ok {
		t.Error("expected object to exist")
	}
	if u := d.URL("products/ring.jpg"); u != "http://localhost:8080/storage/products/ring.jpg" {
		t.Errorf("URL = %s", u)
	}

	if err := d.Delete(ctx, "products/ring.jpg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := d.Get(ctx, "products/ring.jpg"); !errors.Is(err, storage.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if err := d.Delete(ctx, "products/ring.jpg"); err != nil {
		t.Errorf("deleting a missing object should succeed, got %v", err)
	}
}

func TestLocal_RejectsTraversal(t *testing.T) {
	d := storage.NewLocal(t.TempDir(), "")
	ctx := context.Background()

	for _, p := range []string{"../etc/passwd", "/abs/path", "a/../../b", ""} {
		if err := d.Put(ctx, p, strings.NewReader("x"), ""); !errors.Is(err, storage.ErrBadPath) {
			t.Errorf("Put(%q) = %v, want ErrBadPath", p, err)
		}
	}
}
