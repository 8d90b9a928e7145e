package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"a/b.png", "image/png"},
		{"a/b.JPG", "image/jpeg"},
		{"clip.mp4?v=1", "video/mp4"},
		{"clip.webm", "video/webm"},
		{"notes.txt", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentTypeFor(tt.key); got != tt.want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLocal_PutAndURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	ctx := context.Background()
	if err := store.Put(ctx, "shares/one.png", strings.NewReader("png-bytes"), "image/png"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "shares", "one.png"))
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("stored data = %q, err %v", data, err)
	}

	u, err := store.URL(ctx, "shares/one.png")
	if err != nil {
		t.Fatalf("URL() error = %v", err)
	}
	if !strings.HasPrefix(u, "file://") || !strings.HasSuffix(u, "/shares/one.png") {
		t.Errorf("URL() = %q", u)
	}

	if _, err := store.URL(ctx, "missing.png"); err == nil {
		t.Error("URL() for a missing blob should fail")
	}
}

func TestLocal_KeysStayInsideRoot(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewLocal(filepath.Join(dir, "blobs"))

	if err := store.Put(context.Background(), "../../escape.png", strings.NewReader("x"), ""); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "blobs", "escape.png")); err != nil {
		t.Errorf("traversal key should land inside the root: %v", err)
	}
	if err := store.Put(context.Background(), "", strings.NewReader("x"), ""); err == nil {
		t.Error("empty key should fail")
	}
}

func TestGCS_URL(t *testing.T) {
	g := &GCS{bucket: "captions"}
	u, _ := g.URL(context.Background(), "/shares/a.png")
	if u != "https://storage.googleapis.com/captions/shares/a.png" {
		t.Errorf("URL() = %q", u)
	}

	g.cdnDomain = "cdn.example.com"
	u, _ = g.URL(context.Background(), "shares/a.png")
	if u != "https://cdn.example.com/shares/a.png" {
		t.Errorf("CDN URL() = %q", u)
	}
}
