package storage

import (
	"testing"
	"time"

	"englishmastery/internal/config"
)

func TestObjectKeyLayout(t *testing.T) {
	now := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	got := ObjectKey("challenges", "abc", "mp4", now)
	if got != "challenges/2026/03/09/abc.mp4" {
		t.Fatalf("ObjectKey = %q", got)
	}
}

func TestPublicURLAndKeyFromURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{
			name: "endpoint without scheme",
			cfg:  config.StorageConfig{Endpoint: "minio.local:9000", BucketMedia: "media"},
			want: "https://minio.local:9000/media/avatars/x.png",
		},
		{
			name: "public url wins",
			cfg:  config.StorageConfig{Endpoint: "minio:9000", PublicURL: "http://cdn.example.com/", BucketMedia: "media"},
			want: "http://cdn.example.com/media/avatars/x.png",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PublicURL(tt.cfg, "avatars/x.png")
			if got != tt.want {
				t.Fatalf("PublicURL = %q, want %q", got, tt.want)
			}
			key, ok := KeyFromURL(tt.cfg, got)
			if !ok || key != "avatars/x.png" {
				t.Fatalf("KeyFromURL = %q, %v", key, ok)
			}
		})
	}

	if _, ok := KeyFromURL(config.StorageConfig{Endpoint: "minio:9000", BucketMedia: "media"}, "https://youtube.com/watch?v=1"); ok {
		t.Fatal("foreign url must not map to a key")
	}
}
