package storage

import (
	"testing"
	"time"
)

func TestBucketFor(t *testing.T) {
	s := &S3{cfg: S3Config{
		MarkersBucket:    "markers-bucket",
		VideosBucket:     "videos-bucket",
		ThumbnailsBucket: "thumbnails-bucket",
		ContentBucket:    "content-bucket",
	}}

	tests := []struct {
		key  string
		want string
	}{
		{"markers/42.mind", "markers-bucket"},
		{"videos/7.mp4", "videos-bucket"},
		{"thumbnails/7.jpg", "thumbnails-bucket"},
		{"content/42.png", "content-bucket"},
		{"something-else/7", "content-bucket"}, // unknown prefix falls back to content bucket
	}
	for _, tt := range tests {
		if got := s.bucketFor(tt.key); got != tt.want {
			t.Errorf("bucketFor(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestPresignExpireDefault(t *testing.T) {
	s := &S3{cfg: S3Config{PresignExpireMinutes: 0}}
	if got := s.presignExpire(); got != 15*time.Minute {
		t.Errorf("presignExpire() = %v, want 15m default", got)
	}
}

func TestPresignExpireConfigured(t *testing.T) {
	s := &S3{cfg: S3Config{PresignExpireMinutes: 30}}
	if got := s.presignExpire(); got != 30*time.Minute {
		t.Errorf("presignExpire() = %v, want 30m", got)
	}
}
