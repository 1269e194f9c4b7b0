package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/fegerV/arplatform/pkg/apierrors"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	return NewLocal(t.TempDir(), "http://localhost:8080/files", zap.NewNop())
}

func TestLocalUploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	body := []byte("marker source bytes")
	url, err := l.Upload(ctx, "content/1.png", bytes.NewReader(body), int64(len(body)), "image/png")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if want := "http://localhost:8080/files/content/1.png"; url != want {
		t.Errorf("Upload() url = %q, want %q", url, want)
	}

	dst := filepath.Join(t.TempDir(), "downloaded.png")
	if err := l.Download(ctx, "content/1.png", dst); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("downloaded content = %q, want %q", got, body)
	}
}

func TestLocalDownloadMissingKeyIsNotFound(t *testing.T) {
	l := newTestLocal(t)
	err := l.Download(context.Background(), "content/missing.png", filepath.Join(t.TempDir(), "out.png"))
	if err == nil {
		t.Fatal("expected an error for a missing source key")
	}
	if !apierrors.Is(err, apierrors.KindNotFound) {
		t.Errorf("Download() error kind = %v, want %v", apierrors.KindOf(err), apierrors.KindNotFound)
	}
}

func TestLocalDeleteMissingKeyIsNotAnError(t *testing.T) {
	l := newTestLocal(t)
	if err := l.Delete(context.Background(), "content/never-existed.png"); err != nil {
		t.Errorf("Delete() of a missing key returned an error: %v", err)
	}
}

func TestLocalUsageSumsUploadedBytes(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	a := []byte("aaaaa")
	b := []byte("bbbbbbbbbb")
	if _, err := l.Upload(ctx, "videos/1.mp4", bytes.NewReader(a), int64(len(a)), "video/mp4"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := l.Upload(ctx, "videos/2.mp4", bytes.NewReader(b), int64(len(b)), "video/mp4"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	usage, err := l.Usage(ctx, "videos")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if want := int64(len(a) + len(b)); usage.UsedBytes != want {
		t.Errorf("Usage().UsedBytes = %d, want %d", usage.UsedBytes, want)
	}
}

func TestLocalEphemeralIsAlwaysFalse(t *testing.T) {
	l := newTestLocal(t)
	if l.Ephemeral() {
		t.Error("Local.Ephemeral() = true, want false")
	}
}
