package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
)

// Local is the filesystem-backed provider. Keys map 1:1 onto paths rooted
// at basePath; writes are atomic via tmp-file + rename, per spec.md §4.1.
type Local struct {
	basePath      string
	publicBaseURL string
	logger        *zap.Logger
}

// NewLocal creates a Local provider rooted at basePath, serving URLs under
// publicBaseURL. cmd/server registers no static file handler for that URL.
func NewLocal(basePath, publicBaseURL string, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{basePath: basePath, publicBaseURL: strings.TrimRight(publicBaseURL, "/"), logger: logger}
}

func (l *Local) resolve(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

// TestConnection checks that basePath exists and is writable.
func (l *Local) TestConnection(ctx context.Context) models.TestResult {
	start := time.Now()
	if err := os.MkdirAll(l.basePath, 0o755); err != nil {
		return models.TestResult{OK: false, Err: err.Error()}
	}
	probe := filepath.Join(l.basePath, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return models.TestResult{OK: false, Err: err.Error()}
	}
	_ = os.Remove(probe)
	return models.TestResult{OK: true, LatencyMS: time.Since(start).Milliseconds()}
}

// Upload writes body to destKey via a tmp file + rename for atomicity.
func (l *Local) Upload(ctx context.Context, destKey string, body io.Reader, size int64, contentType string) (string, error) {
	full := l.resolve(destKey)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", apierrors.Wrap(apierrors.KindPermanentStorage, "create destination directory", err)
	}
	tmp := full + ".tmp-" + fmt.Sprint(time.Now().UnixNano())
	f, err := os.Create(tmp)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindPermanentStorage, "create temp file", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", apierrors.Wrap(apierrors.KindTransientStorage, "write object", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", apierrors.Wrap(apierrors.KindTransientStorage, "close temp file", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return "", apierrors.Wrap(apierrors.KindPermanentStorage, "rename into place", err)
	}
	return l.urlFor(destKey), nil
}

func (l *Local) urlFor(key string) string {
	return l.publicBaseURL + "/" + strings.TrimLeft(filepath.ToSlash(key), "/")
}

// Download copies srcKey to localPath.
func (l *Local) Download(ctx context.Context, srcKey string, localPath string) error {
	src, err := os.Open(l.resolve(srcKey))
	if err != nil {
		if os.IsNotExist(err) {
			return apierrors.Wrap(apierrors.KindNotFound, "source object missing", err)
		}
		return apierrors.Wrap(apierrors.KindPermanentStorage, "open source object", err)
	}
	defer src.Close()
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "create local directory", err)
	}
	dst, err := os.Create(localPath)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "create local file", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return apierrors.Wrap(apierrors.KindTransientStorage, "copy object", err)
	}
	return nil
}

// Delete removes the object at key; a missing key is not an error.
func (l *Local) Delete(ctx context.Context, key string) error {
	if err := os.Remove(l.resolve(key)); err != nil && !os.IsNotExist(err) {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "delete object", err)
	}
	return nil
}

// List returns directory entries under folder.
func (l *Local) List(ctx context.Context, folder string, recursive bool) ([]models.Entry, error) {
	root := l.resolve(folder)
	var out []models.Entry
	walker := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if !recursive && strings.Contains(rel, string(filepath.Separator)) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		out = append(out, models.Entry{
			Key:     filepath.ToSlash(filepath.Join(folder, rel)),
			IsDir:   info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	}
	if err := filepath.Walk(root, walker); err != nil && !os.IsNotExist(err) {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list folder", err)
	}
	return out, nil
}

// CreateFolder recursively creates path.
func (l *Local) CreateFolder(ctx context.Context, path string) error {
	if err := os.MkdirAll(l.resolve(path), 0o755); err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "create folder", err)
	}
	return nil
}

// Usage walks path and sums file sizes; local storage has no quota concept.
func (l *Local) Usage(ctx context.Context, path string) (models.Usage, error) {
	var used int64
	root := l.resolve(path)
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			used += info.Size()
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return models.Usage{}, apierrors.Wrap(apierrors.KindPermanentStorage, "compute usage", err)
	}
	return models.Usage{UsedBytes: used}, nil
}

// ResolveURL returns the stable public URL for key; local URLs never expire.
func (l *Local) ResolveURL(ctx context.Context, key string) (string, error) {
	return l.urlFor(key), nil
}

// Ephemeral is always false for local storage.
func (l *Local) Ephemeral() bool { return false }
