// Package storage implements C1: a uniform capability interface over the
// Local, S3-compatible, and OAuth cloud-disk backends, per spec.md §4.1.
// Callers depend only on Provider; backend selection happens once, at
// StorageConnection construction time (see registry.go).
package storage

import (
	"context"
	"io"
	"time"

	"github.com/fegerV/arplatform/internal/models"
)

// FolderMarkers, FolderVideos, FolderThumbnails, FolderContent are the
// subfolders created under a Company's storage_path at onboarding
// (spec.md §4.1 "Folder semantics for company onboarding").
const (
	FolderMarkers    = "markers"
	FolderVideos     = "videos"
	FolderThumbnails = "thumbnails"
	FolderContent    = "content"
)

// OnboardingFolders lists every folder created for a new company.
var OnboardingFolders = []string{FolderMarkers, FolderVideos, FolderThumbnails, FolderContent}

// Provider is the capability interface every storage backend implements.
// No runtime reflection or duck typing: each backend is a concrete tagged
// type satisfying this interface (spec.md §9 "Dynamic dispatch over
// provider duck types").
type Provider interface {
	// TestConnection verifies reachability and credentials.
	TestConnection(ctx context.Context) models.TestResult

	// Upload streams body (size bytes, may be -1 if unknown) to destKey and
	// returns a URL for the stored object. For ephemeral-URL backends
	// (cloud disk) the URL is valid only briefly; callers must not persist
	// it as a durable reference — see Ephemeral().
	Upload(ctx context.Context, destKey string, body io.Reader, size int64, contentType string) (url string, err error)

	// Download retrieves srcKey and writes it to localPath.
	Download(ctx context.Context, srcKey string, localPath string) error

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns entries under folder. If recursive is false only the
	// immediate children are returned.
	List(ctx context.Context, folder string, recursive bool) ([]models.Entry, error)

	// CreateFolder creates folder (and parents) if the backend has a
	// concept of folders; a no-op for providers that are flat key spaces.
	CreateFolder(ctx context.Context, path string) error

	// Usage reports storage consumption rooted at path.
	Usage(ctx context.Context, path string) (models.Usage, error)

	// ResolveURL re-mints a durable or ephemeral URL for an already-stored
	// key, used by C6 at read time instead of trusting a cached URL.
	ResolveURL(ctx context.Context, key string) (string, error)

	// Ephemeral reports whether URLs from this provider expire and must be
	// re-resolved on every read rather than cached (spec.md §4.1 "URL
	// materialization").
	Ephemeral() bool
}

// DefaultUploadTimeout bounds a single upload/download call when the caller
// supplies no deadline of its own.
const DefaultUploadTimeout = 60 * time.Second
