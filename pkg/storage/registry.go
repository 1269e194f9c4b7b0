package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
)

// LocalConfig holds the defaults applied to every local StorageConnection;
// per-connection BasePath is joined onto RootDir.
type LocalConfig struct {
	RootDir       string
	PublicBaseURL string
}

// Factory builds a Provider from a StorageConnection's stored fields and
// decrypted credentials. It holds the host-wide local defaults (root dir,
// public base URL) that per-connection BasePath is joined onto. S3
// settings come only from StorageConnection.Credentials, with the presign
// window fixed at 15 minutes.
type Factory struct {
	local  LocalConfig
	tokens func(connectionID int64) TokenSource
	logger *zap.Logger
}

// NewFactory builds a provider Factory. tokens resolves a TokenSource for a
// given cloud-disk connection, backed by the credential store's refresher.
func NewFactory(local LocalConfig, tokens func(connectionID int64) TokenSource, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{local: local, tokens: tokens, logger: logger}
}

// Build constructs the Provider implementation named by conn.Provider.
func (f *Factory) Build(ctx context.Context, conn models.StorageConnection) (Provider, error) {
	switch conn.Provider {
	case models.ProviderLocal:
		root := f.local.RootDir
		if conn.BasePath != "" {
			root = root + "/" + conn.BasePath
		}
		return NewLocal(root, f.local.PublicBaseURL, f.logger), nil

	case models.ProviderS3:
		cfg := S3Config{
			Endpoint:             conn.Credentials["endpoint"],
			Region:               conn.Credentials["region"],
			AccessKeyID:          conn.Credentials["access_key_id"],
			SecretAccessKey:      conn.Credentials["secret_access_key"],
			MarkersBucket:        bucketOr(conn, "markers_bucket", FolderMarkers),
			VideosBucket:         bucketOr(conn, "videos_bucket", FolderVideos),
			ThumbnailsBucket:     bucketOr(conn, "thumbnails_bucket", FolderThumbnails),
			ContentBucket:        bucketOr(conn, "content_bucket", FolderContent),
			PresignExpireMinutes: 15,
		}
		return NewS3(ctx, cfg, f.logger)

	case models.ProviderCloudDisk:
		if f.tokens == nil {
			return nil, apierrors.New(apierrors.KindInvariant, "cloud disk provider requested without a credential store")
		}
		ts := f.tokens(conn.ID)
		if ts == nil {
			return nil, apierrors.New(apierrors.KindCredentialExpired, "no credentials on file for this connection")
		}
		cfg := CloudDiskConfig{
			APIBaseURL: conn.Credentials["api_base_url"],
			BasePath:   conn.BasePath,
		}
		return NewCloudDisk(cfg, ts, f.logger), nil

	default:
		return nil, apierrors.New(apierrors.KindInput, fmt.Sprintf("unknown storage provider %q", conn.Provider))
	}
}

func bucketOr(conn models.StorageConnection, key, fallback string) string {
	if v, ok := conn.Credentials[key]; ok && v != "" {
		return v
	}
	return fallback
}
