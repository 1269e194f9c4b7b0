package storage

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
)

// S3Config holds S3-compatible client configuration. Endpoint is optional;
// when set the client targets a non-AWS S3-compatible store (e.g. MinIO).
// Buckets are per-purpose, per spec.md §4.1 ("bucket per purpose").
type S3Config struct {
	Endpoint             string
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	UseTLS               bool
	MarkersBucket        string
	VideosBucket         string
	ThumbnailsBucket     string
	ContentBucket        string
	PresignExpireMinutes int
}

// S3 is the S3-compatible storage provider. Private objects (markers,
// videos) are served via presigned URLs with a fixed expiry; it does not
// mint ephemeral URLs the way the cloud-disk provider does, so Ephemeral()
// is false — callers may cache S3 URLs for the presign window.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client and ensures required buckets exist.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "load aws config", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	p := &S3{client: client, uploader: uploader, cfg: cfg, logger: logger}
	for _, b := range p.buckets() {
		if b == "" {
			continue
		}
		if err := p.ensureBucket(ctx, b); err != nil {
			logger.Warn("ensure bucket failed", zap.String("bucket", b), zap.Error(err))
		}
	}
	return p, nil
}

func (s *S3) buckets() []string {
	return []string{s.cfg.MarkersBucket, s.cfg.VideosBucket, s.cfg.ThumbnailsBucket, s.cfg.ContentBucket}
}

func (s *S3) ensureBucket(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	return err
}

// bucketFor maps the leading folder segment of a key (markers/videos/
// thumbnails/content) onto its dedicated bucket, per spec.md's
// bucket-per-purpose design.
func (s *S3) bucketFor(key string) string {
	switch {
	case strings.HasPrefix(key, FolderMarkers+"/"):
		return s.cfg.MarkersBucket
	case strings.HasPrefix(key, FolderVideos+"/"):
		return s.cfg.VideosBucket
	case strings.HasPrefix(key, FolderThumbnails+"/"):
		return s.cfg.ThumbnailsBucket
	default:
		return s.cfg.ContentBucket
	}
}

func (s *S3) presignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// TestConnection checks that every configured bucket is reachable.
func (s *S3) TestConnection(ctx context.Context) models.TestResult {
	start := time.Now()
	for _, b := range s.buckets() {
		if b == "" {
			continue
		}
		if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b)}); err != nil {
			return models.TestResult{OK: false, Err: err.Error()}
		}
	}
	return models.TestResult{OK: true, LatencyMS: time.Since(start).Milliseconds()}
}

// Upload streams body to the bucket matching destKey's folder prefix.
func (s *S3) Upload(ctx context.Context, destKey string, body io.Reader, size int64, contentType string) (string, error) {
	bucket := s.bucketFor(destKey)
	var contentLength *int64
	if size > 0 {
		contentLength = &size
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(destKey),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLength,
	})
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindTransientStorage, "s3 upload", err)
	}
	return s.presignedURL(ctx, bucket, destKey, s.presignExpire())
}

func (s *S3) presignedURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	presign := s3.NewPresignClient(s.client)
	req, err := presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = expires })
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindTransientStorage, "presign get", err)
	}
	return req.URL, nil
}

// Download retrieves srcKey and writes it to localPath.
func (s *S3) Download(ctx context.Context, srcKey string, localPath string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketFor(srcKey)),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		return apierrors.Wrap(apierrors.KindTransientStorage, "s3 get object", err)
	}
	defer out.Body.Close()
	f, err := os.Create(localPath)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "create local file", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, out.Body); err != nil {
		return apierrors.Wrap(apierrors.KindTransientStorage, "copy object body", err)
	}
	return nil
}

// Delete removes the object at key.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketFor(key)),
		Key:    aws.String(key),
	})
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "s3 delete object", err)
	}
	return nil
}

// List returns objects under folder (S3 has no real directories; recursive
// controls whether "/" delimiter is applied).
func (s *S3) List(ctx context.Context, folder string, recursive bool) ([]models.Entry, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketFor(folder + "/")),
		Prefix: aws.String(folder),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}
	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindTransientStorage, "s3 list objects", err)
	}
	var entries []models.Entry
	for _, p := range out.CommonPrefixes {
		entries = append(entries, models.Entry{Key: aws.ToString(p.Prefix), IsDir: true})
	}
	for _, o := range out.Contents {
		entries = append(entries, models.Entry{
			Key:     aws.ToString(o.Key),
			Size:    aws.ToInt64(o.Size),
			ModTime: aws.ToTime(o.LastModified),
		})
	}
	return entries, nil
}

// CreateFolder is a no-op: S3 has no folder primitive, keys are flat.
func (s *S3) CreateFolder(ctx context.Context, path string) error { return nil }

// Usage lists objects under path and sums sizes; S3 reports no quota.
func (s *S3) Usage(ctx context.Context, path string) (models.Usage, error) {
	entries, err := s.List(ctx, path, true)
	if err != nil {
		return models.Usage{}, err
	}
	var used int64
	for _, e := range entries {
		used += e.Size
	}
	return models.Usage{UsedBytes: used}, nil
}

// ResolveURL mints a fresh presigned GET URL for key.
func (s *S3) ResolveURL(ctx context.Context, key string) (string, error) {
	return s.presignedURL(ctx, s.bucketFor(key), key, s.presignExpire())
}

// Ephemeral is false: presigned URLs last the configured window and callers
// may cache within it, unlike the cloud-disk provider's minutes-scale URLs.
func (s *S3) Ephemeral() bool { return false }
