package models

import "time"

// Provider identifies a storage backend implementation.
type Provider string

const (
	ProviderLocal     Provider = "local"
	ProviderS3        Provider = "s3"
	ProviderCloudDisk Provider = "cloud_disk"
)

// StorageConnection is a configured instance of a storage provider with its
// credentials and base path. Credentials are opaque to the repository layer;
// only the storage package interprets them.
type StorageConnection struct {
	ID            int64
	Name          string
	Provider      Provider
	Credentials   map[string]string // decrypted; never logged or returned over the wire
	BasePath      string
	IsDefault     bool
	IsActive      bool
	LastTestedAt  *time.Time
	TestStatus    string // "", "ok", "broken"
	TestError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TestResult is the outcome of StorageConnection.TestConnection.
type TestResult struct {
	OK        bool
	LatencyMS int64
	Err       string
}

// Entry is one item returned by a provider List call.
type Entry struct {
	Key     string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Usage reports space consumption for a storage path.
type Usage struct {
	UsedBytes  int64
	QuotaBytes *int64 // nil when the provider cannot report a quota
}
