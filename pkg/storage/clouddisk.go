package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
)

// CloudDiskConfig configures the OAuth-authenticated cloud-disk backend.
type CloudDiskConfig struct {
	APIBaseURL string // e.g. https://cloud-disk.example.com/v1
	BasePath   string // root folder this connection is scoped to
}

// TokenSource supplies a fresh bearer access token, refreshing via C2 (the
// credential store) when needed. Implemented by internal/credentials.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// CloudDisk is the OAuth-authenticated cloud-disk provider. Upload uses a
// two-step "request upload href, PUT bytes" flow; URLs it returns for
// overlays are ephemeral (minutes to hours) per spec.md §4.1, so Ephemeral()
// is true and C6 must re-resolve on every read.
type CloudDisk struct {
	cfg    CloudDiskConfig
	tokens TokenSource
	http   *http.Client
	logger *zap.Logger
}

// NewCloudDisk creates a cloud-disk provider. tokens supplies bearer tokens
// refreshed out-of-band by the credential store's refresher loop.
func NewCloudDisk(cfg CloudDiskConfig, tokens TokenSource, logger *zap.Logger) *CloudDisk {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudDisk{
		cfg:    cfg,
		tokens: tokens,
		http:   &http.Client{Timeout: DefaultUploadTimeout},
		logger: logger,
	}
}

func (c *CloudDisk) path(key string) string {
	return strings.TrimRight(c.cfg.BasePath, "/") + "/" + strings.TrimLeft(key, "/")
}

func (c *CloudDisk) authedRequest(ctx context.Context, method, urlStr string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, err
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindCredentialExpired, "obtain access token", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// TestConnection performs a lightweight authenticated listing of the root.
func (c *CloudDisk) TestConnection(ctx context.Context) models.TestResult {
	start := time.Now()
	u := fmt.Sprintf("%s/resources?path=%s", c.cfg.APIBaseURL, url.QueryEscape(c.cfg.BasePath))
	req, err := c.authedRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.TestResult{OK: false, Err: err.Error()}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return models.TestResult{OK: false, Err: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return models.TestResult{OK: false, Err: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return models.TestResult{OK: true, LatencyMS: time.Since(start).Milliseconds()}
}

type uploadHrefResponse struct {
	Href   string `json:"href"`
	Method string `json:"method"`
}

// Upload performs the two-step href+PUT flow: request an upload href for
// destKey, then stream body to it directly.
func (c *CloudDisk) Upload(ctx context.Context, destKey string, body io.Reader, size int64, contentType string) (string, error) {
	href, method, err := c.requestUploadHref(ctx, destKey)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, method, href, body)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindTransientStorage, "build upload request", err)
	}
	if size > 0 {
		req.ContentLength = size
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindTransientStorage, "put object bytes", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", apierrors.Wrap(apierrors.KindTransientStorage, "put object bytes", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return "", apierrors.Wrap(apierrors.KindPermanentStorage, "put object bytes", fmt.Errorf("status %d", resp.StatusCode))
	}
	return c.ResolveURL(ctx, destKey)
}

// requestUploadHref is step one of the two-step upload: ask the provider
// where to PUT bytes for destKey.
func (c *CloudDisk) requestUploadHref(ctx context.Context, destKey string) (href, method string, err error) {
	u := fmt.Sprintf("%s/upload/request?path=%s", c.cfg.APIBaseURL, url.QueryEscape(c.path(destKey)))
	req, err := c.authedRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", apierrors.Wrap(apierrors.KindTransientStorage, "request upload href", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", "", apierrors.Wrap(apierrors.KindPermanentStorage, "request upload href", fmt.Errorf("status %d", resp.StatusCode))
	}
	var out uploadHrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", apierrors.Wrap(apierrors.KindPermanentStorage, "decode upload href", err)
	}
	if out.Method == "" {
		out.Method = http.MethodPut
	}
	return out.Href, out.Method, nil
}

// Download fetches an ephemeral download href then streams it to localPath.
func (c *CloudDisk) Download(ctx context.Context, srcKey string, localPath string) error {
	downloadURL, err := c.ResolveURL(ctx, srcKey)
	if err != nil {
		return err
	}
	resp, err := c.http.Get(downloadURL)
	if err != nil {
		return apierrors.Wrap(apierrors.KindTransientStorage, "download object", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "download object", fmt.Errorf("status %d", resp.StatusCode))
	}
	f, err := os.Create(localPath)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "create local file", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return apierrors.Wrap(apierrors.KindTransientStorage, "copy object body", err)
	}
	return nil
}

// Delete removes the object at key.
func (c *CloudDisk) Delete(ctx context.Context, key string) error {
	u := fmt.Sprintf("%s/resources?path=%s", c.cfg.APIBaseURL, url.QueryEscape(c.path(key)))
	req, err := c.authedRequest(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apierrors.Wrap(apierrors.KindTransientStorage, "delete object", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "delete object", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

type resourceListResponse struct {
	Items []struct {
		Path     string `json:"path"`
		Type     string `json:"type"` // "dir" or "file"
		Size     int64  `json:"size"`
		Modified string `json:"modified"`
	} `json:"items"`
}

// List returns entries under folder. When called for the folder picker the
// caller filters to IsDir entries; this provider always returns both.
func (c *CloudDisk) List(ctx context.Context, folder string, recursive bool) ([]models.Entry, error) {
	u := fmt.Sprintf("%s/resources?path=%s", c.cfg.APIBaseURL, url.QueryEscape(c.path(folder)))
	req, err := c.authedRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindTransientStorage, "list resources", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list resources", fmt.Errorf("status %d", resp.StatusCode))
	}
	var out resourceListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "decode resource list", err)
	}
	entries := make([]models.Entry, 0, len(out.Items))
	for _, it := range out.Items {
		if !recursive && it.Type == "dir" && strings.Count(strings.Trim(it.Path, "/"), "/") > strings.Count(strings.Trim(folder, "/"), "/")+1 {
			continue
		}
		mod, _ := time.Parse(time.RFC3339, it.Modified)
		entries = append(entries, models.Entry{Key: it.Path, IsDir: it.Type == "dir", Size: it.Size, ModTime: mod})
	}
	return entries, nil
}

// CreateFolder creates path (and implicitly its parents, per the provider's
// own semantics) under this connection's scope.
func (c *CloudDisk) CreateFolder(ctx context.Context, path string) error {
	u := fmt.Sprintf("%s/resources?path=%s", c.cfg.APIBaseURL, url.QueryEscape(c.path(path)))
	req, err := c.authedRequest(ctx, http.MethodPut, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apierrors.Wrap(apierrors.KindTransientStorage, "create folder", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusConflict {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "create folder", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

type usageResponse struct {
	UsedBytes  int64  `json:"used_bytes"`
	QuotaBytes *int64 `json:"quota_bytes,omitempty"`
}

// Usage queries the account-level quota/usage endpoint.
func (c *CloudDisk) Usage(ctx context.Context, path string) (models.Usage, error) {
	u := fmt.Sprintf("%s/disk", c.cfg.APIBaseURL)
	req, err := c.authedRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.Usage{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return models.Usage{}, apierrors.Wrap(apierrors.KindTransientStorage, "query usage", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return models.Usage{}, apierrors.Wrap(apierrors.KindPermanentStorage, "query usage", fmt.Errorf("status %d", resp.StatusCode))
	}
	var out usageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Usage{}, apierrors.Wrap(apierrors.KindPermanentStorage, "decode usage", err)
	}
	return models.Usage{UsedBytes: out.UsedBytes, QuotaBytes: out.QuotaBytes}, nil
}

type downloadHrefResponse struct {
	Href string `json:"href"`
}

// ResolveURL requests a fresh, short-lived download href. Never cache the
// result — spec.md requires callers re-resolve on demand.
func (c *CloudDisk) ResolveURL(ctx context.Context, key string) (string, error) {
	u := fmt.Sprintf("%s/resources/download?path=%s", c.cfg.APIBaseURL, url.QueryEscape(c.path(key)))
	req, err := c.authedRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindTransientStorage, "request download href", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", apierrors.Wrap(apierrors.KindPermanentStorage, "request download href", fmt.Errorf("status %d", resp.StatusCode))
	}
	var out downloadHrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apierrors.Wrap(apierrors.KindPermanentStorage, "decode download href", err)
	}
	return out.Href, nil
}

// Ephemeral is true: cloud-disk URLs last minutes to hours and must not be
// persisted as durable references.
func (c *CloudDisk) Ephemeral() bool { return true }

// OAuth2Config builds an oauth2.Config for the authorization-code flow used
// by the /oauth/{provider}/callback endpoint, grounded on the identity
// provider flow pattern (oauth2.Config + Exchange), generalized from login
// to storage-provider authorization.
func OAuth2Config(clientID, clientSecret, authURL, tokenURL, redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
}
