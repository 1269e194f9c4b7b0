// Package resolution implements C6's public read path: the unauthenticated
// content-manifest and active-video endpoints consumed by AR viewers.
// Grounded on internal/webinars.Handler for the gin handler shape and
// internal/recordings.Handler's "optional dependency, nil disables a
// feature" pattern for the ephemeral-URL re-resolution call into C1.
package resolution

import (
	"context"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fegerV/arplatform/internal/companies"
	"github.com/fegerV/arplatform/internal/content"
	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/internal/projects"
	"github.com/fegerV/arplatform/pkg/apierrors"
	"github.com/fegerV/arplatform/pkg/response"
	"github.com/fegerV/arplatform/pkg/storage"
)

// viewerShell is the minimal HTML shell that loads a content manifest by
// unique_id and hands it to the AR scene runtime. No example repo in the
// source corpus serves server-rendered HTML, so this uses html/template
// directly (see DESIGN.md).
var viewerShell = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body data-unique-id="{{.UniqueID}}">
<script>window.AR_CONTENT_ENDPOINT = "/content/{{.UniqueID}}";</script>
</body>
</html>`))

// ProviderResolver resolves the storage.Provider backing a company's
// StorageConnection, shared shape with internal/marker.ProviderResolver.
type ProviderResolver func(ctx context.Context, companyID int64) (storage.Provider, error)

// Handler serves the public content-resolution endpoints.
type Handler struct {
	content  *content.Repository
	projects *projects.Repository
	company  *companies.Repository
	provider ProviderResolver
}

// NewHandler builds a resolution Handler.
func NewHandler(contentRepo *content.Repository, projectsRepo *projects.Repository, companyRepo *companies.Repository, provider ProviderResolver) *Handler {
	return &Handler{content: contentRepo, projects: projectsRepo, company: companyRepo, provider: provider}
}

// VideoEnvelope is the active-video payload embedded in a manifest.
type VideoEnvelope struct {
	URL             string `json:"url"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	DurationSeconds int    `json:"duration_seconds"`
	MimeType        string `json:"mime_type"`
}

// Manifest is the GET /content/{unique_id} response body.
type Manifest struct {
	UniqueID    uuid.UUID      `json:"unique_id"`
	Title       string         `json:"title"`
	MarkerURL   string         `json:"marker_url"`
	ActiveVideo *VideoEnvelope `json:"active_video,omitempty"`
	Company     string         `json:"company"`
	Project     string         `json:"project"`
}

// GetManifest handles GET /content/:unique_id.
func (h *Handler) GetManifest(c *gin.Context) {
	m, _, err := h.resolve(c.Request.Context(), c.Param("unique_id"))
	if err != nil {
		response.NotFound(c, "not_found")
		return
	}
	c.JSON(http.StatusOK, m)
}

// GetActiveVideo handles GET /content/:unique_id/active-video.
func (h *Handler) GetActiveVideo(c *gin.Context) {
	m, _, err := h.resolve(c.Request.Context(), c.Param("unique_id"))
	if err != nil {
		response.NotFound(c, "not_found")
		return
	}
	if m.ActiveVideo == nil {
		response.NotFound(c, "not_found")
		return
	}
	c.JSON(http.StatusOK, m.ActiveVideo)
}

// GetViewerShell handles GET /view/:unique_id, serving the HTML shell that
// bootstraps the AR scene; the scene itself fetches GET /content/:unique_id.
func (h *Handler) GetViewerShell(c *gin.Context) {
	m, _, err := h.resolve(c.Request.Context(), c.Param("unique_id"))
	if err != nil {
		c.String(http.StatusNotFound, "not found")
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	viewerShell.Execute(c.Writer, m)
}

// resolve implements the P8 gating rule: an ARContent is resolvable only
// if it exists, is_active is true, and its Project's status is active.
// Marker and video URLs are re-minted via ResolveURL for providers whose
// Ephemeral() is true, rather than trusting the cached *_url column.
func (h *Handler) resolve(ctx context.Context, uniqueIDStr string) (*Manifest, *models.ARContent, error) {
	uid, err := uuid.Parse(uniqueIDStr)
	if err != nil {
		return nil, nil, apierrors.New(apierrors.KindNotFound, "invalid unique id")
	}
	ar, err := h.content.GetByUniqueID(ctx, uid)
	if err != nil {
		return nil, nil, err
	}
	if !ar.IsActive {
		return nil, nil, apierrors.New(apierrors.KindNotFound, "ar content not active")
	}
	project, err := h.projects.Get(ctx, ar.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if project.Status != models.ProjectStatusActive {
		return nil, nil, apierrors.New(apierrors.KindNotFound, "project not active")
	}

	company, err := h.company.Get(ctx, ar.CompanyID)
	if err != nil {
		return nil, nil, err
	}
	prov, err := h.provider(ctx, company.ID)
	if err != nil {
		return nil, nil, err
	}

	markerURL := ar.MarkerURL
	if prov.Ephemeral() && ar.MarkerPath != "" {
		if fresh, err := prov.ResolveURL(ctx, ar.MarkerPath); err == nil {
			markerURL = fresh
		}
	}

	m := &Manifest{
		UniqueID:  ar.UniqueID,
		Title:     ar.Title,
		MarkerURL: markerURL,
		Company:   company.Name,
		Project:   project.Name,
	}

	if ar.ActiveVideoID != nil {
		video, err := h.content.GetVideo(ctx, *ar.ActiveVideoID)
		if err == nil {
			videoURL := video.VideoURL
			if prov.Ephemeral() && video.VideoPath != "" {
				if fresh, err := prov.ResolveURL(ctx, video.VideoPath); err == nil {
					videoURL = fresh
				}
			}
			m.ActiveVideo = &VideoEnvelope{
				URL:             videoURL,
				Width:           video.Width,
				Height:          video.Height,
				DurationSeconds: video.DurationSec,
				MimeType:        video.MimeType,
			}
		}
	}

	return m, ar, nil
}
