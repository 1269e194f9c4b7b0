package admin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fegerV/arplatform/internal/companies"
	"github.com/fegerV/arplatform/internal/content"
	"github.com/fegerV/arplatform/pkg/queue"
	"github.com/fegerV/arplatform/pkg/response"
	"github.com/fegerV/arplatform/pkg/storage"
)

// ProviderResolver resolves the storage.Provider backing a company's
// StorageConnection, the same narrow shape used by internal/marker and
// internal/resolution.
type ProviderResolver func(ctx context.Context, companyID int64) (storage.Provider, error)

// ContentHandler serves the ARContent and Video admin surface.
type ContentHandler struct {
	content  *content.Repository
	company  *companies.Repository
	provider ProviderResolver
	queue    *queue.Queue
}

// NewContentHandler builds a ContentHandler.
func NewContentHandler(contentRepo *content.Repository, companyRepo *companies.Repository, provider ProviderResolver, q *queue.Queue) *ContentHandler {
	return &ContentHandler{content: contentRepo, company: companyRepo, provider: provider, queue: q}
}

// CreateARContentRequest is the multipart form for POST
// /admin/companies/:company_id/projects/:project_id/content: a "title" field and an "image"
// file field holding the marker source image.
type CreateARContentRequest struct {
	Title string `form:"title" binding:"required"`
}

// Create handles POST /admin/companies/:company_id/projects/:project_id/content. It uploads the
// marker source image through C1, inserts the ARContent row, and enqueues
// a compile_marker job (C4) to generate the .mind artifact.
func (h *ContentHandler) Create(c *gin.Context) {
	projectID, err := parseID(c, "project_id")
	if err != nil {
		response.BadRequest(c, "invalid project_id")
		return
	}
	var req CreateARContentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	fileHeader, err := c.FormFile("image")
	if err != nil {
		response.BadRequest(c, "image file required")
		return
	}

	companyIDStr := c.Param("company_id")
	companyID, err := strconv.ParseInt(companyIDStr, 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid company_id")
		return
	}
	company, err := h.company.Get(c.Request.Context(), companyID)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	prov, err := h.provider(c.Request.Context(), company.ID)
	if err != nil {
		response.Internal(c, "failed to resolve storage provider")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer f.Close()

	ar, err := h.content.Create(c.Request.Context(), projectID, company.ID, req.Title, "")
	if err != nil {
		response.Internal(c, "failed to create ar content")
		return
	}

	destKey := fmt.Sprintf("%s/%s/%d%s", company.StoragePath, storage.FolderContent, ar.ID, extOf(fileHeader.Filename))
	url, err := prov.Upload(c.Request.Context(), destKey, f, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		response.Internal(c, "failed to upload marker source image")
		return
	}
	if err := h.content.SetImageURL(c.Request.Context(), ar.ID, url); err != nil {
		response.Internal(c, "failed to record image url")
		return
	}

	if err := h.queue.Enqueue(c.Request.Context(), queue.JobKindCompileMarker, queue.CompileMarkerPayload{
		ARContentID: ar.ID,
		UniqueID:    ar.UniqueID,
		ImagePath:   destKey,
	}); err != nil {
		response.Internal(c, "failed to enqueue marker compile job")
		return
	}

	response.Created(c, ar)
}

func extOf(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[i:]
		}
	}
	return ""
}

// Get handles GET /admin/content/:id.
func (h *ContentHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	ar, err := h.content.GetByID(c.Request.Context(), id)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	response.OK(c, ar)
}

// ListByProject handles GET /admin/projects/:project_id/content.
func (h *ContentHandler) ListByProject(c *gin.Context) {
	projectID, err := parseID(c, "project_id")
	if err != nil {
		response.BadRequest(c, "invalid project_id")
		return
	}
	list, err := h.content.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		response.Internal(c, "failed to list ar content")
		return
	}
	response.OK(c, list)
}

// SetActiveRequest is the body for PATCH /admin/content/:id/active.
type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// SetActive handles PATCH /admin/content/:id/active.
func (h *ContentHandler) SetActive(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.content.SetIsActive(c.Request.Context(), id, req.IsActive); err != nil {
		writeRepoError(c, err)
		return
	}
	response.NoContent(c)
}

// AddVideoRequest is the multipart form for POST
// /admin/content/:id/videos: a "title" field, optional "rotation_order",
// and a "video" file field.
type AddVideoRequest struct {
	Title         string `form:"title" binding:"required"`
	RotationOrder int    `form:"rotation_order"`
	Width         int    `form:"width"`
	Height        int    `form:"height"`
	DurationSec   int    `form:"duration_seconds"`
}

// AddVideo handles POST /admin/content/:id/videos. Uploads the overlay
// video through C1 and inserts an initially-inactive Video row; activating
// it is a separate call through SetActiveVideo (preserves I1/I2).
func (h *ContentHandler) AddVideo(c *gin.Context) {
	arID, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	var req AddVideoRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	fileHeader, err := c.FormFile("video")
	if err != nil {
		response.BadRequest(c, "video file required")
		return
	}

	ar, err := h.content.GetByID(c.Request.Context(), arID)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	company, err := h.company.Get(c.Request.Context(), ar.CompanyID)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	prov, err := h.provider(c.Request.Context(), company.ID)
	if err != nil {
		response.Internal(c, "failed to resolve storage provider")
		return
	}

	video, err := h.content.AddVideo(c.Request.Context(), arID, req.Title, "", req.DurationSec, req.Width, req.Height, fileHeader.Header.Get("Content-Type"), req.RotationOrder)
	if err != nil {
		response.Internal(c, "failed to create video")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer f.Close()

	destKey := fmt.Sprintf("%s/%s/%d%s", company.StoragePath, storage.FolderVideos, video.ID, extOf(fileHeader.Filename))
	url, err := prov.Upload(c.Request.Context(), destKey, f, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		response.Internal(c, "failed to upload video")
		return
	}
	if err := h.content.SetVideoURL(c.Request.Context(), video.ID, url); err != nil {
		response.Internal(c, "failed to record video url")
		return
	}

	response.Created(c, video)
}

// ListVideos handles GET /admin/content/:id/videos.
func (h *ContentHandler) ListVideos(c *gin.Context) {
	arID, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	list, err := h.content.ListVideosByContent(c.Request.Context(), arID)
	if err != nil {
		response.Internal(c, "failed to list videos")
		return
	}
	response.OK(c, list)
}

// ActivateVideoRequest is the body for POST /admin/content/:id/active-video.
type ActivateVideoRequest struct {
	VideoID int64 `json:"video_id" binding:"required"`
}

// ActivateVideo handles POST /admin/content/:id/active-video, the
// I1/I2-preserving write path through content.Repository.SetActiveVideo.
func (h *ContentHandler) ActivateVideo(c *gin.Context) {
	arID, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	var req ActivateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.content.SetActiveVideo(c.Request.Context(), arID, req.VideoID); err != nil {
		writeRepoError(c, err)
		return
	}
	response.NoContent(c)
}
