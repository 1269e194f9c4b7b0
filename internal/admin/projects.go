package admin

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fegerV/arplatform/internal/notifications"
	"github.com/fegerV/arplatform/internal/projects"
	"github.com/fegerV/arplatform/pkg/response"
)

// ProjectHandler serves the Projects admin surface.
type ProjectHandler struct {
	projects *projects.Repository
	notifier *notifications.Repository
}

// NewProjectHandler builds a ProjectHandler.
func NewProjectHandler(projectsRepo *projects.Repository, notifier *notifications.Repository) *ProjectHandler {
	return &ProjectHandler{projects: projectsRepo, notifier: notifier}
}

// CreateProjectRequest is the body for POST /admin/companies/:company_id/projects.
type CreateProjectRequest struct {
	Name                   string  `json:"name" binding:"required"`
	ExpiresAt              *string `json:"expires_at"`
	NotifyBeforeExpiryDays int     `json:"notify_before_expiry_days"`
}

// Create handles POST /admin/companies/:company_id/projects.
func (h *ProjectHandler) Create(c *gin.Context) {
	companyID, err := parseID(c, "company_id")
	if err != nil {
		response.BadRequest(c, "invalid company_id")
		return
	}
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	var expiresAt *time.Time
	if req.ExpiresAt != nil && *req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			response.BadRequest(c, "invalid expires_at")
			return
		}
		expiresAt = &t
	}
	notifyDays := req.NotifyBeforeExpiryDays
	if notifyDays <= 0 {
		notifyDays = 7
	}
	project, err := h.projects.Create(c.Request.Context(), companyID, req.Name, expiresAt, notifyDays)
	if err != nil {
		response.Internal(c, "failed to create project")
		return
	}
	response.Created(c, project)
}

// Get handles GET /admin/projects/:id.
func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	project, err := h.projects.Get(c.Request.Context(), id)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	response.OK(c, project)
}

// ListByCompany handles GET /admin/companies/:company_id/projects.
func (h *ProjectHandler) ListByCompany(c *gin.Context) {
	companyID, err := parseID(c, "company_id")
	if err != nil {
		response.BadRequest(c, "invalid company_id")
		return
	}
	list, err := h.projects.ListByCompany(c.Request.Context(), companyID)
	if err != nil {
		response.Internal(c, "failed to list projects")
		return
	}
	response.OK(c, list)
}

// Expire handles POST /admin/projects/:id/expire, an admin-triggered early
// expiry that reuses C3's transactional ExpireProject cascade (I3) instead
// of waiting for the scheduler to notice expires_at has passed.
func (h *ProjectHandler) Expire(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	project, err := h.projects.ExpireProject(c.Request.Context(), id, h.notifier)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	response.OK(c, project)
}
