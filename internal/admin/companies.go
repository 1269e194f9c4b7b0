// Package admin implements C6's write path: CRUD handlers for Companies,
// Projects, ARContent, Videos, StorageConnections, and
// VideoRotationSchedules, grounded on internal/webinars.Handler's gin
// handler shape (ShouldBindJSON -> repo call -> response.*).
package admin

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fegerV/arplatform/internal/companies"
	"github.com/fegerV/arplatform/internal/credentials"
	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
	"github.com/fegerV/arplatform/pkg/response"
	"github.com/fegerV/arplatform/pkg/storage"
)

// CompanyHandler serves the Companies admin surface.
type CompanyHandler struct {
	companies *companies.Repository
	conns     *credentials.Repository
	factory   *storage.Factory
}

// NewCompanyHandler builds a CompanyHandler.
func NewCompanyHandler(companyRepo *companies.Repository, connRepo *credentials.Repository, factory *storage.Factory) *CompanyHandler {
	return &CompanyHandler{companies: companyRepo, conns: connRepo, factory: factory}
}

// CreateCompanyRequest is the body for POST /admin/companies. Slug is
// derived server-side from Name (see companies.Slugify) rather than
// accepted from the caller.
type CreateCompanyRequest struct {
	Name                string `json:"name" binding:"required"`
	ContactEmail        string `json:"contact_email" binding:"required,email"`
	StorageConnectionID int64  `json:"storage_connection_id" binding:"required"`
	StoragePath         string `json:"storage_path" binding:"required"`
	StorageQuotaBytes   int64  `json:"storage_quota_bytes"`
	SubscriptionTier    string `json:"subscription_tier"`
}

// Create handles POST /admin/companies.
func (h *CompanyHandler) Create(c *gin.Context) {
	var req CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	conn, err := h.conns.Get(c.Request.Context(), req.StorageConnectionID)
	if err != nil {
		response.BadRequest(c, "unknown storage_connection_id")
		return
	}
	if conn.IsDefault {
		writeRepoError(c, apierrors.New(apierrors.KindConflict, "client companies cannot be provisioned against the default storage connection"))
		return
	}
	prov, err := h.factory.Build(c.Request.Context(), *conn)
	if err != nil {
		response.Internal(c, "failed to build storage provider")
		return
	}

	slug, err := h.companies.UniqueSlug(c.Request.Context(), companies.Slugify(req.Name))
	if err != nil {
		response.Internal(c, "failed to derive company slug")
		return
	}

	tier := models.SubscriptionTier(req.SubscriptionTier)
	if tier == "" {
		tier = models.TierStandard
	}
	company, err := h.companies.Create(c.Request.Context(), companies.CreateParams{
		Name:                req.Name,
		Slug:                slug,
		ContactEmail:        req.ContactEmail,
		StorageConnectionID: req.StorageConnectionID,
		StoragePath:         req.StoragePath,
		StorageQuotaBytes:   req.StorageQuotaBytes,
		SubscriptionTier:    tier,
	}, prov)
	if err != nil {
		response.Internal(c, "failed to create company")
		return
	}
	response.Created(c, company)
}

// Get handles GET /admin/companies/:id.
func (h *CompanyHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	company, err := h.companies.Get(c.Request.Context(), id)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	response.OK(c, company)
}

// List handles GET /admin/companies.
func (h *CompanyHandler) List(c *gin.Context) {
	list, err := h.companies.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list companies")
		return
	}
	response.OK(c, list)
}

// Deactivate handles DELETE /admin/companies/:id (soft delete).
func (h *CompanyHandler) Deactivate(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	if err := h.companies.Deactivate(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to deactivate company")
		return
	}
	response.NoContent(c)
}

func writeRepoError(c *gin.Context, err error) {
	switch apierrors.KindOf(err) {
	case apierrors.KindNotFound:
		response.NotFound(c, "not found")
	case apierrors.KindInput:
		response.BadRequest(c, err.Error())
	case apierrors.KindConflict:
		response.Conflict(c, err.Error())
	default:
		response.Internal(c, "internal error")
	}
}

func parseID(c *gin.Context, param string) (int64, error) {
	return strconv.ParseInt(c.Param(param), 10, 64)
}
