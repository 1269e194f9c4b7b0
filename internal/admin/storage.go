package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/fegerV/arplatform/internal/credentials"
	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/response"
	"github.com/fegerV/arplatform/pkg/storage"
)

// StorageHandler serves the StorageConnections admin surface.
type StorageHandler struct {
	conns   *credentials.Repository
	factory *storage.Factory
}

// NewStorageHandler builds a StorageHandler.
func NewStorageHandler(connRepo *credentials.Repository, factory *storage.Factory) *StorageHandler {
	return &StorageHandler{conns: connRepo, factory: factory}
}

// CreateConnectionRequest is the body for POST /admin/storage-connections.
type CreateConnectionRequest struct {
	Name        string            `json:"name" binding:"required"`
	Provider    string            `json:"provider" binding:"required"`
	Credentials map[string]string `json:"credentials"`
	BasePath    string            `json:"base_path"`
	IsDefault   bool              `json:"is_default"`
}

// Create handles POST /admin/storage-connections. Credentials are sealed
// at rest by credentials.Repository before the row is written.
func (h *StorageHandler) Create(c *gin.Context) {
	var req CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	conn, err := h.conns.Create(c.Request.Context(), models.StorageConnection{
		Name:        req.Name,
		Provider:    models.Provider(req.Provider),
		Credentials: req.Credentials,
		BasePath:    req.BasePath,
		IsDefault:   req.IsDefault,
		IsActive:    true,
	})
	if err != nil {
		response.Internal(c, "failed to create storage connection")
		return
	}
	conn.Credentials = nil // never echo credentials back over the wire
	response.Created(c, conn)
}

// List handles GET /admin/storage-connections.
func (h *StorageHandler) List(c *gin.Context) {
	list, err := h.conns.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list storage connections")
		return
	}
	for i := range list {
		list[i].Credentials = nil
	}
	response.OK(c, list)
}

// Get handles GET /admin/storage-connections/:id.
func (h *StorageHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	conn, err := h.conns.Get(c.Request.Context(), id)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	conn.Credentials = nil
	response.OK(c, conn)
}

// TestConnection handles POST /admin/storage-connections/:id/test, running
// the provider's TestConnection and persisting the result.
func (h *StorageHandler) TestConnection(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	conn, err := h.conns.Get(c.Request.Context(), id)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	prov, err := h.factory.Build(c.Request.Context(), *conn)
	if err != nil {
		response.Internal(c, "failed to build storage provider")
		return
	}
	result := prov.TestConnection(c.Request.Context())
	if err := h.conns.UpdateTestResult(c.Request.Context(), id, result); err != nil {
		response.Internal(c, "failed to record test result")
		return
	}
	response.OK(c, result)
}
