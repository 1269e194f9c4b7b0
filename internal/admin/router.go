package admin

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fegerV/arplatform/internal/auth"
	"github.com/fegerV/arplatform/internal/credentials"
	"github.com/fegerV/arplatform/internal/middleware"
	"github.com/fegerV/arplatform/internal/realtime"
)

// Handlers bundles every admin sub-handler for route registration.
type Handlers struct {
	Auth      *auth.Handler
	Company   *CompanyHandler
	Project   *ProjectHandler
	Content   *ContentHandler
	Storage   *StorageHandler
	Rotation  *RotationHandler
	OAuthFlow *credentials.Flow
	Hub       *realtime.Hub
	JWT       *auth.JWTService
	Logger    *zap.Logger
}

// RegisterRoutes wires the admin API and the public resolution API's admin
// sibling (the notification stream) onto router.
func RegisterRoutes(router *gin.Engine, h *Handlers) {
	router.POST("/admin/auth/login", h.Auth.Login)

	// Authenticated via its own ?token= query param (ServeWs), not the
	// Authorization-header middleware below: browser WebSocket clients
	// cannot set arbitrary request headers on the upgrade request.
	router.GET("/admin/notifications/stream", realtime.ServeWs(h.Hub, h.JWT, h.Logger))

	admin := router.Group("/admin", middleware.JWT(h.JWT))

	admin.POST("/companies", h.Company.Create)
	admin.GET("/companies", h.Company.List)
	admin.GET("/companies/:id", h.Company.Get)
	admin.DELETE("/companies/:id", h.Company.Deactivate)

	admin.POST("/companies/:company_id/projects", h.Project.Create)
	admin.GET("/companies/:company_id/projects", h.Project.ListByCompany)
	admin.GET("/projects/:id", h.Project.Get)
	admin.POST("/projects/:id/expire", h.Project.Expire)

	admin.POST("/companies/:company_id/projects/:project_id/content", h.Content.Create)
	admin.GET("/projects/:project_id/content", h.Content.ListByProject)
	admin.GET("/content/:id", h.Content.Get)
	admin.PATCH("/content/:id/active", h.Content.SetActive)

	admin.POST("/content/:id/videos", h.Content.AddVideo)
	admin.GET("/content/:id/videos", h.Content.ListVideos)
	admin.POST("/content/:id/active-video", h.Content.ActivateVideo)

	admin.PUT("/content/:id/rotation-schedule", h.Rotation.Upsert)
	admin.GET("/content/:id/rotation-schedule", h.Rotation.Get)

	admin.POST("/storage-connections", h.Storage.Create)
	admin.GET("/storage-connections", h.Storage.List)
	admin.GET("/storage-connections/:id", h.Storage.Get)
	admin.POST("/storage-connections/:id/test", h.Storage.TestConnection)
	admin.POST("/storage-connections/oauth/authorize", h.OAuthFlow.Authorize)
}
