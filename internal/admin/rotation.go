package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/internal/rotation"
	"github.com/fegerV/arplatform/pkg/response"
)

// RotationHandler serves the VideoRotationSchedules admin surface.
type RotationHandler struct {
	rotations *rotation.Repository
}

// NewRotationHandler builds a RotationHandler.
func NewRotationHandler(rotationsRepo *rotation.Repository) *RotationHandler {
	return &RotationHandler{rotations: rotationsRepo}
}

// UpsertScheduleRequest is the body for PUT
// /admin/content/:id/rotation-schedule.
type UpsertScheduleRequest struct {
	RotationType  string  `json:"rotation_type" binding:"required"`
	TimeOfDay     *string `json:"time_of_day"`
	DayOfWeek     *int    `json:"day_of_week"`
	DayOfMonth    *int    `json:"day_of_month"`
	VideoSequence []int64 `json:"video_sequence" binding:"required"`
	CurrentIndex  int     `json:"current_index"`
}

// Upsert handles PUT /admin/content/:id/rotation-schedule.
func (h *RotationHandler) Upsert(c *gin.Context) {
	arID, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	var req UpsertScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sched, err := h.rotations.Upsert(c.Request.Context(), models.VideoRotationSchedule{
		ARContentID:   arID,
		RotationType:  models.RotationType(req.RotationType),
		TimeOfDay:     req.TimeOfDay,
		DayOfWeek:     req.DayOfWeek,
		DayOfMonth:    req.DayOfMonth,
		VideoSequence: req.VideoSequence,
		CurrentIndex:  req.CurrentIndex,
	})
	if err != nil {
		writeRepoError(c, err)
		return
	}
	response.OK(c, sched)
}

// Get handles GET /admin/content/:id/rotation-schedule.
func (h *RotationHandler) Get(c *gin.Context) {
	arID, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	sched, err := h.rotations.GetByContent(c.Request.Context(), arID)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	response.OK(c, sched)
}
