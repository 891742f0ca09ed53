package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

// DashboardHandler serves the admin summary and the teacher's daily view.
type DashboardHandler struct {
	dashboard *service.DashboardService
	teachers  *service.TeacherService
	sessions  *service.SessionService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(dashboard *service.DashboardService, teachers *service.TeacherService, sessions *service.SessionService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, teachers: teachers, sessions: sessions}
}

// Summary godoc
// @Summary Admin dashboard summary
// @Description Aggregate roster and ledger totals
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
// @Security BearerAuth
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.dashboard.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// MySessions godoc
// @Summary Teacher's sessions today
// @Description List the authenticated teacher's class sessions for today
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard/my-sessions [get]
// @Security BearerAuth
func (h *DashboardHandler) MySessions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	teacher, err := h.teachers.GetByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	sessions, pagination, err := h.sessions.List(c.Request.Context(), models.SessionFilter{
		TeacherID: teacher.ID,
		Date:      &today,
		Page:      1,
		PageSize:  100,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}
