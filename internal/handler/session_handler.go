package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

// SessionHandler wires HTTP endpoints to the session and attendance services.
type SessionHandler struct {
	sessions   *service.SessionService
	attendance *service.AttendanceService
}

// NewSessionHandler creates a new handler.
func NewSessionHandler(sessions *service.SessionService, attendance *service.AttendanceService) *SessionHandler {
	return &SessionHandler{sessions: sessions, attendance: attendance}
}

// Create godoc
// @Summary Schedule class session
// @Description Schedule a class session for a teacher
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body models.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sessions [post]
// @Security BearerAuth
func (h *SessionHandler) Create(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Get godoc
// @Summary Get class session
// @Description Fetch a session with the owning teacher's name
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
// @Security BearerAuth
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// List godoc
// @Summary List class sessions
// @Description List sessions with optional teacher, date and course filters
// @Tags Sessions
// @Produce json
// @Param teacher_id query string false "Filter by teacher"
// @Param date query string false "Filter by date (YYYY-MM-DD)"
// @Param course query string false "Filter by course"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
// @Security BearerAuth
func (h *SessionHandler) List(c *gin.Context) {
	filter := models.SessionFilter{
		TeacherID: c.Query("teacher_id"),
		Course:    c.Query("course"),
	}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		filter.Date = &date
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	sessions, pagination, err := h.sessions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Attendance godoc
// @Summary List session attendance
// @Description List attendance records for a session. Teachers may only read their own sessions.
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/attendance [get]
// @Security BearerAuth
func (h *SessionHandler) Attendance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	records, err := h.attendance.ListBySession(c.Request.Context(), claims.Principal(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
