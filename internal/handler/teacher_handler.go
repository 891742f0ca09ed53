package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

// TeacherHandler wires HTTP endpoints to the teacher service.
type TeacherHandler struct {
	service *service.TeacherService
}

// NewTeacherHandler creates a new handler.
func NewTeacherHandler(svc *service.TeacherService) *TeacherHandler {
	return &TeacherHandler{service: svc}
}

// List godoc
// @Summary List teachers
// @Description List teaching roster with pagination
// @Tags Teachers
// @Produce json
// @Param search query string false "Search by name or username"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
// @Security BearerAuth
func (h *TeacherHandler) List(c *gin.Context) {
	filter := models.TeacherFilter{Search: c.Query("search")}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	teachers, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, pagination)
}

// Get godoc
// @Summary Get teacher
// @Description Fetch a single teacher by ID
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id} [get]
// @Security BearerAuth
func (h *TeacherHandler) Get(c *gin.Context) {
	teacher, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Create godoc
// @Summary Register teacher
// @Description Register a teacher together with their login credential
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body models.CreateTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers [post]
// @Security BearerAuth
func (h *TeacherHandler) Create(c *gin.Context) {
	var req models.CreateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}

	teacher, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}
