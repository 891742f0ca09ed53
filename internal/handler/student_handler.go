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

// StudentHandler wires HTTP endpoints to the student service.
type StudentHandler struct {
	service *service.StudentService
}

// NewStudentHandler creates a new handler.
func NewStudentHandler(svc *service.StudentService) *StudentHandler {
	return &StudentHandler{service: svc}
}

// List godoc
// @Summary List students
// @Description List roster students with filters and pagination
// @Tags Students
// @Produce json
// @Param search query string false "Search by name or roll number"
// @Param batch query string false "Filter by batch"
// @Param course query string false "Filter by course"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
// @Security BearerAuth
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Search:    c.Query("search"),
		Batch:     c.Query("batch"),
		Course:    c.Query("course"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	students, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student
// @Description Fetch a single student by ID
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
// @Security BearerAuth
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Enroll student
// @Description Add a student to the roster
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body models.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
// @Security BearerAuth
func (h *StudentHandler) Create(c *gin.Context) {
	var req models.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}

	student, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Delete godoc
// @Summary Remove student
// @Description Remove a student from the roster
// @Tags Students
// @Param id path string true "Student ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [delete]
// @Security BearerAuth
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
