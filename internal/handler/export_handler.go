package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

// ExportHandler renders attendance sheets as downloadable files.
type ExportHandler struct {
	service *service.AttendanceService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.AttendanceService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// CSV godoc
// @Summary Export attendance CSV
// @Description Stream the session's attendance sheet as CSV
// @Tags Exports
// @Produce text/csv
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/export/csv [get]
// @Security BearerAuth
func (h *ExportHandler) CSV(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	sessionID := c.Param("id")

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=attendance-%s.csv", sessionID))
	if err := h.service.StreamCSV(c.Request.Context(), claims.Principal(), sessionID, c.Writer); err != nil {
		// Headers flush with the first row; report the error only if the
		// body is still untouched.
		if !c.Writer.Written() {
			c.Writer.Header().Del("Content-Disposition")
			response.Error(c, err)
		}
		return
	}
}

// LedgerCSV godoc
// @Summary Export full attendance ledger CSV
// @Description Stream attendance for every session as CSV
// @Tags Exports
// @Produce text/csv
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /export/csv [get]
// @Security BearerAuth
func (h *ExportHandler) LedgerCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=attendance-ledger.csv")
	if err := h.service.StreamLedgerCSV(c.Request.Context(), c.Writer); err != nil {
		if !c.Writer.Written() {
			c.Writer.Header().Del("Content-Disposition")
			response.Error(c, err)
		}
		return
	}
}

// LedgerPDF godoc
// @Summary Export full attendance ledger PDF
// @Description Render attendance for every session as a PDF document
// @Tags Exports
// @Produce application/pdf
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /export/pdf [get]
// @Security BearerAuth
func (h *ExportHandler) LedgerPDF(c *gin.Context) {
	doc, err := h.service.RenderLedgerPDF(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=attendance-ledger.pdf")
	c.Data(http.StatusOK, "application/pdf", doc)
}

// PDF godoc
// @Summary Export attendance PDF
// @Description Render the session's attendance sheet as a PDF document
// @Tags Exports
// @Produce application/pdf
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/export/pdf [get]
// @Security BearerAuth
func (h *ExportHandler) PDF(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	sessionID := c.Param("id")

	doc, err := h.service.RenderPDF(c.Request.Context(), claims.Principal(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=attendance-%s.pdf", sessionID))
	c.Data(http.StatusOK, "application/pdf", doc)
}
