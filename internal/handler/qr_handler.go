package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

// QRHandler wires QR token endpoints to the QR service.
type QRHandler struct {
	service *service.QRService
	metrics *service.MetricsService
}

// NewQRHandler creates a new handler.
func NewQRHandler(svc *service.QRService, metrics *service.MetricsService) *QRHandler {
	return &QRHandler{service: svc, metrics: metrics}
}

// Issue godoc
// @Summary Issue QR token
// @Description Mint a fresh short-lived token for a session, deactivating any previous one
// @Tags QR
// @Produce json
// @Param id path string true "Session ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/qr [post]
// @Security BearerAuth
func (h *QRHandler) Issue(c *gin.Context) {
	issued, err := h.service.Issue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordTokenIssued()
	response.Created(c, issued)
}

// Image godoc
// @Summary Render active QR image
// @Description Return the PNG for the session's currently active token
// @Tags QR
// @Produce png
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/qr/image [get]
// @Security BearerAuth
func (h *QRHandler) Image(c *gin.Context) {
	png, err := h.service.ActiveImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
