package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

// ScanHandler serves the public scan endpoints students hit from their
// phones. No authentication; the token in the query string is the credential.
type ScanHandler struct {
	service *service.QRService
	metrics *service.MetricsService
}

// NewScanHandler creates a new handler.
func NewScanHandler(svc *service.QRService, metrics *service.MetricsService) *ScanHandler {
	return &ScanHandler{service: svc, metrics: metrics}
}

// Show godoc
// @Summary Validate scanned token
// @Description Validate the sid/token pair and return the session context for the entry form
// @Tags Scan
// @Produce json
// @Param sid query string true "Token ID"
// @Param token query string true "Token secret"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /scan [get]
func (h *ScanHandler) Show(c *gin.Context) {
	sid, secret, err := scanParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	scanCtx, err := h.service.Validate(c.Request.Context(), sid, secret)
	if err != nil {
		h.metrics.RecordScan(appErrors.FromError(err).Code)
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scanCtx, nil)
}

// Submit godoc
// @Summary Submit attendance
// @Description Record attendance for the roll number against the scanned token
// @Tags Scan
// @Accept json
// @Produce json
// @Param sid query string true "Token ID"
// @Param token query string true "Token secret"
// @Param payload body models.ScanRequest true "Roll number"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /scan [post]
func (h *ScanHandler) Submit(c *gin.Context) {
	sid, secret, err := scanParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.ScanRequest
	if err := c.ShouldBind(&req); err != nil || req.RollNumber == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "roll_number is required"))
		return
	}

	result, err := h.service.MarkAttendance(c.Request.Context(), sid, secret, req.RollNumber)
	if err != nil {
		h.metrics.RecordScan(appErrors.FromError(err).Code)
		response.Error(c, err)
		return
	}
	h.metrics.RecordScan("OK")
	response.Created(c, result)
}

func scanParams(c *gin.Context) (string, string, error) {
	sid := c.Query("sid")
	secret := c.Query("token")
	if sid == "" || secret == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "sid and token query parameters are required")
	}
	return sid, secret, nil
}
