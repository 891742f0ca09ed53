package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
)

type fakeTokenRepo struct {
	token *models.QRToken
}

func (f *fakeTokenRepo) Issue(ctx context.Context, sessionID, secret string, createdAt, expiresAt time.Time) (*models.QRToken, error) {
	return f.token, nil
}

func (f *fakeTokenRepo) FindByID(ctx context.Context, id string) (*models.QRToken, error) {
	if f.token == nil || f.token.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.token, nil
}

func (f *fakeTokenRepo) FindActiveBySession(ctx context.Context, sessionID string) (*models.QRToken, error) {
	if f.token == nil {
		return nil, sql.ErrNoRows
	}
	return f.token, nil
}

type fakeSessionRepo struct {
	session *models.ClassSessionDetail
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, id string) (*models.ClassSessionDetail, error) {
	if f.session == nil {
		return nil, sql.ErrNoRows
	}
	return f.session, nil
}

type fakeStudentRepo struct {
	student *models.Student
}

func (f *fakeStudentRepo) FindByRoll(ctx context.Context, roll string) (*models.Student, error) {
	if f.student == nil || f.student.RollNumber != roll {
		return nil, sql.ErrNoRows
	}
	return f.student, nil
}

func (f *fakeStudentRepo) ListByBatchCourse(ctx context.Context, batch, course string) ([]models.RosterEntry, error) {
	return nil, nil
}

type fakeAttendanceRepo struct {
	marked bool
}

func (f *fakeAttendanceRepo) Exists(ctx context.Context, studentID, sessionID string) (bool, error) {
	return f.marked, nil
}

func (f *fakeAttendanceRepo) Insert(ctx context.Context, studentID, sessionID string, markedAt time.Time) (*models.AttendanceRecord, error) {
	f.marked = true
	return &models.AttendanceRecord{ID: "rec-1", StudentID: studentID, ClassSessionID: sessionID, MarkedAt: markedAt}, nil
}

type envelope struct {
	Data  map[string]interface{} `json:"data"`
	Error map[string]interface{} `json:"error"`
}

func newScanHandler(tokens *fakeTokenRepo, attendance *fakeAttendanceRepo) *ScanHandler {
	sessions := &fakeSessionRepo{session: &models.ClassSessionDetail{
		ClassSession: models.ClassSession{ID: "sess-1", Course: "CS101", Batch: "2024"},
	}}
	students := &fakeStudentRepo{student: &models.Student{ID: "stu-1", RollNumber: "CS-01", FullName: "Alice", Batch: "2024", Course: "CS101"}}
	svc := service.NewQRService(tokens, sessions, students, attendance, zap.NewNop(), service.QRConfig{
		TokenTTL:  30 * time.Second,
		BaseURL:   "http://localhost:8080",
		ImageSize: 128,
	})
	return NewScanHandler(svc, service.NewMetricsService())
}

func liveToken() *models.QRToken {
	now := time.Now().UTC()
	return &models.QRToken{
		ID:             "tok-1",
		ClassSessionID: "sess-1",
		Secret:         "secret-value",
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Minute),
		Active:         true,
	}
}

func TestScanHandlerShowMissingParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScanHandler(&fakeTokenRepo{}, &fakeAttendanceRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/scan?sid=tok-1", nil)

	handler.Show(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanHandlerShowUnknownToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScanHandler(&fakeTokenRepo{}, &fakeAttendanceRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/scan?sid=missing&token=whatever", nil)

	handler.Show(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "TOKEN_NOT_FOUND", env.Error["code"])
}

func TestScanHandlerShowSecretMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScanHandler(&fakeTokenRepo{token: liveToken()}, &fakeAttendanceRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/scan?sid=tok-1&token=wrong", nil)

	handler.Show(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScanHandlerShowSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScanHandler(&fakeTokenRepo{token: liveToken()}, &fakeAttendanceRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/scan?sid=tok-1&token=secret-value", nil)

	handler.Show(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "CS101", env.Data["course"])
	assert.Equal(t, "tok-1", env.Data["token_id"])
}

func TestScanHandlerSubmitRequiresRollNumber(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScanHandler(&fakeTokenRepo{token: liveToken()}, &fakeAttendanceRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/scan?sid=tok-1&token=secret-value", strings.NewReader(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Submit(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanHandlerSubmitSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScanHandler(&fakeTokenRepo{token: liveToken()}, &fakeAttendanceRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/scan?sid=tok-1&token=secret-value", strings.NewReader(`{"roll_number":"CS-01"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Submit(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "Alice", env.Data["student_name"])
}

func TestScanHandlerSubmitAlreadyMarked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScanHandler(&fakeTokenRepo{token: liveToken()}, &fakeAttendanceRepo{marked: true})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/scan?sid=tok-1&token=secret-value", strings.NewReader(`{"roll_number":"CS-01"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Submit(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "ALREADY_MARKED", env.Error["code"])
}
