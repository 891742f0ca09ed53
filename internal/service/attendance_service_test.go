package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type mockAttendanceStore struct {
	details    []models.AttendanceDetail
	rows       []models.ExportRow
	lastFilter string
}

func (m *mockAttendanceStore) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceDetail, error) {
	return m.details, nil
}

func (m *mockAttendanceStore) StreamExportRows(ctx context.Context, sessionID string, fn func(models.ExportRow) error) error {
	m.lastFilter = sessionID
	for _, row := range m.rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

type mockSessionStore struct {
	session *models.ClassSessionDetail
}

func (m *mockSessionStore) FindByID(ctx context.Context, id string) (*models.ClassSessionDetail, error) {
	if m.session == nil || m.session.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.session, nil
}

func testSessionDetail() *models.ClassSessionDetail {
	return &models.ClassSessionDetail{
		ClassSession: models.ClassSession{
			ID:     "sess-1",
			Course: "CS101",
			Batch:  "2024",
			Date:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		TeacherName:   "Dr. Rao",
		TeacherUserID: "user-tea-1",
	}
}

func TestAttendanceServiceAuthz(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceStore{}, &mockSessionStore{session: testSessionDetail()}, zap.NewNop())

	admin := models.Principal{ID: "user-adm", Role: models.RoleAdmin}
	owner := models.Principal{ID: "user-tea-1", Role: models.RoleTeacher}
	other := models.Principal{ID: "user-tea-2", Role: models.RoleTeacher}

	_, err := svc.ListBySession(context.Background(), admin, "sess-1")
	require.NoError(t, err)
	_, err = svc.ListBySession(context.Background(), owner, "sess-1")
	require.NoError(t, err)
	_, err = svc.ListBySession(context.Background(), other, "sess-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceListUnknownSession(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceStore{}, &mockSessionStore{}, zap.NewNop())

	_, err := svc.ListBySession(context.Background(), models.Principal{Role: models.RoleAdmin}, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceStreamCSV(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &mockAttendanceStore{rows: []models.ExportRow{
		{Roll: "CS-01", Name: "Alice", Course: "CS101", Date: date},
		{Roll: "CS-02", Name: "Bob", Course: "CS101", Date: date},
	}}
	svc := NewAttendanceService(store, &mockSessionStore{session: testSessionDetail()}, zap.NewNop())

	var buf bytes.Buffer
	err := svc.StreamCSV(context.Background(), models.Principal{Role: models.RoleAdmin}, "sess-1", &buf)
	require.NoError(t, err)

	expected := "Roll,Name,Course,Date\n" +
		"CS-01,Alice,CS101,2025-03-10\n" +
		"CS-02,Bob,CS101,2025-03-10\n"
	assert.Equal(t, expected, buf.String())
}

func TestAttendanceServiceStreamLedgerCSV(t *testing.T) {
	store := &mockAttendanceStore{rows: []models.ExportRow{
		{Roll: "CS-01", Name: "Alice", Course: "CS101", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{Roll: "EE-07", Name: "Carol", Course: "EE201", Date: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)},
	}}
	svc := NewAttendanceService(store, &mockSessionStore{}, zap.NewNop())

	var buf bytes.Buffer
	err := svc.StreamLedgerCSV(context.Background(), &buf)
	require.NoError(t, err)

	assert.Empty(t, store.lastFilter)
	expected := "Roll,Name,Course,Date\n" +
		"CS-01,Alice,CS101,2025-03-10\n" +
		"EE-07,Carol,EE201,2025-03-11\n"
	assert.Equal(t, expected, buf.String())
}

func TestAttendanceServiceRenderLedgerPDF(t *testing.T) {
	store := &mockAttendanceStore{rows: []models.ExportRow{
		{Roll: "CS-01", Name: "Alice", Course: "CS101", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
	}}
	svc := NewAttendanceService(store, &mockSessionStore{}, zap.NewNop())

	doc, err := svc.RenderLedgerPDF(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.lastFilter)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestAttendanceServiceRenderPDF(t *testing.T) {
	store := &mockAttendanceStore{rows: []models.ExportRow{
		{Roll: "CS-01", Name: "Alice", Course: "CS101", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
	}}
	svc := NewAttendanceService(store, &mockSessionStore{session: testSessionDetail()}, zap.NewNop())

	doc, err := svc.RenderPDF(context.Background(), models.Principal{Role: models.RoleAdmin}, "sess-1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}
