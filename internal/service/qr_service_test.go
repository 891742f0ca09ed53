package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type mockTokenRepo struct {
	tokens      map[string]*models.QRToken
	activeToken *models.QRToken
	issued      []*models.QRToken
}

func (m *mockTokenRepo) Issue(ctx context.Context, sessionID, secret string, createdAt, expiresAt time.Time) (*models.QRToken, error) {
	for _, tok := range m.tokens {
		if tok.ClassSessionID == sessionID {
			tok.Active = false
		}
	}
	token := &models.QRToken{
		ID:             "tok-" + secret[:6],
		ClassSessionID: sessionID,
		Secret:         secret,
		CreatedAt:      createdAt,
		ExpiresAt:      expiresAt,
		Active:         true,
	}
	if m.tokens == nil {
		m.tokens = make(map[string]*models.QRToken)
	}
	m.tokens[token.ID] = token
	m.activeToken = token
	m.issued = append(m.issued, token)
	return token, nil
}

func (m *mockTokenRepo) FindByID(ctx context.Context, id string) (*models.QRToken, error) {
	tok, ok := m.tokens[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return tok, nil
}

func (m *mockTokenRepo) FindActiveBySession(ctx context.Context, sessionID string) (*models.QRToken, error) {
	if m.activeToken == nil || m.activeToken.ClassSessionID != sessionID || !m.activeToken.Active {
		return nil, sql.ErrNoRows
	}
	return m.activeToken, nil
}

type mockSessionRepo struct {
	session *models.ClassSessionDetail
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.ClassSessionDetail, error) {
	if m.session == nil || m.session.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.session, nil
}

type mockStudentRepo struct {
	students map[string]*models.Student
	roster   []models.RosterEntry
}

func (m *mockStudentRepo) FindByRoll(ctx context.Context, roll string) (*models.Student, error) {
	s, ok := m.students[roll]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (m *mockStudentRepo) ListByBatchCourse(ctx context.Context, batch, course string) ([]models.RosterEntry, error) {
	return m.roster, nil
}

// mockAttendance arbitrates duplicates under its lock the way the unique
// pair constraint does in storage.
type mockAttendance struct {
	mu       sync.Mutex
	existing map[string]bool
	inserted []string
}

func key(studentID, sessionID string) string { return studentID + "/" + sessionID }

func (m *mockAttendance) Exists(ctx context.Context, studentID, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existing[key(studentID, sessionID)], nil
}

func (m *mockAttendance) Insert(ctx context.Context, studentID, sessionID string, markedAt time.Time) (*models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(studentID, sessionID)
	if m.existing[k] {
		return nil, appErrors.Clone(appErrors.ErrAlreadyMarked, "")
	}
	if m.existing == nil {
		m.existing = make(map[string]bool)
	}
	m.existing[k] = true
	m.inserted = append(m.inserted, k)
	return &models.AttendanceRecord{ID: "rec-1", StudentID: studentID, ClassSessionID: sessionID, MarkedAt: markedAt}, nil
}

func fixedSession() *models.ClassSessionDetail {
	return &models.ClassSessionDetail{
		ClassSession: models.ClassSession{
			ID:        "sess-1",
			Course:    "CS101",
			Batch:     "2024",
			Room:      "B-204",
			TeacherID: "tea-1",
			Date:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		TeacherName: "Dr. Rao",
	}
}

func newTestQRService(tokens *mockTokenRepo, sessions *mockSessionRepo, students *mockStudentRepo, attendance *mockAttendance) *QRService {
	return NewQRService(tokens, sessions, students, attendance, zap.NewNop(), QRConfig{
		TokenTTL:  30 * time.Second,
		BaseURL:   "http://localhost:8080",
		ImageSize: 128,
	})
}

func TestQRServiceIssueSupersedesPreviousToken(t *testing.T) {
	tokens := &mockTokenRepo{}
	sessions := &mockSessionRepo{session: fixedSession()}
	students := &mockStudentRepo{}
	svc := newTestQRService(tokens, sessions, students, &mockAttendance{})

	first, err := svc.Issue(context.Background(), "sess-1")
	require.NoError(t, err)
	second, err := svc.Issue(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.NotEqual(t, first.TokenID, second.TokenID)
	assert.False(t, tokens.tokens[first.TokenID].Active)
	assert.True(t, tokens.tokens[second.TokenID].Active)

	png, err := base64.StdEncoding.DecodeString(second.PNGBase64)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
	assert.Contains(t, second.ScanURL, "sid="+second.TokenID)
}

func TestQRServiceIssueSecretsAreUnique(t *testing.T) {
	tokens := &mockTokenRepo{}
	svc := newTestQRService(tokens, &mockSessionRepo{session: fixedSession()}, &mockStudentRepo{}, &mockAttendance{})

	_, err := svc.Issue(context.Background(), "sess-1")
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), "sess-1")
	require.NoError(t, err)

	require.Len(t, tokens.issued, 2)
	assert.NotEqual(t, tokens.issued[0].Secret, tokens.issued[1].Secret)
	for _, tok := range tokens.issued {
		decoded, err := base64.RawURLEncoding.DecodeString(tok.Secret)
		require.NoError(t, err)
		assert.Len(t, decoded, 32)
	}
}

func TestQRServiceValidateChecksInOrder(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tokens := &mockTokenRepo{tokens: map[string]*models.QRToken{
		"tok-1": {ID: "tok-1", ClassSessionID: "sess-1", Secret: "good", CreatedAt: now, ExpiresAt: now.Add(30 * time.Second), Active: true},
		"tok-2": {ID: "tok-2", ClassSessionID: "sess-1", Secret: "stale", CreatedAt: now, ExpiresAt: now.Add(30 * time.Second), Active: false},
	}}
	svc := newTestQRService(tokens, &mockSessionRepo{session: fixedSession()}, &mockStudentRepo{}, &mockAttendance{})
	svc.now = func() time.Time { return now }

	_, err := svc.Validate(context.Background(), "missing", "good")
	assert.Equal(t, appErrors.ErrTokenNotFound.Code, appErrors.FromError(err).Code)

	// Wrong secret on an inactive token reports the mismatch, not the state.
	_, err = svc.Validate(context.Background(), "tok-2", "wrong")
	assert.Equal(t, appErrors.ErrTokenMismatch.Code, appErrors.FromError(err).Code)

	_, err = svc.Validate(context.Background(), "tok-2", "stale")
	assert.Equal(t, appErrors.ErrTokenInactive.Code, appErrors.FromError(err).Code)

	scanCtx, err := svc.Validate(context.Background(), "tok-1", "good")
	require.NoError(t, err)
	assert.Equal(t, "CS101", scanCtx.Course)
	assert.Equal(t, "2024", scanCtx.Batch)
}

func TestQRServiceValidateExpiryBoundary(t *testing.T) {
	issued := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	expires := issued.Add(30 * time.Second)
	tokens := &mockTokenRepo{tokens: map[string]*models.QRToken{
		"tok-1": {ID: "tok-1", ClassSessionID: "sess-1", Secret: "good", CreatedAt: issued, ExpiresAt: expires, Active: true},
	}}
	svc := newTestQRService(tokens, &mockSessionRepo{session: fixedSession()}, &mockStudentRepo{}, &mockAttendance{})

	// Exactly at the expiry instant the token is still accepted.
	svc.now = func() time.Time { return expires }
	_, err := svc.Validate(context.Background(), "tok-1", "good")
	require.NoError(t, err)

	svc.now = func() time.Time { return expires.Add(time.Nanosecond) }
	_, err = svc.Validate(context.Background(), "tok-1", "good")
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErrors.FromError(err).Code)
}

func TestQRServiceMarkAttendance(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tokens := &mockTokenRepo{tokens: map[string]*models.QRToken{
		"tok-1": {ID: "tok-1", ClassSessionID: "sess-1", Secret: "good", CreatedAt: now, ExpiresAt: now.Add(30 * time.Second), Active: true},
	}}
	students := &mockStudentRepo{students: map[string]*models.Student{
		"CS-01": {ID: "stu-1", RollNumber: "CS-01", FullName: "Alice", Batch: "2024", Course: "CS101"},
		"EE-01": {ID: "stu-2", RollNumber: "EE-01", FullName: "Eve", Batch: "2024", Course: "EE201"},
	}}
	attendance := &mockAttendance{}
	svc := newTestQRService(tokens, &mockSessionRepo{session: fixedSession()}, students, attendance)
	svc.now = func() time.Time { return now }

	result, err := svc.MarkAttendance(context.Background(), "tok-1", "good", "CS-01")
	require.NoError(t, err)
	assert.Equal(t, "Alice", result.StudentName)
	assert.Equal(t, now, result.MarkedAt)
	require.Len(t, attendance.inserted, 1)

	// Second scan of the same student is rejected, record count unchanged.
	_, err = svc.MarkAttendance(context.Background(), "tok-1", "good", "CS-01")
	assert.Equal(t, appErrors.ErrAlreadyMarked.Code, appErrors.FromError(err).Code)
	assert.Len(t, attendance.inserted, 1)

	// Unknown roll and course mismatch both fail eligibility.
	_, err = svc.MarkAttendance(context.Background(), "tok-1", "good", "ZZ-99")
	assert.Equal(t, appErrors.ErrStudentNotEligible.Code, appErrors.FromError(err).Code)
	_, err = svc.MarkAttendance(context.Background(), "tok-1", "good", "EE-01")
	assert.Equal(t, appErrors.ErrStudentNotEligible.Code, appErrors.FromError(err).Code)
}

func TestQRServiceMarkAttendanceConcurrentDuplicates(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tokens := &mockTokenRepo{tokens: map[string]*models.QRToken{
		"tok-1": {ID: "tok-1", ClassSessionID: "sess-1", Secret: "good", CreatedAt: now, ExpiresAt: now.Add(30 * time.Second), Active: true},
	}}
	students := &mockStudentRepo{students: map[string]*models.Student{
		"CS-01": {ID: "stu-1", RollNumber: "CS-01", FullName: "Alice", Batch: "2024", Course: "CS101"},
	}}
	attendance := &mockAttendance{}
	svc := newTestQRService(tokens, &mockSessionRepo{session: fixedSession()}, students, attendance)
	svc.now = func() time.Time { return now }

	const scans = 16
	results := make(chan error, scans)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < scans; i++ {
		go func() {
			start.Wait()
			_, err := svc.MarkAttendance(context.Background(), "tok-1", "good", "CS-01")
			results <- err
		}()
	}
	start.Done()

	var succeeded, rejected int
	for i := 0; i < scans; i++ {
		err := <-results
		if err == nil {
			succeeded++
			continue
		}
		require.Equal(t, appErrors.ErrAlreadyMarked.Code, appErrors.FromError(err).Code)
		rejected++
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, scans-1, rejected)
	assert.Len(t, attendance.inserted, 1)
}

func TestQRServiceMarkAttendanceAfterReissue(t *testing.T) {
	tokens := &mockTokenRepo{}
	students := &mockStudentRepo{students: map[string]*models.Student{
		"CS-01": {ID: "stu-1", RollNumber: "CS-01", FullName: "Alice", Batch: "2024", Course: "CS101"},
		"CS-02": {ID: "stu-3", RollNumber: "CS-02", FullName: "Bob", Batch: "2024", Course: "CS101"},
	}}
	attendance := &mockAttendance{}
	svc := newTestQRService(tokens, &mockSessionRepo{session: fixedSession()}, students, attendance)

	first, err := svc.Issue(context.Background(), "sess-1")
	require.NoError(t, err)
	firstSecret := tokens.tokens[first.TokenID].Secret

	_, err = svc.MarkAttendance(context.Background(), first.TokenID, firstSecret, "CS-01")
	require.NoError(t, err)

	second, err := svc.Issue(context.Background(), "sess-1")
	require.NoError(t, err)
	secondSecret := tokens.tokens[second.TokenID].Secret

	// The superseded token no longer admits scans.
	_, err = svc.MarkAttendance(context.Background(), first.TokenID, firstSecret, "CS-02")
	assert.Equal(t, appErrors.ErrTokenInactive.Code, appErrors.FromError(err).Code)

	// The fresh token does, and Alice's earlier record survives.
	_, err = svc.MarkAttendance(context.Background(), second.TokenID, secondSecret, "CS-02")
	require.NoError(t, err)
	_, err = svc.MarkAttendance(context.Background(), second.TokenID, secondSecret, "CS-01")
	assert.Equal(t, appErrors.ErrAlreadyMarked.Code, appErrors.FromError(err).Code)
	assert.Len(t, attendance.inserted, 2)
}

func TestQRServiceActiveImage(t *testing.T) {
	tokens := &mockTokenRepo{}
	svc := newTestQRService(tokens, &mockSessionRepo{session: fixedSession()}, &mockStudentRepo{}, &mockAttendance{})

	_, err := svc.ActiveImage(context.Background(), "sess-1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Issue(context.Background(), "sess-1")
	require.NoError(t, err)

	png, err := svc.ActiveImage(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}
