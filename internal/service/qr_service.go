package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type qrTokenRepository interface {
	Issue(ctx context.Context, sessionID, secret string, createdAt, expiresAt time.Time) (*models.QRToken, error)
	FindByID(ctx context.Context, id string) (*models.QRToken, error)
	FindActiveBySession(ctx context.Context, sessionID string) (*models.QRToken, error)
}

type qrSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassSessionDetail, error)
}

type qrStudentRepository interface {
	FindByRoll(ctx context.Context, roll string) (*models.Student, error)
	ListByBatchCourse(ctx context.Context, batch, course string) ([]models.RosterEntry, error)
}

type attendanceWriter interface {
	Exists(ctx context.Context, studentID, sessionID string) (bool, error)
	Insert(ctx context.Context, studentID, sessionID string, markedAt time.Time) (*models.AttendanceRecord, error)
}

// QRConfig defines token lifetime and image rendering parameters.
type QRConfig struct {
	TokenTTL    time.Duration
	BaseURL     string
	ImageSize   int
	EmbedRoster bool
}

// QRService mints short-lived scan tokens and records attendance against
// them. Issuing a token deactivates every earlier token for the session, so
// only the most recently projected code ever admits a scan.
type QRService struct {
	tokens     qrTokenRepository
	sessions   qrSessionRepository
	students   qrStudentRepository
	attendance attendanceWriter
	logger     *zap.Logger
	config     QRConfig
	now        func() time.Time
}

// NewQRService constructs a QRService instance.
func NewQRService(tokens qrTokenRepository, sessions qrSessionRepository, students qrStudentRepository, attendance attendanceWriter, logger *zap.Logger, config QRConfig) *QRService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = 30 * time.Second
	}
	if config.ImageSize <= 0 {
		config.ImageSize = 300
	}
	return &QRService{
		tokens:     tokens,
		sessions:   sessions,
		students:   students,
		attendance: attendance,
		logger:     logger,
		config:     config,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Issue mints a fresh token for the session and renders the QR image.
// Previous tokens are deactivated in the same transaction as the insert.
func (s *QRService) Issue(ctx context.Context, sessionID string) (*models.IssuedQR, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	secret, err := generateTokenSecret()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate token secret")
	}

	issuedAt := s.now()
	token, err := s.tokens.Issue(ctx, sessionID, secret, issuedAt, issuedAt.Add(s.config.TokenTTL))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
	}

	png, scanURL, err := s.renderToken(ctx, token, session)
	if err != nil {
		return nil, err
	}

	s.logger.Info("qr token issued",
		zap.String("session_id", sessionID),
		zap.String("token_id", token.ID),
		zap.Time("expires_at", token.ExpiresAt))

	return &models.IssuedQR{
		TokenID:   token.ID,
		ScanURL:   scanURL,
		ExpiresAt: token.ExpiresAt,
		PNGBase64: base64.StdEncoding.EncodeToString(png),
	}, nil
}

// ActiveImage renders the PNG for the session's currently active token.
func (s *QRService) ActiveImage(ctx context.Context, sessionID string) ([]byte, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	token, err := s.tokens.FindActiveBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active token for session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active token")
	}

	png, _, err := s.renderToken(ctx, token, session)
	if err != nil {
		return nil, err
	}
	return png, nil
}

// Validate runs the token checks a scan must pass before a roll number is
// accepted. The check order is fixed: existence, secret match, active flag,
// then expiry. A token scanned exactly at its expiry instant is accepted.
func (s *QRService) Validate(ctx context.Context, tokenID, secret string) (*models.ScanContext, error) {
	token, err := s.tokens.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTokenNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load token")
	}

	if subtle.ConstantTimeCompare([]byte(token.Secret), []byte(secret)) != 1 {
		return nil, appErrors.Clone(appErrors.ErrTokenMismatch, "")
	}

	if !token.Active {
		return nil, appErrors.Clone(appErrors.ErrTokenInactive, "")
	}

	if s.now().After(token.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrTokenExpired, "")
	}

	session, err := s.sessions.FindByID(ctx, token.ClassSessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	return &models.ScanContext{
		TokenID:   token.ID,
		Course:    session.Course,
		Batch:     session.Batch,
		Room:      session.Room,
		Date:      session.Date,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// MarkAttendance validates the token, checks the student's eligibility
// against the session cohort and records the attendance. The unique pair
// constraint in storage is the final arbiter for concurrent duplicates.
func (s *QRService) MarkAttendance(ctx context.Context, tokenID, secret, rollNumber string) (*models.ScanResult, error) {
	token, err := s.tokens.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTokenNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load token")
	}

	if subtle.ConstantTimeCompare([]byte(token.Secret), []byte(secret)) != 1 {
		return nil, appErrors.Clone(appErrors.ErrTokenMismatch, "")
	}
	if !token.Active {
		return nil, appErrors.Clone(appErrors.ErrTokenInactive, "")
	}
	if s.now().After(token.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrTokenExpired, "")
	}

	session, err := s.sessions.FindByID(ctx, token.ClassSessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	student, err := s.students.FindByRoll(ctx, rollNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStudentNotEligible, "roll number is not on the roster")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Batch != session.Batch || student.Course != session.Course {
		return nil, appErrors.Clone(appErrors.ErrStudentNotEligible, "")
	}

	marked, err := s.attendance.Exists(ctx, student.ID, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if marked {
		return nil, appErrors.Clone(appErrors.ErrAlreadyMarked, "")
	}

	record, err := s.attendance.Insert(ctx, student.ID, session.ID, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("attendance marked",
		zap.String("session_id", session.ID),
		zap.String("student_id", student.ID),
		zap.String("roll", student.RollNumber))

	return &models.ScanResult{
		RollNumber:  student.RollNumber,
		StudentName: student.FullName,
		Course:      session.Course,
		MarkedAt:    record.MarkedAt,
	}, nil
}

func (s *QRService) renderToken(ctx context.Context, token *models.QRToken, session *models.ClassSessionDetail) ([]byte, string, error) {
	scanURL := s.scanURL(token)

	payload := models.QRPayload{
		ScanURL: scanURL,
		Course:  session.Course,
		Batch:   session.Batch,
	}
	if s.config.EmbedRoster {
		roster, err := s.students.ListByBatchCourse(ctx, session.Batch, session.Course)
		if err != nil {
			s.logger.Warn("failed to load roster snapshot, encoding without it", zap.Error(err))
		} else {
			payload.Students = roster
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode payload")
	}

	png, err := qrcode.Encode(string(encoded), qrcode.Medium, s.config.ImageSize)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr image")
	}
	return png, scanURL, nil
}

func (s *QRService) scanURL(token *models.QRToken) string {
	values := url.Values{}
	values.Set("sid", token.ID)
	values.Set("token", token.Secret)
	return fmt.Sprintf("%s/scan?%s", s.config.BaseURL, values.Encode())
}

func generateTokenSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
