package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, session *models.ClassSession) error
	FindByID(ctx context.Context, id string) (*models.ClassSessionDetail, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.ClassSessionDetail, int, error)
}

type sessionTeacherRepository interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// SessionService provides class-session scheduling use cases.
type SessionService struct {
	repo      sessionRepository
	teachers  sessionTeacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(repo sessionRepository, teachers sessionTeacherRepository, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{repo: repo, teachers: teachers, validator: validate, logger: logger}
}

// Create schedules a class session for an existing teacher.
func (s *SessionService) Create(ctx context.Context, req models.CreateSessionRequest) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacher does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify teacher")
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	session := &models.ClassSession{
		Course:    req.Course,
		Batch:     req.Batch,
		Room:      req.Room,
		TeacherID: req.TeacherID,
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.logger.Info("class session scheduled",
		zap.String("session_id", session.ID),
		zap.String("course", session.Course),
		zap.String("batch", session.Batch))
	return session, nil
}

// Get fetches a session with the owning teacher's name.
func (s *SessionService) Get(ctx context.Context, id string) (*models.ClassSessionDetail, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// List returns sessions matching the filter with pagination metadata.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.ClassSessionDetail, *models.Pagination, error) {
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return sessions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
