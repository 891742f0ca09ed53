package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher, user *models.User) error
}

// TeacherService provides teaching-roster management use cases.
type TeacherService struct {
	repo      teacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService instance.
func NewTeacherService(repo teacherRepository, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TeacherService{repo: repo, validator: validate, logger: logger}
}

// List returns teachers matching the filter with pagination metadata.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return teachers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get fetches a single teacher by ID.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// GetByUserID resolves the teacher roster row behind a logged-in account.
func (s *TeacherService) GetByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a teacher along with the credential used to log in.
func (s *TeacherService) Create(ctx context.Context, req models.CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         models.RoleTeacher,
		Active:       true,
	}
	teacher := &models.Teacher{
		Username: req.Username,
		FullName: req.FullName,
	}
	if err := s.repo.Create(ctx, teacher, user); err != nil {
		return nil, err
	}

	s.logger.Info("teacher registered", zap.String("teacher_id", teacher.ID), zap.String("username", teacher.Username))
	return teacher, nil
}
