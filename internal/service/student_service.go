package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByRoll(ctx context.Context, roll string) (*models.Student, error)
	ExistsByRoll(ctx context.Context, roll string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// StudentService provides roster management use cases.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students matching the filter with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get fetches a single student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create enrolls a student. Duplicate roll numbers are rejected; the unique
// index on roll_number backs this up for concurrent writers.
func (s *StudentService) Create(ctx context.Context, req models.CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	exists, err := s.repo.ExistsByRoll(ctx, req.RollNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roll number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRoll, "")
	}

	student := &models.Student{
		RollNumber: req.RollNumber,
		FullName:   req.FullName,
		Batch:      req.Batch,
		Course:     req.Course,
		Year:       req.Year,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, err
	}

	s.logger.Info("student enrolled", zap.String("student_id", student.ID), zap.String("roll", student.RollNumber))
	return student, nil
}

// Delete removes a student and, via cascade, their attendance records.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.logger.Info("student removed", zap.String("student_id", id))
	return nil
}
