package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

// TeacherRepository manages persistence for the teaching roster.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers matching the provided filters.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	base := "FROM teachers t"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(t.full_name) LIKE $%d OR LOWER(t.username) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT t.id, t.user_id, t.username, t.full_name, t.created_at
        %s ORDER BY t.full_name ASC LIMIT %d OFFSET %d`, base, size, offset)

	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID fetches a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, user_id, username, full_name, created_at FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindByUserID fetches the teacher backed by the given credential account.
func (r *TeacherRepository) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	const query = `SELECT id, user_id, username, full_name, created_at FROM teachers WHERE user_id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, userID); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Create inserts the teacher roster row together with its credential in one
// transaction so a half-created teacher can never log in.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher, user *models.User) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	teacher.UserID = user.ID
	teacher.CreatedAt = now
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create teacher: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const userQuery = `INSERT INTO users (id, username, password_hash, full_name, role, active, created_at, updated_at)
        VALUES (:id, :username, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateUsername.Code, appErrors.ErrDuplicateUsername.Status, appErrors.ErrDuplicateUsername.Message)
		}
		return fmt.Errorf("create teacher credential: %w", err)
	}

	const teacherQuery = `INSERT INTO teachers (id, user_id, username, full_name, created_at)
        VALUES (:id, :user_id, :username, :full_name, :created_at)`
	if _, err := tx.NamedExecContext(ctx, teacherQuery, teacher); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateUsername.Code, appErrors.ErrDuplicateUsername.Status, appErrors.ErrDuplicateUsername.Message)
		}
		return fmt.Errorf("create teacher: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create teacher: %w", err)
	}
	committed = true
	return nil
}
