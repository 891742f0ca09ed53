package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

// StudentRepository manages persistence for the student roster.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Batch != "" {
		conditions = append(conditions, fmt.Sprintf("s.batch = $%d", len(args)+1))
		args = append(args, filter.Batch)
	}
	if filter.Course != "" {
		conditions = append(conditions, fmt.Sprintf("s.course = $%d", len(args)+1))
		args = append(args, filter.Course)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.roll_number) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":   "s.full_name",
		"roll_number": "s.roll_number",
		"created_at":  "s.created_at",
	}
	if sortBy == "" {
		sortBy = "roll_number"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.roll_number"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.roll_number, s.full_name, s.batch, s.course, s.year, s.created_at, s.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, roll_number, full_name, batch, course, year, created_at, updated_at
        FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByRoll fetches a student by roll number.
func (r *StudentRepository) FindByRoll(ctx context.Context, roll string) (*models.Student, error) {
	const query = `SELECT id, roll_number, full_name, batch, course, year, created_at, updated_at
        FROM students WHERE roll_number = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, roll); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByRoll checks if a student with the given roll number exists.
func (r *StudentRepository) ExistsByRoll(ctx context.Context, roll string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM students WHERE roll_number = $1 LIMIT 1", roll); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check roll number: %w", err)
	}
	return true, nil
}

// Create inserts a new student record. The unique index on roll_number is the
// source of truth for duplicates; a conflict surfaces as ErrDuplicateRoll.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, roll_number, full_name, batch, course, year, created_at, updated_at)
        VALUES (:id, :roll_number, :full_name, :batch, :course, :year, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateRoll.Code, appErrors.ErrDuplicateRoll.Status, appErrors.ErrDuplicateRoll.Message)
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Delete removes a student from the roster. Attendance rows cascade.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// ListByBatchCourse returns the display roster for a session's cohort.
func (r *StudentRepository) ListByBatchCourse(ctx context.Context, batch, course string) ([]models.RosterEntry, error) {
	const query = `SELECT roll_number, full_name FROM students
        WHERE batch = $1 AND course = $2 ORDER BY roll_number`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, batch, course); err != nil {
		return nil, fmt.Errorf("list roster for batch: %w", err)
	}
	return entries, nil
}
