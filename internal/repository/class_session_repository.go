package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

// ClassSessionRepository manages persistence for scheduled lectures.
type ClassSessionRepository struct {
	db *sqlx.DB
}

// NewClassSessionRepository constructs a ClassSessionRepository.
func NewClassSessionRepository(db *sqlx.DB) *ClassSessionRepository {
	return &ClassSessionRepository{db: db}
}

// Create inserts a new class session. Sessions are never updated afterwards.
// Overlapping sessions for the same room or time are accepted business
// behavior, so no overlap check is made here.
func (r *ClassSessionRepository) Create(ctx context.Context, session *models.ClassSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO class_sessions (id, course, batch, room, teacher_id, date, start_time, end_time, created_at)
        VALUES (:id, :course, :batch, :room, :teacher_id, :date, :start_time, :end_time, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create class session: %w", err)
	}
	return nil
}

// FindByID fetches a session with the owning teacher's name.
func (r *ClassSessionRepository) FindByID(ctx context.Context, id string) (*models.ClassSessionDetail, error) {
	const query = `SELECT cs.id, cs.course, cs.batch, cs.room, cs.teacher_id, cs.date, cs.start_time, cs.end_time, cs.created_at,
        t.full_name AS teacher_name, t.user_id AS teacher_user_id
        FROM class_sessions cs
        JOIN teachers t ON t.id = cs.teacher_id
        WHERE cs.id = $1`
	var detail models.ClassSessionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns sessions matching the provided filters.
func (r *ClassSessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.ClassSessionDetail, int, error) {
	base := "FROM class_sessions cs JOIN teachers t ON t.id = cs.teacher_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("cs.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Date != nil {
		conditions = append(conditions, fmt.Sprintf("cs.date = $%d", len(args)+1))
		args = append(args, *filter.Date)
	}
	if filter.Course != "" {
		conditions = append(conditions, fmt.Sprintf("cs.course = $%d", len(args)+1))
		args = append(args, filter.Course)
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

	query := fmt.Sprintf(`SELECT cs.id, cs.course, cs.batch, cs.room, cs.teacher_id, cs.date, cs.start_time, cs.end_time, cs.created_at,
        t.full_name AS teacher_name, t.user_id AS teacher_user_id
        %s ORDER BY cs.date DESC, cs.start_time ASC LIMIT %d OFFSET %d`, base, size, offset)

	var sessions []models.ClassSessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list class sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count class sessions: %w", err)
	}
	return sessions, total, nil
}
