package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

// AttendanceRepository persists the attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Exists reports whether the student already has a record for the session.
// This is a fast-path check only; Insert's unique constraint decides races.
func (r *AttendanceRepository) Exists(ctx context.Context, studentID, sessionID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists,
		"SELECT 1 FROM attendance_records WHERE student_id = $1 AND class_session_id = $2 LIMIT 1",
		studentID, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return true, nil
}

// Insert writes one attendance record per (student, session) pair. The
// unique constraint is the last line of defense: under concurrent scans the
// conflict clause returns no row and the loser gets ErrAlreadyMarked.
func (r *AttendanceRepository) Insert(ctx context.Context, studentID, sessionID string, markedAt time.Time) (*models.AttendanceRecord, error) {
	record := &models.AttendanceRecord{
		ID:             uuid.NewString(),
		StudentID:      studentID,
		ClassSessionID: sessionID,
		MarkedAt:       markedAt,
	}
	const query = `INSERT INTO attendance_records (id, student_id, class_session_id, marked_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (student_id, class_session_id) DO NOTHING
        RETURNING id, student_id, class_session_id, marked_at`
	var stored models.AttendanceRecord
	err := r.db.GetContext(ctx, &stored, query, record.ID, record.StudentID, record.ClassSessionID, record.MarkedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrAlreadyMarked, "")
		}
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	return &stored, nil
}

// ListBySession returns attendance entries with student identity attached.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceDetail, error) {
	const query = `SELECT ar.id, ar.student_id, ar.class_session_id, ar.marked_at,
        s.roll_number, s.full_name AS student_name
        FROM attendance_records ar
        JOIN students s ON s.id = ar.student_id
        WHERE ar.class_session_id = $1
        ORDER BY s.roll_number`
	var details []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &details, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance for session: %w", err)
	}
	return details, nil
}

// StreamExportRows walks the ledger/roster join in deterministic order and
// hands each row to fn, keeping memory bounded for large exports.
func (r *AttendanceRepository) StreamExportRows(ctx context.Context, sessionID string, fn func(models.ExportRow) error) error {
	query := `SELECT s.roll_number, s.full_name, s.course, cs.date
        FROM attendance_records ar
        JOIN students s ON s.id = ar.student_id
        JOIN class_sessions cs ON cs.id = ar.class_session_id`
	args := []interface{}{}
	if sessionID != "" {
		query += " WHERE ar.class_session_id = $1"
		args = append(args, sessionID)
	}
	query += " ORDER BY cs.date, s.roll_number"

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query export rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row models.ExportRow
		if err := rows.StructScan(&row); err != nil {
			return fmt.Errorf("scan export row: %w", err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate export rows: %w", err)
	}
	return nil
}

// Totals aggregates roster and ledger counts for the dashboard.
func (r *AttendanceRepository) Totals(ctx context.Context) (*models.DashboardSummary, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students) AS total_students,
        (SELECT COUNT(*) FROM teachers) AS total_teachers,
        (SELECT COUNT(*) FROM class_sessions) AS total_sessions,
        (SELECT COUNT(*) FROM attendance_records) AS total_attendance`
	var summary struct {
		TotalStudents   int `db:"total_students"`
		TotalTeachers   int `db:"total_teachers"`
		TotalSessions   int `db:"total_sessions"`
		TotalAttendance int `db:"total_attendance"`
	}
	if err := r.db.GetContext(ctx, &summary, query); err != nil {
		return nil, fmt.Errorf("dashboard totals: %w", err)
	}
	return &models.DashboardSummary{
		TotalStudents:   summary.TotalStudents,
		TotalTeachers:   summary.TotalTeachers,
		TotalSessions:   summary.TotalSessions,
		TotalAttendance: summary.TotalAttendance,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}
