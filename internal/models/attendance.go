package models

import "time"

// AttendanceRecord is proof that a student was present at a class session.
// The (student, class_session) pair is unique; records are created only by a
// successful scan and never updated by the normal flow.
type AttendanceRecord struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	ClassSessionID string    `db:"class_session_id" json:"class_session_id"`
	MarkedAt       time.Time `db:"marked_at" json:"marked_at"`
}

// AttendanceDetail joins student identity for per-session listings.
type AttendanceDetail struct {
	AttendanceRecord
	RollNumber  string `db:"roll_number" json:"roll_number"`
	StudentName string `db:"student_name" json:"student_name"`
}

// ExportRow is one line of the attendance export.
type ExportRow struct {
	Roll   string    `db:"roll_number"`
	Name   string    `db:"full_name"`
	Course string    `db:"course"`
	Date   time.Time `db:"date"`
}

// DashboardSummary aggregates roster and ledger totals for the admin landing page.
type DashboardSummary struct {
	TotalStudents   int       `json:"total_students"`
	TotalTeachers   int       `json:"total_teachers"`
	TotalSessions   int       `json:"total_sessions"`
	TotalAttendance int       `json:"total_attendance"`
	GeneratedAt     time.Time `json:"generated_at"`
}
