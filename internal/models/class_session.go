package models

import "time"

// ClassSession is a scheduled lecture. Sessions are immutable once created
// and may accumulate many QR tokens and attendance records over time.
type ClassSession struct {
	ID        string    `db:"id" json:"id"`
	Course    string    `db:"course" json:"course"`
	Batch     string    `db:"batch" json:"batch"`
	Room      string    `db:"room" json:"room"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Date      time.Time `db:"date" json:"date"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateSessionRequest is the payload for scheduling a class session.
// Date uses YYYY-MM-DD and times use HH:MM, matching the roster sheets.
type CreateSessionRequest struct {
	Course    string `json:"course" validate:"required,max=64"`
	Batch     string `json:"batch" validate:"required,max=64"`
	Room      string `json:"room" validate:"omitempty,max=64"`
	TeacherID string `json:"teacher_id" validate:"required,uuid4"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
}

// ClassSessionDetail joins the owning teacher's name for display.
type ClassSessionDetail struct {
	ClassSession
	TeacherName   string `db:"teacher_name" json:"teacher_name"`
	TeacherUserID string `db:"teacher_user_id" json:"-"`
}

// SessionFilter captures filtering criteria for listing sessions.
// TeacherID plus Date powers the teacher dashboard ("my sessions today").
type SessionFilter struct {
	TeacherID string
	Date      *time.Time
	Course    string
	Page      int
	PageSize  int
}
