package models

import "time"

// Teacher represents a member of the teaching roster. Every teacher is
// backed by a users row carrying the login credential.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	FullName  string    `db:"full_name" json:"full_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateTeacherRequest is the payload for registering a teacher together
// with the login credential backing it.
type CreateTeacherRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	FullName string `json:"full_name" validate:"required,max=128"`
}

// TeacherFilter captures filtering criteria for listing teachers.
type TeacherFilter struct {
	Search   string
	Page     int
	PageSize int
}
