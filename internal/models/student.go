package models

import "time"

// Student represents a learner on the roster, keyed by a unique roll number.
type Student struct {
	ID         string    `db:"id" json:"id"`
	RollNumber string    `db:"roll_number" json:"roll_number"`
	FullName   string    `db:"full_name" json:"full_name"`
	Batch      string    `db:"batch" json:"batch"`
	Course     string    `db:"course" json:"course"`
	Year       string    `db:"year" json:"year"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Batch     string
	Course    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateStudentRequest is the payload for enrolling a student.
type CreateStudentRequest struct {
	RollNumber string `json:"roll_number" validate:"required,max=32"`
	FullName   string `json:"full_name" validate:"required,max=128"`
	Batch      string `json:"batch" validate:"required,max=64"`
	Course     string `json:"course" validate:"required,max=64"`
	Year       string `json:"year" validate:"omitempty,max=16"`
}

// RosterEntry is the display-only projection embedded in QR payloads.
type RosterEntry struct {
	Roll string `db:"roll_number" json:"roll"`
	Name string `db:"full_name" json:"name"`
}
