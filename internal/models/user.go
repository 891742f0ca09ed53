package models

import "time"

// UserRole represents the available principal roles.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
)

// Valid reports whether the role is one of the known principals.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleTeacher
}

// User represents a credentialed account stored in the users table.
// Both administrators and teachers authenticate through this table;
// the role qualifies the unique username.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
