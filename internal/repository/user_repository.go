package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

// UserRepository manages persistence for credentialed accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsernameAndRole fetches the account matching the role-qualified username.
func (r *UserRepository) FindByUsernameAndRole(ctx context.Context, username string, role models.UserRole) (*models.User, error) {
	const query = `SELECT id, username, password_hash, full_name, role, active, last_login, created_at, updated_at
        FROM users WHERE username = $1 AND role = $2`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, username, role); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID fetches an account by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, username, password_hash, full_name, role, active, last_login, created_at, updated_at
        FROM users WHERE id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new account. A unique-index conflict on the
// role-qualified username surfaces as ErrDuplicateUsername.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	const query = `INSERT INTO users (id, username, password_hash, full_name, role, active, created_at, updated_at)
        VALUES (:id, :username, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateUsername.Code, appErrors.ErrDuplicateUsername.Status, appErrors.ErrDuplicateUsername.Message)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the last successful authentication time.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// CountByRole returns how many accounts exist for a role.
func (r *UserRepository) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users WHERE role = $1", role); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return count, nil
}

// isUniqueViolation reports whether err is a postgres unique-index conflict.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
