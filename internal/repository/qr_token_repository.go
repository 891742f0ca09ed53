package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

// QRTokenRepository persists session-bound scan tokens.
type QRTokenRepository struct {
	db *sqlx.DB
}

// NewQRTokenRepository constructs a QRTokenRepository.
func NewQRTokenRepository(db *sqlx.DB) *QRTokenRepository {
	return &QRTokenRepository{db: db}
}

// Issue deactivates every active token for the session and inserts the
// replacement inside a single transaction. No reader can observe two active
// tokens for one session, and a scan racing the supersession sees either the
// old token fully active or fully inactive.
func (r *QRTokenRepository) Issue(ctx context.Context, sessionID, secret string, createdAt, expiresAt time.Time) (*models.QRToken, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin issue qr token: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`UPDATE qr_tokens SET active = false WHERE class_session_id = $1 AND active = true`,
		sessionID,
	); err != nil {
		return nil, fmt.Errorf("deactivate prior qr tokens: %w", err)
	}

	token := &models.QRToken{
		ID:             uuid.NewString(),
		ClassSessionID: sessionID,
		Secret:         secret,
		CreatedAt:      createdAt,
		ExpiresAt:      expiresAt,
		Active:         true,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO qr_tokens (id, class_session_id, secret, created_at, expires_at, active)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.ClassSessionID, token.Secret, token.CreatedAt, token.ExpiresAt, token.Active,
	); err != nil {
		return nil, fmt.Errorf("insert qr token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit issue qr token: %w", err)
	}
	committed = true
	return token, nil
}

// FindByID fetches a token by its identifier.
func (r *QRTokenRepository) FindByID(ctx context.Context, id string) (*models.QRToken, error) {
	const query = `SELECT id, class_session_id, secret, created_at, expires_at, active
        FROM qr_tokens WHERE id = $1`
	var token models.QRToken
	if err := r.db.GetContext(ctx, &token, query, id); err != nil {
		return nil, err
	}
	return &token, nil
}

// FindActiveBySession returns the session's currently active token, if any.
func (r *QRTokenRepository) FindActiveBySession(ctx context.Context, sessionID string) (*models.QRToken, error) {
	const query = `SELECT id, class_session_id, secret, created_at, expires_at, active
        FROM qr_tokens WHERE class_session_id = $1 AND active = true`
	var token models.QRToken
	if err := r.db.GetContext(ctx, &token, query, sessionID); err != nil {
		return nil, err
	}
	return &token, nil
}
