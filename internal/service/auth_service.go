package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type authUserRepository interface {
	FindByUsernameAndRole(ctx context.Context, username string, role models.UserRole) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret               string
	Expiry               time.Duration
	Issuer               string
	DefaultAdminUsername string
	DefaultAdminPassword string
	DefaultAdminFullName string
}

// AuthService provides login and token validation for admins and teachers.
type AuthService struct {
	repo      authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, config: config, now: func() time.Time { return time.Now().UTC() }}
}

// Login authenticates a role-qualified username and returns a signed token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByUsernameAndRole(ctx, req.Username, req.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
	}

	accessToken, expiresAt, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		IssuedAt:    s.now(),
		Principal: models.Principal{
			ID:       user.ID,
			Username: user.Username,
			FullName: user.FullName,
			Role:     user.Role,
		},
	}, nil
}

// Me returns the current account for the authenticated principal.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

// EnsureDefaultAdmin seeds the initial admin account when none exists.
func (s *AuthService) EnsureDefaultAdmin(ctx context.Context) error {
	count, err := s.repo.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("ensure default admin: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.config.DefaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash default admin password: %w", err)
	}

	admin := &models.User{
		ID:           uuid.NewString(),
		Username:     s.config.DefaultAdminUsername,
		PasswordHash: string(hash),
		FullName:     s.config.DefaultAdminFullName,
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrDuplicateUsername.Code {
			return nil
		}
		return fmt.Errorf("seed default admin: %w", err)
	}

	s.logger.Info("seeded default admin account", zap.String("username", admin.Username))
	return nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.config.Expiry)
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Username: user.Username,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
