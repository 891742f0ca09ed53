package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type mockUserRepo struct {
	users            map[string]*models.User
	adminCount       int
	created          []*models.User
	lastLoginUpdated bool
}

func userKey(username string, role models.UserRole) string { return username + "/" + string(role) }

func (m *mockUserRepo) FindByUsernameAndRole(ctx context.Context, username string, role models.UserRole) (*models.User, error) {
	u, ok := m.users[userKey(username, role)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	m.users[userKey(user.Username, user.Role)] = user
	m.created = append(m.created, user)
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockUserRepo) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	if role == models.RoleAdmin {
		return m.adminCount, nil
	}
	return 0, nil
}

func newTestAuthService(repo *mockUserRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		Secret:               "secret",
		Expiry:               time.Hour,
		Issuer:               "qr-attendance-api",
		DefaultAdminUsername: "admin",
		DefaultAdminPassword: "admin123",
		DefaultAdminFullName: "Administrator",
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockUserRepo{users: map[string]*models.User{
		userKey("admin", models.RoleAdmin): {ID: "u1", Username: "admin", PasswordHash: string(hash), FullName: "Administrator", Role: models.RoleAdmin, Active: true},
	}}
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Role: models.RoleAdmin, Username: "admin", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, models.RoleAdmin, res.Principal.Role)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginRoleQualified(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockUserRepo{users: map[string]*models.User{
		userKey("smith", models.RoleTeacher): {ID: "u2", Username: "smith", PasswordHash: string(hash), Role: models.RoleTeacher, Active: true},
	}}
	svc := newTestAuthService(repo)

	// Same username under the wrong role does not authenticate.
	_, err := svc.Login(context.Background(), models.LoginRequest{Role: models.RoleAdmin, Username: "smith", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	res, err := svc.Login(context.Background(), models.LoginRequest{Role: models.RoleTeacher, Username: "smith", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, res.Principal.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockUserRepo{users: map[string]*models.User{
		userKey("admin", models.RoleAdmin): {ID: "u1", Username: "admin", PasswordHash: string(hash), Role: models.RoleAdmin, Active: true},
	}}
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Role: models.RoleAdmin, Username: "admin", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInvalidRole(t *testing.T) {
	svc := newTestAuthService(&mockUserRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Role: "ROOT", Username: "admin", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceEnsureDefaultAdmin(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newTestAuthService(repo)

	require.NoError(t, svc.EnsureDefaultAdmin(context.Background()))
	require.Len(t, repo.created, 1)
	admin := repo.created[0]
	assert.Equal(t, "admin", admin.Username)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin123")))
}

func TestAuthServiceEnsureDefaultAdminSkipsWhenPresent(t *testing.T) {
	repo := &mockUserRepo{adminCount: 1}
	svc := newTestAuthService(repo)

	require.NoError(t, svc.EnsureDefaultAdmin(context.Background()))
	assert.Empty(t, repo.created)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	svc := newTestAuthService(&mockUserRepo{})
	other := NewAuthService(&mockUserRepo{}, validator.New(), zap.NewNop(), AuthConfig{Secret: "different", Expiry: time.Hour})

	token, _, err := other.generateAccessToken(&models.User{ID: "u1", Username: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
