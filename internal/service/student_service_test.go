package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type mockStudentStore struct {
	students map[string]*models.Student
	deleted  []string
}

func (m *mockStudentStore) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range m.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for _, s := range m.students {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) FindByRoll(ctx context.Context, roll string) (*models.Student, error) {
	s, ok := m.students[roll]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (m *mockStudentStore) ExistsByRoll(ctx context.Context, roll string) (bool, error) {
	_, ok := m.students[roll]
	return ok, nil
}

func (m *mockStudentStore) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]*models.Student)
	}
	student.ID = "stu-" + student.RollNumber
	m.students[student.RollNumber] = student
	return nil
}

func (m *mockStudentStore) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	store := &mockStudentStore{}
	svc := NewStudentService(store, validator.New(), zap.NewNop())

	student, err := svc.Create(context.Background(), models.CreateStudentRequest{
		RollNumber: "CS-01", FullName: "Alice", Batch: "2024", Course: "CS101", Year: "2",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, "CS-01", student.RollNumber)
}

func TestStudentServiceCreateDuplicateRoll(t *testing.T) {
	store := &mockStudentStore{students: map[string]*models.Student{
		"CS-01": {ID: "stu-1", RollNumber: "CS-01"},
	}}
	svc := NewStudentService(store, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), models.CreateStudentRequest{
		RollNumber: "CS-01", FullName: "Alice", Batch: "2024", Course: "CS101",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateRoll.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := NewStudentService(&mockStudentStore{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), models.CreateStudentRequest{FullName: "Alice"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDeleteMissing(t *testing.T) {
	svc := NewStudentService(&mockStudentStore{}, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
