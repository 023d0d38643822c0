package sqlite

import (
	"context"
	"strings"

	"github.com/example/telehealth-gateway/internal/persistence"
)

// UserRepository implements persistence.UserRepository.
type UserRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a repository on pool.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

// CreateUser stores a staff account. Usernames are unique.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.Username) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx, `
		INSERT INTO users (id, username, first_name, last_name, email)
		VALUES (?, ?, ?, ?, ?)`,
		strings.TrimSpace(user.ID),
		strings.TrimSpace(user.Username),
		strings.TrimSpace(user.FirstName),
		strings.TrimSpace(user.LastName),
		strings.TrimSpace(user.Email),
	)
	return r.mapper.MapError(err)
}

// GetUserByUsername looks a staff account up by login name.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	var user persistence.User
	err := r.helper.QueryRow(ctx,
		`SELECT id, username, first_name, last_name, email FROM users WHERE username = ?`,
		[]any{username},
		&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.Email,
	)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

// PatientRepository implements persistence.PatientRepository.
type PatientRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewPatientRepository creates a repository on pool.
func NewPatientRepository(pool *ConnectionPool) *PatientRepository {
	return &PatientRepository{helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

// CreatePatient stores patient demographics.
func (r *PatientRepository) CreatePatient(ctx context.Context, patient persistence.Patient) error {
	if strings.TrimSpace(patient.ID) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx, `
		INSERT INTO patients (id, first_name, last_name, email)
		VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(patient.ID),
		strings.TrimSpace(patient.FirstName),
		strings.TrimSpace(patient.LastName),
		strings.TrimSpace(patient.Email),
	)
	return r.mapper.MapError(err)
}

// GetPatient returns the patient with id.
func (r *PatientRepository) GetPatient(ctx context.Context, id string) (persistence.Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return persistence.Patient{}, persistence.ErrNotFound
	}

	var patient persistence.Patient
	err := r.helper.QueryRow(ctx,
		`SELECT id, first_name, last_name, email FROM patients WHERE id = ?`,
		[]any{id},
		&patient.ID, &patient.FirstName, &patient.LastName, &patient.Email,
	)
	if err != nil {
		return persistence.Patient{}, r.mapper.MapError(err)
	}
	return patient, nil
}
