package repository

import (
	"context"
	"errors"

	"github.com/rpattn/patientlist/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// PatientRepository loads patients together with their names, addresses,
// identifiers and attributes.
type PatientRepository interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Patient, error)
}

// VisitRepository loads visit level data that is not part of a list row.
type VisitRepository interface {
	AttributesByVisitIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.Attribute, error)
}

// AttributeTypeRepository lists the configured attribute type names.
type AttributeTypeRepository interface {
	PersonAttributeTypes(ctx context.Context) ([]string, error)
	VisitAttributeTypes(ctx context.Context) ([]string, error)
}

// PatientListRepository defines the interface for patient list definitions
type PatientListRepository interface {
	Create(ctx context.Context, list domain.PatientList) (domain.PatientList, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.PatientList, error)
	GetByName(ctx context.Context, name string) (domain.PatientList, error)
	List(ctx context.Context) ([]domain.PatientList, error)
	Update(ctx context.Context, list domain.PatientList) (domain.PatientList, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
