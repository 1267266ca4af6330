package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rpattn/patientlist/internal/db"
	"github.com/rpattn/patientlist/internal/domain"
)

const patientListColumns = "id, name, description, header_template, body_template, conditions, ordering, created_at, updated_at"

// patientListRepository implements PatientListRepository interface
type patientListRepository struct {
	db db.DBTX
}

// NewPatientListRepository creates a new patient list repository
func NewPatientListRepository(conn db.DBTX) PatientListRepository {
	return &patientListRepository{db: conn}
}

// Create creates a new patient list
func (r *patientListRepository) Create(ctx context.Context, list domain.PatientList) (domain.PatientList, error) {
	conditions, ordering, err := encodeListFilters(list)
	if err != nil {
		return domain.PatientList{}, err
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO patient_list (name, description, header_template, body_template, conditions, ordering)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+patientListColumns,
		list.Name, list.Description, list.HeaderTemplate, list.BodyTemplate, conditions, ordering,
	)
	created, err := scanPatientList(row)
	if err != nil {
		return domain.PatientList{}, fmt.Errorf("failed to create patient list: %w", conflict(err))
	}
	return created, nil
}

// GetByID retrieves a patient list by ID
func (r *patientListRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.PatientList, error) {
	row := r.db.QueryRow(ctx, `SELECT `+patientListColumns+` FROM patient_list WHERE id = $1`, id)
	list, err := scanPatientList(row)
	if err != nil {
		return domain.PatientList{}, fmt.Errorf("failed to get patient list: %w", notFound(err))
	}
	return list, nil
}

// GetByName retrieves a patient list by its unique name
func (r *patientListRepository) GetByName(ctx context.Context, name string) (domain.PatientList, error) {
	row := r.db.QueryRow(ctx, `SELECT `+patientListColumns+` FROM patient_list WHERE name = $1`, name)
	list, err := scanPatientList(row)
	if err != nil {
		return domain.PatientList{}, fmt.Errorf("failed to get patient list by name: %w", notFound(err))
	}
	return list, nil
}

// List retrieves all patient lists ordered by name
func (r *patientListRepository) List(ctx context.Context) ([]domain.PatientList, error) {
	rows, err := r.db.Query(ctx, `SELECT `+patientListColumns+` FROM patient_list ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient lists: %w", err)
	}
	defer rows.Close()

	lists := make([]domain.PatientList, 0)
	for rows.Next() {
		list, err := scanPatientList(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient list: %w", err)
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list patient lists: %w", err)
	}
	return lists, nil
}

// Update replaces the definition of an existing patient list
func (r *patientListRepository) Update(ctx context.Context, list domain.PatientList) (domain.PatientList, error) {
	conditions, ordering, err := encodeListFilters(list)
	if err != nil {
		return domain.PatientList{}, err
	}

	row := r.db.QueryRow(ctx,
		`UPDATE patient_list
		 SET name = $2, description = $3, header_template = $4, body_template = $5,
		     conditions = $6, ordering = $7, updated_at = $8
		 WHERE id = $1
		 RETURNING `+patientListColumns,
		list.ID, list.Name, list.Description, list.HeaderTemplate, list.BodyTemplate, conditions, ordering, time.Now().UTC(),
	)
	updated, err := scanPatientList(row)
	if err != nil {
		return domain.PatientList{}, fmt.Errorf("failed to update patient list: %w", conflict(notFound(err)))
	}
	return updated, nil
}

// Delete removes a patient list
func (r *patientListRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM patient_list WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete patient list: %w", ErrNotFound)
	}
	return nil
}

func encodeListFilters(list domain.PatientList) (json.RawMessage, json.RawMessage, error) {
	conditions, err := domain.ConditionsToJSONB(list.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal conditions: %w", err)
	}
	ordering, err := domain.OrderingToJSONB(list.Ordering)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal ordering: %w", err)
	}
	return conditions, ordering, nil
}

func scanPatientList(row pgx.Row) (domain.PatientList, error) {
	var (
		list       domain.PatientList
		conditions []byte
		ordering   []byte
	)
	if err := row.Scan(
		&list.ID,
		&list.Name,
		&list.Description,
		&list.HeaderTemplate,
		&list.BodyTemplate,
		&conditions,
		&ordering,
		&list.CreatedAt,
		&list.UpdatedAt,
	); err != nil {
		return domain.PatientList{}, err
	}

	var err error
	if list.Conditions, err = domain.ConditionsFromJSONB(conditions); err != nil {
		return domain.PatientList{}, fmt.Errorf("failed to unmarshal conditions: %w", err)
	}
	if list.Ordering, err = domain.OrderingFromJSONB(ordering); err != nil {
		return domain.PatientList{}, fmt.Errorf("failed to unmarshal ordering: %w", err)
	}
	return list, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const uniqueViolation = "23505"

func conflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
