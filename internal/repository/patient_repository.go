package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/patientlist/internal/db"
	"github.com/rpattn/patientlist/internal/domain"
)

// patientRepository implements PatientRepository and VisitRepository
type patientRepository struct {
	db db.DBTX
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(conn db.DBTX) PatientRepository {
	return &patientRepository{db: conn}
}

// NewVisitRepository creates a new visit repository
func NewVisitRepository(conn db.DBTX) VisitRepository {
	return &patientRepository{db: conn}
}

// GetByIDs retrieves patients and their sub-collections. Unknown IDs are
// omitted from the result.
func (r *patientRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Patient, error) {
	if len(ids) == 0 {
		return []domain.Patient{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT patient_id, gender, birthdate, dead, date_created
		 FROM patient WHERE patient_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get patients by IDs: %w", err)
	}

	patients := make([]domain.Patient, 0, len(ids))
	index := make(map[uuid.UUID]int, len(ids))
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		index[p.ID] = len(patients)
		patients = append(patients, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get patients by IDs: %w", err)
	}
	if len(patients) == 0 {
		return patients, nil
	}

	if err := r.loadNames(ctx, ids, patients, index); err != nil {
		return nil, err
	}
	if err := r.loadAddresses(ctx, ids, patients, index); err != nil {
		return nil, err
	}
	if err := r.loadIdentifiers(ctx, ids, patients, index); err != nil {
		return nil, err
	}
	if err := r.loadAttributes(ctx, ids, patients, index); err != nil {
		return nil, err
	}
	return patients, nil
}

func (r *patientRepository) loadNames(ctx context.Context, ids []uuid.UUID, patients []domain.Patient, index map[uuid.UUID]int) error {
	rows, err := r.db.Query(ctx,
		`SELECT patient_id, given_name, middle_name, family_name, preferred
		 FROM person_name WHERE patient_id = ANY($1)
		 ORDER BY preferred DESC, person_name_id`, ids)
	if err != nil {
		return fmt.Errorf("failed to load person names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			patientID uuid.UUID
			name      domain.PersonName
		)
		if err := rows.Scan(&patientID, &name.GivenName, &name.MiddleName, &name.FamilyName, &name.Preferred); err != nil {
			return fmt.Errorf("failed to scan person name: %w", err)
		}
		if i, ok := index[patientID]; ok {
			patients[i].Names = append(patients[i].Names, name)
		}
	}
	return rows.Err()
}

func (r *patientRepository) loadAddresses(ctx context.Context, ids []uuid.UUID, patients []domain.Patient, index map[uuid.UUID]int) error {
	rows, err := r.db.Query(ctx,
		`SELECT patient_id, address1, address2, city_village, state_province, country, postal_code, preferred
		 FROM person_address WHERE patient_id = ANY($1)
		 ORDER BY preferred DESC, person_address_id`, ids)
	if err != nil {
		return fmt.Errorf("failed to load person addresses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			patientID uuid.UUID
			a         domain.PersonAddress
		)
		if err := rows.Scan(&patientID, &a.Address1, &a.Address2, &a.CityVillage, &a.StateProvince, &a.Country, &a.PostalCode, &a.Preferred); err != nil {
			return fmt.Errorf("failed to scan person address: %w", err)
		}
		if i, ok := index[patientID]; ok {
			patients[i].Addresses = append(patients[i].Addresses, a)
		}
	}
	return rows.Err()
}

func (r *patientRepository) loadIdentifiers(ctx context.Context, ids []uuid.UUID, patients []domain.Patient, index map[uuid.UUID]int) error {
	rows, err := r.db.Query(ctx,
		`SELECT patient_id, identifier, identifier_type, preferred
		 FROM patient_identifier WHERE patient_id = ANY($1)
		 ORDER BY preferred DESC, patient_identifier_id`, ids)
	if err != nil {
		return fmt.Errorf("failed to load patient identifiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			patientID uuid.UUID
			id        domain.PatientIdentifier
		)
		if err := rows.Scan(&patientID, &id.Identifier, &id.IdentifierType, &id.Preferred); err != nil {
			return fmt.Errorf("failed to scan patient identifier: %w", err)
		}
		if i, ok := index[patientID]; ok {
			patients[i].Identifiers = append(patients[i].Identifiers, id)
		}
	}
	return rows.Err()
}

func (r *patientRepository) loadAttributes(ctx context.Context, ids []uuid.UUID, patients []domain.Patient, index map[uuid.UUID]int) error {
	rows, err := r.db.Query(ctx,
		`SELECT pa.patient_id, pat.name, pa.value
		 FROM person_attribute pa
		 INNER JOIN person_attribute_type pat ON pat.person_attribute_type_id = pa.attribute_type_id
		 WHERE pa.patient_id = ANY($1)
		 ORDER BY pat.name`, ids)
	if err != nil {
		return fmt.Errorf("failed to load person attributes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			patientID uuid.UUID
			attr      domain.Attribute
		)
		if err := rows.Scan(&patientID, &attr.Type, &attr.Value); err != nil {
			return fmt.Errorf("failed to scan person attribute: %w", err)
		}
		if i, ok := index[patientID]; ok {
			patients[i].Attributes = append(patients[i].Attributes, attr)
		}
	}
	return rows.Err()
}

// AttributesByVisitIDs retrieves the attributes of the given visits keyed by visit ID.
func (r *patientRepository) AttributesByVisitIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.Attribute, error) {
	out := make(map[uuid.UUID][]domain.Attribute, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT va.visit_id, vat.name, va.value_reference
		 FROM visit_attribute va
		 INNER JOIN visit_attribute_type vat ON vat.visit_attribute_type_id = va.attribute_type_id
		 WHERE va.visit_id = ANY($1)
		 ORDER BY vat.name`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load visit attributes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			visitID uuid.UUID
			attr    domain.Attribute
		)
		if err := rows.Scan(&visitID, &attr.Type, &attr.Value); err != nil {
			return nil, fmt.Errorf("failed to scan visit attribute: %w", err)
		}
		out[visitID] = append(out[visitID], attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load visit attributes: %w", err)
	}
	return out, nil
}

// patientScanTargets returns scan destinations for the patient base columns
// and a function that copies the scanned values into a domain.Patient.
func patientScanTargets() ([]any, func() domain.Patient) {
	var (
		id          uuid.UUID
		gender      pgtype.Text
		birthdate   pgtype.Date
		dead        pgtype.Bool
		dateCreated pgtype.Timestamptz
	)
	dests := []any{&id, &gender, &birthdate, &dead, &dateCreated}
	return dests, func() domain.Patient {
		p := domain.Patient{
			ID:     id,
			Gender: gender.String,
			Dead:   dead.Bool,
		}
		if birthdate.Valid {
			t := birthdate.Time
			p.Birthdate = &t
		}
		if dateCreated.Valid {
			p.DateCreated = dateCreated.Time
		}
		return p
	}
}

func scanPatient(row interface{ Scan(...any) error }) (domain.Patient, error) {
	dests, build := patientScanTargets()
	if err := row.Scan(dests...); err != nil {
		return domain.Patient{}, err
	}
	return build(), nil
}
