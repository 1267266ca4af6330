package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/patientlist/internal/db"
)

// attributeTypeRepository implements AttributeTypeRepository interface
type attributeTypeRepository struct {
	db db.DBTX
}

// NewAttributeTypeRepository creates a new attribute type repository
func NewAttributeTypeRepository(conn db.DBTX) AttributeTypeRepository {
	return &attributeTypeRepository{db: conn}
}

// PersonAttributeTypes lists the names of all person attribute types
func (r *attributeTypeRepository) PersonAttributeTypes(ctx context.Context) ([]string, error) {
	names, err := r.names(ctx, `SELECT name FROM person_attribute_type ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list person attribute types: %w", err)
	}
	return names, nil
}

// VisitAttributeTypes lists the names of all visit attribute types
func (r *attributeTypeRepository) VisitAttributeTypes(ctx context.Context) ([]string, error) {
	names, err := r.names(ctx, `SELECT name FROM visit_attribute_type ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list visit attribute types: %w", err)
	}
	return names, nil
}

func (r *attributeTypeRepository) names(ctx context.Context, sql string) ([]string, error) {
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
