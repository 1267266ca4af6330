package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrQuerySyntax is reported by query executors when the database rejects the
// compiled query text or its bound values.
var ErrQuerySyntax = errors.New("query syntax error")

// PatientList is a saved list definition: the conditions and ordering that
// select its rows plus the templates rendered for each row.
type PatientList struct {
	ID             uuid.UUID              `json:"id" yaml:"id,omitempty"`
	Name           string                 `json:"name" yaml:"name"`
	Description    string                 `json:"description" yaml:"description,omitempty"`
	HeaderTemplate string                 `json:"headerTemplate" yaml:"headerTemplate,omitempty"`
	BodyTemplate   string                 `json:"bodyTemplate" yaml:"bodyTemplate,omitempty"`
	Conditions     []PatientListCondition `json:"conditions" yaml:"conditions"`
	Ordering       []PatientListOrder     `json:"ordering" yaml:"ordering"`
	CreatedAt      time.Time              `json:"createdAt" yaml:"-"`
	UpdatedAt      time.Time              `json:"updatedAt" yaml:"-"`
}

// PatientListData is one rendered row of a patient list.
type PatientListData struct {
	Patient       Patient      `json:"patient"`
	Visit         *Visit       `json:"visit,omitempty"`
	PatientList   *PatientList `json:"-"`
	HeaderContent string       `json:"headerContent"`
	BodyContent   string       `json:"bodyContent"`
}

// ListRow is a row returned by a list query: either a bare patient or a visit
// together with its patient.
type ListRow interface {
	isListRow()
}

// PatientRow is returned when the list query selects patients.
type PatientRow struct {
	Patient Patient
}

// VisitRow is returned when the list query selects visits.
type VisitRow struct {
	Visit   Visit
	Patient Patient
}

func (PatientRow) isListRow() {}
func (VisitRow) isListRow()   {}

// Helper utilities for encoding/decoding condition data to JSONB blobs used by persistence.
func ConditionsToJSONB(conditions []PatientListCondition) (json.RawMessage, error) {
	if conditions == nil {
		conditions = []PatientListCondition{}
	}
	return json.Marshal(conditions)
}

func ConditionsFromJSONB(data json.RawMessage) ([]PatientListCondition, error) {
	if len(data) == 0 {
		return []PatientListCondition{}, nil
	}

	var conditions []PatientListCondition
	if err := json.Unmarshal(data, &conditions); err != nil {
		return nil, err
	}
	if conditions == nil {
		conditions = []PatientListCondition{}
	}
	return conditions, nil
}

func OrderingToJSONB(ordering []PatientListOrder) (json.RawMessage, error) {
	if ordering == nil {
		ordering = []PatientListOrder{}
	}
	return json.Marshal(ordering)
}

func OrderingFromJSONB(data json.RawMessage) ([]PatientListOrder, error) {
	if len(data) == 0 {
		return []PatientListOrder{}, nil
	}

	var ordering []PatientListOrder
	if err := json.Unmarshal(data, &ordering); err != nil {
		return nil, err
	}
	if ordering == nil {
		ordering = []PatientListOrder{}
	}
	return ordering, nil
}
