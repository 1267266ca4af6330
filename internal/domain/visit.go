package domain

import (
	"time"

	"github.com/google/uuid"
)

// Visit is an encounter period of a patient.
type Visit struct {
	ID            uuid.UUID   `json:"id"`
	PatientID     uuid.UUID   `json:"patientId"`
	VisitType     string      `json:"visitType"`
	Location      string      `json:"location"`
	StartDatetime time.Time   `json:"startDatetime"`
	StopDatetime  *time.Time  `json:"stopDatetime,omitempty"`
	Attributes    []Attribute `json:"attributes"`
}

// Active reports whether the visit has not been stopped.
func (v Visit) Active() bool {
	return v.StopDatetime == nil
}

// AttributeValue returns the value of the attribute with the given type name.
func (v Visit) AttributeValue(typeName string) (string, bool) {
	return findAttribute(v.Attributes, typeName)
}
