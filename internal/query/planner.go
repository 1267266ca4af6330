package query

import (
	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/fields"
)

const visitAlias = "v"

const (
	joinVisit = "INNER JOIN patient p ON p.patient_id = v.patient_id"

	joinPatientAttributes = "INNER JOIN person_attribute pattr ON pattr.patient_id = p.patient_id " +
		"INNER JOIN person_attribute_type pattr_type ON pattr_type.person_attribute_type_id = pattr.attribute_type_id"

	joinVisitAttributes = "INNER JOIN visit_attribute vattr ON vattr.visit_id = v.visit_id " +
		"INNER JOIN visit_attribute_type vattr_type ON vattr_type.visit_attribute_type_id = vattr.attribute_type_id"

	joinNames       = "INNER JOIN person_name pnames ON pnames.patient_id = p.patient_id"
	joinAddresses   = "INNER JOIN person_address paddresses ON paddresses.patient_id = p.patient_id"
	joinIdentifiers = "INNER JOIN patient_identifier pidentifiers ON pidentifiers.patient_id = p.patient_id"
)

// Joins records which optional joins a patient list needs.
type Joins struct {
	Visit             bool
	PatientAttributes bool
	VisitAttributes   bool
	Names             bool
	Addresses         bool
	Identifiers       bool
}

// PlanJoins inspects every condition and ordering field once and returns the
// joins they require.
func PlanJoins(registry *fields.Registry, conditions []domain.PatientListCondition, ordering []domain.PatientListOrder) Joins {
	var j Joins
	for _, cond := range conditions {
		j.mark(registry, cond.Field)
	}
	for _, order := range ordering {
		j.mark(registry, order.Field)
	}
	if j.VisitAttributes {
		j.Visit = true
	}
	return j
}

func (j *Joins) mark(registry *fields.Registry, name string) {
	if side, attribute, ok := fields.ClassifyName(name); ok {
		if side == fields.SideVisit {
			j.Visit = true
		}
		if attribute {
			j.markAttribute(side)
		}
	}

	d, ok := registry.Lookup(name)
	if !ok {
		return
	}

	switch m := d.Mapping.(type) {
	case fields.Plain:
		if m.Alias == visitAlias {
			j.Visit = true
		}
	case fields.Attribute:
		j.markAttribute(m.Side)
	case fields.Alias:
		switch m.Collection {
		case fields.CollectionNames:
			j.Names = true
		case fields.CollectionAddresses:
			j.Addresses = true
		case fields.CollectionIdentifiers:
			j.Identifiers = true
		}
	}
}

func (j *Joins) markAttribute(side fields.Side) {
	if side == fields.SideVisit {
		j.VisitAttributes = true
		j.Visit = true
		return
	}
	j.PatientAttributes = true
}

// fragments returns the join clauses that follow the FROM clause, in their
// fixed emission order.
func (j Joins) fragments() []string {
	out := make([]string, 0, 5)
	if j.PatientAttributes {
		out = append(out, joinPatientAttributes)
	}
	if j.VisitAttributes {
		out = append(out, joinVisitAttributes)
	}
	if j.Names {
		out = append(out, joinNames)
	}
	if j.Addresses {
		out = append(out, joinAddresses)
	}
	if j.Identifiers {
		out = append(out, joinIdentifiers)
	}
	return out
}
