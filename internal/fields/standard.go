package fields

import (
	"time"

	"github.com/rpattn/patientlist/internal/domain"
)

// Standard returns a builder pre-populated with the built-in patient and visit
// fields plus one attribute field per attribute type name.
func Standard(personAttributeTypes, visitAttributeTypes []string) *Builder {
	b := NewBuilder()
	b.Add(patientFields()...)
	b.Add(visitFields()...)
	for _, label := range personAttributeTypes {
		b.AddAttribute(SidePatient, label)
	}
	for _, label := range visitAttributeTypes {
		b.AddAttribute(SideVisit, label)
	}
	return b
}

func patientFields() []Descriptor {
	return []Descriptor{
		PatientField("p.id", Plain{Alias: "p", Column: "patient_id"}, TypeText, func(p domain.Patient) any {
			return p.ID.String()
		}),
		// full name has no single backing column
		PatientField("p.name", nil, TypeText, func(p domain.Patient) any {
			if name, ok := p.PreferredName(); ok {
				return name.FullName()
			}
			return nil
		}),
		PatientField("p.gender", Plain{Alias: "p", Column: "gender"}, TypeText, func(p domain.Patient) any {
			return p.Gender
		}),
		PatientField("p.birthdate", Plain{Alias: "p", Column: "birthdate"}, TypeDate, func(p domain.Patient) any {
			if p.Birthdate == nil {
				return nil
			}
			return *p.Birthdate
		}),
		PatientField("p.age", nil, TypeNumeric, func(p domain.Patient) any {
			if age, ok := p.AgeAt(time.Now()); ok {
				return age
			}
			return nil
		}),
		PatientField("p.dead", Plain{Alias: "p", Column: "dead"}, TypeBoolean, func(p domain.Patient) any {
			return p.Dead
		}),
		PatientField("p.dateCreated", Plain{Alias: "p", Column: "date_created"}, TypeDate, func(p domain.Patient) any {
			return p.DateCreated
		}),
		nameField("p.names.givenName", "given_name", func(n domain.PersonName) string { return n.GivenName }),
		nameField("p.names.middleName", "middle_name", func(n domain.PersonName) string { return n.MiddleName }),
		nameField("p.names.familyName", "family_name", func(n domain.PersonName) string { return n.FamilyName }),
		addressField("p.addresses.address1", "address1", func(a domain.PersonAddress) string { return a.Address1 }),
		addressField("p.addresses.address2", "address2", func(a domain.PersonAddress) string { return a.Address2 }),
		addressField("p.addresses.cityVillage", "city_village", func(a domain.PersonAddress) string { return a.CityVillage }),
		addressField("p.addresses.stateProvince", "state_province", func(a domain.PersonAddress) string { return a.StateProvince }),
		addressField("p.addresses.country", "country", func(a domain.PersonAddress) string { return a.Country }),
		addressField("p.addresses.postalCode", "postal_code", func(a domain.PersonAddress) string { return a.PostalCode }),
		identifierField("p.identifiers.identifier", "identifier", func(i domain.PatientIdentifier) string { return i.Identifier }),
		identifierField("p.identifiers.identifierType", "identifier_type", func(i domain.PatientIdentifier) string { return i.IdentifierType }),
	}
}

func visitFields() []Descriptor {
	return []Descriptor{
		VisitField("v.id", Plain{Alias: "v", Column: "visit_id"}, TypeText, func(v domain.Visit) any {
			return v.ID.String()
		}),
		VisitField("v.visitType", Plain{Alias: "v", Column: "visit_type"}, TypeText, func(v domain.Visit) any {
			return v.VisitType
		}),
		VisitField("v.location", Plain{Alias: "v", Column: "location"}, TypeText, func(v domain.Visit) any {
			return v.Location
		}),
		VisitField("v.startDate", Plain{Alias: "v", Column: "start_datetime"}, TypeDate, func(v domain.Visit) any {
			return v.StartDatetime
		}),
		VisitField("v.endDate", Plain{Alias: "v", Column: "stop_datetime"}, TypeDate, func(v domain.Visit) any {
			if v.StopDatetime == nil {
				return nil
			}
			return *v.StopDatetime
		}),
		VisitField("v.status", nil, TypeText, func(v domain.Visit) any {
			if v.Active() {
				return "active"
			}
			return "completed"
		}),
	}
}

func nameField(name, column string, value func(domain.PersonName) string) Descriptor {
	return PatientField(name, Alias{Collection: CollectionNames, Column: column}, TypeText, func(p domain.Patient) any {
		if n, ok := p.PreferredName(); ok {
			return value(n)
		}
		return nil
	})
}

func addressField(name, column string, value func(domain.PersonAddress) string) Descriptor {
	return PatientField(name, Alias{Collection: CollectionAddresses, Column: column}, TypeText, func(p domain.Patient) any {
		if a, ok := p.PreferredAddress(); ok {
			return value(a)
		}
		return nil
	})
}

func identifierField(name, column string, value func(domain.PatientIdentifier) string) Descriptor {
	return PatientField(name, Alias{Collection: CollectionIdentifiers, Column: column}, TypeText, func(p domain.Patient) any {
		if i, ok := p.PreferredIdentifier(); ok {
			return value(i)
		}
		return nil
	})
}
