package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient is the subject of a patient list.
type Patient struct {
	ID          uuid.UUID           `json:"id"`
	Gender      string              `json:"gender"`
	Birthdate   *time.Time          `json:"birthdate,omitempty"`
	Dead        bool                `json:"dead"`
	DateCreated time.Time           `json:"dateCreated"`
	Names       []PersonName        `json:"names"`
	Addresses   []PersonAddress     `json:"addresses"`
	Identifiers []PatientIdentifier `json:"identifiers"`
	Attributes  []Attribute         `json:"attributes"`
}

// PersonName is one of a patient's names.
type PersonName struct {
	GivenName  string `json:"givenName"`
	MiddleName string `json:"middleName,omitempty"`
	FamilyName string `json:"familyName"`
	Preferred  bool   `json:"preferred"`
}

// FullName joins the non-empty name parts with single spaces.
func (n PersonName) FullName() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{n.GivenName, n.MiddleName, n.FamilyName} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// PersonAddress is one of a patient's addresses.
type PersonAddress struct {
	Address1      string `json:"address1"`
	Address2      string `json:"address2,omitempty"`
	CityVillage   string `json:"cityVillage"`
	StateProvince string `json:"stateProvince"`
	Country       string `json:"country"`
	PostalCode    string `json:"postalCode"`
	Preferred     bool   `json:"preferred"`
}

// PatientIdentifier is one of a patient's identifiers.
type PatientIdentifier struct {
	Identifier     string `json:"identifier"`
	IdentifierType string `json:"identifierType"`
	Preferred      bool   `json:"preferred"`
}

// Attribute is a typed key/value extension attached to a patient or visit.
// Type holds the attribute type name.
type Attribute struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// PreferredName returns the preferred name, falling back to the first name.
func (p Patient) PreferredName() (PersonName, bool) {
	for _, name := range p.Names {
		if name.Preferred {
			return name, true
		}
	}
	if len(p.Names) > 0 {
		return p.Names[0], true
	}
	return PersonName{}, false
}

// PreferredAddress returns the preferred address, falling back to the first address.
func (p Patient) PreferredAddress() (PersonAddress, bool) {
	for _, address := range p.Addresses {
		if address.Preferred {
			return address, true
		}
	}
	if len(p.Addresses) > 0 {
		return p.Addresses[0], true
	}
	return PersonAddress{}, false
}

// PreferredIdentifier returns the preferred identifier, falling back to the first one.
func (p Patient) PreferredIdentifier() (PatientIdentifier, bool) {
	for _, identifier := range p.Identifiers {
		if identifier.Preferred {
			return identifier, true
		}
	}
	if len(p.Identifiers) > 0 {
		return p.Identifiers[0], true
	}
	return PatientIdentifier{}, false
}

// AttributeValue returns the value of the attribute with the given type name.
func (p Patient) AttributeValue(typeName string) (string, bool) {
	return findAttribute(p.Attributes, typeName)
}

// AgeAt returns the patient's age in whole years at the given instant.
func (p Patient) AgeAt(now time.Time) (int, bool) {
	if p.Birthdate == nil {
		return 0, false
	}
	born := *p.Birthdate
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

func findAttribute(attributes []Attribute, typeName string) (string, bool) {
	for _, attr := range attributes {
		if strings.EqualFold(attr.Type, typeName) {
			return attr.Value, true
		}
	}
	return "", false
}
