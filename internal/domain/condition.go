package domain

// Operator is a logical comparison operator used by patient list conditions.
type Operator string

const (
	OperatorEquals      Operator = "EQUALS"
	OperatorNotEquals   Operator = "NOT_EQUALS"
	OperatorGreaterThan Operator = "GT"
	OperatorGreaterOrEq Operator = "GTE"
	OperatorLessThan    Operator = "LT"
	OperatorLessOrEq    Operator = "LTE"
	OperatorLike        Operator = "LIKE"
	OperatorContains    Operator = "CONTAINS"
	OperatorStartsWith  Operator = "STARTS_WITH"
	OperatorEndsWith    Operator = "ENDS_WITH"
	OperatorNull        Operator = "NULL"
	OperatorNotNull     Operator = "NOT_NULL"
)

// PatientListCondition is a single field-level filter of a patient list.
type PatientListCondition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
}

// PatientListOrder is a single sort entry of a patient list.
type PatientListOrder struct {
	Field     string        `json:"field" yaml:"field"`
	SortOrder SortDirection `json:"sortOrder" yaml:"sortOrder"`
}
