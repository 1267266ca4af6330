package query

import (
	"strings"

	"github.com/rpattn/patientlist/internal/domain"
)

var operatorSQL = map[domain.Operator]string{
	domain.OperatorEquals:      "=",
	domain.OperatorNotEquals:   "<>",
	domain.OperatorGreaterThan: ">",
	domain.OperatorGreaterOrEq: ">=",
	domain.OperatorLessThan:    "<",
	domain.OperatorLessOrEq:    "<=",
	domain.OperatorLike:        "LIKE",
	domain.OperatorContains:    "ILIKE",
	domain.OperatorStartsWith:  "ILIKE",
	domain.OperatorEndsWith:    "ILIKE",
	domain.OperatorNull:        "IS NULL",
	domain.OperatorNotNull:     "IS NOT NULL",
}

// TranslateOperator returns the SQL form of a logical operator. Unknown
// operators compare for equality.
func TranslateOperator(op domain.Operator) string {
	if sql, ok := operatorSQL[normalizeOperator(op)]; ok {
		return sql
	}
	return "="
}

// isUnary reports whether the operator takes no right-hand value.
func isUnary(op domain.Operator) bool {
	switch normalizeOperator(op) {
	case domain.OperatorNull, domain.OperatorNotNull:
		return true
	}
	return false
}

// isPattern reports whether the operator matches against a LIKE pattern.
func isPattern(op domain.Operator) bool {
	switch normalizeOperator(op) {
	case domain.OperatorLike, domain.OperatorContains, domain.OperatorStartsWith, domain.OperatorEndsWith:
		return true
	}
	return false
}

// shapeValue turns the literal of a pattern operator into its LIKE pattern.
// LIKE values are passed through as written by the list author.
func shapeValue(op domain.Operator, value string) string {
	switch normalizeOperator(op) {
	case domain.OperatorContains:
		return "%" + escapeLikePattern(value) + "%"
	case domain.OperatorStartsWith:
		return escapeLikePattern(value) + "%"
	case domain.OperatorEndsWith:
		return "%" + escapeLikePattern(value)
	}
	return value
}

func normalizeOperator(op domain.Operator) domain.Operator {
	return domain.Operator(strings.ToUpper(strings.TrimSpace(string(op))))
}

// escapeLikePattern escapes special characters for LIKE pattern matching.
func escapeLikePattern(s string) string {
	// Escape backslash first, then % and _
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
