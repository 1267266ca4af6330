package query

import (
	"strings"
	"time"

	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/fields"
)

// compileConditions returns the AND-joined predicate of every condition that
// compiled. Skipped conditions bind nothing.
func (c *compilation) compileConditions(conditions []domain.PatientListCondition) string {
	fragments := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		if fragment, ok := c.compileCondition(cond); ok {
			fragments = append(fragments, fragment)
		}
	}
	return strings.Join(fragments, " AND ")
}

func (c *compilation) compileCondition(cond domain.PatientListCondition) (string, bool) {
	d, ok := c.registry.Lookup(cond.Field)
	if !ok {
		c.logger.Warn("skipping condition on unknown field", "field", cond.Field)
		return "", false
	}
	if !isUnary(cond.Operator) && cond.Value == "" {
		c.logger.Warn("skipping condition without a value", "field", cond.Field, "operator", string(cond.Operator))
		return "", false
	}

	switch m := d.Mapping.(type) {
	case fields.Attribute:
		return c.attributePredicate(m, cond), true
	case fields.Alias:
		return c.aliasPredicate(m, d, cond)
	case fields.Plain:
		return c.comparison(m.Path(), cond, c.coerce(d, cond)), true
	default:
		c.logger.Warn("skipping condition on field without a mapping", "field", cond.Field)
		return "", false
	}
}

// attributePredicate matches the attribute type by name and compares the
// attribute value: (type.name = $i AND value op $j).
func (c *compilation) attributePredicate(m fields.Attribute, cond domain.PatientListCondition) string {
	typeColumn, valueColumn := attributeColumns(m.Side)
	label := c.args.bind(m.Label)
	return "(" + typeColumn + " = " + label + " AND " + c.comparison(valueColumn, cond, shapeValue(cond.Operator, cond.Value)) + ")"
}

func (c *compilation) aliasPredicate(m fields.Alias, d fields.Descriptor, cond domain.PatientListCondition) (string, bool) {
	path := m.Path()
	if path == "" {
		c.logger.Warn("skipping condition on unknown sub-collection", "field", cond.Field)
		return "", false
	}
	return c.comparison(path, cond, c.coerce(d, cond)), true
}

// comparison renders "column op $n", binding value, or "column op" for unary operators.
func (c *compilation) comparison(column string, cond domain.PatientListCondition, value any) string {
	op := TranslateOperator(cond.Operator)
	if isUnary(cond.Operator) {
		return column + " " + op
	}
	return column + " " + op + " " + c.args.bind(value)
}

// coerce converts the literal to the value bound for the field. Date fields
// bind a time.Time; a literal that does not parse is bound unchanged.
func (c *compilation) coerce(d fields.Descriptor, cond domain.PatientListCondition) any {
	if isPattern(cond.Operator) {
		return shapeValue(cond.Operator, cond.Value)
	}
	if d.Type == fields.TypeDate {
		parsed, err := time.Parse(fields.DateLayout, strings.TrimSpace(cond.Value))
		if err == nil {
			return parsed
		}
		c.logger.Debug("binding unparsed date literal", "field", cond.Field, "value", cond.Value, "error", err)
	}
	return cond.Value
}

// attributeColumns returns the attribute type name column and the attribute
// value column for a side. Visit attributes keep their value in value_reference.
func attributeColumns(side fields.Side) (typeColumn, valueColumn string) {
	if side == fields.SideVisit {
		return "vattr_type.name", "vattr.value_reference"
	}
	return "pattr_type.name", "pattr.value"
}
