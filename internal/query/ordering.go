package query

import (
	"strings"

	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/fields"
)

type sortKey struct {
	expr      string
	direction string
}

// term renders the key for a query grouped by selected. Expressions outside
// the group are collapsed to one value per row: the smallest when sorting
// ascending, the largest when sorting descending.
func (k sortKey) term(selected map[string]struct{}) string {
	if _, ok := selected[k.expr]; ok {
		return k.expr + " " + k.direction
	}
	aggregate := "MIN"
	if k.direction == "DESC" {
		aggregate = "MAX"
	}
	return aggregate + "(" + k.expr + ") " + k.direction
}

func (c *compilation) compileOrdering(ordering []domain.PatientListOrder) []sortKey {
	keys := make([]sortKey, 0, len(ordering))
	for _, order := range ordering {
		expr, ok := c.sortExpression(order.Field)
		if !ok {
			continue
		}
		keys = append(keys, sortKey{expr: expr, direction: order.SortOrder.SQL()})
	}
	return keys
}

func (c *compilation) sortExpression(field string) (string, bool) {
	d, ok := c.registry.Lookup(field)
	if !ok {
		c.logger.Warn("skipping ordering on unknown field", "field", field)
		return "", false
	}

	switch m := d.Mapping.(type) {
	case fields.Plain:
		return m.Path(), true
	case fields.Alias:
		if path := m.Path(); path != "" {
			return path, true
		}
	case fields.Attribute:
		// only the rows of the sorted attribute type contribute a value
		typeColumn, valueColumn := attributeColumns(m.Side)
		return "CASE WHEN " + typeColumn + " = " + c.args.bind(m.Label) + " THEN " + valueColumn + " END", true
	}

	c.logger.Warn("skipping ordering on field without a mapping", "field", field)
	return "", false
}

// orderByClause renders "ORDER BY a ASC,MIN(b) DESC", or "" when there is
// nothing to sort by.
func orderByClause(keys []sortKey, selected map[string]struct{}) string {
	if len(keys) == 0 {
		return ""
	}
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = key.term(selected)
	}
	return "ORDER BY " + strings.Join(parts, ",")
}
