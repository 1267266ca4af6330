package domain

import "strings"

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// SQL returns the keyword for the direction. Unrecognised values sort ascending.
func (d SortDirection) SQL() string {
	if strings.EqualFold(strings.TrimSpace(string(d)), string(SortDirectionDesc)) {
		return "DESC"
	}
	return "ASC"
}
