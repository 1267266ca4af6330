package query

import (
	"fmt"
	"regexp"
	"strconv"
)

// argList accumulates bound values. Every placeholder written into query text
// comes from bind, so the n-th placeholder always refers to the n-th value.
type argList struct {
	values []any
}

func newArgList() *argList {
	return &argList{values: make([]any, 0)}
}

func (a *argList) bind(value any) string {
	a.values = append(a.values, value)
	return placeholder(len(a.values))
}

func placeholder(idx int) string {
	return fmt.Sprintf("$%d", idx)
}

var placeholderPattern = regexp.MustCompile(`\$(\d+)`)

// Placeholders returns the positional placeholder numbers in text, left to right.
func Placeholders(text string) []int {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
