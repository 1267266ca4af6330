// Package render fills patient list templates with field values.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/fields"
)

// Renderer substitutes {field} tokens with values resolved through a registry.
type Renderer struct {
	registry *fields.Registry
}

// NewRenderer creates a renderer resolving fields through registry.
func NewRenderer(registry *fields.Registry) *Renderer {
	return &Renderer{registry: registry}
}

// Render replaces every {field} token in template. Tokens naming an unknown
// field, or a field whose side is absent from the row, become empty strings.
// visit is nil for rows selected from patients.
func (r *Renderer) Render(template string, patient *domain.Patient, visit *domain.Visit) string {
	if template == "" {
		return ""
	}

	tokens := scanTokens(template)
	if len(tokens) == 0 {
		return template
	}

	values := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		if _, done := values[tok.name]; done {
			continue
		}
		values[tok.name] = r.resolve(tok.name, patient, visit)
	}

	var sb strings.Builder
	sb.Grow(len(template))
	last := 0
	for _, tok := range tokens {
		sb.WriteString(template[last:tok.start])
		sb.WriteString(values[tok.name])
		last = tok.end
	}
	sb.WriteString(template[last:])
	return sb.String()
}

// Fields returns the distinct field names referenced by template, in order of
// first appearance.
func Fields(template string) []string {
	tokens := scanTokens(template)
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok.name]; ok {
			continue
		}
		seen[tok.name] = struct{}{}
		out = append(out, tok.name)
	}
	return out
}

func (r *Renderer) resolve(name string, patient *domain.Patient, visit *domain.Visit) string {
	d, ok := r.registry.Lookup(name)
	if !ok {
		return ""
	}
	value, ok := d.Extract(patient, visit)
	if !ok {
		return ""
	}
	return FormatValue(value)
}

// FormatValue renders a field value as template text.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(fields.DateLayout)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.Format(fields.DateLayout)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// token is a {name} occurrence; start and end delimit it including braces.
type token struct {
	name       string
	start, end int
}

func scanTokens(template string) []token {
	var out []token
	pos := 0
	for pos < len(template) {
		open := strings.IndexByte(template[pos:], '{')
		if open < 0 {
			break
		}
		open += pos
		closing := strings.IndexByte(template[open+1:], '}')
		if closing < 0 {
			break
		}
		closing += open + 1
		out = append(out, token{name: template[open+1 : closing], start: open, end: closing + 1})
		pos = closing + 1
	}
	return out
}
