// Package query compiles patient list definitions into parameterized
// PostgreSQL queries.
package query

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/fields"
)

// Target is the entity a compiled query selects.
type Target int

const (
	TargetPatients Target = iota
	TargetVisits
)

func (t Target) String() string {
	if t == TargetVisits {
		return "visits"
	}
	return "patients"
}

// Key returns the column that identifies one selected row.
func (t Target) Key() string {
	if t == TargetVisits {
		return "v.visit_id"
	}
	return "p.patient_id"
}

// PatientColumns and VisitColumns are the selected columns, in scan order.
var (
	PatientColumns = []string{"p.patient_id", "p.gender", "p.birthdate", "p.dead", "p.date_created"}
	VisitColumns   = []string{"v.visit_id", "v.patient_id", "v.visit_type", "v.location", "v.start_datetime", "v.stop_datetime"}
)

// Compiled is query text plus its positional arguments: Args[i] binds to
// placeholder $i+1.
type Compiled struct {
	Text   string
	Args   []any
	Target Target

	// sorted records that Text carries an ORDER BY clause.
	sorted bool
}

// Count wraps the query so that it returns the number of matching rows.
func (q Compiled) Count() Compiled {
	return Compiled{
		Text:   "SELECT COUNT(*) FROM (" + q.Text + ") AS matches",
		Args:   append([]any(nil), q.Args...),
		Target: q.Target,
	}
}

// Window restricts the query to a page. A non-positive limit returns all rows
// from offset onwards. The target key is added as the last sort key so that
// consecutive pages neither repeat nor skip rows.
func (q Compiled) Window(offset, limit int) Compiled {
	if limit <= 0 && offset <= 0 {
		return q
	}
	args := &argList{values: append([]any(nil), q.Args...)}
	var sb strings.Builder
	sb.WriteString(q.Text)
	if q.sorted {
		sb.WriteString(",")
	} else {
		sb.WriteString(" ORDER BY ")
	}
	sb.WriteString(q.Target.Key())
	sb.WriteString(" ASC")
	if limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(args.bind(limit))
	}
	if offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(args.bind(offset))
	}
	return Compiled{Text: sb.String(), Args: args.values, Target: q.Target, sorted: true}
}

// Check verifies that the placeholders read $1..$n in order and that there is
// exactly one argument per placeholder.
func (q Compiled) Check() error {
	placeholders := Placeholders(q.Text)
	for i, n := range placeholders {
		if n != i+1 {
			return fmt.Errorf("placeholder %d is $%d, expected $%d", i+1, n, i+1)
		}
	}
	if len(placeholders) != len(q.Args) {
		return fmt.Errorf("query has %d placeholders but %d arguments", len(placeholders), len(q.Args))
	}
	return nil
}

// Compiler turns patient lists into queries. It is safe for concurrent use.
type Compiler struct {
	registry *fields.Registry
	logger   *slog.Logger
}

// NewCompiler creates a compiler resolving fields through registry.
func NewCompiler(registry *fields.Registry, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{registry: registry, logger: logger}
}

// compilation holds the state of a single Compile call.
type compilation struct {
	registry *fields.Registry
	logger   *slog.Logger
	args     *argList
}

// Compile builds the query selecting the rows of list.
func (c *Compiler) Compile(list domain.PatientList) Compiled {
	run := &compilation{
		registry: c.registry,
		logger:   c.logger.With("patient_list", list.Name),
		args:     newArgList(),
	}

	joins := PlanJoins(c.registry, list.Conditions, list.Ordering)
	predicate := run.compileConditions(list.Conditions)
	keys := run.compileOrdering(list.Ordering)

	target := TargetPatients
	columns := PatientColumns
	if joins.Visit {
		target = TargetVisits
		columns = VisitColumns
	}

	// grouping keeps one row per entity when sort expressions reach into
	// multi-valued joins
	var sb strings.Builder
	if len(keys) == 0 {
		sb.WriteString("SELECT DISTINCT ")
	} else {
		sb.WriteString("SELECT ")
	}
	sb.WriteString(strings.Join(columns, ", "))
	if joins.Visit {
		sb.WriteString(" FROM visit v ")
		sb.WriteString(joinVisit)
	} else {
		sb.WriteString(" FROM patient p")
	}
	for _, fragment := range joins.fragments() {
		sb.WriteString(" ")
		sb.WriteString(fragment)
	}

	sb.WriteString(" WHERE (")
	if predicate == "" {
		sb.WriteString("TRUE")
	} else {
		sb.WriteString(predicate)
	}
	sb.WriteString(")")

	if len(keys) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(columns, ", "))
		sb.WriteString(" ")
		sb.WriteString(orderByClause(keys, columnSet(columns)))
	}

	return Compiled{Text: sb.String(), Args: run.args.values, Target: target, sorted: len(keys) > 0}
}

func columnSet(columns []string) map[string]struct{} {
	set := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		set[col] = struct{}{}
	}
	return set
}
