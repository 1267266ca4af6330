package query

import (
	"io"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/fields"
)

const (
	patientSelect = "SELECT DISTINCT p.patient_id, p.gender, p.birthdate, p.dead, p.date_created FROM patient p"
	visitSelect   = "SELECT DISTINCT v.visit_id, v.patient_id, v.visit_type, v.location, v.start_datetime, v.stop_datetime " +
		"FROM visit v INNER JOIN patient p ON p.patient_id = v.patient_id"
)

func testRegistry() *fields.Registry {
	return fields.Standard([]string{"bed", "Civil Status"}, []string{"Ward Name"}).Build()
}

func testCompiler() *Compiler {
	return NewCompiler(testRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func cond(field string, op domain.Operator, value string) domain.PatientListCondition {
	return domain.PatientListCondition{Field: field, Operator: op, Value: value}
}

func TestCompileWithoutConditionsSelectsPatients(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{})

	want := patientSelect + " WHERE (TRUE)"
	if q.Text != want {
		t.Fatalf("unexpected query\n got: %s\nwant: %s", q.Text, want)
	}
	if len(q.Args) != 0 {
		t.Fatalf("expected no args, got %v", q.Args)
	}
	if q.Target != TargetPatients {
		t.Fatalf("expected patient target, got %s", q.Target)
	}
}

func TestCompilePlainCondition(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{cond("p.gender", domain.OperatorEquals, "F")},
	})

	want := patientSelect + " WHERE (p.gender = $1)"
	if q.Text != want {
		t.Fatalf("unexpected query\n got: %s\nwant: %s", q.Text, want)
	}
	if !reflect.DeepEqual(q.Args, []any{"F"}) {
		t.Fatalf("unexpected args %v", q.Args)
	}
}

func TestCompileVisitAndAliasConditions(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{
			cond("v.visitType", domain.OperatorEquals, "OPD"),
			cond("p.names.givenName", domain.OperatorContains, "as"),
		},
	})

	want := visitSelect +
		" INNER JOIN person_name pnames ON pnames.patient_id = p.patient_id" +
		" WHERE (v.visit_type = $1 AND pnames.given_name ILIKE $2)"
	if q.Text != want {
		t.Fatalf("unexpected query\n got: %s\nwant: %s", q.Text, want)
	}
	if !reflect.DeepEqual(q.Args, []any{"OPD", "%as%"}) {
		t.Fatalf("unexpected args %v", q.Args)
	}
	if q.Target != TargetVisits {
		t.Fatalf("expected visit target, got %s", q.Target)
	}
}

func TestCompileAttributeConditionsBindLabelThenValue(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{
			cond("p.attr.Civil_Status", domain.OperatorEquals, "Married"),
			cond("v.attr.Ward_Name", domain.OperatorEquals, "B"),
		},
	})

	want := visitSelect +
		" INNER JOIN person_attribute pattr ON pattr.patient_id = p.patient_id" +
		" INNER JOIN person_attribute_type pattr_type ON pattr_type.person_attribute_type_id = pattr.attribute_type_id" +
		" INNER JOIN visit_attribute vattr ON vattr.visit_id = v.visit_id" +
		" INNER JOIN visit_attribute_type vattr_type ON vattr_type.visit_attribute_type_id = vattr.attribute_type_id" +
		" WHERE ((pattr_type.name = $1 AND pattr.value = $2) AND (vattr_type.name = $3 AND vattr.value_reference = $4))"
	if q.Text != want {
		t.Fatalf("unexpected query\n got: %s\nwant: %s", q.Text, want)
	}
	wantArgs := []any{"Civil Status", "Married", "Ward Name", "B"}
	if !reflect.DeepEqual(q.Args, wantArgs) {
		t.Fatalf("unexpected args %v, want %v", q.Args, wantArgs)
	}
}

func TestCompileSkipsUnknownField(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{
			cond("p.nonexistent", domain.OperatorEquals, "x"),
			cond("p.gender", domain.OperatorEquals, "M"),
		},
	})

	want := patientSelect + " WHERE (p.gender = $1)"
	if q.Text != want {
		t.Fatalf("unexpected query\n got: %s\nwant: %s", q.Text, want)
	}
	if !reflect.DeepEqual(q.Args, []any{"M"}) {
		t.Fatalf("unexpected args %v", q.Args)
	}
}

func TestCompileSkippedMiddleConditionLeavesNoDanglingSeparator(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{
			cond("p.gender", domain.OperatorEquals, "M"),
			cond("p.name", domain.OperatorEquals, "Asha"),
			cond("p.dead", domain.OperatorEquals, "false"),
			cond("p.bogus", domain.OperatorEquals, "1"),
		},
	})

	want := patientSelect + " WHERE (p.gender = $1 AND p.dead = $2)"
	if q.Text != want {
		t.Fatalf("unexpected query\n got: %s\nwant: %s", q.Text, want)
	}
	if !reflect.DeepEqual(q.Args, []any{"M", "false"}) {
		t.Fatalf("unexpected args %v", q.Args)
	}
}

func TestCompileDateCoercion(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{
			cond("p.birthdate", domain.OperatorGreaterThan, "2000-01-31"),
			cond("v.startDate", domain.OperatorLessThan, "2024-13-40"),
		},
	})

	if len(q.Args) != 2 {
		t.Fatalf("expected 2 args, got %v", q.Args)
	}
	parsed, ok := q.Args[0].(time.Time)
	if !ok {
		t.Fatalf("expected parsed date, got %#v", q.Args[0])
	}
	if !parsed.Equal(time.Date(2000, time.January, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected parsed date %v", parsed)
	}
	if raw, ok := q.Args[1].(string); !ok || raw != "2024-13-40" {
		t.Fatalf("expected invalid date to be bound verbatim, got %#v", q.Args[1])
	}
}

func TestCompileUnaryOperatorBindsNothing(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{
			cond("p.birthdate", domain.OperatorNull, ""),
			cond("p.attr.bed", domain.OperatorNotNull, ""),
		},
	})

	if !strings.HasSuffix(q.Text, " WHERE (p.birthdate IS NULL AND (pattr_type.name = $1 AND pattr.value IS NOT NULL))") {
		t.Fatalf("unexpected predicate in %s", q.Text)
	}
	if !reflect.DeepEqual(q.Args, []any{"bed"}) {
		t.Fatalf("unexpected args %v", q.Args)
	}
}

func TestCompileSkipsBinaryConditionWithoutValue(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{cond("p.gender", domain.OperatorEquals, "")},
	})

	if q.Text != patientSelect+" WHERE (TRUE)" {
		t.Fatalf("unexpected query %s", q.Text)
	}
	if len(q.Args) != 0 {
		t.Fatalf("expected no args, got %v", q.Args)
	}
}

const (
	patientGroupBy = " GROUP BY p.patient_id, p.gender, p.birthdate, p.dead, p.date_created"
	visitGroupBy   = " GROUP BY v.visit_id, v.patient_id, v.visit_type, v.location, v.start_datetime, v.stop_datetime"
)

func TestCompileOrderingTwoEntries(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Ordering: []domain.PatientListOrder{
			{Field: "p.birthdate", SortOrder: domain.SortDirectionDesc},
			{Field: "p.names.familyName", SortOrder: domain.SortDirectionAsc},
		},
	})

	want := "SELECT p.patient_id, p.gender, p.birthdate, p.dead, p.date_created FROM patient p" +
		" INNER JOIN person_name pnames ON pnames.patient_id = p.patient_id" +
		" WHERE (TRUE)" + patientGroupBy +
		" ORDER BY p.birthdate DESC,MIN(pnames.family_name) ASC"
	if q.Text != want {
		t.Fatalf("unexpected query\n got: %s\nwant: %s", q.Text, want)
	}
	if len(q.Args) != 0 {
		t.Fatalf("ordering on columns must not bind args, got %v", q.Args)
	}
}

func TestCompileOrderingSkipsUnknownEntries(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Ordering: []domain.PatientListOrder{
			{Field: "p.gender", SortOrder: "asc"},
			{Field: "p.bogus", SortOrder: "desc"},
			{Field: "v.startDate", SortOrder: "DESC"},
			{Field: "p.name", SortOrder: "desc"},
		},
	})

	if !strings.HasSuffix(q.Text, visitGroupBy+" ORDER BY MIN(p.gender) ASC,v.start_datetime DESC") {
		t.Fatalf("unexpected ordering in %s", q.Text)
	}
	if !strings.HasPrefix(q.Text, "SELECT v.visit_id, v.patient_id, v.visit_type, v.location, v.start_datetime, v.stop_datetime FROM visit v") {
		t.Fatalf("expected visit select without sort columns, got %s", q.Text)
	}
}

func TestCompileOrderingByAttributeSortsOnItsOwnType(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Ordering: []domain.PatientListOrder{{Field: "p.attr.bed", SortOrder: "asc"}},
	})

	want := "SELECT p.patient_id, p.gender, p.birthdate, p.dead, p.date_created FROM patient p" +
		" INNER JOIN person_attribute pattr ON pattr.patient_id = p.patient_id" +
		" INNER JOIN person_attribute_type pattr_type ON pattr_type.person_attribute_type_id = pattr.attribute_type_id" +
		" WHERE (TRUE)" + patientGroupBy +
		" ORDER BY MIN(CASE WHEN pattr_type.name = $1 THEN pattr.value END) ASC"
	if q.Text != want {
		t.Fatalf("unexpected query\n got: %s\nwant: %s", q.Text, want)
	}
	if !reflect.DeepEqual(q.Args, []any{"bed"}) {
		t.Fatalf("expected the attribute label as the only arg, got %v", q.Args)
	}
}

func TestCompileOrderingLabelsBindAfterConditions(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{
			cond("v.attr.Ward_Name", domain.OperatorEquals, "North"),
			cond("p.gender", domain.OperatorEquals, "F"),
		},
		Ordering: []domain.PatientListOrder{
			{Field: "v.attr.Ward_Name", SortOrder: "desc"},
			{Field: "p.attr.Civil_Status", SortOrder: "asc"},
		},
	})

	if !strings.HasSuffix(q.Text, visitGroupBy+
		" ORDER BY MAX(CASE WHEN vattr_type.name = $4 THEN vattr.value_reference END) DESC,"+
		"MIN(CASE WHEN pattr_type.name = $5 THEN pattr.value END) ASC") {
		t.Fatalf("unexpected ordering in %s", q.Text)
	}
	wantArgs := []any{"Ward Name", "North", "F", "Ward Name", "Civil Status"}
	if !reflect.DeepEqual(q.Args, wantArgs) {
		t.Fatalf("unexpected args %v, want %v", q.Args, wantArgs)
	}
	if strings.Count(q.Text, "INNER JOIN visit_attribute vattr") != 1 {
		t.Fatalf("expected a single visit attribute join in %s", q.Text)
	}
	if err := q.Check(); err != nil {
		t.Fatalf("%v\n%s", err, q.Text)
	}
}

func TestCompileEmitsEachJoinOnce(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{
			cond("p.names.givenName", domain.OperatorEquals, "Asha"),
			cond("p.names.familyName", domain.OperatorEquals, "Rao"),
			cond("p.addresses.country", domain.OperatorEquals, "IN"),
			cond("p.identifiers.identifier", domain.OperatorStartsWith, "MRN"),
		},
		Ordering: []domain.PatientListOrder{{Field: "p.names.givenName", SortOrder: "asc"}},
	})

	for _, fragment := range []string{joinNames, joinAddresses, joinIdentifiers} {
		if n := strings.Count(q.Text, fragment); n != 1 {
			t.Fatalf("expected %q once, found %d times in %s", fragment, n, q.Text)
		}
	}
	wantArgs := []any{"Asha", "Rao", "IN", "MRN%"}
	if !reflect.DeepEqual(q.Args, wantArgs) {
		t.Fatalf("unexpected args %v", q.Args)
	}
}

func TestCompileUnknownVisitFieldStillSelectsVisits(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{cond("v.unknown", domain.OperatorEquals, "x")},
	})

	if q.Target != TargetVisits {
		t.Fatalf("expected visit target, got %s", q.Target)
	}
	if q.Text != visitSelect+" WHERE (TRUE)" {
		t.Fatalf("unexpected query %s", q.Text)
	}
}

func TestCompilePlaceholdersMatchArgs(t *testing.T) {
	lists := []domain.PatientList{
		{},
		{Conditions: []domain.PatientListCondition{cond("p.gender", domain.OperatorEquals, "F")}},
		{Conditions: []domain.PatientListCondition{
			cond("p.attr.bed", domain.OperatorGreaterThan, "3"),
			cond("p.nonexistent", domain.OperatorEquals, "x"),
			cond("v.endDate", domain.OperatorNull, ""),
			cond("v.attr.Ward_Name", domain.OperatorContains, "north"),
			cond("p.addresses.cityVillage", domain.OperatorLike, "Pune%"),
			cond("p.birthdate", domain.OperatorLessOrEq, "not-a-date"),
			cond("p.gender", domain.OperatorEquals, ""),
		}, Ordering: []domain.PatientListOrder{
			{Field: "v.attr.Ward_Name", SortOrder: "desc"},
			{Field: "p.identifiers.identifier", SortOrder: "asc"},
		}},
	}

	for i, list := range lists {
		q := testCompiler().Compile(list)
		if err := q.Check(); err != nil {
			t.Fatalf("list %d: %v\n%s", i, err, q.Text)
		}
		if err := q.Window(10, 5).Check(); err != nil {
			t.Fatalf("list %d windowed: %v", i, err)
		}
		if err := q.Count().Check(); err != nil {
			t.Fatalf("list %d count: %v", i, err)
		}
	}
}

func TestCompileIsIdempotent(t *testing.T) {
	list := domain.PatientList{
		Conditions: []domain.PatientListCondition{
			cond("p.attr.bed", domain.OperatorEquals, "7"),
			cond("p.birthdate", domain.OperatorGreaterOrEq, "1990-05-01"),
			cond("p.names.givenName", domain.OperatorContains, "a"),
		},
		Ordering: []domain.PatientListOrder{{Field: "p.gender", SortOrder: "desc"}},
	}
	c := testCompiler()

	first := c.Compile(list)
	second := c.Compile(list)
	if first.Text != second.Text {
		t.Fatalf("query text differs:\n%s\n%s", first.Text, second.Text)
	}
	if !reflect.DeepEqual(first.Args, second.Args) {
		t.Fatalf("args differ: %v vs %v", first.Args, second.Args)
	}
}

func TestCompileKeepsValuesPairedWithConditions(t *testing.T) {
	a := cond("p.gender", domain.OperatorEquals, "F")
	b := cond("p.names.familyName", domain.OperatorEquals, "Rao")
	c := cond("p.addresses.country", domain.OperatorEquals, "IN")

	forward := testCompiler().Compile(domain.PatientList{Conditions: []domain.PatientListCondition{a, b, c}})
	reversed := testCompiler().Compile(domain.PatientList{Conditions: []domain.PatientListCondition{c, b, a}})

	for _, q := range []Compiled{forward, reversed} {
		for column, want := range map[string]string{
			"p.gender":           "F",
			"pnames.family_name": "Rao",
			"paddresses.country": "IN",
		} {
			got := boundValue(t, q, column)
			if got != want {
				t.Fatalf("column %s bound to %v, want %s (query %s)", column, got, want, q.Text)
			}
		}
	}
	if forward.Text == reversed.Text {
		t.Fatalf("expected clause order to follow condition order")
	}
}

func TestWindowAppendsPagingArgs(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{cond("p.gender", domain.OperatorEquals, "F")},
	})

	paged := q.Window(20, 10)
	want := patientSelect + " WHERE (p.gender = $1) ORDER BY p.patient_id ASC LIMIT $2 OFFSET $3"
	if paged.Text != want {
		t.Fatalf("unexpected paged query\n got: %s\nwant: %s", paged.Text, want)
	}
	if !reflect.DeepEqual(paged.Args, []any{"F", 10, 20}) {
		t.Fatalf("unexpected paged args %v", paged.Args)
	}
	if len(q.Args) != 1 {
		t.Fatalf("window must not modify the original args, got %v", q.Args)
	}

	firstPage := q.Window(0, 10)
	if !strings.HasSuffix(firstPage.Text, " ORDER BY p.patient_id ASC LIMIT $2") || len(firstPage.Args) != 2 {
		t.Fatalf("unexpected first page query %s %v", firstPage.Text, firstPage.Args)
	}

	if unbounded := q.Window(0, 0); unbounded.Text != q.Text {
		t.Fatalf("expected no window, got %s", unbounded.Text)
	}
}

func TestWindowBreaksTiesOnTargetKey(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{
		Conditions: []domain.PatientListCondition{cond("v.visitType", domain.OperatorEquals, "OPD")},
		Ordering:   []domain.PatientListOrder{{Field: "p.attr.bed", SortOrder: "desc"}},
	})

	paged := q.Window(50, 25)
	if !strings.HasSuffix(paged.Text, " ORDER BY MAX(CASE WHEN pattr_type.name = $2 THEN pattr.value END) DESC,v.visit_id ASC LIMIT $3 OFFSET $4") {
		t.Fatalf("unexpected paged query %s", paged.Text)
	}
	if !reflect.DeepEqual(paged.Args, []any{"OPD", "bed", 25, 50}) {
		t.Fatalf("unexpected paged args %v", paged.Args)
	}
	if strings.Count(paged.Text, "ORDER BY") != 1 {
		t.Fatalf("expected a single ORDER BY in %s", paged.Text)
	}
	if err := paged.Check(); err != nil {
		t.Fatal(err)
	}
}

func TestCountWrapsQuery(t *testing.T) {
	q := testCompiler().Compile(domain.PatientList{})
	count := q.Count()
	want := "SELECT COUNT(*) FROM (" + patientSelect + " WHERE (TRUE)) AS matches"
	if count.Text != want {
		t.Fatalf("unexpected count query\n got: %s\nwant: %s", count.Text, want)
	}
}

func TestCheckDetectsMismatch(t *testing.T) {
	if err := (Compiled{Text: "a = $1 AND b = $2", Args: []any{1}}).Check(); err == nil {
		t.Fatalf("expected error for missing arg")
	}
	if err := (Compiled{Text: "a = $2", Args: []any{1}}).Check(); err == nil {
		t.Fatalf("expected error for out of order placeholder")
	}
}

func boundValue(t *testing.T, q Compiled, column string) any {
	t.Helper()
	re := regexp.MustCompile(regexp.QuoteMeta(column) + ` = \$(\d+)`)
	m := re.FindStringSubmatch(q.Text)
	if m == nil {
		t.Fatalf("column %s not found in %s", column, q.Text)
	}
	idx := Placeholders("$" + m[1])[0]
	return q.Args[idx-1]
}
