package domain

import (
	"testing"
	"time"
)

func TestAgeAt(t *testing.T) {
	born := time.Date(2000, time.March, 10, 0, 0, 0, 0, time.UTC)
	p := Patient{Birthdate: &born}

	tests := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC), 23},
		{time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), 24},
		{time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), 24},
	}
	for _, tt := range tests {
		if got, ok := p.AgeAt(tt.now); !ok || got != tt.want {
			t.Fatalf("AgeAt(%s) = %d, %v; want %d", tt.now.Format("2006-01-02"), got, ok, tt.want)
		}
	}

	if _, ok := (Patient{}).AgeAt(time.Now()); ok {
		t.Fatalf("expected no age without birthdate")
	}
	if _, ok := p.AgeAt(time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC)); ok {
		t.Fatalf("expected no age before birth")
	}
}

func TestPreferredName(t *testing.T) {
	p := Patient{Names: []PersonName{{GivenName: "First"}, {GivenName: "Second", Preferred: true}}}
	if n, ok := p.PreferredName(); !ok || n.GivenName != "Second" {
		t.Fatalf("expected preferred name, got %+v", n)
	}
	p.Names[1].Preferred = false
	if n, _ := p.PreferredName(); n.GivenName != "First" {
		t.Fatalf("expected first name fallback, got %+v", n)
	}
	if _, ok := (Patient{}).PreferredName(); ok {
		t.Fatalf("expected no name")
	}
}

func TestFullNameSkipsBlankParts(t *testing.T) {
	if got := (PersonName{GivenName: "Asha", MiddleName: " ", FamilyName: "Rao"}).FullName(); got != "Asha Rao" {
		t.Fatalf("unexpected full name %q", got)
	}
}

func TestConditionsJSONB(t *testing.T) {
	data, err := ConditionsToJSONB(nil)
	if err != nil || string(data) != "[]" {
		t.Fatalf("expected empty array, got %s %v", data, err)
	}

	conditions, err := ConditionsFromJSONB([]byte(`[{"field":"p.gender","operator":"EQUALS","value":"F"}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conditions) != 1 || conditions[0].Operator != OperatorEquals {
		t.Fatalf("unexpected conditions %+v", conditions)
	}

	if ordering, err := OrderingFromJSONB(nil); err != nil || len(ordering) != 0 {
		t.Fatalf("expected empty ordering, got %v %v", ordering, err)
	}
	if _, err := OrderingFromJSONB([]byte(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPagingWindow(t *testing.T) {
	tests := []struct {
		paging *PagingInfo
		offset int
		limit  int
	}{
		{nil, 0, 0},
		{NewPagingInfo(1, 25), 0, 25},
		{NewPagingInfo(3, 25), 50, 25},
		{NewPagingInfo(0, 25), 0, 25},
		{NewPagingInfo(2, 0), 0, 0},
	}
	for _, tt := range tests {
		if got := tt.paging.Offset(); got != tt.offset {
			t.Fatalf("Offset() = %d, want %d for %+v", got, tt.offset, tt.paging)
		}
		if got := tt.paging.Limit(); got != tt.limit {
			t.Fatalf("Limit() = %d, want %d for %+v", got, tt.limit, tt.paging)
		}
	}
}

func TestSortDirectionSQL(t *testing.T) {
	for in, want := range map[SortDirection]string{"desc": "DESC", " DESC ": "DESC", "asc": "ASC", "": "ASC", "sideways": "ASC"} {
		if got := in.SQL(); got != want {
			t.Fatalf("SortDirection(%q).SQL() = %q, want %q", in, got, want)
		}
	}
}
