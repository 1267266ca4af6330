package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/fields"
	"github.com/rpattn/patientlist/internal/repository"
)

type memoryLists struct {
	items map[uuid.UUID]domain.PatientList
}

func newMemoryLists() *memoryLists {
	return &memoryLists{items: make(map[uuid.UUID]domain.PatientList)}
}

func (m *memoryLists) Create(_ context.Context, list domain.PatientList) (domain.PatientList, error) {
	for _, existing := range m.items {
		if existing.Name == list.Name {
			return domain.PatientList{}, fmt.Errorf("failed to create patient list: %w", repository.ErrConflict)
		}
	}
	list.ID = uuid.New()
	m.items[list.ID] = list
	return list, nil
}

func (m *memoryLists) GetByID(_ context.Context, id uuid.UUID) (domain.PatientList, error) {
	list, ok := m.items[id]
	if !ok {
		return domain.PatientList{}, fmt.Errorf("failed to get patient list: %w", repository.ErrNotFound)
	}
	return list, nil
}

func (m *memoryLists) GetByName(_ context.Context, name string) (domain.PatientList, error) {
	for _, list := range m.items {
		if list.Name == name {
			return list, nil
		}
	}
	return domain.PatientList{}, repository.ErrNotFound
}

func (m *memoryLists) List(context.Context) ([]domain.PatientList, error) {
	out := make([]domain.PatientList, 0, len(m.items))
	for _, list := range m.items {
		out = append(out, list)
	}
	return out, nil
}

func (m *memoryLists) Update(_ context.Context, list domain.PatientList) (domain.PatientList, error) {
	if _, ok := m.items[list.ID]; !ok {
		return domain.PatientList{}, repository.ErrNotFound
	}
	m.items[list.ID] = list
	return list, nil
}

func (m *memoryLists) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type stubData struct {
	last *domain.PagingInfo
}

func (s *stubData) GetPatientListData(_ context.Context, list domain.PatientList, paging *domain.PagingInfo) ([]domain.PatientListData, error) {
	s.last = paging
	paging.TotalRecordCount = 7
	paging.LoadRecordCount = false
	return []domain.PatientListData{{BodyContent: "row of " + list.Name}}, nil
}

func newTestHandler() (*Handler, *memoryLists, *stubData) {
	lists := newMemoryLists()
	data := &stubData{}
	registry := fields.Standard([]string{"bed"}, nil).Build()
	h := NewHandler(lists, data, registry, nil, Paging{DefaultPageSize: 10, MaxPageSize: 25}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h, lists, data
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	return rec
}

func TestCreateAndGetList(t *testing.T) {
	h, _, _ := newTestHandler()

	rec := do(h, http.MethodPost, "/lists", `{"name":" Ward ","bodyTemplate":"{p.name}","conditions":[{"field":"p.gender","operator":"EQUALS","value":"F"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.PatientList
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Name != "Ward" || len(created.Conditions) != 1 {
		t.Fatalf("unexpected created list %+v", created)
	}

	rec = do(h, http.MethodGet, "/lists/"+created.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateDuplicateNameReturnsConflict(t *testing.T) {
	h, _, _ := newTestHandler()

	if rec := do(h, http.MethodPost, "/lists", `{"name":"Ward"}`); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	rec := do(h, http.MethodPost, "/lists", `{"name":"Ward"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateRejectsInvalidBodies(t *testing.T) {
	h, _, _ := newTestHandler()
	for _, body := range []string{`{"name":""}`, `not json`, `{"name":"x","unknown":1}`} {
		if rec := do(h, http.MethodPost, "/lists", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestGetUnknownListReturnsNotFound(t *testing.T) {
	h, _, _ := newTestHandler()
	if rec := do(h, http.MethodGet, "/lists/"+uuid.NewString(), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/lists/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateAndDeleteList(t *testing.T) {
	h, lists, _ := newTestHandler()
	created, _ := lists.Create(context.Background(), domain.PatientList{Name: "Old"})

	rec := do(h, http.MethodPut, "/lists/"+created.ID.String(), `{"name":"New"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if lists.items[created.ID].Name != "New" {
		t.Fatalf("expected list to be renamed, got %+v", lists.items[created.ID])
	}

	if rec := do(h, http.MethodDelete, "/lists/"+created.ID.String(), ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := do(h, http.MethodDelete, "/lists/"+created.ID.String(), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestDataEndpointReturnsResultsAndLength(t *testing.T) {
	h, lists, data := newTestHandler()
	created, _ := lists.Create(context.Background(), domain.PatientList{Name: "Ward"})

	rec := do(h, http.MethodGet, "/lists/"+created.ID.String()+"/data?page=2&limit=100", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Results []struct {
			BodyContent string `json:"bodyContent"`
		} `json:"results"`
		Length int64 `json:"length"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Length != 7 || len(resp.Results) != 1 || resp.Results[0].BodyContent != "row of Ward" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if data.last.Page != 2 || data.last.PageSize != 25 {
		t.Fatalf("expected clamped paging, got %+v", data.last)
	}

	if rec := do(h, http.MethodGet, "/lists/"+created.ID.String()+"/data?page=0", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for page 0, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/lists/"+created.ID.String()+"/data?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestDataEndpointRejectsPageBeyondAddressableRows(t *testing.T) {
	h, lists, data := newTestHandler()
	created, _ := lists.Create(context.Background(), domain.PatientList{Name: "Ward"})

	huge := fmt.Sprintf("/lists/%s/data?page=%d&limit=10", created.ID, math.MaxInt/10+2)
	if rec := do(h, http.MethodGet, huge, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for overflowing page, got %d", rec.Code)
	}
	if data.last != nil {
		t.Fatalf("data service must not be called, got %+v", data.last)
	}

	largest := fmt.Sprintf("/lists/%s/data?page=%d&limit=10", created.ID, math.MaxInt/10+1)
	if rec := do(h, http.MethodGet, largest, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for the last addressable page, got %d", rec.Code)
	}
	if data.last.Offset() < 0 {
		t.Fatalf("offset overflowed: %d", data.last.Offset())
	}
}

func TestFieldsEndpoint(t *testing.T) {
	h, _, _ := newTestHandler()
	rec := do(h, http.MethodGet, "/fields", "")
	var names []string
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	found := false
	for _, name := range names {
		if name == "p.attr.bed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected attribute field in %v", names)
	}
}
