// Package api exposes patient lists over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/fields"
	"github.com/rpattn/patientlist/internal/repository"
)

// DataService renders one page of a patient list.
type DataService interface {
	GetPatientListData(ctx context.Context, list domain.PatientList, paging *domain.PagingInfo) ([]domain.PatientListData, error)
}

// Paging bounds the page size accepted by the data endpoint.
type Paging struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Handler serves the patient list endpoints.
type Handler struct {
	lists    repository.PatientListRepository
	data     DataService
	registry *fields.Registry
	export   http.Handler
	paging   Paging
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewHandler builds the router. export may be nil to disable the export endpoint.
func NewHandler(lists repository.PatientListRepository, data DataService, registry *fields.Registry, export http.Handler, paging Paging, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if paging.DefaultPageSize <= 0 {
		paging.DefaultPageSize = 50
	}
	if paging.MaxPageSize < paging.DefaultPageSize {
		paging.MaxPageSize = paging.DefaultPageSize
	}

	h := &Handler{
		lists:    lists,
		data:     data,
		registry: registry,
		export:   export,
		paging:   paging,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("GET /fields", h.handleFields)
	h.mux.HandleFunc("GET /lists", h.handleList)
	h.mux.HandleFunc("POST /lists", h.handleCreate)
	h.mux.HandleFunc("GET /lists/{id}", h.handleGet)
	h.mux.HandleFunc("PUT /lists/{id}", h.handleUpdate)
	h.mux.HandleFunc("DELETE /lists/{id}", h.handleDelete)
	h.mux.HandleFunc("GET /lists/{id}/data", h.handleData)
	if export != nil {
		h.mux.Handle("GET /lists/{id}/export", export)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// dataResponse mirrors the shape list clients page through.
type dataResponse struct {
	Results []domain.PatientListData `json:"results"`
	Length  int64                    `json:"length"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleFields(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Names())
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	lists, err := h.lists.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	list, ok := decodeList(w, r)
	if !ok {
		return
	}
	created, err := h.lists.Create(r.Context(), list)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	list, ok := h.loadList(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	list, ok := decodeList(w, r)
	if !ok {
		return
	}
	list.ID = id
	updated, err := h.lists.Update(r.Context(), list)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.lists.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	list, ok := h.loadList(w, r)
	if !ok {
		return
	}
	paging, err := h.pagingFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := h.data.GetPatientListData(r.Context(), list, paging)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Results: results, Length: paging.TotalRecordCount})
}

func (h *Handler) loadList(w http.ResponseWriter, r *http.Request) (domain.PatientList, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return domain.PatientList{}, false
	}
	list, err := h.lists.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return domain.PatientList{}, false
	}
	return list, true
}

func (h *Handler) pagingFromQuery(r *http.Request) (*domain.PagingInfo, error) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		return nil, err
	}
	limit, err := intParam(r, "limit", h.paging.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		return nil, fmt.Errorf("page must be at least 1")
	}
	if limit < 1 {
		return nil, fmt.Errorf("limit must be at least 1")
	}
	if limit > h.paging.MaxPageSize {
		limit = h.paging.MaxPageSize
	}
	if page-1 > math.MaxInt/limit {
		return nil, fmt.Errorf("page %d is out of range", page)
	}
	return domain.NewPagingInfo(page, limit), nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, "patient list not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, repository.ErrConflict) {
		http.Error(w, "a patient list with this name already exists", http.StatusConflict)
		return
	}
	h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func decodeList(w http.ResponseWriter, r *http.Request) (domain.PatientList, bool) {
	var list domain.PatientList
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&list); err != nil {
		http.Error(w, fmt.Sprintf("invalid patient list: %v", err), http.StatusBadRequest)
		return domain.PatientList{}, false
	}
	list.Name = strings.TrimSpace(list.Name)
	if list.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return domain.PatientList{}, false
	}
	return list, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid list id: %v", err), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
