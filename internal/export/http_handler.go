package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/repository"
)

// ListLookup resolves the list being exported.
type ListLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.PatientList, error)
}

type Handler struct {
	service *Service
	lists   ListLookup
}

// NewHTTPHandler serves GET .../{id}/export?format=csv|xlsx&columns=a,b. The
// list ID is read from the "id" path value.
func NewHTTPHandler(service *Service, lists ListLookup) http.Handler {
	return &Handler{service: service, lists: lists}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid list id", http.StatusBadRequest)
		return
	}
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	list, err := h.lists.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "patient list not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// headers are written only after the whole file is built
	var buf bytes.Buffer
	if _, err := h.service.Export(r.Context(), &buf, list, format, parseColumns(r.URL.Query().Get("columns"))); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.service.FileName(list, format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func parseColumns(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
