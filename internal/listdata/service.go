// Package listdata runs patient lists: it compiles a list, executes the query
// for one page and renders the list templates for every row.
package listdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/fields"
	"github.com/rpattn/patientlist/internal/query"
	"github.com/rpattn/patientlist/internal/render"
)

// Executor runs compiled list queries. Failures caused by the query text or its
// bound values wrap domain.ErrQuerySyntax.
type Executor interface {
	Count(ctx context.Context, q query.Compiled) (int64, error)
	Fetch(ctx context.Context, q query.Compiled) ([]domain.ListRow, error)
}

// Service produces rendered patient list data.
type Service struct {
	compiler *query.Compiler
	renderer *render.Renderer
	executor Executor
	logger   *slog.Logger
}

// NewService wires a service around a registry and an executor.
func NewService(registry *fields.Registry, executor Executor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		compiler: query.NewCompiler(registry, logger),
		renderer: render.NewRenderer(registry),
		executor: executor,
		logger:   logger,
	}
}

// Compile exposes the compiled query of a list.
func (s *Service) Compile(list domain.PatientList) query.Compiled {
	return s.compiler.Compile(list)
}

// GetPatientListData returns the rendered rows of list for the requested page.
// paging receives the total record count; a nil paging fetches every row.
// Queries rejected by the database are logged and yield an empty result.
func (s *Service) GetPatientListData(ctx context.Context, list domain.PatientList, paging *domain.PagingInfo) ([]domain.PatientListData, error) {
	compiled := s.compiler.Compile(list)
	logger := s.logger.With("patient_list", list.Name, "target", compiled.Target.String())

	total, err := s.executor.Count(ctx, compiled)
	if err != nil {
		return s.fail(logger, "count", list.Name, compiled, err)
	}
	if paging != nil {
		paging.TotalRecordCount = total
		paging.LoadRecordCount = false
	}

	rows, err := s.executor.Fetch(ctx, compiled.Window(paging.Offset(), paging.Limit()))
	if err != nil {
		return s.fail(logger, "fetch", list.Name, compiled, err)
	}

	out := make([]domain.PatientListData, 0, len(rows))
	for _, row := range rows {
		item, ok := s.toData(list, row)
		if !ok {
			logger.Warn("skipping unsupported row type", "row", fmt.Sprintf("%T", row))
			continue
		}
		out = append(out, item)
	}
	logger.Debug("patient list data loaded", "total", total, "rows", len(out))
	return out, nil
}

func (s *Service) toData(list domain.PatientList, row domain.ListRow) (domain.PatientListData, bool) {
	var item domain.PatientListData
	switch r := row.(type) {
	case domain.PatientRow:
		item.Patient = r.Patient
	case domain.VisitRow:
		visit := r.Visit
		item.Patient = r.Patient
		item.Visit = &visit
	default:
		return item, false
	}

	item.PatientList = &list
	item.HeaderContent = s.renderer.Render(list.HeaderTemplate, &item.Patient, item.Visit)
	item.BodyContent = s.renderer.Render(list.BodyTemplate, &item.Patient, item.Visit)
	return item, true
}

func (s *Service) fail(logger *slog.Logger, stage, name string, compiled query.Compiled, err error) ([]domain.PatientListData, error) {
	if errors.Is(err, domain.ErrQuerySyntax) {
		logger.Error("patient list query rejected", "stage", stage, "query", compiled.Text, "error", err)
		return []domain.PatientListData{}, nil
	}
	return nil, fmt.Errorf("%s patient list %q: %w", stage, name, err)
}
