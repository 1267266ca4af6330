package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/patientlist/internal/db"
	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/patientloader"
	"github.com/rpattn/patientlist/internal/query"
)

// ListQueryExecutor runs compiled patient list queries against PostgreSQL and
// hydrates the selected rows.
type ListQueryExecutor struct {
	db       db.DBTX
	patients PatientRepository
	visits   VisitRepository
	logger   *slog.Logger
}

// NewListQueryExecutor creates an executor reading rows from conn.
func NewListQueryExecutor(conn db.DBTX, patients PatientRepository, visits VisitRepository, logger *slog.Logger) *ListQueryExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListQueryExecutor{db: conn, patients: patients, visits: visits, logger: logger}
}

// Count returns the number of rows the query matches.
func (e *ListQueryExecutor) Count(ctx context.Context, q query.Compiled) (int64, error) {
	counted := q.Count()
	var total int64
	if err := e.db.QueryRow(ctx, counted.Text, counted.Args...).Scan(&total); err != nil {
		return 0, classifyQueryError(err)
	}
	return total, nil
}

// Fetch runs the query and returns one row per result, in query order.
func (e *ListQueryExecutor) Fetch(ctx context.Context, q query.Compiled) ([]domain.ListRow, error) {
	rows, err := e.db.Query(ctx, q.Text, q.Args...)
	if err != nil {
		return nil, classifyQueryError(err)
	}

	var (
		patients []domain.Patient
		visits   []domain.Visit
	)
	if q.Target == query.TargetVisits {
		visits, err = scanVisits(rows)
	} else {
		patients, err = scanPatients(rows)
	}
	if err != nil {
		return nil, classifyQueryError(err)
	}

	if q.Target == query.TargetVisits {
		return e.visitRows(ctx, visits)
	}
	return e.patientRows(ctx, patients)
}

func (e *ListQueryExecutor) patientRows(ctx context.Context, scanned []domain.Patient) ([]domain.ListRow, error) {
	ids := make([]uuid.UUID, len(scanned))
	for i, p := range scanned {
		ids[i] = p.ID
	}
	loaded, err := e.loader(ctx).LoadMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ListRow, len(scanned))
	for i, p := range scanned {
		out[i] = domain.PatientRow{Patient: e.hydrated(p, loaded)}
	}
	return out, nil
}

func (e *ListQueryExecutor) visitRows(ctx context.Context, scanned []domain.Visit) ([]domain.ListRow, error) {
	patientIDs := make([]uuid.UUID, 0, len(scanned))
	visitIDs := make([]uuid.UUID, len(scanned))
	seen := make(map[uuid.UUID]struct{}, len(scanned))
	for i, v := range scanned {
		visitIDs[i] = v.ID
		if _, ok := seen[v.PatientID]; ok {
			continue
		}
		seen[v.PatientID] = struct{}{}
		patientIDs = append(patientIDs, v.PatientID)
	}

	loaded, err := e.loader(ctx).LoadMany(ctx, patientIDs)
	if err != nil {
		return nil, err
	}
	attributes, err := e.visits.AttributesByVisitIDs(ctx, visitIDs)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ListRow, len(scanned))
	for i, v := range scanned {
		v.Attributes = attributes[v.ID]
		out[i] = domain.VisitRow{Visit: v, Patient: e.hydrated(domain.Patient{ID: v.PatientID}, loaded)}
	}
	return out, nil
}

// loader returns the request scoped loader, or a fresh one when the caller did
// not attach any.
func (e *ListQueryExecutor) loader(ctx context.Context) *patientloader.PatientLoader {
	if l := patientloader.FromContext(ctx); l != nil {
		return l
	}
	return patientloader.NewPatientLoader(e.patients)
}

func (e *ListQueryExecutor) hydrated(p domain.Patient, loaded map[uuid.UUID]domain.Patient) domain.Patient {
	if full, ok := loaded[p.ID]; ok {
		return full
	}
	e.logger.Warn("patient missing during hydration", "patient_id", p.ID)
	return p
}

// scanPatients reads rows selecting query.PatientColumns.
func scanPatients(rows pgx.Rows) ([]domain.Patient, error) {
	defer rows.Close()

	out := make([]domain.Patient, 0)
	for rows.Next() {
		dests, build := patientScanTargets()
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan patient row: %w", err)
		}
		out = append(out, build())
	}
	return out, rows.Err()
}

// scanVisits reads rows selecting query.VisitColumns.
func scanVisits(rows pgx.Rows) ([]domain.Visit, error) {
	defer rows.Close()

	out := make([]domain.Visit, 0)
	for rows.Next() {
		var (
			v         domain.Visit
			visitType pgtype.Text
			location  pgtype.Text
			start     pgtype.Timestamptz
			stop      pgtype.Timestamptz
		)
		dests := []any{&v.ID, &v.PatientID, &visitType, &location, &start, &stop}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan visit row: %w", err)
		}
		v.VisitType = visitType.String
		v.Location = location.String
		if start.Valid {
			v.StartDatetime = start.Time
		}
		if stop.Valid {
			t := stop.Time
			v.StopDatetime = &t
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// classifyQueryError marks errors caused by the query text or its bound
// values (SQLSTATE classes 42 and 22) as domain.ErrQuerySyntax.
func classifyQueryError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && isSyntaxClass(pgErr.Code) {
		return fmt.Errorf("%w: %w", domain.ErrQuerySyntax, err)
	}
	return fmt.Errorf("failed to execute patient list query: %w", err)
}

func isSyntaxClass(code string) bool {
	return strings.HasPrefix(code, "42") || strings.HasPrefix(code, "22")
}
