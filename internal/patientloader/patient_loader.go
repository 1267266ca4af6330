package patientloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/patientlist/internal/domain"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// Fetcher loads fully hydrated patients by ID.
type Fetcher interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Patient, error)
}

type ctxKey string

const patientLoaderKey ctxKey = "patientLoader"

// NewContext returns a copy of ctx carrying loader. Loads made through the
// same loader are cached for the lifetime of ctx.
func NewContext(ctx context.Context, loader *PatientLoader) context.Context {
	return context.WithValue(ctx, patientLoaderKey, loader)
}

// FromContext returns the loader attached to ctx, or nil.
func FromContext(ctx context.Context) *PatientLoader {
	if l, ok := ctx.Value(patientLoaderKey).(*PatientLoader); ok {
		return l
	}
	return nil
}

type PatientLoader struct {
	Loader *dataloader.Loader
}

func NewPatientLoader(fetcher Fetcher) *PatientLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		// Convert keys to []uuid.UUID
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				for j := range results {
					results[j] = &dataloader.Result{Error: fmt.Errorf("invalid UUID %q: %w", k.String(), err)}
				}
				return results
			}
			ids[i] = id
		}

		patients, err := fetcher.GetByIDs(ctx, ids)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Map UUID -> patient for ordering
		patientMap := make(map[uuid.UUID]domain.Patient, len(patients))
		for _, p := range patients {
			patientMap[p.ID] = p
		}

		// Build results in the same order as keys
		for i, id := range ids {
			if p, ok := patientMap[id]; ok {
				results[i] = &dataloader.Result{Data: p}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &PatientLoader{Loader: loader}
}

// LoadMany resolves the given patients in a single batch. Patients that do
// not exist are absent from the returned map.
func (l *PatientLoader) LoadMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Patient, error) {
	out := make(map[uuid.UUID]domain.Patient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	data, errs := l.Loader.LoadMany(ctx, dataloader.NewKeysFromStrings(keys))()
	for i, item := range data {
		if i < len(errs) && errs[i] != nil {
			return nil, fmt.Errorf("failed to load patient %s: %w", ids[i], errs[i])
		}
		if p, ok := item.(domain.Patient); ok {
			out[p.ID] = p
		}
	}
	return out, nil
}
