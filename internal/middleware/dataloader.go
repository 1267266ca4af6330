package middleware

import (
	"net/http"

	"github.com/rpattn/patientlist/internal/patientloader"
)

// DataLoaderMiddleware attaches a patient loader to the request context so
// that every page fetched while serving the request shares its cache.
func DataLoaderMiddleware(fetcher patientloader.Fetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := patientloader.NewPatientLoader(fetcher)
			next.ServeHTTP(w, r.WithContext(patientloader.NewContext(r.Context(), loader)))
		})
	}
}
