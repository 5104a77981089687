package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"trade-intel-lab/internal/observability"
)

// SetupRoutes configures all API routes.
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	// Liveness
	r.HandleFunc("/healthz", handler.Healthz).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Derived table queries
	api.HandleFunc("/engines", handler.GetEngines).Methods("GET")
	api.HandleFunc("/health/platform", handler.GetPlatformHealth).Methods("GET")
	api.HandleFunc("/calibration", handler.GetCalibration).Methods("GET")
	api.HandleFunc("/signals/weights", handler.GetSignalWeights).Methods("GET")
	api.HandleFunc("/stats/platform", handler.GetPlatformStats).Methods("GET")
	api.HandleFunc("/symbols/{symbol}", handler.GetSymbol).Methods("GET")

	// Mutations
	api.HandleFunc("/refresh", handler.PostRefresh).Methods("POST")
	api.HandleFunc("/signals/{signal}/override", handler.PutOverride).Methods("PUT")
	api.HandleFunc("/signals/{signal}/override", handler.DeleteOverride).Methods("DELETE")

	return r
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		observability.RecordHTTPRequest(route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}
