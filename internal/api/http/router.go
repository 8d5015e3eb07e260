package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"library-circulation-backend/internal/metrics"
)

// Pinger reports whether a backing store is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type RouterOptions struct {
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// DB is checked by /healthz when set.
	DB Pinger
}

// NewRouter registers the circulation API plus health and metrics endpoints.
func NewRouter(h *CirculationHandler, opts RouterOptions) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestID, Instrument(opts.Metrics))

	router.HandleFunc("/healthz", healthz(opts.DB)).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	router.HandleFunc("/borrow-requests", h.CreateBorrowRequest).Methods(http.MethodPost)
	router.HandleFunc("/borrow-requests/{id}", h.GetBorrowRequest).Methods(http.MethodGet)
	router.HandleFunc("/borrow-requests/{id}/reject", h.RejectBorrowRequest).Methods(http.MethodPost)
	router.HandleFunc("/books/{id}/hold-queue", h.GetHoldQueue).Methods(http.MethodGet)
	router.HandleFunc("/borrow-records", h.CreateBorrowRecord).Methods(http.MethodPost)
	router.HandleFunc("/borrow-records/{id}", h.GetBorrowRecord).Methods(http.MethodGet)
	router.HandleFunc("/borrow-records/{id}/return", h.ReturnBorrowRecord).Methods(http.MethodPost)
	router.HandleFunc("/ebook-borrow-requests", h.BorrowEbook).Methods(http.MethodPost)
	router.HandleFunc("/users/{id}/notifications", h.ListNotifications).Methods(http.MethodGet)

	return router
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
