package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/trash2cash/internal/auth"
	"github.com/punchamoorthee/trash2cash/internal/domain"
	"github.com/punchamoorthee/trash2cash/internal/media"
	"github.com/punchamoorthee/trash2cash/internal/service"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trash2cash_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trash2cash_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	listings  *service.ListingService
	requests  *service.RequestService
	media     media.Uploader
	auth      *auth.Authenticator
	maxUpload int64
}

func NewHandler(listings *service.ListingService, requests *service.RequestService, up media.Uploader, authn *auth.Authenticator, maxUpload int64) *Handler {
	return &Handler{listings: listings, requests: requests, media: up, auth: authn, maxUpload: maxUpload}
}

// Router wires every route. Reads of listings are public; everything else needs
// a bearer token.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	protect := func(fn http.HandlerFunc) http.Handler { return h.auth.Middleware(fn) }

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	// discover must be registered ahead of /listings/{id}.
	apiV1.Handle("/listings/discover", protect(h.DiscoverListings)).Methods("GET")
	apiV1.HandleFunc("/listings", h.ListListings).Methods("GET")
	apiV1.HandleFunc("/listings/{id}", h.GetListing).Methods("GET")
	apiV1.Handle("/listings", protect(h.CreateListing)).Methods("POST")
	apiV1.Handle("/listings", protect(h.UpdateListing)).Methods("PUT")
	apiV1.Handle("/listings", protect(h.DeleteListing)).Methods("DELETE")
	apiV1.Handle("/listings/{id}", protect(h.UpdateListing)).Methods("PUT")
	apiV1.Handle("/listings/{id}", protect(h.DeleteListing)).Methods("DELETE")
	apiV1.Handle("/listings/{id}/status", protect(h.UpdateListingStatus)).Methods("PUT")
	apiV1.Handle("/listings/{id}/requests", protect(h.ListingRequests)).Methods("GET")
	apiV1.Handle("/listings/{id}/requests", protect(h.CreateRequest)).Methods("POST")

	apiV1.Handle("/requests", protect(h.MyRequests)).Methods("GET")
	apiV1.Handle("/requests/{id}", protect(h.GetRequest)).Methods("GET")
	apiV1.Handle("/requests/{id}", protect(h.WithdrawRequest)).Methods("DELETE")
	apiV1.Handle("/requests/{id}/accept", protect(h.AcceptRequest)).Methods("POST")
	apiV1.Handle("/requests/{id}/pickup", protect(h.MarkPickedUp)).Methods("POST")
	apiV1.Handle("/requests/{id}/payment", protect(h.MarkPaymentReceived)).Methods("POST")

	apiV1.Handle("/uploads", protect(h.Upload)).Methods("POST")
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records count and latency per route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		if endpoint == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		httpLatency.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		httpReqTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

func actorOf(r *http.Request) domain.Actor {
	actor, _ := auth.ActorFrom(r.Context())
	return actor
}

// jsonBodyLimit leaves room for an inline base64 image of maxUpload bytes.
func (h *Handler) jsonBodyLimit() int64 {
	return h.maxUpload/3*4 + 64<<10
}

// decodeJSON reads the body into v and answers the client itself on failure.
// An empty body leaves v untouched.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.jsonBodyLimit())
	err := json.NewDecoder(r.Body).Decode(v)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return true
	case errors.As(err, &tooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
	default:
		respondError(w, http.StatusBadRequest, "Invalid JSON")
	}
	return false
}

// Helpers
func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}

// respondServiceError maps domain error kinds onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		respondError(w, http.StatusInternalServerError, "internal error, please retry")
	}
}
