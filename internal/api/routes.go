package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(router *mux.Router, handler *Handler) {
	router.HandleFunc("/api/v1/health", handler.HealthCheck).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/session", handler.GetSession).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/session", handler.SignIn).Methods(http.MethodPut)
	router.HandleFunc("/api/v1/session", handler.SignOut).Methods(http.MethodDelete)

	router.HandleFunc("/api/v1/searches", handler.ListSearches).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/searches", handler.CreateSearch).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/searches/{id}", handler.GetSearch).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/searches/{id}", handler.UpdateSearch).Methods(http.MethodPut)
	router.HandleFunc("/api/v1/searches/{id}", handler.DeleteSearch).Methods(http.MethodDelete)
	router.HandleFunc("/api/v1/searches/{id}/run", handler.RunSearch).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/searches/{id}/run", handler.LastRun).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/searches/{id}/mark-seen", handler.MarkSeen).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/searches/{id}/toggle", handler.ToggleActive).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/searches/{id}/results", handler.SearchResults).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/form", handler.GetForm).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/form", handler.UpdateForm).Methods(http.MethodPut)
	router.HandleFunc("/api/v1/form", handler.CancelForm).Methods(http.MethodDelete)
	router.HandleFunc("/api/v1/form/create", handler.OpenCreateForm).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/form/edit/{id}", handler.OpenEditForm).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/form/submit", handler.SubmitForm).Methods(http.MethodPost)

	router.HandleFunc("/api/v1/search", handler.AdhocSearch).Methods(http.MethodPost)

	router.HandleFunc("/api/v1/scheduler", handler.SchedulerView).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/scheduler/{action}", handler.SchedulerAction).Methods(http.MethodPost)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// NewRouter builds the router with request instrumentation and CORS middleware.
func NewRouter(handler *Handler) *mux.Router {
	router := mux.NewRouter()

	router.Use(instrumentMiddleware(handler.logger))
	router.Use(corsMiddleware)

	SetupRoutes(router, handler)
	return router
}
