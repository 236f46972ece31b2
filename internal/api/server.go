package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/0xPuncker/job-watcher/internal/errors"
	"github.com/0xPuncker/job-watcher/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type ServerOptions struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StartServer serves the local API until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, handler *Handler, opts ServerOptions) error {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 15 * time.Second
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", opts.Port),
		Handler:      NewRouter(handler),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		handler.logger.Infof("Local API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return errors.Wrap(err, "server error")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown failed")
	}

	return nil
}

// instrumentMiddleware logs and counts each request against its route template,
// so saved-search ids stay out of metric labels.
func instrumentMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			metrics.HttpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.status)).Inc()

			entry := logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"route":    route,
				"path":     r.URL.Path,
				"status":   rw.status,
				"duration": roundDuration(time.Since(start)).String(),
			})
			if id := mux.Vars(r)["id"]; id != "" {
				entry = entry.WithField("search_id", id)
			}
			if rw.status >= http.StatusInternalServerError {
				entry.Warn("Request failed")
				return
			}
			entry.Debug("Request processed")
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if template, err := route.GetPathTemplate(); err == nil {
			return template
		}
	}
	return r.URL.Path
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond)
	case d < time.Second:
		return d.Round(time.Millisecond)
	default:
		return d.Round(10 * time.Millisecond)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
