// Package api exposes the upload broker over HTTP.
package api

import (
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/stefando/shareDrop/internal/metrics"
	"github.com/stefando/shareDrop/internal/upload"
)

// Options configures the router
type Options struct {
	Logger         *logrus.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

// NewRouter creates and configures the Chi router
func NewRouter(svc *upload.Service, opts Options) chi.Router {
	r := chi.NewRouter()

	// Middleware for all routes
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(opts.AllowedOrigins))
	r.Use(instrument(opts.Metrics))

	h := &handlers{svc: svc}

	r.Post("/upload-url", h.handleUploadURL)

	r.Route("/upload-multipart", func(r chi.Router) {
		r.Post("/initiate", h.handleInitiate)
		r.Post("/part-url", h.handlePartURL)
		r.Post("/complete", h.handleComplete)
		r.Post("/abort", h.handleAbort)
		r.Get("/{uploadId}", h.handleSession)
	})

	r.Get("/download-url/{id}", h.handleDownloadURL)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	return r
}

// requestLogger routes chi's access log through logrus
func requestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		return middleware.Logger
	}
	return middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  stdlog.New(logger.WriterLevel(logrus.InfoLevel), "", 0),
		NoColor: true,
	})
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}).Handler
}

// instrument records request latency labelled by route pattern
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(route, r.Method, status, time.Since(start))
		})
	}
}
