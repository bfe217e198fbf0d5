package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/trace"

	apperrors "optchain/internal/errors"
	"optchain/internal/middleware"
)

// RouterOptions configures the operational router.
type RouterOptions struct {
	Health *HealthHandler
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// NewRouter builds the chi router for the health and metrics endpoints.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Trace(opts.Tracer))
	r.Use(middleware.StructuredLogger(opts.Logger))
	r.Use(middleware.Recoverer(opts.Logger))

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/healthz", opts.Health.HealthCheck)
		r.Get("/readyz", opts.Health.ReadinessCheck)
		r.Get("/livez", opts.Health.LivenessCheck)
	})

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	problem := apperrors.NewProblemDetails(
		http.StatusNotFound,
		apperrors.TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	_ = render.Render(w, r, problem)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := apperrors.NewProblemDetails(
		http.StatusMethodNotAllowed,
		apperrors.TypeMethodNotAllowed,
		"Method Not Allowed",
		"Method "+r.Method+" is not allowed for this endpoint",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	_ = render.Render(w, r, problem)
}
