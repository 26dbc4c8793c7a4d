package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	mw "github.com/feedbacklens/feedbacklens/internal/api/middleware"
	"github.com/feedbacklens/feedbacklens/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth            *mw.Auth
	RateLimit       *mw.RateLimit
	WidgetRateLimit *mw.RateLimit
	AllowedOrigins  []string

	HealthHandler http.HandlerFunc

	WidgetSubmitHandler http.HandlerFunc

	ListReportsHandler   http.HandlerFunc
	GetReportHandler     http.HandlerFunc
	CreateReportHandler  http.HandlerFunc
	UpdateReportHandler  http.HandlerFunc
	DeleteReportHandler  http.HandlerFunc
	ExportReportsHandler http.HandlerFunc

	UploadAttachmentHandler      http.HandlerFunc
	ListReportAttachmentsHandler http.HandlerFunc

	CorrelationsHandler http.HandlerFunc
	PerformanceHandler  http.HandlerFunc

	CreateKeyHandler            http.HandlerFunc
	ListKeysHandler             http.HandlerFunc
	RevokeKeyHandler            http.HandlerFunc
	CreateIntegrationKeyHandler http.HandlerFunc
	ListIntegrationKeysHandler  http.HandlerFunc
	RevokeIntegrationKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Encoding", mw.IntegrationKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Widget ingest. The integration key is a public token, so this group
	// gets its own tighter rate limit.
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.AuthenticateWidget)
		r.Use(deps.WidgetRateLimit.Limit)

		r.Post("/api/v1/widget/reports", orNotImplemented(deps.WidgetSubmitHandler))
	})

	// Dashboard routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Route("/api/v1/projects/{projectID}", func(r chi.Router) {
			r.Use(deps.Auth.RequireProjectAccess)

			r.Get("/reports", orNotImplemented(deps.ListReportsHandler))
			r.Get("/reports/export", orNotImplemented(deps.ExportReportsHandler))
			r.Get("/reports/{reportID}", orNotImplemented(deps.GetReportHandler))
			r.Get("/reports/{reportID}/attachments", orNotImplemented(deps.ListReportAttachmentsHandler))

			// Mutations need the write scope.
			r.Group(func(r chi.Router) {
				r.Use(deps.Auth.RequireScope("write"))

				r.Post("/reports", orNotImplemented(deps.CreateReportHandler))
				r.Patch("/reports/{reportID}", orNotImplemented(deps.UpdateReportHandler))
				r.Delete("/reports/{reportID}", orNotImplemented(deps.DeleteReportHandler))
				r.Post("/attachments", orNotImplemented(deps.UploadAttachmentHandler))
			})

			r.Get("/reports/correlations", orNotImplemented(deps.CorrelationsHandler))
			r.Get("/reports/performance", orNotImplemented(deps.PerformanceHandler))

			// Key management
			r.Group(func(r chi.Router) {
				r.Use(deps.Auth.RequireScope("admin"))

				r.Post("/keys", orNotImplemented(deps.CreateKeyHandler))
				r.Get("/keys", orNotImplemented(deps.ListKeysHandler))
				r.Delete("/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))

				r.Post("/integration-keys", orNotImplemented(deps.CreateIntegrationKeyHandler))
				r.Get("/integration-keys", orNotImplemented(deps.ListIntegrationKeysHandler))
				r.Delete("/integration-keys/{keyID}", orNotImplemented(deps.RevokeIntegrationKeyHandler))
			})
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or an error placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, response.CodeInternal, "Endpoint not yet implemented", nil)
	}
}
