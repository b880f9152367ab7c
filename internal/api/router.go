// Package api exposes the forum's moderation core over HTTP. Every
// response uses the {success, data?, error?} envelope.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/agora/forum/internal/domain"
	"github.com/agora/forum/internal/enforcement"
	"github.com/agora/forum/internal/identity"
	"github.com/agora/forum/internal/metrics"
	"github.com/agora/forum/internal/ratelimit"
	"github.com/agora/forum/internal/report"
	"github.com/agora/forum/internal/submission"
)

// Inbox is the notification storage read by the inbox endpoints.
type Inbox interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID string) (int64, error)
}

// Catalog lists categories for the topic form.
type Catalog interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the router. Limiter may be nil to disable request throttling.
type Deps struct {
	Submissions        *submission.Service
	Reports            *report.Service
	Enforcement        *enforcement.Service
	Inbox              Inbox
	Catalog            Catalog
	Health             Pinger
	Verifier           *identity.Verifier
	Limiter            *ratelimit.Limiter
	CORSAllowedOrigins []string
	Logger             *zap.Logger
}

type handlers struct {
	submissions *submission.Service
	reports     *report.Service
	enforcement *enforcement.Service
	inbox       Inbox
	catalog     Catalog
	health      Pinger
	verifier    *identity.Verifier
	limiter     *ratelimit.Limiter
	logger      *zap.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	h := &handlers{
		submissions: d.Submissions,
		reports:     d.Reports,
		enforcement: d.Enforcement,
		inbox:       d.Inbox,
		catalog:     d.Catalog,
		health:      d.Health,
		verifier:    d.Verifier,
		limiter:     d.Limiter,
		logger:      d.Logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(chimw.Recoverer)
	if len(d.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authenticate)

		r.With(h.rateLimit(ratelimit.RuleSubmit)).Post("/topics", h.createTopic)
		r.With(h.rateLimit(ratelimit.RuleSubmit)).Post("/topics/{topicID}/replies", h.createReply)
		r.With(h.rateLimit(ratelimit.RuleReport)).Post("/reports", h.createReport)
		r.Get("/notifications", h.listNotifications)
		r.Post("/notifications/read", h.markNotificationsRead)
		r.Get("/categories", h.listCategories)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.rateLimit(ratelimit.RuleAdmin))

			r.Get("/reports", h.listReports)
			r.Patch("/reports/{reportID}", h.updateReport)

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Post("/warn", h.warnUser)
				r.Post("/timeout", h.timeoutUser)
				r.Delete("/timeout", h.removeTimeout)
				r.Post("/ban", h.banUser)
				r.Delete("/ban", h.unbanUser)
				r.Put("/role", h.changeRole)
				r.Get("/warnings", h.listWarnings)
				r.Delete("/", h.deleteUser)
			})

			r.Post("/categories", h.createCategory)
			r.Put("/categories/{categoryID}", h.updateCategory)
			r.Delete("/categories/{categoryID}", h.deleteCategory)

			r.Put("/topics/{topicID}/pin", h.pinTopic)
			r.Put("/topics/{topicID}/lock", h.lockTopic)
			r.Delete("/topics/{topicID}", h.deleteTopic)
			r.Delete("/replies/{replyID}", h.deleteReply)
		})
	})

	return r
}
