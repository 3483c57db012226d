// Package server assembles the HTTP router from configuration, storage, and
// the handler set.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"crowdtrack-backend/pkg/config"
	"crowdtrack-backend/pkg/handlers"
	"crowdtrack-backend/pkg/middleware"
	"crowdtrack-backend/pkg/models"
	"crowdtrack-backend/pkg/store"
	"crowdtrack-backend/pkg/utils"
)

// New builds the service router.
func New(cfg *config.Config, s store.Store, logger *zap.Logger) *chi.Mux {
	jwtService := utils.NewJWTService(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)

	authHandler := handlers.NewAuthHandler(cfg, s, jwtService, logger)
	accountsHandler := handlers.NewAccountsHandler(cfg, s, logger)
	projectsHandler := handlers.NewProjectsHandler(cfg, s, logger)
	ticketsHandler := handlers.NewTicketsHandler(cfg, s, logger)
	messagesHandler := handlers.NewMessagesHandler(cfg, s, logger)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(cfg, logger))
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.MaxBodySize(1 << 20))
	// The timeout must outlast the long-poll window or /listen would be
	// cut off mid-wait.
	r.Use(chimiddleware.Timeout(cfg.LongPollWait + 15*time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.HealthCheck(r.Context()); err != nil {
			utils.WriteErrorResponse(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		utils.WriteSuccessResponse(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Group(func(r chi.Router) {
				r.Use(middleware.AuthMiddleware(cfg))
				r.Get("/session", authHandler.Session)
			})
		})

		// Everything below requires a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg))

			// Account administration is owner territory.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleOwner))

				r.Route("/owners", func(r chi.Router) {
					r.Get("/", accountsHandler.ListOwners)
					r.Post("/", accountsHandler.UpsertOwner)
					r.Get("/{login}", accountsHandler.GetOwner)
					r.Delete("/{login}", accountsHandler.DeleteOwner)
				})
				r.Route("/contributors", func(r chi.Router) {
					r.Get("/", accountsHandler.ListContributors)
					r.Post("/", accountsHandler.UpsertContributor)
					r.Get("/{login}", accountsHandler.GetContributor)
					r.Delete("/{login}", accountsHandler.DeleteContributor)
				})
			})

			r.Route("/projects", func(r chi.Router) {
				// Ticket listing is shared between the owner and the
				// enrolled contributors; the rest is owner-only.
				r.Get("/{key}/tickets", projectsHandler.ListTickets)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(models.RoleOwner))
					r.Get("/", projectsHandler.List)
					r.Post("/", projectsHandler.Upsert)
					r.Get("/{key}", projectsHandler.Get)
					r.Delete("/{key}", projectsHandler.Delete)
					r.Get("/{key}/members", projectsHandler.ListMembers)
					r.Delete("/{key}/members/{login}", projectsHandler.RemoveMember)
				})
			})

			r.Route("/join", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleContributor))
				r.Post("/", projectsHandler.Join)
				r.Get("/{key}", projectsHandler.JoinPreview)
				r.Delete("/{key}", projectsHandler.Leave)
			})

			r.Route("/tickets", func(r chi.Router) {
				r.Get("/{id}", ticketsHandler.Get)
				r.Get("/{id}/observations", ticketsHandler.ListObservations)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(models.RoleOwner))
					r.Post("/", ticketsHandler.Upsert)
					r.Delete("/{id}", ticketsHandler.Delete)
				})
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(models.RoleContributor))
					r.Post("/{id}/accept", ticketsHandler.Accept)
					r.Post("/{id}/observations", ticketsHandler.SubmitObservation)
				})
			})

			r.Route("/messages/{id}", func(r chi.Router) {
				r.Get("/", messagesHandler.List)
				r.Post("/", messagesHandler.Send)
				r.Get("/listen", messagesHandler.Listen)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
