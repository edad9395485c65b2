package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const apiVersion = "2.0.0"

func (a *app) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.log))
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(secureHeaders)
	r.Use(middleware.Compress(5))
	r.Use(withCORS(a.cfg.CORSAllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorDetails(w, http.StatusNotFound, "not_found", "Not Found - "+r.URL.Path,
			map[string]any{"path": r.URL.Path, "method": r.Method})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "invalid_method")
	})

	r.Get("/", indexHandler())
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.Get("/health", healthHandler(a))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(a.rateLimiter("api", a.cfg.RateLimit, a.cfg.RateLimitWindow))
		r.Use(middleware.AllowContentType("application/json"))

		r.Get("/", indexHandler())

		r.Route("/auth", func(r chi.Router) {
			r.Use(a.rateLimiter("auth", a.cfg.AuthRateLimit, a.cfg.RateLimitWindow))

			r.Post("/quick-signup", quickSignupHandler(a))
			r.Post("/login", loginHandler(a))

			r.Group(func(r chi.Router) {
				r.Use(a.authenticate)
				r.Get("/onboarding-status", onboardingStatusHandler(a))
				r.Post("/onboarding/housing", onboardingHousingHandler(a))
				r.Post("/onboarding/lifestyle", onboardingLifestyleHandler(a))
				r.Post("/onboarding/professional", onboardingProfessionalHandler(a))
				r.Post("/onboarding/complete", onboardingCompleteHandler(a))
				r.Get("/me", meHandler(a))
			})
		})

		r.Route("/onboarding", func(r chi.Router) {
			r.Use(a.authenticate)
			r.Use(DataLoaderMiddleware(a.store))

			r.Get("/step/{step}", onboardingStepHandler(a))
			r.Put("/update", onboardingUpdateHandler(a))
			r.Post("/skip/{step}", onboardingSkipHandler(a))
			r.Get("/progress", onboardingProgressHandler(a))
			r.Post("/force-complete", forceCompleteHandler(a))

			r.Get("/drafts/{form}", getDraftHandler(a))
			r.Put("/drafts/{form}", saveDraftHandler(a))
			r.Delete("/drafts/{form}", deleteDraftHandler(a))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(DataLoaderMiddleware(a.store))

			r.Get("/stats", userStatsHandler(a))
			r.Get("/{userId}", getUserProfileHandler(a))

			r.Group(func(r chi.Router) {
				r.Use(a.authenticate)
				r.Get("/", listUsersHandler(a))
				r.Put("/{userId}", updateUserProfileHandler(a))
				r.Delete("/{userId}", deleteUserHandler(a))
				r.Get("/{userId}/compatible", compatibleRoommatesHandler(a))
			})
		})

		r.Route("/preview", func(r chi.Router) {
			r.Get("/profiles", previewProfilesHandler(a))
			r.Get("/stats", previewStatsHandler(a))
		})
	})

	return r
}

func indexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "RoomieMatch API",
			"version": apiVersion,
			"endpoints": map[string]string{
				"health":     "GET /health",
				"metrics":    "GET /metrics",
				"auth":       "/api/auth (quick-signup, login, onboarding-status, onboarding/*, me)",
				"onboarding": "/api/onboarding (step/{n}, update, skip/{n}, progress, force-complete, drafts/{form})",
				"users":      "/api/users (stats, {userId}, {userId}/compatible)",
				"preview":    "/api/preview (profiles, stats)",
			},
			"authentication": `Include "Authorization: Bearer <token>" header for protected routes`,
		})
	}
}

func healthHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, database, code := "OK", "connected", http.StatusOK
		if err := a.store.Ping(ctx); err != nil {
			status, database, code = "DEGRADED", "disconnected", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status":      status,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"uptime":      time.Since(a.started).Seconds(),
			"environment": a.cfg.Env,
			"database":    database,
			"version":     apiVersion,
		})
	}
}
