// Package api provides HTTP routing and handlers for the ATC API server.
package api

import (
	"net/http"
	"time"

	"github.com/asgard/atc/internal/api/handlers"
	apimiddleware "github.com/asgard/atc/internal/api/middleware"
	"github.com/asgard/atc/internal/api/realtime"
	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
	"github.com/asgard/atc/internal/repositories"
	"github.com/asgard/atc/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Services bundles every business-logic dependency the router wires into
// handlers. Constructed once at startup and threaded through from main.
type Services struct {
	Auth       *services.AuthService
	Operator   *services.OperatorService
	Drone      *services.DroneService
	FlightPlan *services.FlightPlanService
	Command    *services.CommandService
	Geofence   *services.GeofenceService
	RIDView    *services.RIDViewService
	AuditRepo  *repositories.AuditRepository
	Store      *world.Store

	// RegistrationToken, when non-empty, gates POST /v1/drones/register
	// behind a matching X-Registration-Token header.
	RegistrationToken string
}

// NewRouter sets up all API routes and handlers.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(apimiddleware.Apply)
	r.Use(observability.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", "X-Drone-Token", "X-Registration-Token"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handlers.NewAuthHandler(svc.Auth)
	operatorHandler := handlers.NewOperatorHandler(svc.Operator)
	droneHandler := handlers.NewDroneHandler(svc.Drone, svc.RegistrationToken)
	flightHandler := handlers.NewFlightPlanHandler(svc.FlightPlan)
	commandHandler := handlers.NewCommandHandler(svc.Command, svc.Store)
	geofenceHandler := handlers.NewGeofenceHandler(svc.Geofence)
	trafficHandler := handlers.NewTrafficHandler(svc.Store)
	conflictHandler := handlers.NewConflictHandler(svc.Store)
	conformanceHandler := handlers.NewConformanceHandler(svc.Store)
	ridHandler := handlers.NewRIDHandler(svc.RIDView)
	adminHandler := handlers.NewAdminHandler(svc.Store, svc.AuditRepo)
	healthHandler := handlers.NewHealthHandler()

	submissionLimiter := apimiddleware.NewRateLimiter(30, time.Minute)

	r.Get("/healthz", healthHandler.Health)
	r.Handle("/metrics", observability.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signin", authHandler.SignIn)
			r.Post("/signup", authHandler.SignUp)
		})

		r.Route("/operators", func(r chi.Router) {
			r.Use(authHandler.RequireAuth)
			r.Get("/me", operatorHandler.GetProfile)
			r.Patch("/me", operatorHandler.UpdateProfile)
		})

		r.Route("/drones", func(r chi.Router) {
			r.Use(authHandler.RequireAuth)
			r.Post("/register", droneHandler.Register)
			r.Get("/", droneHandler.ListFleet)
			r.Get("/{id}", droneHandler.Get)
		})

		r.With(authHandler.RequireDroneAuth).Post("/telemetry", droneHandler.IngestTelemetry)

		r.Route("/traffic", func(r chi.Router) {
			r.Use(authHandler.RequireAuth)
			r.Get("/", trafficHandler.Get)
		})

		r.Route("/conflicts", func(r chi.Router) {
			r.Use(authHandler.RequireAuth)
			r.Get("/", conflictHandler.List)
		})

		r.With(authHandler.RequireAuth).Get("/conformance", conformanceHandler.ListConformance)
		r.With(authHandler.RequireAuth).Get("/daa", conformanceHandler.ListDAA)

		r.Route("/flights", func(r chi.Router) {
			r.Use(authHandler.RequireAuth)
			r.With(submissionLimiter.Middleware).Post("/plan", flightHandler.Submit)
			r.With(submissionLimiter.Middleware).Post("/", flightHandler.Submit)
			r.Get("/", flightHandler.List)
			r.Get("/{id}", flightHandler.Get)
		})

		r.Route("/commands", func(r chi.Router) {
			r.With(authHandler.RequireAuth, submissionLimiter.Middleware).Post("/", commandHandler.Issue)
			r.With(authHandler.RequireAuth).Get("/", commandHandler.List)
			r.With(authHandler.RequireDroneAuth).Get("/next", commandHandler.Next)
			r.With(authHandler.RequireDroneAuth).Post("/ack", commandHandler.Ack)
		})

		r.Route("/geofences", func(r chi.Router) {
			r.Use(authHandler.RequireAuth)
			r.Post("/", geofenceHandler.Create)
			r.Get("/", geofenceHandler.List)
			r.Get("/check", geofenceHandler.Check)
			r.Post("/check-route", geofenceHandler.CheckRoute)
			r.Get("/{id}", geofenceHandler.Get)
			r.Put("/{id}", geofenceHandler.Update)
			r.Delete("/{id}", geofenceHandler.Delete)
		})

		r.Route("/rid", func(r chi.Router) {
			r.Use(authHandler.RequireAuth)
			r.Post("/view", ridHandler.UpdateView)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authHandler.RequireAdmin)
			r.Post("/reset", adminHandler.Reset)
			r.Get("/operators", operatorHandler.ListOperators)
			r.Patch("/operators/{id}/role", operatorHandler.SetRole)
		})

		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			realtime.HandleWebSocket(w, r, svc.Store, svc.Auth)
		})
	})

	return r
}
