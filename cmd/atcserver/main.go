// Package main runs the ATC server: the HTTP/WebSocket API, the in-memory
// world store, and every background control loop, wired to Postgres for
// durable state and to upstream UTM for telemetry mirroring and sync.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/asgard/atc/internal/api"
	"github.com/asgard/atc/internal/atc/admission"
	"github.com/asgard/atc/internal/atc/blender"
	"github.com/asgard/atc/internal/atc/dispatch"
	"github.com/asgard/atc/internal/atc/loops"
	"github.com/asgard/atc/internal/atc/routing"
	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/db"
	"github.com/asgard/atc/internal/platform/observability"
	"github.com/asgard/atc/internal/platform/realtime"
	"github.com/asgard/atc/internal/repositories"
	"github.com/asgard/atc/internal/services"
)

const (
	intentExpiryLockKey    = 7200200
	blenderSessionIDEnvVar = "ATC_BLENDER_SESSION_ID"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	addr := flag.String("addr", ":8090", "HTTP server address")
	flag.Parse()

	log.Println("=== ATC Server ===")
	log.Printf("HTTP server: %s", *addr)

	shutdownTracing, err := observability.InitTracing(context.Background(), "atc-server")
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				log.Printf("tracing shutdown error: %v", err)
			}
		}()
	}

	dbCfg, err := db.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	svcCfg := db.LoadServiceConfig()

	pgDB, err := db.NewPostgresDB(dbCfg)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pgDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := pgDB.Migrate(ctx); err != nil {
		cancel()
		log.Fatalf("migration failed: %v", err)
	}
	cancel()
	log.Println("postgres connected and schema up to date")

	operatorRepo := repositories.NewOperatorRepository(pgDB)
	droneRepo := repositories.NewDroneRepository(pgDB)
	flightPlanRepo := repositories.NewFlightPlanRepository(pgDB)
	commandRepo := repositories.NewCommandRepository(pgDB)
	geofenceRepo := repositories.NewGeofenceRepository(pgDB)
	auditRepo := repositories.NewAuditRepository(pgDB)

	store := world.NewStore()
	seedWorld(store, droneRepo, flightPlanRepo, geofenceRepo)

	authService := services.NewAuthService(operatorRepo, droneRepo)
	operatorService := services.NewOperatorService(operatorRepo)
	droneService := services.NewDroneService(store, droneRepo, authService)
	geofenceService := services.NewGeofenceService(store, geofenceRepo)
	ridView := services.NewRIDViewService()

	dispatcher := dispatch.NewDispatcher(store, dispatch.DefaultConfig())
	commandService := services.NewCommandService(dispatcher, commandRepo)

	terrain := routing.TerrainProvider{
		BaseURL:           svcCfg.TerrainProviderURL,
		CacheTTL:          5 * time.Minute,
		SampleSpacingM:    svcCfg.DefaultGridSpacingM,
		MaxGridPoints:     4096,
		MaxPointsPerBatch: 100,
		RequestTimeout:    svcCfg.ProviderTimeout,
		Client:            &http.Client{Timeout: svcCfg.ProviderTimeout},
	}
	var terrainSampler routing.TerrainSampler
	if svcCfg.TerrainProviderURL != "" {
		terrainSampler = terrain.FetchGrid
	}
	planner := routing.NewPlanner(terrainSampler, nil)

	validator := admission.NewValidator(admission.DefaultConfig())
	flightPlanService := services.NewFlightPlanService(store, planner, validator, flightPlanRepo, auditRepo, svcCfg)

	blenderClient := blender.NewClient(blender.Config{
		BaseURL:   svcCfg.BlenderBaseURL,
		SessionID: getEnvDefault(blenderSessionIDEnvVar, "atc-server"),
		Timeout:   svcCfg.BlenderTimeout,
	})
	ridSource := blender.NewRIDSource(blenderClient, ridView)

	natsCfg := realtime.DefaultBridgeConfig()
	natsCfg.URL = dbCfg.NATSURI()
	natsCfg.InstanceID = "atcserver-" + getEnvDefault("HOSTNAME", "local")
	bridge, err := realtime.NewBridge(natsCfg)
	if err != nil {
		log.Printf("realtime bridge disabled, NATS unavailable: %v", err)
		bridge = nil
	} else {
		if err := bridge.Subscribe(store); err != nil {
			log.Printf("realtime bridge subscribe failed: %v", err)
		}
		go bridge.Publish(store)
		defer bridge.Close()
	}

	router := api.NewRouter(api.Services{
		Auth:       authService,
		Operator:   operatorService,
		Drone:      droneService,
		FlightPlan: flightPlanService,
		Command:    commandService,
		Geofence:   geofenceService,
		RIDView:    ridView,
		AuditRepo:  auditRepo,
		Store:      store,

		RegistrationToken: svcCfg.RegistrationToken,
	})

	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	supervisor := loops.NewSupervisor()
	supervisor.Start(runCtx,
		loops.NewConflictLoop(store),
		loops.NewMissionLoop(store, dispatcher),
		loops.NewConformanceLoop(store, dispatcher, blenderClient.PullConformance),
		loops.NewBlenderMirrorLoop(store, blenderClient.PushSnapshot),
		loops.NewRIDPullLoop(store, ridSource.Subscribe, ridSource.Pull),
		loops.NewGeofenceSyncLoop(store, blenderClient.FetchGeofences),
		loops.NewIntentExpiryLoop(store, repositories.NewAdvisoryLock(pgDB, intentExpiryLockKey)),
		loops.NewTelemetryPersistLoop(store, telemetryPersister(droneRepo)),
	)

	go func() {
		log.Printf("starting HTTP server on %s", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("ATC server ready")
	log.Println("  REST:      /v1/auth, /v1/drones, /v1/flights, /v1/commands, /v1/geofences, /v1/traffic, /v1/conflicts")
	log.Println("  WebSocket: /v1/ws")
	log.Println("  Metrics:   /metrics")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down...")
	runCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	supervisor.Wait()
	log.Println("ATC server stopped")
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// telemetryPersister adapts DroneRepository.UpdateTelemetry to the loop's
// batch persist seam: one row write per drone, best-effort per tick.
func telemetryPersister(droneRepo *repositories.DroneRepository) loops.TelemetryPersister {
	return func(ctx context.Context, drones []world.Drone) error {
		for _, d := range drones {
			row := &db.DroneRow{
				DroneID:    d.DroneID,
				Lat:        d.Lat,
				Lon:        d.Lon,
				AltitudeM:  d.AltitudeM,
				VX:         d.VX,
				VY:         d.VY,
				VZ:         d.VZ,
				HeadingDeg: d.HeadingDeg,
				SpeedMps:   d.SpeedMps,
				Status:     string(d.Status),
				LastUpdate: d.LastUpdate,
			}
			if err := droneRepo.UpdateTelemetry(row); err != nil {
				log.Printf("[telemetry-persist] drone %s: %v", d.DroneID, err)
			}
		}
		return nil
	}
}
