package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/scry-rl/scry/internal/api/handlers"
	mw "github.com/scry-rl/scry/internal/api/middleware"
	"github.com/scry-rl/scry/internal/buildconfig"
	"github.com/scry-rl/scry/internal/catalog"
	"github.com/scry-rl/scry/internal/config"
	"github.com/scry-rl/scry/internal/domain"
	"github.com/scry-rl/scry/internal/service"
	"github.com/scry-rl/scry/internal/store"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router   *chi.Mux
	Episodes *service.EpisodeService
	Expirer  *service.ExpirerService

	catalog   *catalog.Catalog
	metrics   *mw.MetricsCollector
	startTime time.Time
}

// NewApp wires the inspection server over a loaded catalog. db may be
// nil, which turns the archive endpoints into 503s and keeps everything
// else working.
func NewApp(cat *catalog.Catalog, db *pgxpool.Pool, logger *zap.Logger) *App {
	var archive domain.EpisodeArchive
	if db != nil {
		archive = store.NewEpisodeArchive(db)
	}

	// Services
	episodeSvc := service.NewEpisodeService(cat, archive, logger)
	episodeSvc.MaxEpisodes = config.MaxEpisodes()
	episodeSvc.SnapshotSize = config.EmbeddingSize()
	expirerSvc := service.NewExpirerService(episodeSvc, logger)

	// Handlers
	episodeHandler := handlers.NewEpisodeHandler(episodeSvc)
	catalogHandler := handlers.NewCatalogHandler(cat)
	archiveHandler := handlers.NewArchiveHandler(episodeSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Episodes:  episodeSvc,
		Expirer:   expirerSvc,
		catalog:   cat,
		metrics:   mw.NewMetricsCollector(),
		startTime: time.Now(),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/version", versionHandler())
		r.Get("/catalog/{species}", catalogHandler.GetSpecies)

		r.Route("/episodes", func(r chi.Router) {
			r.Post("/", episodeHandler.Create)
			r.Get("/", episodeHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", episodeHandler.GetByID)
				r.Delete("/", episodeHandler.Delete)
				r.Post("/events", episodeHandler.Ingest)
				r.Get("/beliefs", episodeHandler.Beliefs)
				r.Get("/beliefs/{slot}", episodeHandler.BeliefBySlot)
				r.Get("/snapshot", episodeHandler.Snapshot)
				r.Get("/contradictions", episodeHandler.Contradictions)
				r.Post("/reset", episodeHandler.Reset)
				r.Post("/archive", episodeHandler.Archive)
			})
		})

		r.Route("/archive", func(r chi.Router) {
			r.Get("/episodes", archiveHandler.Recent)
			r.Get("/episodes/{id}", archiveHandler.GetByID)
			r.Post("/similar", archiveHandler.Similar)
		})
	})

	return app
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db == nil {
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "archive": "disabled"})
			return
		}

		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "archive": "error", "error": err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "archive": "ok"})
	}
}

func versionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(buildconfig.VersionInfo())
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds":   uptime.Seconds(),
			"uptime_human":     uptime.Round(time.Second).String(),
			"request_count":    app.metrics.Requests(),
			"error_count":      app.metrics.Errors(),
			"episodes_hosted":  app.Episodes.Len(),
			"catalog_species":  app.catalog.Len(),
			"goroutines":       runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure the store satisfies the archive interface at compile time.
var _ domain.EpisodeArchive = (*store.EpisodeArchive)(nil)
