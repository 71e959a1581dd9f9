package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	api "github.com/qcm-las/qcm-server/internal/api/http"
	auth "github.com/qcm-las/qcm-server/internal/auth/middleware"
	"github.com/qcm-las/qcm-server/internal/config"
	"github.com/qcm-las/qcm-server/internal/db"
	"github.com/qcm-las/qcm-server/internal/gen"
	"github.com/qcm-las/qcm-server/internal/runs"
	"github.com/qcm-las/qcm-server/internal/storage"
	syncx "github.com/qcm-las/qcm-server/internal/sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	runStore := runs.NewSQLStore(dbh)
	events := syncx.NewEventRepo(dbh)
	saver := runs.NewSaver(runStore, events)

	exports, err := storage.NewFSStore(cfg.ExportBasePath)
	if err != nil {
		log.Fatalf("export store: %v", err)
	}

	var producer *gen.Client
	if cfg.GeneratorURL != "" {
		producer = gen.New(cfg.GeneratorURL)
	}

	reg := api.NewSessionRegistry()
	defaults := api.SessionDefaults{
		SecondsPerQuestion: cfg.SecondsPerQuestion,
		TimerEnabled:       cfg.TimerEnabled,
	}

	// --- Auth (local JWT for offline/dev) ---
	secret := getenvOr("AUTH_HMAC_SECRET", "supersecret-dev-key")
	authSvc := auth.NewAuthService(secret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, cfg.AdminUser, cfg.AdminPassHash))
	}

	// Protected API
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.Post("/sessions", api.CreateSessionHandler(reg, saver, defaults))
		pr.Route("/sessions/{sessionID}", func(sr chi.Router) {
			sr.Get("/", api.GetSessionHandler(reg))
			sr.Delete("/", api.DeleteSessionHandler(reg))
			sr.Post("/answers", api.AnswerHandler(reg))
			sr.Post("/goto", api.NavigateHandler(reg))
			sr.Post("/validate", api.ValidateHandler(reg))
			sr.Post("/flag", api.FlagHandler(reg))
			sr.Post("/tick", api.TickHandler(reg))
			sr.Post("/finish", api.FinishHandler(reg))
			sr.Post("/restart", api.RestartHandler(reg))
			sr.Post("/reset", api.ResetHandler(reg))
			sr.Post("/timer", api.ReconfigureHandler(reg))
			sr.Get("/export", api.ExportHandler(reg, exports))
		})

		pr.Post("/generate", api.GenerateHandler(producer))

		pr.Get("/runs", api.ListRunsHandler(runStore))
		pr.Get("/runs/stats", api.RunStatsHandler(runStore))
		pr.Get("/runs/{runID}", api.GetRunHandler(runStore))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

func getenvOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
