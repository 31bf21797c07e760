package main

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/scof256/hellodoctor-sub006/internal/agent"
	"github.com/scof256/hellodoctor-sub006/internal/config"
	"github.com/scof256/hellodoctor-sub006/internal/intake"
	"github.com/scof256/hellodoctor-sub006/internal/notify"
	"github.com/scof256/hellodoctor-sub006/internal/platform/telegram"
	"github.com/scof256/hellodoctor-sub006/internal/report"
)

func main() {
	// 1. Configuration & logging
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.IsDev() {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// 2. Infrastructure
	var db *sql.DB
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			break
		}
		log.Info().Int("attempt", i+1).Msg("waiting for database")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
	log.Info().Msg("connected to database")

	m, err := migrate.New(cfg.MigrationsPath, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("migration init failed")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal().Err(err).Msg("migration up failed")
	}
	log.Info().Msg("migrations applied")

	// 3. Clients
	modelClient := agent.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	tgClient := telegram.NewClient(cfg.TelegramToken)
	if cfg.ClinicChatID == 0 {
		log.Warn().Msg("CLINIC_CHAT_ID is not set; notifications and reports will not be delivered")
	}

	// 4. Services
	repo := intake.NewRepository(db)
	notifier := notify.NewTelegramNotifier(tgClient, cfg.ClinicChatID)
	auditor := notify.NewLogAuditor(log)
	reportSvc := report.NewService(tgClient, cfg.ClinicChatID)
	intakeSvc := intake.NewService(repo, modelClient, notifier, auditor, reportSvc, log)
	intakeHandler := intake.NewHandler(intakeSvc)

	// 5. Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS for frontend
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
			if r.Method == "OPTIONS" {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		intake.RegisterRoutes(r, intakeHandler)
	})

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
