package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/ilyalazarenkoit/eltis-test/internal/app"
	"github.com/ilyalazarenkoit/eltis-test/internal/config"
	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
	"github.com/ilyalazarenkoit/eltis-test/internal/infra/memory"
	pgstore "github.com/ilyalazarenkoit/eltis-test/internal/infra/postgres"
	rediscache "github.com/ilyalazarenkoit/eltis-test/internal/infra/redis"
	"github.com/ilyalazarenkoit/eltis-test/internal/notify"
	"github.com/ilyalazarenkoit/eltis-test/internal/ratelimit"
	transport "github.com/ilyalazarenkoit/eltis-test/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the placement test server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var participants app.ParticipantStore = memory.NewParticipantStore()
	var catalog app.QuestionCatalog = memory.NewCatalog(sampleQuestions())
	if pool != nil {
		participants = pgstore.NewParticipantStore(pool)
		pgCatalog := pgstore.NewCatalog(pool)
		catalog = pgCatalog
		if redisClient != nil {
			catalogTTL := config.Duration(cfg.Catalog.TTL, 10*time.Minute)
			catalog = rediscache.NewCatalogCache(redisClient, pgCatalog, catalogTTL)
		}
	}

	var sink app.NotificationSink = notify.NopSink{}
	if cfg.Notify.URL != "" {
		sink = notify.NewWebhookSink(cfg.Notify.URL, cfg.Notify.Secret)
	}

	service := app.NewAssessmentService(participants, catalog, sink)

	limiter := ratelimit.New()
	scheduler := gocron.NewScheduler(time.UTC)
	sweepEvery := config.Duration(cfg.RateLimit.SweepInterval, time.Minute)
	if _, err := scheduler.Every(sweepEvery).Do(limiter.Sweep); err != nil {
		return err
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	handler := transport.NewHandler(service)
	watch := transport.NewWatchHandler(service.Feed())

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(router, transport.Gates{
		Register:    transport.RateLimit(limiter, "register", limitConfig(cfg.RateLimit.Register, 5*time.Minute, 5)),
		Answer:      transport.RateLimit(limiter, "answer", limitConfig(cfg.RateLimit.Answer, time.Minute, 30)),
		Participant: transport.RateLimit(limiter, "participant", limitConfig(cfg.RateLimit.Participant, time.Minute, 60)),
	})
	router.HandleFunc("/ws/progress", watch.ServeWS)

	origins := cfg.CORS.Origins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      corsMiddleware.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting placement test service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func limitConfig(params config.LimitParams, window time.Duration, max int) transport.LimitConfig {
	cfg := transport.LimitConfig{
		Window: config.Duration(params.Window, window),
		Max:    max,
	}
	if params.Max > 0 {
		cfg.Max = params.Max
	}
	return cfg
}

// sampleQuestions keeps the service usable without a database; production
// seeds the real catalog into Postgres.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            1,
			Kind:          domain.KindListening,
			Text:          "Choose the directions the students in the picture have followed.",
			Options:       []string{"A", "B", "C"},
			CorrectOption: 0,
		},
		{
			ID:            2,
			Kind:          domain.KindReading,
			Text:          "The committee will ___ the proposal next week.",
			Options:       []string{"review", "reviewing", "reviewed"},
			CorrectOption: 0,
		},
	}
}
