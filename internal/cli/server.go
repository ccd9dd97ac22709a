package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"lms-assessment-service/internal/app"
	"lms-assessment-service/internal/attempt"
	"lms-assessment-service/internal/config"
	"lms-assessment-service/internal/domain"
	"lms-assessment-service/internal/gateway"
	"lms-assessment-service/internal/ledger"
	"lms-assessment-service/internal/quizdef"
	transport "lms-assessment-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
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
	}

	var loader quizdef.Loader = quizdef.NewStaticLoader(sampleDefinitions())
	if pool != nil {
		loader = quizdef.NewPostgresLoader(pool)
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var defs quizdef.Repository
	if redisClient != nil {
		defs = quizdef.NewRedisRepository(redisClient, loader, quizTTL)
	} else {
		defs = quizdef.NewMemoryRepository(loader, quizTTL)
	}

	// The ledger prefers the most durable store available.
	var led ledger.Ledger
	switch {
	case pool != nil:
		led = ledger.NewPostgres(pool)
	case redisClient != nil:
		led = ledger.NewRedis(redisClient)
	default:
		led = ledger.NewMemory()
	}

	var gw gateway.SubmissionGateway = gateway.Local{}
	if cfg.Submission.Endpoint != "" {
		gw = gateway.NewHTTPGateway(cfg.Submission.Endpoint, config.Duration(cfg.Submission.Timeout, 10*time.Second))
	}

	retry := attempt.DefaultRetryPolicy()
	if cfg.Submission.MaxRetries > 0 {
		retry.MaxRetries = uint64(cfg.Submission.MaxRetries)
	}
	retry.InitialInterval = config.Duration(cfg.Submission.InitialBackoff, retry.InitialInterval)

	service := app.NewAssessmentService(defs, led, gw, app.WithRetryPolicy(retry))
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting assessment service on :%s", finalPort)
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

// sampleDefinitions provides demo content when no Postgres is configured.
func sampleDefinitions() map[string]domain.QuizDefinition {
	return map[string]domain.QuizDefinition{
		"quiz-1": {
			ID:                   "quiz-1",
			Title:                "Week 1 Knowledge Check",
			TimeLimitSeconds:     300,
			PassThresholdPercent: 70,
			Questions: []domain.Question{
				{
					ID:        "q1",
					Prompt:    "What is 2 + 2?",
					Options:   []string{"3", "4", "5"},
					AnswerKey: domain.NewSelection(1),
				},
				{
					ID:        "q2",
					Prompt:    "Which of these are prime numbers?",
					Options:   []string{"2", "4", "5", "9"},
					AnswerKey: domain.NewSelection(0, 2),
				},
			},
		},
	}
}
