package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/badge"
	"dailyquiz-service/internal/config"
	"dailyquiz-service/internal/domain"
	"dailyquiz-service/internal/infra/memory"
	pgloader "dailyquiz-service/internal/infra/postgres"
	redisinfra "dailyquiz-service/internal/infra/redis"
	"dailyquiz-service/internal/infra/sqlite"
	transport "dailyquiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daily quiz server",
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgloader.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var progressStore app.ProgressStore
	var resultStore app.ResultStore
	if redisClient != nil {
		progressStore = redisinfra.NewProgressStore(redisClient, redisTTL)
		resultStore = redisinfra.NewResultStore(redisClient, redisTTL)
	} else {
		progressStore = memory.NewProgressStore()
		resultStore = memory.NewResultStore()
	}

	var historyStore app.HistoryStore
	if cfg.Sqlite.Path != "" {
		store, err := sqlite.New(cfg.Sqlite.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		historyStore = store
	} else {
		historyStore = memory.NewHistoryStore()
	}

	var badges app.BadgeGenerator = badge.NewStaticGenerator()
	if cfg.Badge.URL != "" {
		badges = badge.NewClient(cfg.Badge.URL, cfg.Badge.APIKey, config.TTLDuration(cfg.Badge.Timeout, 0))
	}

	service := app.NewQuizService(quizRepo, progressStore, resultStore, historyStore, badges)
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
		log.Printf("starting daily quiz service on :%s", finalPort)
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

// sampleQuizzes seeds a quiz for the current date so the service works out
// of the box; swap in the postgres loader for real content. Sundays carry a
// mega pool.
func sampleQuizzes() []domain.Quiz {
	now := time.Now()
	date := app.DateKey(now)
	quiz := domain.Quiz{
		ID:           "quiz-" + date,
		Date:         date,
		Topic:        "General Knowledge",
		TimerMinutes: 5,
		Questions:    sampleQuestions("daily", 10),
		DailyScores:  []int{3, 5, 5, 6, 7, 7, 8, 8, 9, 10},
	}
	if now.Weekday() == time.Sunday {
		quiz.MegaQuestions = sampleQuestions("mega", 10)
	}
	return []domain.Quiz{quiz}
}

func sampleQuestions(prefix string, count int) []domain.Question {
	questions := make([]domain.Question, 0, count)
	for i := 1; i <= count; i++ {
		questions = append(questions, domain.Question{
			ID:            fmt.Sprintf("%s-q%d", prefix, i),
			Prompt:        fmt.Sprintf("Sample %s question %d: which option is correct?", prefix, i),
			Options:       []string{"Option A", "Option B", "Option C", "Correct Answer"},
			CorrectAnswer: "Correct Answer",
			Hint:          fmt.Sprintf("Hint for %s question %d.", prefix, i),
			Explanation:   fmt.Sprintf("Explanation for %s question %d.", prefix, i),
		})
	}
	return questions
}
