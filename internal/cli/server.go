package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/config"
	"quiz-duel-service/internal/infra/memory"
	pgstore "quiz-duel-service/internal/infra/postgres"
	redisstore "quiz-duel-service/internal/infra/redis"
	"quiz-duel-service/internal/logging"
	"quiz-duel-service/internal/matchmaking"
	"quiz-duel-service/internal/metrics"
	transport "quiz-duel-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz duel server",
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
	cfg.ApplyEnv()

	logger := logging.New(cfg)
	defer func() { _ = logger.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
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

	svc, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()
	svc.sweeper.Start()

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     svc.handler,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("Starting quiz duel service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("Shutting down server")
	case <-ctx.Done():
		logger.Info("Context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// service is the wired application: the HTTP handler plus everything that must be
// started or released with it.
type service struct {
	handler    http.Handler
	controller *app.Controller
	sweeper    *app.Sweeper
	closers    []func()
}

func (s *service) Close() {
	if s.sweeper != nil {
		_ = s.sweeper.Shutdown()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildService picks an adapter per collaborator: Postgres when configured, then
// Redis, then process memory.
func buildService(ctx context.Context, cfg config.Config, logger *zap.Logger) (*service, error) {
	svc := &service{}
	checks := map[string]transport.HealthCheck{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		svc.closers = append(svc.closers, func() { _ = redisClient.Close() })
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.closers = append(svc.closers, pool.Close)
		checks["postgres"] = pool.Ping
	}

	var loader memory.QuestionLoader
	switch {
	case pool != nil:
		loader = pgstore.NewQuestionLoader(pool)
	case cfg.Questions.File != "":
		bank, err := memory.LoadQuestionFile(cfg.Questions.File)
		if err != nil {
			svc.Close()
			return nil, err
		}
		loader = memory.NewStaticQuestionLoader(bank)
	default:
		logger.Warn("No question source configured, using the built-in sample bank")
		loader = memory.NewStaticQuestionLoader(memory.SampleQuestions())
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionSupplier
	var ratings app.RatingStore
	var matches app.MatchStore
	switch {
	case pool != nil:
		ratings = pgstore.NewRatingStore(pool)
		matches = pgstore.NewMatchStore(pool)
	case redisClient != nil:
		ratings = redisstore.NewRatingStore(redisClient)
		matches = redisstore.NewMatchStore(redisClient, redisTTL)
	default:
		ratings = memory.NewRatingStore()
		matches = memory.NewMatchStore()
	}
	if redisClient != nil {
		questions = redisstore.NewQuestionSupplier(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionSupplier(loader, questionTTL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry := app.NewRegistry(config.TTLDuration(cfg.Match.GraceWindow, app.DefaultGraceWindow))
	queue := matchmaking.NewQueue(cfg.Match.RatingWindow, registry)
	svc.controller = app.NewController(queue, registry, questions, ratings, logger,
		app.WithMatchStore(matches),
		app.WithMetrics(m),
		app.WithQuestionCount(cfg.Match.QuestionCount),
		app.WithDifficulty(cfg.Match.Difficulty),
	)

	sweeper, err := app.NewSweeper(registry, config.TTLDuration(cfg.Match.SweepInterval, 10*time.Second), m, logger)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.sweeper = sweeper

	mux := http.NewServeMux()
	mux.Handle("/healthz", transport.HealthHandler(checks))
	mux.HandleFunc("/ws", transport.NewWSHandler(svc.controller, m, logger).ServeWS)
	mux.Handle("/api/quiz/questions", transport.NewQuestionsHandler(questions, logger))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	svc.handler = mux

	logger.Info("Service wired",
		zap.Bool("postgres", pool != nil),
		zap.Bool("redis", redisClient != nil),
		zap.Int("rating_window", queue.Window()),
		zap.Int("question_count", cfg.Match.QuestionCount))
	return svc, nil
}
