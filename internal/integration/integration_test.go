package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
	pgstore "quiz-duel-service/internal/infra/postgres"
	pgmigrations "quiz-duel-service/internal/infra/postgres/migrations"
	infraredis "quiz-duel-service/internal/infra/redis"
	"quiz-duel-service/internal/matchmaking"
)

func TestMatchEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL, memory.SampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	ratings := pgstore.NewRatingStore(pool)
	matches := pgstore.NewMatchStore(pool)
	questions := infraredis.NewQuestionSupplier(redisClient, pgstore.NewQuestionLoader(pool), 5*time.Minute)
	registry := app.NewRegistry(time.Minute)
	queue := matchmaking.NewQueue(matchmaking.DefaultRatingWindow, registry)
	controller := app.NewController(queue, registry, questions, ratings, zap.NewNop(),
		app.WithMatchStore(matches),
		app.WithQuestionCount(5),
		app.WithDifficulty("beginner"),
	)

	alice, bob := &recordingConn{id: "c1"}, &recordingConn{id: "c2"}
	if err := controller.RequestMatch(ctx, bob, domain.Player{ID: "bob", DisplayName: "Bob", Rating: 1000}); err != nil {
		t.Fatalf("request bob: %v", err)
	}
	if err := controller.RequestMatch(ctx, alice, domain.Player{ID: "alice", DisplayName: "Alice", Rating: 1000}); err != nil {
		t.Fatalf("request alice: %v", err)
	}
	found, ok := alice.last(app.MsgMatchFound).(app.MatchFoundEvent)
	if !ok {
		t.Fatalf("alice got no match-found: %+v", alice.types())
	}
	// only four beginner questions exist
	if len(found.Questions) != 4 {
		t.Fatalf("expected 4 beginner questions, got %d", len(found.Questions))
	}
	n := len(found.Questions)

	if err := controller.ReportProgress(ctx, alice, found.MatchID, 2, 2); err != nil {
		t.Fatalf("progress: %v", err)
	}

	// a reconnect after the in-memory entry is gone reloads the match from Postgres
	registry.Discard(found.MatchID)
	resumedConn := &recordingConn{id: "c3"}
	if err := controller.Reconnect(ctx, resumedConn, found.MatchID, "alice"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	resumed, ok := resumedConn.last(app.MsgMatchResumed).(app.MatchResumedEvent)
	if !ok || resumed.Own.Answered != 2 {
		t.Fatalf("expected resumed progress of 2, got %+v", resumed)
	}

	now := time.Now()
	if err := controller.ReportFinish(ctx, resumedConn, app.FinishReport{MatchID: found.MatchID, Answered: n, Correct: n, FinishTime: now}); err != nil {
		t.Fatalf("finish alice: %v", err)
	}
	if err := controller.ReportFinish(ctx, bob, app.FinishReport{MatchID: found.MatchID, Answered: n, Correct: 1, FinishTime: now.Add(-time.Second)}); err != nil {
		t.Fatalf("finish bob: %v", err)
	}

	result, ok := resumedConn.last(app.MsgMatchResult).(app.MatchResultEvent)
	if !ok || result.Result != domain.ResultWin || !result.RatingPersisted {
		t.Fatalf("expected persisted win for alice, got %+v", result)
	}

	if r, err := ratings.GetRating(ctx, "alice"); err != nil || r != 1016 {
		t.Fatalf("expected alice rating 1016, got %d (%v)", r, err)
	}
	if r, err := ratings.GetRating(ctx, "bob"); err != nil || r != 984 {
		t.Fatalf("expected bob rating 984, got %d (%v)", r, err)
	}

	var status, winner string
	var oneFinished, twoFinished bool
	err = pool.QueryRow(ctx, `SELECT status, winner_id, player1_finished, player2_finished FROM matches WHERE id=$1`, found.MatchID).
		Scan(&status, &winner, &oneFinished, &twoFinished)
	if err != nil {
		t.Fatalf("query match row: %v", err)
	}
	if status != "finished" || winner != "alice" || !oneFinished || !twoFinished {
		t.Fatalf("unexpected match row: status=%s winner=%s finished=%v/%v", status, winner, oneFinished, twoFinished)
	}

	stored, err := matches.LoadMatch(ctx, found.MatchID)
	if err != nil {
		t.Fatalf("load match: %v", err)
	}
	if stored.Decision == nil || stored.Decision.RatingsOne.After != 1016 {
		t.Fatalf("stored decision missing ratings: %+v", stored.Decision)
	}
}

func TestRedisMatchStoreAgainstServer(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	store := infraredis.NewMatchStore(redisClient, time.Minute)
	m := domain.Match{ID: "m-redis", PlayerOne: domain.Player{ID: "a"}, PlayerTwo: domain.Player{ID: "b"}, State: domain.StateInProgress}
	if err := store.SaveMatch(ctx, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.LoadMatch(ctx, "m-redis")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.State != domain.StateInProgress || loaded.PlayerTwo.ID != "b" {
		t.Fatalf("unexpected match: %+v", loaded)
	}
}

type recordingConn struct {
	id   string
	mu   sync.Mutex
	msgs []struct {
		typ     string
		payload any
	}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(msgType string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, struct {
		typ     string
		payload any
	}{msgType, payload})
	return nil
}

func (c *recordingConn) last(msgType string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if c.msgs[i].typ == msgType {
			return c.msgs[i].payload
		}
	}
	return nil
}

func (c *recordingConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.msgs))
	for _, m := range c.msgs {
		out = append(out, m.typ)
	}
	return out
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuestions(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			t.Fatalf("marshal options: %v", err)
		}
		_, err = db.ExecContext(ctx, `INSERT INTO quiz_questions (question, options, answer, category, difficulty) VALUES (?, ?::jsonb, ?, ?, ?)`,
			q.Prompt, string(options), q.Answer, q.Category, q.Difficulty)
		if err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
