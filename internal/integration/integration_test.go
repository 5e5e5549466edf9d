package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"practice-engine/internal/app"
	"practice-engine/internal/domain"
	pgstore "practice-engine/internal/infra/postgres"
	pgmigrations "practice-engine/internal/infra/postgres/migrations"
	infraredis "practice-engine/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestSubmitAnswerEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedContent(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgstore.NewCatalogLoader(pool)
	catalog := infraredis.NewCatalog(redisClient, loader, 5*time.Minute)
	records := infraredis.NewRecordStore(redisClient, 0)
	assignments := pgstore.NewAssignmentSource(pool)
	service := app.NewPracticeService(records, catalog, assignments, nil, rand.New(rand.NewSource(17)))

	rec, err := service.Begin(ctx, "u1", "asg-1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if rec.CurrentQuestionID == "" || len(rec.TopicIDs) != 2 {
		t.Fatalf("unexpected fresh record: %+v", rec)
	}

	result, err := service.SubmitAnswer(ctx, "u1", "asg-1", domain.AnswerSubmission{
		QuestionID: "t1-recall-a",
		OptionID:   "ok",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Correct || result.TotalScore != 10 || result.MaxScore != 10 {
		t.Fatalf("expected correct answer scoring 10, got %+v", result)
	}
	if result.NextQuestionID == "" {
		t.Fatalf("expected a next question")
	}

	// The commit must be visible through a fresh read.
	stored, err := records.Get(ctx, "u1", "asg-1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if stored.TotalScore != 10 || stored.CurrentQuestionID != result.NextQuestionID {
		t.Fatalf("stored record diverges from result: %+v", stored)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "practice", "POSTGRES_PASSWORD": "practicepass", "POSTGRES_DB": "practicedb"},
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
	dsn := fmt.Sprintf("postgres://practice:practicepass@%s:%s/practicedb?sslmode=disable", host, port.Port())
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

func seedContent(t *testing.T, ctx context.Context, dsn string) {
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

	assignment := domain.Assignment{
		ID:       "asg-1",
		Type:     "drill",
		TopicIDs: []string{"t1", "t2"},
	}
	data, err := json.Marshal(assignment)
	if err != nil {
		t.Fatalf("marshal assignment: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO assignments (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`,
		assignment.ID, string(data)); err != nil {
		t.Fatalf("insert assignment: %v", err)
	}

	for _, q := range sampleQuestions() {
		data, err := json.Marshal(q)
		if err != nil {
			t.Fatalf("marshal question: %v", err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO questions (id, assignment_type, topic_id, question_type, data)
			 VALUES (?, ?, ?, ?, ?::jsonb)
			 ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`,
			q.ID, q.AssignmentType, q.TopicID, int(q.Type), string(data)); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
}

func sampleQuestions() []domain.Question {
	options := []domain.Option{
		{ID: "ok", Text: "right", Correct: true},
		{ID: "no", Text: "wrong"},
	}
	var qs []domain.Question
	for _, topic := range []string{"t1", "t2"} {
		for _, typ := range []domain.QuestionType{domain.TypeRecall, domain.TypeComprehension} {
			for _, suffix := range []string{"a", "b"} {
				qs = append(qs, domain.Question{
					ID:             topic + "-" + typ.String() + "-" + suffix,
					AssignmentType: "drill",
					TopicID:        topic,
					Type:           typ,
					Prompt:         "pick the right option",
					Options:        options,
				})
			}
		}
	}
	return qs
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
