package cli

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"practice-engine/internal/app"
	"practice-engine/internal/config"
	"practice-engine/internal/domain"
	"practice-engine/internal/infra/memory"
	pgstore "practice-engine/internal/infra/postgres"
	redisstore "practice-engine/internal/infra/redis"
	"practice-engine/internal/reporter"
	transport "practice-engine/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the practice engine server",
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
	recordTTL := config.TTLDuration(cfg.Redis.TTL, 0) // 0 = records never expire

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(sampleQuestions())
	var assignments app.AssignmentSource = memory.NewStaticAssignmentSource(sampleAssignments())
	if pool != nil {
		loader = pgstore.NewCatalogLoader(pool)
		assignments = pgstore.NewAssignmentSource(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog app.QuestionCatalog
	if redisClient != nil {
		catalog = redisstore.NewCatalog(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewCatalog(loader, catalogTTL)
	}

	var records app.RecordStore
	if redisClient != nil {
		records = redisstore.NewRecordStore(redisClient, recordTTL)
	} else {
		records = memory.NewRecordStore()
	}

	var grades app.GradeReporter
	if cfg.Reporter.ScoreURL != "" {
		sink := reporter.NewAGSClient(cfg.Reporter.ScoreURL, cfg.Reporter.TokenURL, cfg.Reporter.ClientID, cfg.Reporter.ClientSecret)
		rep := reporter.New(records, sink, cfg.Reporter.QueueSize)
		defer rep.Close()
		grades = rep
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	service := app.NewPracticeService(records, catalog, assignments, grades, rnd)
	wsHandler := transport.NewWSHandler(service)
	progressHandler := transport.NewProgressHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.Handle("/progress", progressHandler)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting practice engine on :%s", finalPort)
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

// sampleAssignments provides a minimal demo assignment; swap the static
// sources for the Postgres-backed ones in production.
func sampleAssignments() []domain.Assignment {
	return []domain.Assignment{
		{
			ID:       "asg-fractions",
			Type:     "math-drill",
			TopicIDs: []string{"fractions", "decimals"},
			// demo deployment is self-hosted, no external gradebook
			PlatformHosted: false,
		},
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID: "q-frac-1", AssignmentType: "math-drill", TopicID: "fractions", Type: domain.TypeRecall,
			Prompt: "What is 1/2 + 1/4?",
			Options: []domain.Option{
				{ID: "o1", Text: "3/4", Correct: true},
				{ID: "o2", Text: "2/6"},
				{ID: "o3", Text: "1/8"},
			},
		},
		{
			ID: "q-frac-2", AssignmentType: "math-drill", TopicID: "fractions", Type: domain.TypeComprehension,
			Prompt: "Which fraction is largest?",
			Options: []domain.Option{
				{ID: "o1", Text: "2/5"},
				{ID: "o2", Text: "3/5", Correct: true},
				{ID: "o3", Text: "1/5"},
			},
		},
		{
			ID: "q-dec-1", AssignmentType: "math-drill", TopicID: "decimals", Type: domain.TypeRecall,
			Prompt: "What is 0.5 as a fraction?",
			Options: []domain.Option{
				{ID: "o1", Text: "1/2", Correct: true},
				{ID: "o2", Text: "1/5"},
				{ID: "o3", Text: "5/100"},
			},
		},
		{
			ID: "q-dec-2", AssignmentType: "math-drill", TopicID: "decimals", Type: domain.TypeComprehension,
			Prompt: "Which is closest to 1?",
			Options: []domain.Option{
				{ID: "o1", Text: "0.89"},
				{ID: "o2", Text: "0.998", Correct: true},
				{ID: "o3", Text: "0.91"},
			},
		},
	}
}
