package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sentinel-backend/collectors"
	"sentinel-backend/config"
	"sentinel-backend/controllers"
	"sentinel-backend/eventhandlers"
	"sentinel-backend/models"
	"sentinel-backend/services"
)

func main() {
	config.Load()
	if err := config.Validate(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()
	logger := zlog.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pgxpool.Connect(ctx, config.DatabaseURL)
	if err != nil {
		logger.Fatalw("unable to connect to database", "error", err)
	}
	defer db.Close()
	logger.Infow("connected to PostgreSQL")

	if err := createTables(ctx, db); err != nil {
		logger.Fatalw("failed to create tables", "error", err)
	}

	var rdb *redis.Client
	if config.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnw("redis unreachable, fast path falls back to postgres", "error", err)
		}
	}

	// A missing threshold is fatal here: defaulting would silently approve.
	policy, err := services.LoadPolicy(models.PolicyLevel(config.PolicyLevel))
	if err != nil {
		logger.Fatalw("invalid moderation policy", "error", err)
	}
	if err := seedPolicy(ctx, db, policy); err != nil {
		logger.Fatalw("failed to persist policy version", "error", err)
	}
	logger.Infow("moderation policy loaded", "level", policy.Level, "version", policy.Version)

	violationDB := services.NewViolationDB(db, rdb, logger)
	hashMatcher := services.NewHashMatcher(violationDB, logger)
	resultStore := services.NewPGResultStore(db)
	reviewStore := services.NewPGReviewStore(db)
	analytics := services.NewAnalytics(prometheus.DefaultRegisterer)

	classifier := collectors.NewClassifier(config.ClassifierURL, config.CollectorTimeout)
	pipelineCollectors := []collectors.Collector{
		classifier,
		collectors.NewAgeVerifier(config.AgeVerifierURL, config.CollectorTimeout),
		collectors.NewDeepfakeDetector(config.DeepfakeURL, config.CollectorTimeout),
		collectors.NewConsentAnalyzer(config.ConsentURL, config.CollectorTimeout),
		collectors.NewCopyrightMatcher(config.CopyrightURL, config.CollectorTimeout),
		collectors.NewPIIScanner(config.PIIScannerURL, config.CollectorTimeout),
	}

	pipeline := services.NewPipeline(
		pipelineCollectors, hashMatcher, resultStore, reviewStore, violationDB,
		policy, analytics, config.CollectorTimeout, logger)

	feedback := eventhandlers.NewFeedbackWriter([]string{config.KafkaBroker}, "moderation_feedback")
	defer feedback.Close()

	reviewService := services.NewReviewService(
		reviewStore, resultStore, violationDB, feedback, analytics,
		config.LeaseDuration, logger)

	coordinator := services.NewLivestreamCoordinator(services.ChannelAnalyzers{
		Frame: classifier,
		Audio: classifier,
		Chat:  classifier,
	}, policy, config.CollectorTimeout, logger)

	kafkaHandler := eventhandlers.NewKafkaHandler(
		[]string{config.KafkaBroker}, "confirmed_violation_hashes", "sentinel-backend",
		violationDB, logger)
	go kafkaHandler.Start(ctx)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				reviewService.SweepExpiredLeases(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	moderationController := controllers.NewModerationController(pipeline, resultStore, logger)
	reviewController := controllers.NewReviewController(reviewService, logger)
	livestreamController := controllers.NewLivestreamController(coordinator, logger)

	app := fiber.New(fiber.Config{BodyLimit: 64 * 1024 * 1024})

	app.Post("/moderate", moderationController.Submit)
	app.Get("/results/:id", moderationController.GetResult)
	app.Post("/review/dequeue", reviewController.Dequeue)
	app.Post("/review/:entryID/resolve", reviewController.Resolve)
	app.Get("/review/metrics", reviewController.Metrics)
	app.Post("/livestream/:streamID/window", livestreamController.SubmitWindow)
	app.Delete("/livestream/:streamID", livestreamController.EndStream)
	app.Get("/metrics/prometheus", adaptor.HTTPHandler(promhttp.Handler()))

	logger.Fatalw("server stopped", "error", app.Listen(config.ListenAddr))
}

func createTables(ctx context.Context, db *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS moderation_results (
			id TEXT PRIMARY KEY,
			content_id TEXT NOT NULL,
			status TEXT NOT NULL,
			human_review BOOLEAN NOT NULL DEFAULT FALSE,
			body JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS review_queue (
			id TEXT PRIMARY KEY,
			result_id TEXT NOT NULL REFERENCES moderation_results(id),
			priority INTEGER NOT NULL,
			tier TEXT NOT NULL DEFAULT 'standard',
			enqueued_at TIMESTAMPTZ NOT NULL,
			reviewer_id TEXT,
			leased_until TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS review_queue_order_idx ON review_queue (priority DESC, enqueued_at ASC);`,
		`CREATE TABLE IF NOT EXISTS review_log (
			id SERIAL PRIMARY KEY,
			entry_id TEXT NOT NULL,
			reviewer_id TEXT NOT NULL,
			decision TEXT NOT NULL,
			notes TEXT,
			decided_at TIMESTAMPTZ DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS violation_hashes (
			fingerprint TEXT PRIMARY KEY,
			violation_type TEXT NOT NULL,
			recorded_at TIMESTAMPTZ DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS moderation_policies (
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			level TEXT NOT NULL,
			thresholds JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (name, version)
		);`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// seedPolicy records the active policy version so violations can cite it.
func seedPolicy(ctx context.Context, db *pgxpool.Pool, policy models.ModerationPolicy) error {
	thresholds, err := json.Marshal(policy.Thresholds)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx,
		`INSERT INTO moderation_policies (name, version, level, thresholds)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (name, version) DO NOTHING`,
		policy.Name, policy.Version, string(policy.Level), thresholds)
	return err
}
