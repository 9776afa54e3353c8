package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"review-backend/internal/aggregator"
	"review-backend/internal/analyses"
	"review-backend/internal/documents"
	"review-backend/internal/estimator"
	"review-backend/internal/llm"
	openai "review-backend/internal/llm/openai"
	"review-backend/internal/pipeline"
	"review-backend/internal/queue"
	"review-backend/internal/ratelimit"
	"review-backend/internal/settings"
	"review-backend/internal/shared/config"
	"review-backend/internal/shared/server"
	"review-backend/internal/shared/storage/db"
	"review-backend/internal/shared/storage/object"
	localstore "review-backend/internal/shared/storage/object/local"
	miniostore "review-backend/internal/shared/storage/object/minio"
	s3store "review-backend/internal/shared/storage/object/s3"
	"review-backend/internal/shared/telemetry"
	"review-backend/internal/submissions"
)

const (
	defaultRegion      = "us-east-1"
	redisRateLimitKeys = "ratelimit:"
)

// App holds the wired services shared by the API, the workers and the Lambda handler.
type App struct {
	Config config.Config
	DB     *sql.DB
	Redis  *redis.Client

	Objects   object.Store
	Documents *documents.Store
	Queues    []queue.Queue
	Router    *queue.Router

	AnalysesRepo analyses.Repo
	Analyses     *analyses.Service
	Settings     *settings.Service
	Limiter      *ratelimit.Limiter
	Estimator    *estimator.Estimator
	Aggregator   *aggregator.Aggregator
	Processor    *pipeline.Processor
	Orchestrator *pipeline.Orchestrator
	Submissions  *submissions.Service

	closers []func() error
}

// Build connects the backing stores selected by cfg and wires every service.
// Dev-like environments fall back to in-memory stores when no DATABASE_URL is set.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	app := &App{Config: cfg}

	if err := app.buildDB(ctx); err != nil {
		return nil, err
	}
	if err := app.buildRedis(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.buildObjects(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.buildQueues(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.buildServices()

	if err := app.Orchestrator.EnsureDefaults(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("seed settings: %w", err)
	}

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"database":     app.DB != nil,
		"redis":        app.Redis != nil,
		"object_store": cfg.ObjectStoreType,
		"queue":        cfg.QueueBackend,
		"partitions":   len(app.Queues),
	})
	return app, nil
}

func (a *App) buildDB(ctx context.Context) error {
	if strings.TrimSpace(a.Config.DatabaseURL) == "" {
		if isDevLike(a.Config.Env) {
			telemetry.Warn("bootstrap.database.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil
		}
		return errors.New("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	if db.IsLambdaRuntime() {
		opts = db.OptionsFromEnv(db.DefaultLambdaOptions())
	}
	sqlDB, err := db.Connect(ctx, a.Config.DatabaseURL, opts)
	if err != nil {
		if isDevLike(a.Config.Env) {
			telemetry.Warn("bootstrap.database.memory", map[string]any{"error": err.Error()})
			return nil
		}
		return err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return fmt.Errorf("run migrations: %w", err)
	}
	a.DB = sqlDB
	a.closers = append(a.closers, sqlDB.Close)
	return nil
}

func (a *App) buildRedis(ctx context.Context) error {
	if strings.TrimSpace(a.Config.RedisAddr) == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}
	a.Redis = client
	a.closers = append(a.closers, client.Close)
	return nil
}

func (a *App) buildObjects(ctx context.Context) error {
	cfg := a.Config
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3store.New(ctx, regionOrDefault(cfg.AWSRegion), cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return err
		}
		a.Objects = store
	case "minio":
		store, err := miniostore.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return err
		}
		a.Objects = store
	default:
		a.Objects = localstore.New(cfg.LocalStoreDir)
	}
	a.Documents = documents.NewStore(a.Objects)
	return nil
}

func (a *App) buildQueues(ctx context.Context) error {
	cfg := a.Config
	partitions := cfg.QueuePartitions
	if partitions < 1 {
		partitions = 1
	}

	var queues []queue.Queue
	switch cfg.QueueBackend {
	case "postgres":
		if a.DB == nil {
			return errors.New("QUEUE_BACKEND=postgres requires DATABASE_URL")
		}
		for i := 0; i < partitions; i++ {
			queues = append(queues, queue.NewPGQueue(a.DB, i, cfg.QueueLeaseDuration))
		}
	case "sqs":
		if len(cfg.SQSQueueURLs) == 0 {
			return errors.New("QUEUE_BACKEND=sqs requires SQS_QUEUE_URLS")
		}
		for _, url := range cfg.SQSQueueURLs {
			q, err := queue.NewSQSQueue(ctx, regionOrDefault(cfg.AWSRegion), url, queue.SQSOptions{
				WaitSeconds:       int32(cfg.SQSWaitSeconds),
				VisibilitySeconds: int32(cfg.SQSVisibilitySecs),
			})
			if err != nil {
				return err
			}
			queues = append(queues, q)
		}
	case "rabbitmq":
		if strings.TrimSpace(cfg.RabbitMQURL) == "" {
			return errors.New("QUEUE_BACKEND=rabbitmq requires RABBITMQ_URL")
		}
		for i := 0; i < partitions; i++ {
			q, err := queue.NewRabbitQueue(cfg.RabbitMQURL, fmt.Sprintf("%s-%d", cfg.RabbitMQQueuePrefix, i))
			if err != nil {
				return err
			}
			a.closers = append(a.closers, q.Close)
			queues = append(queues, q)
		}
	default:
		for i := 0; i < partitions; i++ {
			queues = append(queues, queue.NewMemoryQueue(cfg.QueueLeaseDuration))
		}
	}

	a.Queues = queues
	a.Router = &queue.Router{Queues: queues}
	return nil
}

func (a *App) buildServices() {
	cfg := a.Config

	var (
		analysesRepo  analyses.Repo
		settingsStore settings.Store
		limiterStore  ratelimit.Store
		history       estimator.History
	)
	if a.DB != nil {
		analysesRepo = &analyses.PGRepo{DB: a.DB}
		settingsStore = settings.NewPGStore(a.DB)
		limiterStore = ratelimit.NewPGStore(a.DB)
		history = estimator.NewPGHistory(a.DB)
	} else {
		analysesRepo = analyses.NewMemoryRepo()
		settingsStore = settings.NewMemoryStore()
		limiterStore = ratelimit.NewMemoryStore()
		history = estimator.NewMemoryHistory()
	}
	if a.Redis != nil {
		analysesRepo = &analyses.MirroredRepo{Primary: analysesRepo, Mirror: analyses.NewRedisRepo(a.Redis)}
		limiterStore = ratelimit.NewRedisStore(a.Redis, redisRateLimitKeys)
	}

	defaults := settings.DefaultDefaults()
	if cfg.RateLimitMaxAttempts > 0 {
		defaults.RateLimit.MaxAttempts = cfg.RateLimitMaxAttempts
	}
	if cfg.RateLimitIntervalHours > 0 {
		defaults.RateLimit.TimeIntervalHours = cfg.RateLimitIntervalHours
	}

	var base llm.Client = llm.PlaceholderClient{}
	if strings.TrimSpace(cfg.LLMAPIKey) != "" {
		client, err := openai.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMTimeout)
		if err != nil {
			telemetry.Error("bootstrap.llm.placeholder", map[string]any{"error": err.Error()})
		} else {
			base = client
		}
	} else {
		telemetry.Warn("bootstrap.llm.placeholder", map[string]any{"reason": "LLM_API_KEY empty"})
	}
	guarded := llm.NewGuard(base, llm.GuardOptions{RequestsPerMinute: cfg.LLMRequestsPerMinute})

	a.AnalysesRepo = analysesRepo
	a.Analyses = analyses.NewService(analysesRepo)
	a.Settings = settings.NewService(settingsStore, defaults)
	a.Limiter = ratelimit.NewLimiter(limiterStore, a.Settings)
	a.Estimator = estimator.New(history, cfg.EstimatorTokensPerSecond, cfg.EstimatorOverheadMs)
	a.Aggregator = aggregator.New(guarded)
	a.Processor = pipeline.NewProcessor(a.Documents, analysesRepo, a.Aggregator, a.Settings, a.Estimator)
	a.Orchestrator = pipeline.NewOrchestrator(a.Router, a.Settings, a.Analyses, a.Aggregator)
	a.Submissions = submissions.NewService(a.Limiter, a.Documents, a.Estimator, a.Orchestrator, analysesRepo)
}

// Workers returns one serial worker per queue partition.
func (a *App) Workers() []*pipeline.Worker {
	workers := make([]*pipeline.Worker, 0, len(a.Queues))
	for i, q := range a.Queues {
		workers = append(workers, &pipeline.Worker{
			Queue:     q,
			Processor: a.Processor,
			Partition: i,
			Backoff:   a.Config.QueuePollBackoff,
		})
	}
	return workers
}

// HTTPRouter builds the gin engine serving the public API.
func (a *App) HTTPRouter() *gin.Engine {
	return server.NewRouter(server.RouterDeps{
		Config:             a.Config,
		SettingsHandler:    settings.NewHandler(a.Settings),
		AnalysesHandler:    analyses.NewHandler(a.Analyses, a.Orchestrator),
		SubmissionsHandler: submissions.NewHandler(a.Submissions, a.Limiter),
		Ready:              a.Ready,
	})
}

// Ready pings the database and Redis when configured.
func (a *App) Ready(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func regionOrDefault(region string) string {
	if strings.TrimSpace(region) == "" {
		return defaultRegion
	}
	return region
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
