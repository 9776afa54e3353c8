package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	CORSAllowOrigins      []string
	HTTPRequestsPerSecond float64
	HTTPBurst             int

	DatabaseURL string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool

	QueueBackend        string
	QueuePartitions     int
	QueuePollBackoff    time.Duration
	QueueLeaseDuration  time.Duration
	SQSQueueURLs        []string
	SQSWaitSeconds      int
	SQSVisibilitySecs   int
	RabbitMQURL         string
	RabbitMQQueuePrefix string
	EmbeddedWorkers     bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LLMAPIKey            string
	LLMBaseURL           string
	LLMTimeout           time.Duration
	LLMRequestsPerMinute int

	EstimatorTokensPerSecond float64
	EstimatorOverheadMs      float64

	RateLimitMaxAttempts   int
	RateLimitIntervalHours float64
}

// Load reads configuration from environment variables (and optional .env / config files) with sensible defaults.
func Load() Config {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(v, ".env", "cmd/.env")
	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		fv := viper.New()
		fv.SetConfigFile(file)
		if err := fv.ReadInConfig(); err != nil {
			log.Printf("config: read %s: %v", file, err)
		} else if err := v.MergeConfigMap(fv.AllSettings()); err != nil {
			log.Printf("config: merge %s: %v", file, err)
		}
	}

	env := normalizeEnv(v.GetString("ENV"))
	dbURL := strings.TrimSpace(v.GetString("DATABASE_URL"))
	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Env:      env,
		Port:     v.GetString("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		CORSAllowOrigins:      splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		HTTPRequestsPerSecond: v.GetFloat64("HTTP_REQUESTS_PER_SECOND"),
		HTTPBurst:             v.GetInt("HTTP_BURST"),

		DatabaseURL: dbURL,

		ObjectStoreType: normalizeStoreType(v.GetString("OBJECT_STORE")),
		LocalStoreDir:   v.GetString("LOCAL_STORE_DIR"),
		AWSRegion:       v.GetString("AWS_REGION"),
		S3Bucket:        v.GetString("S3_BUCKET"),
		S3Prefix:        v.GetString("S3_PREFIX"),
		SSEKMSKeyID:     v.GetString("SSE_KMS_KEY_ID"),
		MinioEndpoint:   v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey:  v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey:  v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:     v.GetString("MINIO_BUCKET"),
		MinioUseSSL:     v.GetBool("MINIO_USE_SSL"),

		QueueBackend:        normalizeQueueBackend(v.GetString("QUEUE_BACKEND")),
		QueuePartitions:     atLeastOne(v.GetInt("QUEUE_PARTITIONS")),
		QueuePollBackoff:    v.GetDuration("QUEUE_POLL_BACKOFF"),
		QueueLeaseDuration:  v.GetDuration("QUEUE_LEASE_DURATION"),
		SQSQueueURLs:        splitAndTrim(v.GetString("SQS_QUEUE_URLS")),
		SQSWaitSeconds:      v.GetInt("SQS_WAIT_SECONDS"),
		SQSVisibilitySecs:   v.GetInt("SQS_VISIBILITY_TIMEOUT_SECONDS"),
		RabbitMQURL:         v.GetString("RABBITMQ_URL"),
		RabbitMQQueuePrefix: v.GetString("RABBITMQ_QUEUE_PREFIX"),
		EmbeddedWorkers:     v.GetBool("EMBEDDED_WORKERS"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		LLMAPIKey:            v.GetString("LLM_API_KEY"),
		LLMBaseURL:           v.GetString("LLM_BASE_URL"),
		LLMTimeout:           time.Duration(v.GetInt("LLM_TIMEOUT_SECONDS")) * time.Second,
		LLMRequestsPerMinute: v.GetInt("LLM_REQUESTS_PER_MINUTE"),

		EstimatorTokensPerSecond: v.GetFloat64("ESTIMATOR_TOKENS_PER_SECOND"),
		EstimatorOverheadMs:      v.GetFloat64("ESTIMATOR_OVERHEAD_MS"),

		RateLimitMaxAttempts:   v.GetInt("RATE_LIMIT_MAX_ATTEMPTS"),
		RateLimitIntervalHours: v.GetFloat64("RATE_LIMIT_INTERVAL_HOURS"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:5173")
	v.SetDefault("HTTP_REQUESTS_PER_SECOND", 5)
	v.SetDefault("HTTP_BURST", 20)

	v.SetDefault("OBJECT_STORE", "local")
	v.SetDefault("LOCAL_STORE_DIR", "./data")
	v.SetDefault("MINIO_BUCKET", "documents")

	v.SetDefault("QUEUE_BACKEND", "memory")
	v.SetDefault("QUEUE_PARTITIONS", 1)
	v.SetDefault("QUEUE_POLL_BACKOFF", "3s")
	v.SetDefault("QUEUE_LEASE_DURATION", "20m")
	v.SetDefault("SQS_WAIT_SECONDS", 1)
	v.SetDefault("SQS_VISIBILITY_TIMEOUT_SECONDS", 1200)
	v.SetDefault("RABBITMQ_QUEUE_PREFIX", "document-processing")

	v.SetDefault("LLM_BASE_URL", "https://api.groq.com/openai/v1")
	v.SetDefault("LLM_TIMEOUT_SECONDS", 120)
	v.SetDefault("LLM_REQUESTS_PER_MINUTE", 30)

	v.SetDefault("ESTIMATOR_TOKENS_PER_SECOND", 16)
	v.SetDefault("ESTIMATOR_OVERHEAD_MS", 300)

	v.SetDefault("RATE_LIMIT_MAX_ATTEMPTS", 2)
	v.SetDefault("RATE_LIMIT_INTERVAL_HOURS", 1)
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}

func normalizeQueueBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg":
		return "postgres"
	case "sqs":
		return "sqs"
	case "rabbitmq", "amqp":
		return "rabbitmq"
	default:
		return "memory"
	}
}
