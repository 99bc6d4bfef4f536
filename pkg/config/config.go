package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = ""
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	GCS           GCSConfig
	Upload        UploadConfig
	Queue         QueueConfig
	Transcode     TranscodeConfig
	PubSub        PubSubConfig
	Elasticsearch ElasticsearchConfig
	BigQuery      BigQueryConfig
	Sendgrid      SendgridConfig
	Cron          CronConfig
	AuthRateLimit AuthRateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEARNHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"LEARNHUB_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LEARNHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEARNHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN             string        `envconfig:"LEARNHUB_DB_DSN" required:"true"`
	MaxOpenConns    int           `envconfig:"LEARNHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEARNHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEARNHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEARNHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEARNHUB_REDIS_URL"`
	Address      string        `envconfig:"LEARNHUB_REDIS_ADDRESS"`
	Password     string        `envconfig:"LEARNHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEARNHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEARNHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEARNHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEARNHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEARNHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEARNHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LEARNHUB_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"LEARNHUB_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"LEARNHUB_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"LEARNHUB_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"LEARNHUB_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"LEARNHUB_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LEARNHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LEARNHUB_JWT_ISSUER" default:"learnhub"`
	ExpirationMinutes int    `envconfig:"LEARNHUB_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LEARNHUB_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LEARNHUB_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LEARNHUB_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LEARNHUB_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LEARNHUB_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LEARNHUB_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LEARNHUB_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"LEARNHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LEARNHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"LEARNHUB_GCS_BUCKET_NAME" required:"true"`
}

type UploadConfig struct {
	MaxUploadBytes int64 `envconfig:"LEARNHUB_MAX_UPLOAD_BYTES" default:"2147483648"`
}

type QueueConfig struct {
	VideoConcurrency       int           `envconfig:"LEARNHUB_QUEUE_VIDEO_CONCURRENCY" default:"2"`
	MaintenanceConcurrency int           `envconfig:"LEARNHUB_QUEUE_MAINTENANCE_CONCURRENCY" default:"8"`
	TranscodeMaxRetries    int           `envconfig:"LEARNHUB_QUEUE_TRANSCODE_MAX_RETRIES" default:"3"`
	RetryBackoff           time.Duration `envconfig:"LEARNHUB_QUEUE_RETRY_BACKOFF" default:"60s"`
	SoftTimeLimit          time.Duration `envconfig:"LEARNHUB_QUEUE_SOFT_TIME_LIMIT" default:"25m"`
	HardTimeLimit          time.Duration `envconfig:"LEARNHUB_QUEUE_HARD_TIME_LIMIT" default:"30m"`
}

type TranscodeConfig struct {
	FFmpegPath      string        `envconfig:"LEARNHUB_FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath     string        `envconfig:"LEARNHUB_FFPROBE_PATH" default:"ffprobe"`
	WorkDir         string        `envconfig:"LEARNHUB_TRANSCODE_WORK_DIR" default:"/tmp/learnhub-transcode"`
	DownloadTimeout time.Duration `envconfig:"LEARNHUB_TRANSCODE_DOWNLOAD_TIMEOUT" default:"5m"`
	PreviewSeconds  int           `envconfig:"LEARNHUB_PREVIEW_SECONDS" default:"10"`
}

type PubSubConfig struct {
	ContentEventsTopic        string `envconfig:"LEARNHUB_PUBSUB_CONTENT_EVENTS_TOPIC" default:"content-events"`
	ContentEventsSubscription string `envconfig:"LEARNHUB_PUBSUB_CONTENT_EVENTS_SUBSCRIPTION" default:"content-events-api"`
}

type ElasticsearchConfig struct {
	Addresses    []string `envconfig:"LEARNHUB_ELASTICSEARCH_ADDRESSES" default:"http://localhost:9200"`
	Username     string   `envconfig:"LEARNHUB_ELASTICSEARCH_USERNAME"`
	Password     string   `envconfig:"LEARNHUB_ELASTICSEARCH_PASSWORD"`
	CourseIndex  string   `envconfig:"LEARNHUB_ELASTICSEARCH_COURSE_INDEX" default:"courses"`
	ContentIndex string   `envconfig:"LEARNHUB_ELASTICSEARCH_CONTENT_INDEX" default:"course_contents"`
}

type BigQueryConfig struct {
	Dataset             string `envconfig:"LEARNHUB_BIGQUERY_DATASET"`
	LearningEventsTable string `envconfig:"LEARNHUB_BIGQUERY_LEARNING_EVENTS_TABLE" default:"learning_events"`
}

type SendgridConfig struct {
	APIKey    string `envconfig:"LEARNHUB_SENDGRID_API_KEY"`
	FromEmail string `envconfig:"LEARNHUB_SENDGRID_FROM_EMAIL" default:"no-reply@learnhub.dev"`
	FromName  string `envconfig:"LEARNHUB_SENDGRID_FROM_NAME" default:"LearnHub"`
}

type CronConfig struct {
	PendingContentTTL time.Duration `envconfig:"LEARNHUB_CRON_PENDING_CONTENT_TTL" default:"24h"`
	LockTTL           time.Duration `envconfig:"LEARNHUB_CRON_LOCK_TTL" default:"1h"`
}
