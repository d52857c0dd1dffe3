package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var validate = newValidator()

// newValidator reports fields by their environment variable name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("envconfig")
	})
	return v
}

type Config struct {
	HTTPPort           string `envconfig:"HTTP_PORT" default:"8080"`
	PostgresDSN        string `envconfig:"POSTGRES_DSN" validate:"required"`
	TemporalAddress    string `envconfig:"TEMPORAL_ADDRESS" default:"localhost:7233"`
	TemporalNamespace  string `envconfig:"TEMPORAL_NAMESPACE" default:"default"`
	TemporalTaskQueue  string `envconfig:"TEMPORAL_TASK_QUEUE" default:"consolidated-report-task-queue"`
	MinioEndpoint      string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	MinioAccessKey     string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey     string `envconfig:"MINIO_SECRET_KEY"`
	MinioBucket        string `envconfig:"MINIO_BUCKET" default:"documents"`
	MinioUseSSL        bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	WorkflowIDPrefix   string `envconfig:"WORKFLOW_ID_PREFIX" default:"consolidated-report"`
	AllowedUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760" validate:"gt=0"`

	DocumentFetchTimeout time.Duration `envconfig:"DOCUMENT_FETCH_TIMEOUT" default:"20s" validate:"gt=0"`
	GenerateTimeout      time.Duration `envconfig:"REPORT_GENERATE_TIMEOUT" default:"2m" validate:"gt=0"`
	GenerateRateLimit    int           `envconfig:"REPORT_GENERATE_RATE_LIMIT" default:"10" validate:"gt=0"`
	CatalogSyncDelay     time.Duration `envconfig:"CATALOG_SYNC_DELAY" default:"5s" validate:"gte=0"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`
}

// Load reads an optional .env file (ENV_FILE, default ".env") and then the
// process environment.
func Load() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" {
				return Config{}, fmt.Errorf("%s is required", fe.Field())
			}
			return Config{}, fmt.Errorf("%s is invalid (%s=%s)", fe.Field(), fe.Tag(), fe.Param())
		}
		return Config{}, err
	}

	return cfg, nil
}
