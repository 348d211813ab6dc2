package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"storyboard-server/internal/logger"
)

// Config структура для хранения всей конфигурации воркера.
type Config struct {
	AppEnv         string `env:"APP_ENV" env-default:"development"`
	Logger         logger.Config
	Database       DatabaseConfig
	RabbitMQ       RabbitMQConfig
	AI             AIConfig
	ImageServer    ImageServerConfig
	Supabase       SupabaseConfig
	Pipeline       PipelineConfig
	PushGatewayURL string `env:"PUSHGATEWAY_URL" env-default:""` // Пустое значение отключает отправку метрик
}

// DatabaseConfig конфигурация для подключения к PostgreSQL.
type DatabaseConfig struct {
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     int    `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"postgres"`
	Password string `env:"DB_PASSWORD" env-default:"postgres"`
	Name     string `env:"DB_NAME" env-default:"storyboards"`
	SSLMode  string `env:"DB_SSL_MODE" env-default:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNECTIONS" env-default:"10"`
}

// RabbitMQConfig конфигурация для подключения к RabbitMQ.
type RabbitMQConfig struct {
	URL                   string `env:"RABBITMQ_URL" env-required:"true"`
	ConsumerName          string `env:"RABBITMQ_CONSUMER_NAME" env-default:"storyboard_worker"`
	TaskQueueName         string `env:"RABBITMQ_TASK_QUEUE" env-default:"storyboard_tasks"`
	NotificationQueueName string `env:"RABBITMQ_NOTIFICATION_QUEUE" env-default:"storyboard_notifications"`
}

// AIConfig конфигурация текстового AI провайдера.
type AIConfig struct {
	BaseURL string        `env:"AI_BASE_URL" env-default:"https://openrouter.ai/api/v1"`
	APIKey  string        `env:"AI_API_KEY" env-required:"true"`
	Model   string        `env:"AI_MODEL" env-default:"deepseek/deepseek-chat"`
	Timeout time.Duration `env:"AI_TIMEOUT" env-default:"120s"`
}

// ImageServerConfig конфигурация сервера генерации изображений.
type ImageServerConfig struct {
	BaseURL string        `env:"IMAGE_SERVER_BASE_URL" env-required:"true"`
	Timeout time.Duration `env:"IMAGE_SERVER_TIMEOUT" env-default:"120s"`
	Ratio   string        `env:"IMAGE_RATIO" env-default:"16:9"`
}

// SupabaseConfig конфигурация хранилища объектов.
type SupabaseConfig struct {
	URL            string `env:"SUPABASE_URL" env-required:"true"`
	ServiceRoleKey string `env:"SUPABASE_SERVICE_ROLE_KEY" env-required:"true"`
	Bucket         string `env:"SUPABASE_BUCKET" env-default:"storyboards"`
}

// PipelineConfig параметры конвейера генерации.
type PipelineConfig struct {
	SceneWorkers     int           `env:"PIPELINE_SCENE_WORKERS" env-default:"2"`
	ImageMaxAttempts int           `env:"PIPELINE_IMAGE_MAX_ATTEMPTS" env-default:"3"`
	ImageRetryDelay  time.Duration `env:"PIPELINE_IMAGE_RETRY_DELAY" env-default:"2s"`
	ImageCallTimeout time.Duration `env:"PIPELINE_IMAGE_CALL_TIMEOUT" env-default:"60s"`
	BreakdownTimeout time.Duration `env:"PIPELINE_BREAKDOWN_TIMEOUT" env-default:"90s"`
	StoryCost        int           `env:"PIPELINE_STORY_COST" env-default:"4"`
	FreeQuota        int           `env:"PIPELINE_FREE_QUOTA" env-default:"2"`
	MigrationsDir    string        `env:"MIGRATIONS_DIR" env-default:"migrations"`
}

// Load загружает конфигурацию из переменных окружения и .env файла.
func Load() *Config {
	// Загружаем .env файл (игнорируем ошибку, если файла нет)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	return &cfg
}
