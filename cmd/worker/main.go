package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storyboard-server/internal/ai"
	"storyboard-server/internal/breakdown"
	"storyboard-server/internal/config"
	"storyboard-server/internal/database"
	"storyboard-server/internal/entitlement"
	"storyboard-server/internal/imagegen"
	"storyboard-server/internal/logger"
	"storyboard-server/internal/messaging"
	"storyboard-server/internal/repository"
	"storyboard-server/internal/service"
	"storyboard-server/internal/storage"
	"storyboard-server/internal/worker"
)

const (
	dlxName       = "storyboard_tasks_dlx"
	dlqRoutingKey = "dlq"
)

func main() {
	cfg := config.Load()

	zapLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Starting storyboard worker", zap.String("app_env", cfg.AppEnv))

	if err := worker.InitMetricsPusher(cfg.PushGatewayURL, zapLogger); err != nil {
		zapLogger.Warn("Failed to initialize metrics pusher, continuing without metrics", zap.Error(err))
	}
	worker.StartMetricsPusher(30 * time.Second)
	defer worker.CleanupMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// База данных. Недоступность базы не фатальна: адаптер
	// персистентности переключится на in-memory резерв.
	dbPool := connectDatabase(ctx, cfg, zapLogger)
	if dbPool != nil {
		defer database.ClosePool(dbPool, zapLogger)
	}

	var primaryRepo repository.StoryboardRepository
	var creditStore entitlement.Store
	if dbPool != nil {
		primaryRepo = repository.NewPostgresStoryboardRepository(dbPool, zapLogger)
		creditStore = repository.NewPostgresCreditStore(dbPool, zapLogger)
	} else {
		zapLogger.Warn("Running without database: storyboards and credits are kept in memory only")
		creditStore = entitlement.NewMemoryStore()
	}
	adapter := storage.NewAdapter(primaryRepo, repository.NewMemoryStoryboardRepository(), zapLogger)

	objectStorage := storage.NewSupabaseStorage(storage.SupabaseStorageConfig{
		URL:            cfg.Supabase.URL,
		ServiceRoleKey: cfg.Supabase.ServiceRoleKey,
		Bucket:         cfg.Supabase.Bucket,
	}, zapLogger)

	aiClient := ai.NewClient(ai.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	}, zapLogger)

	generator := imagegen.NewHTTPGenerator(imagegen.ProviderConfig{
		BaseURL: cfg.ImageServer.BaseURL,
		Timeout: cfg.ImageServer.Timeout,
		Ratio:   cfg.ImageServer.Ratio,
	}, zapLogger)

	gate := entitlement.NewGate(creditStore, entitlement.Config{
		StoryCost: cfg.Pipeline.StoryCost,
		FreeQuota: cfg.Pipeline.FreeQuota,
	}, zapLogger)

	breakdownStage := breakdown.NewStage(aiClient, cfg.Pipeline.BreakdownTimeout, zapLogger)
	imageStage := imagegen.NewStage(generator, objectStorage, imagegen.StageConfig{
		MaxAttempts: cfg.Pipeline.ImageMaxAttempts,
		RetryDelay:  cfg.Pipeline.ImageRetryDelay,
		CallTimeout: cfg.Pipeline.ImageCallTimeout,
	}, zapLogger)

	// RabbitMQ
	conn, err := connectRabbitMQ(cfg.RabbitMQ.URL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		zapLogger.Fatal("Failed to open RabbitMQ channel", zap.Error(err))
	}
	defer ch.Close()

	if err := declareQueues(ch, cfg.RabbitMQ.TaskQueueName); err != nil {
		zapLogger.Fatal("Failed to declare queues", zap.Error(err))
	}
	if err := ch.Qos(1, 0, false); err != nil {
		zapLogger.Fatal("Failed to set QoS", zap.Error(err))
	}

	publisher, err := messaging.NewRabbitMQNotificationPublisher(conn, cfg.RabbitMQ.NotificationQueueName, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create notification publisher", zap.Error(err))
	}

	storyboardService := service.NewStoryboardService(
		gate, breakdownStage, imageStage, adapter, objectStorage, publisher,
		service.Config{SceneWorkers: cfg.Pipeline.SceneWorkers}, zapLogger)
	handler := worker.NewHandler(zapLogger, storyboardService)

	msgs, err := ch.Consume(cfg.RabbitMQ.TaskQueueName, cfg.RabbitMQ.ConsumerName, false, false, false, false, nil)
	if err != nil {
		zapLogger.Fatal("Failed to register consumer", zap.Error(err))
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	zapLogger.Info("Waiting for tasks", zap.String("queue", cfg.RabbitMQ.TaskQueueName))

	go func() {
		defer close(done)
		for msg := range msgs {
			if handler.HandleDelivery(ctx, msg) {
				if err := msg.Ack(false); err != nil {
					zapLogger.Error("Failed to ack message", zap.Error(err))
				}
			} else {
				// Requeue=false: невалидные сообщения уходят в DLQ
				if err := msg.Nack(false, false); err != nil {
					zapLogger.Error("Failed to nack message", zap.Error(err))
				}
			}
		}
		zapLogger.Info("Message channel closed, consumer goroutine exiting")
	}()

	select {
	case <-stopChan:
		zapLogger.Info("Shutdown signal received")
	case <-done:
		zapLogger.Warn("Consumer stopped unexpectedly")
	}

	cancel()
	ch.Close()
	<-done
	zapLogger.Info("Storyboard worker stopped")
}

// connectDatabase подключается к PostgreSQL и применяет миграции.
// Возвращает nil, если база недоступна.
func connectDatabase(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) *pgxpool.Pool {
	pool, err := database.NewPool(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
	}, zapLogger)
	if err != nil {
		zapLogger.Warn("Database unavailable", zap.Error(err))
		return nil
	}

	if err := database.RunMigrations(ctx, pool, cfg.Pipeline.MigrationsDir, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}
	return pool
}

// declareQueues объявляет DLX, DLQ и основную очередь задач.
func declareQueues(ch *amqp.Channel, taskQueueName string) error {
	if err := ch.ExchangeDeclare(dlxName, "direct", true, false, false, false, nil); err != nil {
		return err
	}

	dlqName := taskQueueName + "_dlq"
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(dlqName, dlqRoutingKey, dlxName, false, nil); err != nil {
		return err
	}

	args := amqp.Table{
		"x-queue-mode":              "lazy",
		"x-dead-letter-exchange":    dlxName,
		"x-dead-letter-routing-key": dlqRoutingKey,
	}
	_, err := ch.QueueDeclare(taskQueueName, true, false, false, false, args)
	return err
}

// connectRabbitMQ пытается подключиться к RabbitMQ с несколькими попытками
func connectRabbitMQ(url string, zapLogger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		zapLogger.Warn("Failed to connect to RabbitMQ, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, err
}
