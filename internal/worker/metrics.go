package worker

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const (
	jobName = "storyboard_worker"
)

var (
	// Общий реестр для всех метрик этого воркера
	registry = prometheus.NewRegistry()

	// Мы используем promauto.With(registry) чтобы метрики регистрировались в нашем
	// локальном реестре, а не в глобальном prometheus.DefaultRegistry
	tasksReceived = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "storyboard_worker_tasks_received_total",
			Help: "Total number of tasks received by the storyboard worker.",
		},
	)
	tasksFailed = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyboard_worker_tasks_failed_total",
			Help: "Total number of tasks failed, partitioned by failure reason.",
		},
		[]string{"reason"},
	)
	tasksSucceeded = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "storyboard_worker_tasks_succeeded_total",
			Help: "Total number of tasks successfully processed.",
		},
	)
	scenesGenerated = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "storyboard_worker_scenes_generated_total",
			Help: "Total number of scenes with a successfully generated image.",
		},
	)
	scenesWithoutImage = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "storyboard_worker_scenes_without_image_total",
			Help: "Total number of scenes left without an image in completed storyboards.",
		},
	)
	taskDuration = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storyboard_worker_task_duration_seconds",
			Help:    "Duration of storyboard task processing.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// Pusher для отправки метрик в Pushgateway
	pusher *push.Pusher

	metricsLogger = zap.NewNop()
)

// InitMetricsPusher инициализирует клиент Pushgateway.
// Пустой pushgatewayURL отключает отправку метрик.
func InitMetricsPusher(pushgatewayURL string, logger *zap.Logger) error {
	metricsLogger = logger.Named("Metrics")
	if pushgatewayURL == "" {
		metricsLogger.Info("Pushgateway URL not set, metrics push disabled")
		return nil
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	metricsLogger.Info("Initializing Pushgateway pusher",
		zap.String("job", jobName),
		zap.String("instance", instanceID),
		zap.String("url", pushgatewayURL))

	pusher = push.New(pushgatewayURL, jobName).Gatherer(registry).Grouping("instance", instanceID)

	// Сразу отправляем нулевые значения, чтобы проверить соединение
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("could not push initial metrics to Pushgateway: %w", err)
	}
	return nil
}

// StartMetricsPusher запускает горутину для периодической отправки метрик.
func StartMetricsPusher(interval time.Duration) {
	if pusher == nil {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			if err := pushMetrics(); err != nil {
				// Ошибка уже залогирована внутри pushMetrics
				continue
			}
		}
	}()
	metricsLogger.Info("Started periodic metrics pusher", zap.Duration("interval", interval))
}

// pushMetrics отправляет текущие метрики в Pushgateway.
func pushMetrics() error {
	if pusher == nil {
		return errors.New("pusher not initialized")
	}
	if err := pusher.Push(); err != nil {
		metricsLogger.Warn("Error pushing metrics to Pushgateway", zap.Error(err))
		return err
	}
	return nil
}

// CleanupMetrics удаляет метрики этого инстанса из Pushgateway.
// Должна вызываться через defer в main.
func CleanupMetrics() {
	if pusher == nil {
		return
	}
	if err := pusher.Delete(); err != nil {
		metricsLogger.Warn("Error deleting metrics from Pushgateway", zap.Error(err))
		return
	}
	metricsLogger.Info("Metrics deleted from Pushgateway")
}
