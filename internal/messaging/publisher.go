package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// NotificationPublisher defines the interface for publishing progress notifications.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, payload NotificationPayload) error
}

// rabbitMQPublisher implements the NotificationPublisher interface for RabbitMQ.
type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQNotificationPublisher creates a new instance of NotificationPublisher.
func NewRabbitMQNotificationPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (NotificationPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("notification publisher: не удалось открыть канал: %w", err)
	}

	// Объявляем очередь здесь; параметры должны совпадать с консьюмером
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("notification publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}

	log := logger.Named("NotificationPublisher")
	log.Info("Queue declared", zap.String("queue", queueName))
	return &rabbitMQPublisher{channel: ch, queueName: queueName, logger: log}, nil
}

// PublishNotification publishes a progress notification.
func (p *rabbitMQPublisher) PublishNotification(ctx context.Context, payload NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления для раскадровки %s: %w", payload.StoryboardID, err)
	}
	return p.publishMessage(ctx, body)
}

func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("канал RabbitMQ не инициализирован")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	// Попытка публикации с retry до 3 раз
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (используем default)
			p.queueName, // routing key (имя очереди)
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "storyboard-worker",
			},
		)
		if err == nil {
			break
		}
		p.logger.Warn("Publish attempt failed",
			zap.Int("attempt", attempt),
			zap.String("queue", p.queueName),
			zap.Error(err))
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("ошибка публикации в очередь %s после retries: %w", p.queueName, err)
	}
	return nil
}
