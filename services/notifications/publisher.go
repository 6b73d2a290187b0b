package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/internal/enum"
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/tracing"
	"github.com/orgohq/mailgate/internal/utils"
)

const (
	ExchangeTaskNotifications = "task-notifications"
	ExchangeDeadLetter        = "dead-letter"

	QueueTaskNotifications = "task-notifications"
	DLQTaskNotifications   = QueueTaskNotifications + "-dlq"

	RoutingKeyDeadLetter = "dead-letter"

	DefaultMessageTTL     = 240 * time.Hour
	DefaultMaxRetries     = 3
	DefaultPublishTimeout = 5 * time.Second
)

type PublisherConfig struct {
	MessageTTL     time.Duration
	MaxRetries     int
	PublishTimeout time.Duration
}

// TaskNotificationEvent is the message body published for each task
// notification. Consumed by the external notification dispatcher.
type TaskNotificationEvent struct {
	ID             string                     `json:"id"`
	OrganizationID string                     `json:"organizationId"`
	EventType      enum.TaskNotificationEvent `json:"eventType"`
	Task           *dto.Task                  `json:"task"`
	OccurredAt     string                     `json:"occurredAt"`
}

// RabbitMQNotifier publishes task notifications to a durable fanout
// exchange with publisher confirms.
type RabbitMQNotifier struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	publishChannel  *amqp091.Channel
	publishMutex    sync.Mutex
	confirms        chan amqp091.Confirmation
	url             string
	log             logger.Logger
	config          PublisherConfig
}

func NewRabbitMQNotifier(rabbitmqURL string, log logger.Logger, config *PublisherConfig) (*RabbitMQNotifier, error) {
	if config == nil {
		config = &PublisherConfig{
			MessageTTL:     DefaultMessageTTL,
			MaxRetries:     DefaultMaxRetries,
			PublishTimeout: DefaultPublishTimeout,
		}
	}

	notifier := &RabbitMQNotifier{
		url:    rabbitmqURL,
		log:    log,
		config: *config,
	}

	if err := notifier.connect(); err != nil {
		return nil, err
	}

	return notifier, nil
}

func (r *RabbitMQNotifier) SendTaskNotification(ctx context.Context, task *dto.Task, eventType enum.TaskNotificationEvent) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQNotifier.SendTaskNotification")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, task.ID)
	span.SetTag("eventType", eventType.String())

	event := TaskNotificationEvent{
		ID:             utils.GenerateNanoIDWithPrefix("notif", 21),
		OrganizationID: task.OrganizationID,
		EventType:      eventType,
		Task:           task,
		OccurredAt:     utils.Now().Format(time.RFC3339),
	}

	err := r.publishWithRetry(ctx, event)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *RabbitMQNotifier) publishWithRetry(ctx context.Context, message interface{}) error {
	var lastErr error
	for attempt := 0; attempt < r.config.MaxRetries; attempt++ {
		lastErr = r.publishWithConfirm(ctx, message)
		if lastErr == nil {
			return nil
		}
		r.log.Warnf("notification publish attempt %d failed: %v", attempt+1, lastErr)
		if attempt < r.config.MaxRetries-1 {
			time.Sleep(time.Millisecond * 100 * time.Duration(attempt+1))
		}
	}
	return errors.Wrap(lastErr, "failed to publish notification after all retries")
}

func (r *RabbitMQNotifier) publishWithConfirm(ctx context.Context, message interface{}) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := r.ensureConnectionAndChannel(); err != nil {
		return err
	}

	jsonBody, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}

	err = r.publishChannel.Publish(
		ExchangeTaskNotifications,
		"",
		true,  // mandatory
		false, // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Body:         jsonBody,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return errors.Wrap(err, "failed to publish notification")
	}

	select {
	case confirm := <-r.confirms:
		if !confirm.Ack {
			return errors.New("notification was not confirmed by server")
		}
	case <-time.After(r.config.PublishTimeout):
		return errors.New("publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (r *RabbitMQNotifier) connect() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	var err error
	r.connection, err = amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	if err = r.setupExchangeAndQueue(); err != nil {
		return errors.Wrap(err, "failed to setup exchange and queue")
	}

	if err = r.setupPublishChannel(); err != nil {
		return errors.Wrap(err, "failed to setup publish channel")
	}

	return nil
}

func (r *RabbitMQNotifier) ensureConnectionAndChannel() error {
	if r.connection == nil || r.connection.IsClosed() {
		if err := r.connect(); err != nil {
			return errors.Wrap(err, "failed to establish connection")
		}
	}
	if r.publishChannel == nil || r.publishChannel.IsClosed() {
		if err := r.setupPublishChannel(); err != nil {
			return errors.Wrap(err, "failed to establish channel")
		}
	}
	return nil
}

func (r *RabbitMQNotifier) setupPublishChannel() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "failed to open publish channel")
	}

	if err = channel.Confirm(false); err != nil {
		channel.Close()
		return errors.Wrap(err, "failed to enable publisher confirms")
	}

	r.confirms = channel.NotifyPublish(make(chan amqp091.Confirmation, 1))
	r.publishChannel = channel
	return nil
}

func (r *RabbitMQNotifier) setupExchangeAndQueue() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "failed to open channel for topology setup")
	}
	defer channel.Close()

	err = channel.ExchangeDeclare(ExchangeDeadLetter, "direct", true, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "failed to declare dead letter exchange")
	}

	err = channel.ExchangeDeclare(ExchangeTaskNotifications, "fanout", true, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "failed to declare task notifications exchange")
	}

	_, err = channel.QueueDeclare(DLQTaskNotifications, true, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to declare DLQ %s", DLQTaskNotifications)
	}
	err = channel.QueueBind(DLQTaskNotifications, RoutingKeyDeadLetter, ExchangeDeadLetter, false, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to bind DLQ %s", DLQTaskNotifications)
	}

	args := amqp091.Table{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": RoutingKeyDeadLetter,
		"x-message-ttl":             int64(r.config.MessageTTL.Milliseconds()),
	}
	_, err = channel.QueueDeclare(QueueTaskNotifications, true, false, false, false, args)
	if err != nil {
		return errors.Wrapf(err, "failed to declare queue %s", QueueTaskNotifications)
	}
	err = channel.QueueBind(QueueTaskNotifications, "", ExchangeTaskNotifications, false, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to bind queue %s", QueueTaskNotifications)
	}

	return nil
}

// Close shuts down the publisher connection.
func (r *RabbitMQNotifier) Close() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	if r.publishChannel != nil && !r.publishChannel.IsClosed() {
		if err := r.publishChannel.Close(); err != nil {
			r.log.Warnf("failed to close publish channel: %v", err)
		}
	}
	if r.connection != nil && !r.connection.IsClosed() {
		return r.connection.Close()
	}
	return nil
}
