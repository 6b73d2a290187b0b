package notifications

import (
	"context"

	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/internal/enum"
	"github.com/orgohq/mailgate/internal/logger"
)

// noopNotifier drops task notifications with a warning. Used when no
// RabbitMQ URL is configured so routing still works end to end.
type noopNotifier struct {
	log logger.Logger
}

func NewNoopNotifier(log logger.Logger) interfaces.NotificationService {
	return &noopNotifier{log: log}
}

func (n *noopNotifier) SendTaskNotification(ctx context.Context, task *dto.Task, eventType enum.TaskNotificationEvent) error {
	n.log.Warnf("notification publisher not configured, dropping %s notification for task %s", eventType, task.ID)
	return nil
}
