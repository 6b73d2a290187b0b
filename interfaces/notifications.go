package interfaces

import (
	"context"

	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/internal/enum"
)

// NotificationService is the external notification dispatcher.
type NotificationService interface {
	SendTaskNotification(ctx context.Context, task *dto.Task, eventType enum.TaskNotificationEvent) error
}
