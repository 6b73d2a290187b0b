package interfaces

import (
	"context"

	"github.com/orgohq/mailgate/dto"
)

// TaskService is the external task lifecycle collaborator.
type TaskService interface {
	CreateTask(ctx context.Context, input dto.CreateTaskInput) (*dto.Task, error)
	AssignTask(ctx context.Context, input dto.AssignTaskInput) error
	EscalateTask(ctx context.Context, input dto.EscalateTaskInput) error
	GetTaskByID(ctx context.Context, organizationID, taskID string) (*dto.Task, error)
	// RecordEmailLinked appends an email_linked audit event on the task.
	// Best-effort from the router's perspective.
	RecordEmailLinked(ctx context.Context, taskID, organizationID, emailMessageID string) error
}
