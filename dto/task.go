package dto

import "github.com/orgohq/mailgate/internal/enum"

// Task is the task-service DTO consumed by the router.
type Task struct {
	ID             string              `json:"id"`
	OrganizationID string              `json:"organizationId"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Category       string              `json:"category"`
	Label          string              `json:"label"`
	Priority       enum.TaskPriority   `json:"priority"`
	Severity       enum.TaskSeverity   `json:"severity"`
	Visibility     enum.TaskVisibility `json:"visibility"`
	AssigneeID     string              `json:"assigneeId,omitempty"`
}

type CreateTaskInput struct {
	OrganizationID string              `json:"organizationId"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Category       string              `json:"category"`
	Label          string              `json:"label"`
	Priority       enum.TaskPriority   `json:"priority"`
	Severity       enum.TaskSeverity   `json:"severity"`
	Visibility     enum.TaskVisibility `json:"visibility"`
	SourceEmailID  string              `json:"sourceEmailId,omitempty"`
}

type AssignTaskInput struct {
	OrganizationID string `json:"organizationId"`
	TaskID         string `json:"taskId"`
	AssigneeID     string `json:"assigneeId,omitempty"`
	TeamID         string `json:"teamId,omitempty"`
}

type EscalateTaskInput struct {
	OrganizationID string `json:"organizationId"`
	TaskID         string `json:"taskId"`
	Reason         string `json:"reason"`
}
