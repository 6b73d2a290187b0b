package enum

type TaskPriority string

const (
	TaskPriorityLow      TaskPriority = "LOW"
	TaskPriorityMedium   TaskPriority = "MEDIUM"
	TaskPriorityHigh     TaskPriority = "HIGH"
	TaskPriorityCritical TaskPriority = "CRITICAL"
)

func (t TaskPriority) String() string {
	return string(t)
}

type TaskSeverity string

const (
	TaskSeverityMinor    TaskSeverity = "MINOR"
	TaskSeverityModerate TaskSeverity = "MODERATE"
	TaskSeverityMajor    TaskSeverity = "MAJOR"
	TaskSeverityCritical TaskSeverity = "CRITICAL"
)

func (t TaskSeverity) String() string {
	return string(t)
}

type TaskVisibility string

const (
	TaskVisibilityInternal TaskVisibility = "INTERNAL"
	TaskVisibilityPublic   TaskVisibility = "PUBLIC"
)

func (t TaskVisibility) String() string {
	return string(t)
}

type TaskNotificationEvent string

const (
	TaskNotificationCreated   TaskNotificationEvent = "CREATED"
	TaskNotificationUpdated   TaskNotificationEvent = "UPDATED"
	TaskNotificationEscalated TaskNotificationEvent = "ESCALATED"
)

func (t TaskNotificationEvent) String() string {
	return string(t)
}
