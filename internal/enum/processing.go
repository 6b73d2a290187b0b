package enum

type BatchStatus string

const (
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
)

func (t BatchStatus) String() string {
	return string(t)
}

// ProcessingEventType enumerates the pipeline milestones recorded in the
// append-only audit trail. Events are written once and never updated.
type ProcessingEventType string

const (
	EventParsed                  ProcessingEventType = "parsed"
	EventClassificationSucceeded ProcessingEventType = "classification_succeeded"
	EventClassificationFailed    ProcessingEventType = "classification_failed"
	EventTaskCreated             ProcessingEventType = "task_created"
	EventLinkedToExistingTask    ProcessingEventType = "linked_to_existing_task"
	EventDropped                 ProcessingEventType = "dropped"
)

func (t ProcessingEventType) String() string {
	return string(t)
}
