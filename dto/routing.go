package dto

// RoutingOptions tunes one routing attempt. DryRun classifies without
// applying any action or writing linkage state.
type RoutingOptions struct {
	DryRun           bool
	IngestionBatchID string
	// ContextOverrides are merged over the envelope-derived workflow input
	// before the rule engine runs.
	ContextOverrides map[string]interface{}
}

// RoutingResult is the outcome of one routing attempt for one envelope.
type RoutingResult struct {
	CreatedTasks      []Task          `json:"createdTasks"`
	LinkedTaskID      string          `json:"linkedTaskId,omitempty"`
	NotificationsSent int             `json:"notificationsSent"`
	WorkflowExecution *WorkflowResult `json:"workflowExecution,omitempty"`
}
