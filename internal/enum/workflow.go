package enum

// WorkflowActionType is the closed set of actions the rule engine can
// resolve for an email. Unknown payload types decode to ActionUnsupported
// so dispatch stays exhaustiveness-checked.
type WorkflowActionType string

const (
	ActionCreateTask     WorkflowActionType = "CREATE_TASK"
	ActionRoute          WorkflowActionType = "ROUTE"
	ActionEscalate       WorkflowActionType = "ESCALATE"
	ActionNotify         WorkflowActionType = "NOTIFY"
	ActionAttachTemplate WorkflowActionType = "ATTACH_TEMPLATE"
	ActionSetMetadata    WorkflowActionType = "SET_METADATA"
	ActionUpdateTask     WorkflowActionType = "UPDATE_TASK"
	ActionUnsupported    WorkflowActionType = "UNSUPPORTED"
)

func (t WorkflowActionType) String() string {
	return string(t)
}

func GetWorkflowActionType(s string) WorkflowActionType {
	switch WorkflowActionType(s) {
	case ActionCreateTask, ActionRoute, ActionEscalate, ActionNotify,
		ActionAttachTemplate, ActionSetMetadata, ActionUpdateTask:
		return WorkflowActionType(s)
	default:
		return ActionUnsupported
	}
}
