package dto

import "github.com/orgohq/mailgate/internal/enum"

// WorkflowInput is the rule-engine execution context built from one
// envelope. Source is always EMAIL in this service.
type WorkflowInput struct {
	OrganizationID string                 `json:"organizationId"`
	Source         string                 `json:"source"`
	Type           string                 `json:"type,omitempty"`
	Category       string                 `json:"category,omitempty"`
	Severity       string                 `json:"severity,omitempty"`
	Label          string                 `json:"label,omitempty"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// ResolvedAction is one concrete action the rule engine resolved for an
// envelope. Payload carries action-specific fields (taskId, field
// overrides, notification event type).
type ResolvedAction struct {
	Type    enum.WorkflowActionType `json:"type"`
	Payload map[string]interface{}  `json:"payload,omitempty"`
}

// WorkflowResult is a successful rule-engine execution outcome.
type WorkflowResult struct {
	WorkflowID       string                 `json:"workflowId"`
	MatchedRuleIDs   []string               `json:"matchedRuleIds"`
	ResolvedType     string                 `json:"resolvedType,omitempty"`
	ResolvedCategory string                 `json:"resolvedCategory,omitempty"`
	ResolvedSeverity string                 `json:"resolvedSeverity,omitempty"`
	ResolvedLabel    string                 `json:"resolvedLabel,omitempty"`
	Actions          []ResolvedAction       `json:"actions"`
	Context          map[string]interface{} `json:"context,omitempty"`
}

// ResultEnvelope is the standard boundary envelope used by external
// collaborators: { ok, data, error }.
type ResultEnvelope struct {
	Ok    bool           `json:"ok"`
	Data  interface{}    `json:"data"`
	Error *EnvelopeError `json:"error"`
}

type EnvelopeError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
