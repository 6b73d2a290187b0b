package errors

import "github.com/pkg/errors"

var (
	// common errors
	ErrOrganizationMissing = errors.New("organization is missing")
	ErrConnectionTimeout   = errors.New("connection timeout")

	// account errors
	ErrAccountConfigNotFound = errors.New("email account config not found")
	ErrAccountInactive       = errors.New("email account config is inactive")

	// thread errors
	ErrThreadNotFound = errors.New("email thread not found")
)

// Error codes surfaced at pipeline boundaries.
const (
	CodeEmailParsing           = "EMAIL_PARSING_ERROR"
	CodeEmailValidation        = "EMAIL_VALIDATION_ERROR"
	CodeEmailPersistence       = "EMAIL_PERSISTENCE_ERROR"
	CodeWorkflowExecution      = "EMAIL_WORKFLOW_EXECUTION_ERROR"
	CodeRoutingApplyFailed     = "EMAIL_ROUTING_APPLY_FAILED"
	CodeSubjectMissing         = "EMAIL_SUBJECT_MISSING"
	CodeFromMissing            = "EMAIL_FROM_MISSING"
	CodeFromInvalid            = "EMAIL_FROM_INVALID"
	CodeRecipientsMissing      = "EMAIL_RECIPIENTS_MISSING"
	CodeRecipientInvalid       = "EMAIL_RECIPIENT_INVALID"
	CodeBodyMissing            = "EMAIL_BODY_MISSING"
	CodeAttachmentTypeBlocked  = "EMAIL_ATTACHMENT_TYPE_BLOCKED"
	CodeSizeExceeded           = "EMAIL_SIZE_EXCEEDED"
)

// Issue is one concrete policy violation found while checking an envelope.
type Issue struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	Attachment string `json:"attachment,omitempty"`
}

// AppError is a coded domain error crossing component boundaries. Details
// carries structured context; validation errors store the aggregated issue
// list under Details["issues"].
type AppError struct {
	Code    string
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.Code + ": " + e.Message + ": " + e.cause.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func (e *AppError) Issues() []Issue {
	if e.Details == nil {
		return nil
	}
	issues, ok := e.Details["issues"].([]Issue)
	if !ok {
		return nil
	}
	return issues
}

func NewAppError(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func NewAppErrorWithCause(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, cause: cause}
}

func NewValidationError(message string, issues []Issue) *AppError {
	return &AppError{
		Code:    CodeEmailValidation,
		Message: message,
		Details: map[string]interface{}{"issues": issues},
	}
}

// CodeOf returns the stable code of err when it is (or wraps) an AppError,
// empty string otherwise.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
