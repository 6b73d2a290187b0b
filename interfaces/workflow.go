package interfaces

import (
	"context"

	"github.com/orgohq/mailgate/dto"
)

// WorkflowEngine is the external rule-matching/resolution engine. Only its
// input/output contract is owned here.
type WorkflowEngine interface {
	Execute(ctx context.Context, input dto.WorkflowInput) (*dto.WorkflowResult, error)
}
