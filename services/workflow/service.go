package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/orgohq/mailgate/config"
	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/interfaces"
	er "github.com/orgohq/mailgate/internal/errors"
	"github.com/orgohq/mailgate/internal/enum"
	"github.com/orgohq/mailgate/internal/tracing"
)

const executeTimeout = 60 * time.Second

// workflowEngine is the HTTP adapter for the external rule-matching and
// resolution engine. Only the input/output contract is owned here; rule
// semantics live on the other side.
type workflowEngine struct {
	cfg *config.WorkflowEngineConfig
}

func NewWorkflowEngine(cfg *config.WorkflowEngineConfig) interfaces.WorkflowEngine {
	return &workflowEngine{cfg: cfg}
}

func (s *workflowEngine) Execute(ctx context.Context, input dto.WorkflowInput) (*dto.WorkflowResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "workflowEngine.Execute")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagOrganization(span, input.OrganizationID)

	payload, err := json.Marshal(input)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to marshal workflow input")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.Url+"/internal/v1/workflows/execute", bytes.NewBuffer(payload))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to create request")
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.cfg.ApiKey)
	req.Header.Set("X-Request-ID", requestID)
	span.SetTag("requestId", requestID)

	client := &http.Client{Timeout: executeTimeout}
	resp, err := client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, er.NewAppErrorWithCause(er.CodeWorkflowExecution, "workflow engine unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = er.NewAppErrorWithCause(er.CodeWorkflowExecution, "workflow engine request failed",
			errors.Errorf("status code %d: %s", resp.StatusCode, string(body)))
		tracing.TraceErr(span, err)
		return nil, err
	}

	var envelope dto.ResultEnvelope
	if err = json.Unmarshal(body, &envelope); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to unmarshal response envelope")
	}

	if !envelope.Ok {
		err = engineError(envelope.Error)
		tracing.TraceErr(span, err)
		return nil, err
	}

	result, err := decodeResult(envelope.Data)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	// Unknown action types collapse to the unsupported branch so the
	// router's dispatch stays closed over the known set.
	for i, action := range result.Actions {
		result.Actions[i].Type = enum.GetWorkflowActionType(action.Type.String())
	}

	tracing.LogObjectAsJson(span, "result", result)
	return result, nil
}

// engineError carries the engine's own error code through when it reports
// one, falling back to the generic workflow execution code.
func engineError(envErr *dto.EnvelopeError) error {
	if envErr == nil {
		return er.NewAppError(er.CodeWorkflowExecution, "workflow engine reported failure without error detail")
	}
	code := envErr.Code
	if code == "" {
		code = er.CodeWorkflowExecution
	}
	appErr := er.NewAppError(code, envErr.Message)
	appErr.Details = envErr.Details
	return appErr
}

func decodeResult(data interface{}) (*dto.WorkflowResult, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to re-marshal workflow result")
	}
	var result dto.WorkflowResult
	if err = json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode workflow result")
	}
	return &result, nil
}
