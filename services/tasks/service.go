package tasks

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
	"github.com/orgohq/mailgate/internal/tracing"
)

const requestTimeout = 30 * time.Second

// taskService is the HTTP adapter for the external task lifecycle
// collaborator.
type taskService struct {
	cfg *config.TaskServiceConfig
}

func NewTaskService(cfg *config.TaskServiceConfig) interfaces.TaskService {
	return &taskService{cfg: cfg}
}

func (s *taskService) CreateTask(ctx context.Context, input dto.CreateTaskInput) (*dto.Task, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "taskService.CreateTask")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagOrganization(span, input.OrganizationID)

	var task dto.Task
	if err := s.post(ctx, "/internal/v1/tasks", input, &task); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagEntity(span, task.ID)
	return &task, nil
}

func (s *taskService) AssignTask(ctx context.Context, input dto.AssignTaskInput) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "taskService.AssignTask")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, input.TaskID)

	if err := s.post(ctx, "/internal/v1/tasks/"+input.TaskID+"/assign", input, nil); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *taskService) EscalateTask(ctx context.Context, input dto.EscalateTaskInput) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "taskService.EscalateTask")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, input.TaskID)

	if err := s.post(ctx, "/internal/v1/tasks/"+input.TaskID+"/escalate", input, nil); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *taskService) GetTaskByID(ctx context.Context, organizationID, taskID string) (*dto.Task, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "taskService.GetTaskByID")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagOrganization(span, organizationID)
	tracing.TagEntity(span, taskID)

	req, err := http.NewRequestWithContext(ctx, "GET", s.cfg.Url+"/internal/v1/tasks/"+taskID+"?organizationId="+organizationID, nil)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to create request")
	}

	var task dto.Task
	if err = s.do(req, &task); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &task, nil
}

func (s *taskService) RecordEmailLinked(ctx context.Context, taskID, organizationID, emailMessageID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "taskService.RecordEmailLinked")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagOrganization(span, organizationID)
	tracing.TagEntity(span, taskID)

	payload := map[string]string{
		"organizationId": organizationID,
		"emailMessageId": emailMessageID,
	}
	if err := s.post(ctx, "/internal/v1/tasks/"+taskID+"/events/email-linked", payload, nil); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *taskService) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.Url+path, bytes.NewBuffer(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	return s.do(req, out)
}

// do executes the request and decodes the standard { ok, data, error }
// result envelope into out.
func (s *taskService) do(req *http.Request, out interface{}) error {
	req.Header.Set("X-API-KEY", s.cfg.ApiKey)
	req.Header.Set("X-Request-ID", uuid.New().String())

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("request failed with status code %d: %s", resp.StatusCode, string(body))
	}

	var envelope dto.ResultEnvelope
	if err = json.Unmarshal(body, &envelope); err != nil {
		return errors.Wrap(err, "failed to unmarshal response envelope")
	}
	if !envelope.Ok {
		if envelope.Error != nil {
			return errors.Errorf("task service error %s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return errors.New("task service reported failure without error detail")
	}

	if out == nil {
		return nil
	}
	raw, err := json.Marshal(envelope.Data)
	if err != nil {
		return errors.Wrap(err, "failed to re-marshal response data")
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "failed to decode response data")
	}
	return nil
}
