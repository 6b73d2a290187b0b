package router

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/interfaces"
	er "github.com/orgohq/mailgate/internal/errors"
	"github.com/orgohq/mailgate/internal/enum"
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/models"
	"github.com/orgohq/mailgate/internal/tracing"
	"github.com/orgohq/mailgate/internal/utils"
)

const (
	workflowSource = "EMAIL"

	defaultTaskCategory    = "request"
	defaultTaskLabel       = "000.00.Unclassified"
	defaultTaskDescription = "Email routed via workflow."
	defaultEscalateReason  = "Escalated via workflow routing."
)

// emailRouter classifies persisted envelopes against the external rule
// engine and applies the resolved actions. One routing attempt per call;
// retries happen by re-invoking with the same envelope, which the
// already-linked and thread-linked branches make idempotent.
type emailRouter struct {
	log          logger.Logger
	messageRepo  interfaces.EmailMessageRepository
	threadRepo   interfaces.EmailThreadRepository
	eventRepo    interfaces.ProcessingEventRepository
	engine       interfaces.WorkflowEngine
	taskService  interfaces.TaskService
	notification interfaces.NotificationService
}

func NewEmailRouter(
	log logger.Logger,
	messageRepo interfaces.EmailMessageRepository,
	threadRepo interfaces.EmailThreadRepository,
	eventRepo interfaces.ProcessingEventRepository,
	engine interfaces.WorkflowEngine,
	taskService interfaces.TaskService,
	notification interfaces.NotificationService,
) interfaces.EmailRouter {
	return &emailRouter{
		log:          log,
		messageRepo:  messageRepo,
		threadRepo:   threadRepo,
		eventRepo:    eventRepo,
		engine:       engine,
		taskService:  taskService,
		notification: notification,
	}
}

func (r *emailRouter) RouteToWorkflow(ctx context.Context, envelope *models.EmailMessage, opts dto.RoutingOptions) (*dto.RoutingResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRouter.RouteToWorkflow")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagOrganization(span, envelope.OrganizationID)
	tracing.TagEntity(span, envelope.ID)
	span.SetTag("dryRun", opts.DryRun)

	// Branch 1: the envelope already carries a task link. Short-circuit
	// without calling the rule engine so a retried envelope never creates
	// a second task.
	if envelope.RelatedTaskID != nil && *envelope.RelatedTaskID != "" {
		r.recordEvent(ctx, envelope, opts, enum.EventLinkedToExistingTask, models.JSONMap{
			"taskId": *envelope.RelatedTaskID,
			"reason": "envelope already linked",
		})
		return &dto.RoutingResult{LinkedTaskID: *envelope.RelatedTaskID}, nil
	}

	// Branch 2: the conversation already owns a task. Link this envelope
	// to it; never call the engine, never overwrite the thread's primary.
	if envelope.ThreadID != "" {
		thread, err := r.threadRepo.GetByID(ctx, envelope.ThreadID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, errors.Wrap(err, "failed to load thread")
		}
		if thread != nil && thread.PrimaryTaskID != nil && *thread.PrimaryTaskID != "" {
			taskID := *thread.PrimaryTaskID
			if err := r.messageRepo.SetRelatedTask(ctx, envelope.ID, taskID); err != nil {
				tracing.TraceErr(span, err)
				return nil, errors.Wrap(err, "failed to link envelope to thread task")
			}
			r.recordEvent(ctx, envelope, opts, enum.EventLinkedToExistingTask, models.JSONMap{
				"taskId": taskID,
				"reason": "thread already has a primary task",
			})
			// Task-side audit is best-effort; the persisted link above is
			// the source of truth.
			if err := r.taskService.RecordEmailLinked(ctx, taskID, envelope.OrganizationID, envelope.ID); err != nil {
				r.log.Warnf("failed to record email_linked audit on task %s: %v", taskID, err)
			}
			return &dto.RoutingResult{LinkedTaskID: taskID}, nil
		}
	}

	// Branch 3: classify.
	input := r.buildWorkflowInput(envelope, opts)
	execution, err := r.engine.Execute(ctx, input)
	if err != nil {
		tracing.TraceErr(span, err)
		r.recordEvent(ctx, envelope, opts, enum.EventClassificationFailed, models.JSONMap{
			"error": err.Error(),
			"code":  er.CodeOf(err),
		})
		return nil, err
	}

	r.recordEvent(ctx, envelope, opts, enum.EventClassificationSucceeded, models.JSONMap{
		"workflowId":       execution.WorkflowID,
		"matchedRuleIds":   execution.MatchedRuleIDs,
		"resolvedType":     execution.ResolvedType,
		"resolvedCategory": execution.ResolvedCategory,
		"resolvedSeverity": execution.ResolvedSeverity,
		"resolvedLabel":    execution.ResolvedLabel,
		"actionCount":      len(execution.Actions),
	})

	result := &dto.RoutingResult{
		CreatedTasks:      []dto.Task{},
		WorkflowExecution: execution,
	}

	if opts.DryRun {
		return result, nil
	}

	if err := r.applyActions(ctx, envelope, opts, execution, result); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	// Classification matched but produced no task and no link: the
	// envelope stays persisted, the audit trail records the drop.
	if len(result.CreatedTasks) == 0 && result.LinkedTaskID == "" {
		r.recordEvent(ctx, envelope, opts, enum.EventDropped, models.JSONMap{
			"workflowId": execution.WorkflowID,
			"reason":     "no actionable outcome",
		})
	}

	return result, nil
}

// applyActions executes the resolved actions in order. Any delegate
// failure aborts the whole apply phase; actions already applied are not
// rolled back.
func (r *emailRouter) applyActions(ctx context.Context, envelope *models.EmailMessage, opts dto.RoutingOptions, execution *dto.WorkflowResult, result *dto.RoutingResult) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRouter.applyActions")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("actions", len(execution.Actions))

	for i, action := range execution.Actions {
		var err error
		switch action.Type {
		case enum.ActionCreateTask:
			err = r.applyCreateTask(ctx, envelope, opts, execution, action, result)
		case enum.ActionRoute:
			err = r.applyRoute(ctx, envelope, action)
		case enum.ActionEscalate:
			err = r.applyEscalate(ctx, envelope, action)
		case enum.ActionNotify:
			err = r.applyNotify(ctx, envelope, action, result)
		case enum.ActionAttachTemplate, enum.ActionSetMetadata, enum.ActionUpdateTask:
			r.log.Infof("action %s is not applied by the email gateway, skipping (envelope %s)", action.Type, envelope.ID)
		default:
			// Covers ActionUnsupported and any value that bypassed
			// GetWorkflowActionType.
			r.log.Warnf("unsupported action type %q at position %d, skipping (envelope %s)", action.Type, i, envelope.ID)
		}
		if err != nil {
			tracing.TraceErr(span, err)
			return er.NewAppErrorWithCause(er.CodeRoutingApplyFailed, "failed to apply workflow action "+action.Type.String(), err)
		}
	}
	return nil
}

func (r *emailRouter) applyCreateTask(ctx context.Context, envelope *models.EmailMessage, opts dto.RoutingOptions, execution *dto.WorkflowResult, action dto.ResolvedAction, result *dto.RoutingResult) error {
	input := r.buildCreateTaskInput(envelope, execution, action)

	task, err := r.taskService.CreateTask(ctx, input)
	if err != nil {
		return errors.Wrap(err, "task creation failed")
	}

	result.CreatedTasks = append(result.CreatedTasks, *task)
	r.recordEvent(ctx, envelope, opts, enum.EventTaskCreated, models.JSONMap{
		"taskId":     task.ID,
		"workflowId": execution.WorkflowID,
		"title":      task.Title,
	})

	// Only the first created task becomes the envelope's link and the
	// thread's primary candidate; later CREATE_TASK actions still create
	// tasks but leave the linkage untouched.
	if result.LinkedTaskID != "" {
		return nil
	}
	result.LinkedTaskID = task.ID

	if err := r.messageRepo.SetRelatedTask(ctx, envelope.ID, task.ID); err != nil {
		return errors.Wrap(err, "failed to persist email task link")
	}

	if envelope.ThreadID != "" {
		won, err := r.threadRepo.SetPrimaryTaskIfUnset(ctx, envelope.ThreadID, task.ID)
		if err != nil {
			return errors.Wrap(err, "failed to set thread primary task")
		}
		if !won {
			r.log.Infof("thread %s already had a primary task, keeping it", envelope.ThreadID)
		}
	}

	if err := r.taskService.RecordEmailLinked(ctx, task.ID, envelope.OrganizationID, envelope.ID); err != nil {
		r.log.Warnf("failed to record email_linked audit on task %s: %v", task.ID, err)
	}

	return nil
}

func (r *emailRouter) applyRoute(ctx context.Context, envelope *models.EmailMessage, action dto.ResolvedAction) error {
	taskID := payloadString(action.Payload, "taskId")
	if taskID == "" {
		r.log.Warnf("ROUTE action without taskId for envelope %s, skipping", envelope.ID)
		return nil
	}

	return r.taskService.AssignTask(ctx, dto.AssignTaskInput{
		OrganizationID: envelope.OrganizationID,
		TaskID:         taskID,
		AssigneeID:     payloadString(action.Payload, "assigneeId"),
		TeamID:         payloadString(action.Payload, "teamId"),
	})
}

func (r *emailRouter) applyEscalate(ctx context.Context, envelope *models.EmailMessage, action dto.ResolvedAction) error {
	taskID := payloadString(action.Payload, "taskId")
	if taskID == "" {
		r.log.Warnf("ESCALATE action without taskId for envelope %s, skipping", envelope.ID)
		return nil
	}

	reason := payloadString(action.Payload, "reason")
	if reason == "" {
		reason = defaultEscalateReason
	}

	return r.taskService.EscalateTask(ctx, dto.EscalateTaskInput{
		OrganizationID: envelope.OrganizationID,
		TaskID:         taskID,
		Reason:         reason,
	})
}

func (r *emailRouter) applyNotify(ctx context.Context, envelope *models.EmailMessage, action dto.ResolvedAction, result *dto.RoutingResult) error {
	taskID := payloadString(action.Payload, "taskId")
	if taskID == "" {
		r.log.Warnf("NOTIFY action without taskId for envelope %s, skipping", envelope.ID)
		return nil
	}

	task, err := r.taskService.GetTaskByID(ctx, envelope.OrganizationID, taskID)
	if err != nil {
		r.log.Warnf("NOTIFY action could not load task %s, skipping: %v", taskID, err)
		return nil
	}

	eventType := enum.TaskNotificationEvent(payloadString(action.Payload, "eventType"))
	if eventType == "" {
		eventType = enum.TaskNotificationUpdated
	}

	if err := r.notification.SendTaskNotification(ctx, task, eventType); err != nil {
		return errors.Wrap(err, "notification dispatch failed")
	}
	result.NotificationsSent++
	return nil
}

// buildWorkflowInput assembles the rule-engine execution context from the
// envelope's metadata and bodies, then layers the caller's overrides on
// the metadata bag.
func (r *emailRouter) buildWorkflowInput(envelope *models.EmailMessage, opts dto.RoutingOptions) dto.WorkflowInput {
	description := metadataString(envelope.ParsedMetadata, "summary")
	if description == "" {
		description = envelope.TextBody
	}
	if description == "" {
		description = envelope.HTMLBody
	}

	metadata := map[string]interface{}{
		"emailMessageId":  envelope.ID,
		"threadId":        envelope.ThreadID,
		"messageIdHeader": envelope.MessageIDHeader,
		"fromAddress":     envelope.FromAddress,
		"fromDomain":      utils.ExtractDomainFromEmail(envelope.FromAddress),
		"toAddresses":     []string(envelope.ToAddresses),
		"ccAddresses":     []string(envelope.CcAddresses),
		"subject":         envelope.Subject,
		"sensitivity":     envelope.Sensitivity.String(),
		"securityFlags":   map[string]interface{}(envelope.SecurityFlags),
	}
	if opts.IngestionBatchID != "" {
		metadata["ingestionBatchId"] = opts.IngestionBatchID
	}
	for k, v := range opts.ContextOverrides {
		metadata[k] = v
	}

	return dto.WorkflowInput{
		OrganizationID: envelope.OrganizationID,
		Source:         workflowSource,
		Type:           metadataString(envelope.ParsedMetadata, "type"),
		Category:       metadataString(envelope.ParsedMetadata, "category"),
		Severity:       metadataString(envelope.ParsedMetadata, "severity"),
		Label:          metadataString(envelope.ParsedMetadata, "label"),
		Title:          envelope.Subject,
		Description:    description,
		Metadata:       metadata,
	}
}

// buildCreateTaskInput merges action-supplied field overrides over the
// envelope-derived defaults.
func (r *emailRouter) buildCreateTaskInput(envelope *models.EmailMessage, execution *dto.WorkflowResult, action dto.ResolvedAction) dto.CreateTaskInput {
	input := dto.CreateTaskInput{
		OrganizationID: envelope.OrganizationID,
		Title:          envelope.Subject,
		Description:    defaultTaskDescription,
		Category:       defaultTaskCategory,
		Label:          defaultTaskLabel,
		Priority:       enum.TaskPriorityMedium,
		Severity:       enum.TaskSeverityMinor,
		Visibility:     enum.TaskVisibilityInternal,
		SourceEmailID:  envelope.ID,
	}

	if execution.ResolvedCategory != "" {
		input.Category = execution.ResolvedCategory
	}
	if execution.ResolvedLabel != "" {
		input.Label = execution.ResolvedLabel
	}
	if execution.ResolvedSeverity != "" {
		input.Severity = enum.TaskSeverity(execution.ResolvedSeverity)
	}

	if v := payloadString(action.Payload, "title"); v != "" {
		input.Title = v
	}
	if v := payloadString(action.Payload, "description"); v != "" {
		input.Description = v
	}
	if v := payloadString(action.Payload, "category"); v != "" {
		input.Category = v
	}
	if v := payloadString(action.Payload, "label"); v != "" {
		input.Label = v
	}
	if v := payloadString(action.Payload, "priority"); v != "" {
		input.Priority = enum.TaskPriority(v)
	}
	if v := payloadString(action.Payload, "severity"); v != "" {
		input.Severity = enum.TaskSeverity(v)
	}
	if v := payloadString(action.Payload, "visibility"); v != "" {
		input.Visibility = enum.TaskVisibility(v)
	}

	return input
}

// recordEvent appends one audit row. Audit failures are logged, never
// propagated.
func (r *emailRouter) recordEvent(ctx context.Context, envelope *models.EmailMessage, opts dto.RoutingOptions, eventType enum.ProcessingEventType, details models.JSONMap) {
	event := &models.ProcessingEvent{
		OrganizationID: envelope.OrganizationID,
		EmailMessageID: envelope.ID,
		EventType:      eventType,
		Details:        details,
	}
	if opts.IngestionBatchID != "" {
		batchID := opts.IngestionBatchID
		event.IngestionBatchID = &batchID
	}
	if err := r.eventRepo.Record(ctx, event); err != nil {
		r.log.Errorf("failed to record %s processing event for envelope %s: %v", eventType, envelope.ID, err)
	}
}

func payloadString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func metadataString(metadata models.JSONMap, key string) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}
