package router

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/internal/enum"
	er "github.com/orgohq/mailgate/internal/errors"
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/models"
)

type fakeMessageRepo struct {
	mu           sync.Mutex
	relatedTasks map[string]string
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{relatedTasks: map[string]string{}}
}

func (f *fakeMessageRepo) Create(ctx context.Context, message *models.EmailMessage) (string, error) {
	return message.ID, nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id string) (*models.EmailMessage, error) {
	return nil, nil
}

func (f *fakeMessageRepo) SetRelatedTask(ctx context.Context, id string, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relatedTasks[id] = taskID
	return nil
}

type fakeThreadRepo struct {
	mu      sync.Mutex
	threads map[string]*models.EmailThread
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{threads: map[string]*models.EmailThread{}}
}

func (f *fakeThreadRepo) Create(ctx context.Context, thread *models.EmailThread) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads[thread.ID] = thread
	return thread.ID, nil
}

func (f *fakeThreadRepo) GetByID(ctx context.Context, id string) (*models.EmailThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threads[id], nil
}

func (f *fakeThreadRepo) GetByKey(ctx context.Context, organizationID, threadKey string) (*models.EmailThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.threads {
		if t.OrganizationID == organizationID && t.ThreadKey == threadKey {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeThreadRepo) TouchLastMessage(ctx context.Context, threadID string, subjectSnapshot string, at time.Time) error {
	return nil
}

func (f *fakeThreadRepo) SetPrimaryTaskIfUnset(ctx context.Context, threadID string, taskID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	thread, ok := f.threads[threadID]
	if !ok {
		return false, nil
	}
	if thread.PrimaryTaskID != nil {
		return false, nil
	}
	thread.PrimaryTaskID = &taskID
	return true, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*models.ProcessingEvent
}

func (f *fakeEventRepo) Record(ctx context.Context, event *models.ProcessingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventRepo) GetByEmailMessageID(ctx context.Context, emailMessageID string) ([]*models.ProcessingEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) GetByBatchID(ctx context.Context, batchID string) ([]*models.ProcessingEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) types() []enum.ProcessingEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]enum.ProcessingEventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

type fakeEngine struct {
	mu      sync.Mutex
	calls   int
	result  *dto.WorkflowResult
	err     error
}

func (f *fakeEngine) Execute(ctx context.Context, input dto.WorkflowInput) (*dto.WorkflowResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls += 1
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeTaskService struct {
	mu           sync.Mutex
	created      []dto.CreateTaskInput
	assigned     []dto.AssignTaskInput
	escalated    []dto.EscalateTaskInput
	linked       []string
	createErr    error
	nextTaskID   int
	tasks        map[string]*dto.Task
}

func newFakeTaskService() *fakeTaskService {
	return &fakeTaskService{tasks: map[string]*dto.Task{}}
}

func (f *fakeTaskService) CreateTask(ctx context.Context, input dto.CreateTaskInput) (*dto.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, input)
	f.nextTaskID++
	task := &dto.Task{
		ID:             "task_" + strconv.Itoa(f.nextTaskID),
		OrganizationID: input.OrganizationID,
		Title:          input.Title,
		Category:       input.Category,
		Label:          input.Label,
		Priority:       input.Priority,
		Severity:       input.Severity,
		Visibility:     input.Visibility,
	}
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeTaskService) AssignTask(ctx context.Context, input dto.AssignTaskInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, input)
	return nil
}

func (f *fakeTaskService) EscalateTask(ctx context.Context, input dto.EscalateTaskInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escalated = append(f.escalated, input)
	return nil
}

func (f *fakeTaskService) GetTaskByID(ctx context.Context, organizationID, taskID string) (*dto.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, errors.New("task not found")
	}
	return task, nil
}

func (f *fakeTaskService) RecordEmailLinked(ctx context.Context, taskID, organizationID, emailMessageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linked = append(f.linked, taskID)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []enum.TaskNotificationEvent
	err  error
}

func (f *fakeNotifier) SendTaskNotification(ctx context.Context, task *dto.Task, eventType enum.TaskNotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, eventType)
	return nil
}

type routerFixture struct {
	router      *emailRouter
	messageRepo *fakeMessageRepo
	threadRepo  *fakeThreadRepo
	eventRepo   *fakeEventRepo
	engine      *fakeEngine
	taskService *fakeTaskService
	notifier    *fakeNotifier
}

func newRouterFixture(engine *fakeEngine) *routerFixture {
	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()

	f := &routerFixture{
		messageRepo: newFakeMessageRepo(),
		threadRepo:  newFakeThreadRepo(),
		eventRepo:   &fakeEventRepo{},
		engine:      engine,
		taskService: newFakeTaskService(),
		notifier:    &fakeNotifier{},
	}
	f.router = &emailRouter{
		log:          log,
		messageRepo:  f.messageRepo,
		threadRepo:   f.threadRepo,
		eventRepo:    f.eventRepo,
		engine:       f.engine,
		taskService:  f.taskService,
		notification: f.notifier,
	}
	return f
}

func createTaskResult() *dto.WorkflowResult {
	return &dto.WorkflowResult{
		WorkflowID:       "wf_1",
		MatchedRuleIDs:   []string{"rule_1"},
		ResolvedCategory: "maintenance",
		Actions: []dto.ResolvedAction{
			{Type: enum.ActionCreateTask},
		},
	}
}

func testEnvelope() *models.EmailMessage {
	return &models.EmailMessage{
		ID:             "email_1",
		OrganizationID: "org_1",
		Subject:        "Leak in roof",
		FromAddress:    "a@x.com",
		ToAddresses:    []string{"b@y.com"},
		TextBody:       "water everywhere",
	}
}

func TestRoute_CreateTaskEndToEnd(t *testing.T) {
	f := newRouterFixture(&fakeEngine{result: createTaskResult()})
	envelope := testEnvelope()

	result, err := f.router.RouteToWorkflow(context.Background(), envelope, dto.RoutingOptions{})
	require.NoError(t, err)

	require.Len(t, result.CreatedTasks, 1)
	assert.Equal(t, result.CreatedTasks[0].ID, result.LinkedTaskID)
	assert.Equal(t, "maintenance", result.CreatedTasks[0].Category)
	assert.Equal(t, result.LinkedTaskID, f.messageRepo.relatedTasks["email_1"])
	assert.Equal(t, 1, f.engine.calls)

	types := f.eventRepo.types()
	assert.Equal(t, []enum.ProcessingEventType{enum.EventClassificationSucceeded, enum.EventTaskCreated}, types)
}

func TestRoute_AlreadyLinkedShortCircuits(t *testing.T) {
	f := newRouterFixture(&fakeEngine{result: createTaskResult()})
	envelope := testEnvelope()
	taskID := "task_existing"
	envelope.RelatedTaskID = &taskID

	result, err := f.router.RouteToWorkflow(context.Background(), envelope, dto.RoutingOptions{})
	require.NoError(t, err)

	assert.Equal(t, "task_existing", result.LinkedTaskID)
	assert.Empty(t, result.CreatedTasks)
	assert.Equal(t, 0, f.engine.calls)
	assert.Empty(t, f.taskService.created)
	assert.Equal(t, []enum.ProcessingEventType{enum.EventLinkedToExistingTask}, f.eventRepo.types())
}

func TestRoute_ThreadPrimaryTaskLinks(t *testing.T) {
	f := newRouterFixture(&fakeEngine{result: createTaskResult()})

	primary := "task_primary"
	f.threadRepo.threads["thrd_1"] = &models.EmailThread{
		ID:             "thrd_1",
		OrganizationID: "org_1",
		ThreadKey:      "key",
		PrimaryTaskID:  &primary,
	}

	envelope := testEnvelope()
	envelope.ThreadID = "thrd_1"

	result, err := f.router.RouteToWorkflow(context.Background(), envelope, dto.RoutingOptions{})
	require.NoError(t, err)

	assert.Equal(t, "task_primary", result.LinkedTaskID)
	assert.Equal(t, 0, f.engine.calls)
	assert.Equal(t, "task_primary", f.messageRepo.relatedTasks["email_1"])
	assert.Equal(t, []string{"task_primary"}, f.taskService.linked)
	assert.Equal(t, []enum.ProcessingEventType{enum.EventLinkedToExistingTask}, f.eventRepo.types())
}

func TestRoute_ThreadSingleTaskInvariant(t *testing.T) {
	f := newRouterFixture(&fakeEngine{result: createTaskResult()})

	f.threadRepo.threads["thrd_1"] = &models.EmailThread{
		ID:             "thrd_1",
		OrganizationID: "org_1",
		ThreadKey:      "key",
	}

	// First envelope of the conversation creates the task and claims the
	// thread's primary slot.
	first := testEnvelope()
	first.ThreadID = "thrd_1"
	result1, err := f.router.RouteToWorkflow(context.Background(), first, dto.RoutingOptions{})
	require.NoError(t, err)
	require.Len(t, result1.CreatedTasks, 1)

	thread := f.threadRepo.threads["thrd_1"]
	require.NotNil(t, thread.PrimaryTaskID)
	assert.Equal(t, result1.LinkedTaskID, *thread.PrimaryTaskID)

	// Every subsequent envelope links to the same task without touching
	// the rule engine.
	second := testEnvelope()
	second.ID = "email_2"
	second.ThreadID = "thrd_1"
	result2, err := f.router.RouteToWorkflow(context.Background(), second, dto.RoutingOptions{})
	require.NoError(t, err)

	assert.Equal(t, result1.LinkedTaskID, result2.LinkedTaskID)
	assert.Empty(t, result2.CreatedTasks)
	assert.Equal(t, 1, f.engine.calls)
	assert.Len(t, f.taskService.created, 1)
	assert.Equal(t, result1.LinkedTaskID, *f.threadRepo.threads["thrd_1"].PrimaryTaskID)
	assert.Equal(t, result1.LinkedTaskID, f.messageRepo.relatedTasks["email_2"])
}

func TestRoute_DryRunHasNoSideEffects(t *testing.T) {
	f := newRouterFixture(&fakeEngine{result: createTaskResult()})
	envelope := testEnvelope()

	result, err := f.router.RouteToWorkflow(context.Background(), envelope, dto.RoutingOptions{DryRun: true})
	require.NoError(t, err)

	assert.Empty(t, result.CreatedTasks)
	assert.Empty(t, result.LinkedTaskID)
	require.NotNil(t, result.WorkflowExecution)
	assert.Equal(t, "wf_1", result.WorkflowExecution.WorkflowID)

	assert.Empty(t, f.taskService.created)
	assert.Empty(t, f.messageRepo.relatedTasks)
	assert.Equal(t, []enum.ProcessingEventType{enum.EventClassificationSucceeded}, f.eventRepo.types())
}

func TestRoute_ClassificationFailureRecordedAndPropagated(t *testing.T) {
	engineErr := er.NewAppError(er.CodeWorkflowExecution, "engine unreachable")
	f := newRouterFixture(&fakeEngine{err: engineErr})

	_, err := f.router.RouteToWorkflow(context.Background(), testEnvelope(), dto.RoutingOptions{IngestionBatchID: "batch_1"})
	require.Error(t, err)
	assert.Equal(t, er.CodeWorkflowExecution, er.CodeOf(err))

	types := f.eventRepo.types()
	require.Equal(t, []enum.ProcessingEventType{enum.EventClassificationFailed}, types)
	require.NotNil(t, f.eventRepo.events[0].IngestionBatchID)
	assert.Equal(t, "batch_1", *f.eventRepo.events[0].IngestionBatchID)
}

func TestRoute_ApplyFailureAbortsPhase(t *testing.T) {
	f := newRouterFixture(&fakeEngine{result: &dto.WorkflowResult{
		WorkflowID: "wf_1",
		Actions: []dto.ResolvedAction{
			{Type: enum.ActionCreateTask},
			{Type: enum.ActionNotify, Payload: map[string]interface{}{"taskId": "task_1"}},
		},
	}})
	f.notifier.err = errors.New("broker down")

	_, err := f.router.RouteToWorkflow(context.Background(), testEnvelope(), dto.RoutingOptions{})
	require.Error(t, err)
	assert.Equal(t, er.CodeRoutingApplyFailed, er.CodeOf(err))

	// The task created by the first action is not rolled back.
	assert.Len(t, f.taskService.created, 1)
}

func TestRoute_SecondCreateTaskDoesNotRelink(t *testing.T) {
	f := newRouterFixture(&fakeEngine{result: &dto.WorkflowResult{
		WorkflowID: "wf_1",
		Actions: []dto.ResolvedAction{
			{Type: enum.ActionCreateTask},
			{Type: enum.ActionCreateTask, Payload: map[string]interface{}{"title": "follow-up"}},
		},
	}})

	result, err := f.router.RouteToWorkflow(context.Background(), testEnvelope(), dto.RoutingOptions{})
	require.NoError(t, err)

	require.Len(t, result.CreatedTasks, 2)
	assert.Equal(t, result.CreatedTasks[0].ID, result.LinkedTaskID)
	assert.Equal(t, result.CreatedTasks[0].ID, f.messageRepo.relatedTasks["email_1"])
}

func TestRoute_ActionsWithMissingTaskIDAreSkipped(t *testing.T) {
	f := newRouterFixture(&fakeEngine{result: &dto.WorkflowResult{
		WorkflowID: "wf_1",
		Actions: []dto.ResolvedAction{
			{Type: enum.ActionRoute},
			{Type: enum.ActionEscalate},
			{Type: enum.ActionNotify},
		},
	}})

	result, err := f.router.RouteToWorkflow(context.Background(), testEnvelope(), dto.RoutingOptions{})
	require.NoError(t, err)

	assert.Empty(t, f.taskService.assigned)
	assert.Empty(t, f.taskService.escalated)
	assert.Equal(t, 0, result.NotificationsSent)

	// Nothing was created or linked, so the attempt is recorded as
	// dropped.
	types := f.eventRepo.types()
	assert.Equal(t, []enum.ProcessingEventType{enum.EventClassificationSucceeded, enum.EventDropped}, types)
}

func TestRoute_NotifySendsWithEventType(t *testing.T) {
	f := newRouterFixture(&fakeEngine{result: &dto.WorkflowResult{
		WorkflowID: "wf_1",
		Actions: []dto.ResolvedAction{
			{Type: enum.ActionCreateTask},
			{Type: enum.ActionEscalate, Payload: map[string]interface{}{"taskId": "task_1"}},
			{Type: enum.ActionNotify, Payload: map[string]interface{}{"taskId": "task_1", "eventType": "ESCALATED"}},
		},
	}})

	result, err := f.router.RouteToWorkflow(context.Background(), testEnvelope(), dto.RoutingOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.NotificationsSent)
	assert.Equal(t, []enum.TaskNotificationEvent{enum.TaskNotificationEscalated}, f.notifier.sent)
	require.Len(t, f.taskService.escalated, 1)
	assert.Equal(t, defaultEscalateReason, f.taskService.escalated[0].Reason)
}

func TestRoute_UnsupportedActionIsSkipped(t *testing.T) {
	f := newRouterFixture(&fakeEngine{result: &dto.WorkflowResult{
		WorkflowID: "wf_1",
		Actions: []dto.ResolvedAction{
			{Type: enum.ActionUnsupported},
			{Type: enum.ActionCreateTask},
		},
	}})

	result, err := f.router.RouteToWorkflow(context.Background(), testEnvelope(), dto.RoutingOptions{})
	require.NoError(t, err)
	assert.Len(t, result.CreatedTasks, 1)
}

func TestRoute_UnknownActionTypeIsSkipped(t *testing.T) {
	// A type outside the declared constants, as a caller bypassing the
	// decode mapping could produce.
	f := newRouterFixture(&fakeEngine{result: &dto.WorkflowResult{
		WorkflowID: "wf_1",
		Actions: []dto.ResolvedAction{
			{Type: enum.WorkflowActionType("ARCHIVE_THREAD")},
			{Type: enum.ActionCreateTask},
		},
	}})

	result, err := f.router.RouteToWorkflow(context.Background(), testEnvelope(), dto.RoutingOptions{})
	require.NoError(t, err)
	assert.Len(t, result.CreatedTasks, 1)
	assert.Len(t, f.taskService.created, 1)
}
