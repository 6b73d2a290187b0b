package cron

import (
	"context"
	"sync"

	cronv3 "github.com/robfig/cron/v3"

	"github.com/orgohq/mailgate/config"
	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/tracing"
)

// pollLock serializes scheduled poll runs; an overlapping tick is skipped
// by the cron chain, the lock covers manually triggered runs racing a
// scheduled one.
var pollLock sync.Mutex

// CronManager drives the scheduled mailbox polls. Single-instance
// deployment; there is no leader election, overlap protection is local.
type CronManager struct {
	cfg      *config.Config
	log      logger.Logger
	cron     *cronv3.Cron
	stopCh   chan struct{}
	jobIDs   map[string]cronv3.EntryID
	ingestor interfaces.EmailIngestor
}

func NewCronManager(cfg *config.Config, log logger.Logger, ingestor interfaces.EmailIngestor) *CronManager {
	return &CronManager{
		cfg:      cfg,
		log:      log,
		stopCh:   make(chan struct{}),
		jobIDs:   make(map[string]cronv3.EntryID),
		ingestor: ingestor,
	}
}

// Start initializes and starts the cron scheduler.
func (cm *CronManager) Start() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// Stop gracefully stops the scheduler and waits for running jobs.
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		<-ctx.Done()
	}
	close(cm.stopCh)
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	schedule := cm.cfg.IngestionConfig.PollSchedule
	if schedule == "" {
		cm.log.Warn("No mailbox poll schedule configured, scheduled polling disabled")
		return
	}

	id, err := c.AddFunc(schedule, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		pollLock.Lock()
		defer pollLock.Unlock()
		cm.pollMailboxes()
	})
	if err != nil {
		cm.log.Fatalf("Could not add mailbox poll cron job: %v", err)
	}
	cm.jobIDs["mailbox_poll"] = id
	cm.log.Infof("Registered mailbox poll job with schedule: %s", schedule)
}

func (cm *CronManager) pollMailboxes() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.pollMailboxes")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	results, err := cm.ingestor.PollMailboxes(ctx, dto.PollOptions{})
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Scheduled mailbox poll failed: %v", err)
		return
	}

	for _, result := range results {
		cm.log.Infof("Batch %s for account %s finished %s: fetched=%d persisted=%d failed=%d",
			result.BatchID, result.AccountConfigID, result.Status, result.TotalFetched, result.TotalPersisted, result.TotalFailed)
	}
}
