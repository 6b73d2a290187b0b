package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgohq/mailgate/config"
	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/internal/logger"
)

type stubIngestor struct {
	mu    sync.Mutex
	polls int
}

func (s *stubIngestor) PollMailboxes(ctx context.Context, opts dto.PollOptions) ([]dto.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	return nil, nil
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig(schedule string) *config.Config {
	return &config.Config{
		IngestionConfig: &config.IngestionConfig{
			PollSchedule: schedule,
		},
	}
}

func TestNewCronManager(t *testing.T) {
	cfg := testConfig("*/2 * * * *")
	log := getLogger()

	cm := NewCronManager(cfg, log, &stubIngestor{})

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_StartRegistersPollJob(t *testing.T) {
	cm := NewCronManager(testConfig("*/2 * * * *"), getLogger(), &stubIngestor{})

	cm.Start()
	defer cm.Stop()

	require.NotNil(t, cm.cron)
	assert.Contains(t, cm.jobIDs, "mailbox_poll")
	assert.Len(t, cm.cron.Entries(), 1)
}

func TestCronManager_NoScheduleDisablesPolling(t *testing.T) {
	cm := NewCronManager(testConfig(""), getLogger(), &stubIngestor{})

	cm.Start()
	defer cm.Stop()

	assert.Empty(t, cm.jobIDs)
}

func TestCronManager_Stop(t *testing.T) {
	cm := NewCronManager(testConfig("*/2 * * * *"), getLogger(), &stubIngestor{})
	cm.Start()

	cm.Stop()

	select {
	case <-cm.stopCh:
	case <-time.After(time.Second):
		t.Error("stop channel was not closed")
	}
}
