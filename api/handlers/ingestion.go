package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/interfaces"
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/tracing"
)

type IngestionHandler struct {
	log      logger.Logger
	ingestor interfaces.EmailIngestor
}

func NewIngestionHandler(log logger.Logger, ingestor interfaces.EmailIngestor) *IngestionHandler {
	return &IngestionHandler{
		log:      log,
		ingestor: ingestor,
	}
}

type triggerPollRequest struct {
	OrganizationID  string `json:"organizationId"`
	AccountConfigID string `json:"accountConfigId"`
	MaxMessages     int    `json:"maxMessages"`
}

// TriggerPoll runs one ingestion cycle on demand, outside the cron
// schedule. The request body optionally narrows the run to one
// organization or one account config.
func (h *IngestionHandler) TriggerPoll() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "IngestionHandler.TriggerPoll")
		defer span.Finish()

		var req triggerPollRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				tracing.TraceErr(span, err)
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}

		results, err := h.ingestor.PollMailboxes(ctx, dto.PollOptions{
			OrganizationID:  req.OrganizationID,
			AccountConfigID: req.AccountConfigID,
			MaxMessages:     req.MaxMessages,
		})
		if err != nil {
			tracing.TraceErr(span, err)
			h.log.Errorf("manual poll failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "poll failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"batches": results,
		})
	}
}
