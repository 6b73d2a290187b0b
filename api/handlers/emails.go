package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/interfaces"
	er "github.com/orgohq/mailgate/internal/errors"
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/tracing"
)

type EmailsHandler struct {
	log         logger.Logger
	messageRepo interfaces.EmailMessageRepository
	eventRepo   interfaces.ProcessingEventRepository
	router      interfaces.EmailRouter
}

func NewEmailsHandler(
	log logger.Logger,
	messageRepo interfaces.EmailMessageRepository,
	eventRepo interfaces.ProcessingEventRepository,
	router interfaces.EmailRouter,
) *EmailsHandler {
	return &EmailsHandler{
		log:         log,
		messageRepo: messageRepo,
		eventRepo:   eventRepo,
		router:      router,
	}
}

// Get returns one ingested envelope with its processing event trail.
func (h *EmailsHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "EmailsHandler.Get")
		defer span.Finish()

		id := c.Param("id")
		tracing.TagEntity(span, id)

		envelope, err := h.messageRepo.GetByID(ctx, id)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load email"})
			return
		}
		if envelope == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
			return
		}

		events, err := h.eventRepo.GetByEmailMessageID(ctx, id)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load processing events"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"email":  envelope,
			"events": events,
		})
	}
}

type routeEmailRequest struct {
	DryRun           bool                   `json:"dryRun"`
	ContextOverrides map[string]interface{} `json:"contextOverrides"`
}

// Route re-runs workflow routing for an already ingested envelope. With
// dryRun set the rule engine runs but no task, link or notification side
// effect is applied.
func (h *EmailsHandler) Route() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "EmailsHandler.Route")
		defer span.Finish()

		id := c.Param("id")
		tracing.TagEntity(span, id)

		var req routeEmailRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				tracing.TraceErr(span, err)
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}

		envelope, err := h.messageRepo.GetByID(ctx, id)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load email"})
			return
		}
		if envelope == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
			return
		}

		result, err := h.router.RouteToWorkflow(ctx, envelope, dto.RoutingOptions{
			DryRun:           req.DryRun,
			ContextOverrides: req.ContextOverrides,
		})
		if err != nil {
			tracing.TraceErr(span, err)
			h.log.Errorf("routing email %s failed: %v", id, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "routing failed",
				"code":  er.CodeOf(err),
			})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
