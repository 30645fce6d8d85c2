package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/postul/feedback-pipeline/internal/services"
	"github.com/postul/feedback-pipeline/pkg/response"
	"gorm.io/gorm"
)

// EventHandler serves event lookups and the labeling-queue pull interface.
type EventHandler struct {
	events *services.EventService
}

func NewEventHandler(db *gorm.DB) *EventHandler {
	return &EventHandler{events: services.NewEventService(db)}
}

// Get handles GET /api/events/:eventId.
func (h *EventHandler) Get(c *gin.Context) {
	eventID := c.Param("eventId")

	event, err := h.events.GetByEventID(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, event)
}

// LabelingQueue handles GET /api/labeling/queue: sampled events that still
// have no human label, for the external labeling system to pull.
func (h *EventHandler) LabelingQueue(c *gin.Context) {
	req := &services.UnlabeledListRequest{
		SampleOnly: c.DefaultQuery("sample_only", "true") != "false",
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil {
		req.PageSize = pageSize
	}

	events, total, err := h.events.ListUnlabeled(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"total": total,
		"items": events,
	})
}
