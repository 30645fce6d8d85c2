package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/postul/feedback-pipeline/internal/pipeline"
	"github.com/postul/feedback-pipeline/internal/services"
)

// FeedbackHandler exposes the public ingestion endpoint.
type FeedbackHandler struct {
	ingest *services.IngestService
}

func NewFeedbackHandler(ingest *services.IngestService) *FeedbackHandler {
	return &FeedbackHandler{ingest: ingest}
}

// Submit handles POST /api/feedback. The response body is the ingestion
// contract itself: {status, event_id?, reason?}. Duplicates come back as
// status "duplicate" with 200 so retrying clients treat them as success.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var sub pipeline.EventSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, services.IngestResult{
			Status: services.StatusRejected,
			Reason: pipeline.KindSchemaViolation.String(),
		})
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), &sub)
	if err != nil {
		status := http.StatusBadRequest
		if pipeline.IsRetryable(err) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, result)
		return
	}

	switch result.Status {
	case services.StatusAccepted:
		c.JSON(http.StatusCreated, result)
	default:
		c.JSON(http.StatusOK, result)
	}
}
