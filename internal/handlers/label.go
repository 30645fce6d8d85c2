package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/postul/feedback-pipeline/internal/pipeline"
	"github.com/postul/feedback-pipeline/internal/services"
	"github.com/postul/feedback-pipeline/pkg/response"
	"gorm.io/gorm"
)

// LabelHandler receives completed work from the expert labeling queue.
type LabelHandler struct {
	labels *services.LabelService
}

func NewLabelHandler(db *gorm.DB, queue services.TaskQueue) *LabelHandler {
	return &LabelHandler{labels: services.NewLabelService(db, queue)}
}

// Attach handles POST /api/labels.
func (h *LabelHandler) Attach(c *gin.Context) {
	var in services.LabelInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	label, err := h.labels.Attach(c.Request.Context(), &in)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Created(c, label)
}

// RecordPreference handles POST /api/labels/preference.
func (h *LabelHandler) RecordPreference(c *gin.Context) {
	var in services.PreferenceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	label, err := h.labels.RecordPreference(c.Request.Context(), &in)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Created(c, label)
}

func (h *LabelHandler) writeError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	switch pipeline.KindOf(err) {
	case pipeline.KindOutOfRange, pipeline.KindSchemaViolation:
		response.BadRequest(c, err.Error())
	case pipeline.KindInvalidPair:
		// Well-formed request, but the referenced events cannot pair up
		response.Error(c, response.NewUnprocessable(err.Error()))
	case pipeline.KindTransientStore:
		response.Error(c, response.NewUnavailable("store unavailable, retry"))
	default:
		response.ServerError(c, err.Error())
	}
}
