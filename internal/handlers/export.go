package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/postul/feedback-pipeline/internal/models"
	"github.com/postul/feedback-pipeline/internal/services"
	"github.com/postul/feedback-pipeline/pkg/logger"
	"github.com/postul/feedback-pipeline/pkg/response"
)

// ExportHandler streams training data as newline-delimited JSON so large
// corpora never materialize in memory or in the response buffer.
type ExportHandler struct {
	export *services.ExportService
}

func NewExportHandler(export *services.ExportService) *ExportHandler {
	return &ExportHandler{export: export}
}

// TrainingSet handles GET /api/trainingset?min_confidence=X.
func (h *ExportHandler) TrainingSet(c *gin.Context) {
	minConfidence := 0.0
	if raw := c.Query("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			response.BadRequest(c, "min_confidence must be a number in [0,1]")
			return
		}
		minConfidence = v
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	flusher, _ := c.Writer.(http.Flusher)
	count := 0

	err := h.export.StreamTrainingSet(c.Request.Context(), minConfidence, func(ex *services.TrainingExample) error {
		if err := enc.Encode(ex); err != nil {
			return err
		}
		count++
		if flusher != nil && count%100 == 0 {
			flusher.Flush()
		}
		return nil
	})
	if err != nil && !errors.Is(err, c.Request.Context().Err()) {
		// Headers are gone; all we can do is log and cut the stream
		logger.Errorf("[Export] Training set stream aborted after %d records: %v", count, err)
		return
	}

	if flusher != nil {
		flusher.Flush()
	}
}

// Pairs handles GET /api/trainingset/pairs.
func (h *ExportHandler) Pairs(c *gin.Context) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	flusher, _ := c.Writer.(http.Flusher)
	count := 0

	err := h.export.StreamPairs(c.Request.Context(), func(pair *models.PreferencePair) error {
		if err := enc.Encode(pair); err != nil {
			return err
		}
		count++
		if flusher != nil && count%100 == 0 {
			flusher.Flush()
		}
		return nil
	})
	if err != nil && !errors.Is(err, c.Request.Context().Err()) {
		logger.Errorf("[Export] Pair stream aborted after %d records: %v", count, err)
		return
	}

	if flusher != nil {
		flusher.Flush()
	}
}
