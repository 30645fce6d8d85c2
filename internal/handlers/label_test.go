package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/postul/feedback-pipeline/internal/pipeline"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestLabelHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown event", gorm.ErrRecordNotFound, http.StatusNotFound},
		{"score out of range", pipeline.EventErr(pipeline.KindOutOfRange, "fb_1", "label_score outside [0,1]"), http.StatusBadRequest},
		{"missing field", pipeline.EventErr(pipeline.KindSchemaViolation, "fb_1", "labeler_id: required"), http.StatusBadRequest},
		{"context mismatch", pipeline.EventErr(pipeline.KindInvalidPair, "fb_1", "context mismatch with fb_2"), http.StatusUnprocessableEntity},
		{"store failure", pipeline.WrapStore("fb_1", errors.New("disk full")), http.StatusServiceUnavailable},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	h := &LabelHandler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			h.writeError(c, tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, expected %d", w.Code, tt.status)
			}
		})
	}
}
