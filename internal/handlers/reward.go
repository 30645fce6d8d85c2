package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/postul/feedback-pipeline/internal/services"
	"github.com/postul/feedback-pipeline/pkg/logger"
	"github.com/postul/feedback-pipeline/pkg/response"
	"gorm.io/gorm"
)

// RewardHandler serves reward lookups and the manual recompute trigger.
type RewardHandler struct {
	reward *services.RewardService
}

func NewRewardHandler(reward *services.RewardService) *RewardHandler {
	return &RewardHandler{reward: reward}
}

// Get handles GET /api/rewards/:eventId.
func (h *RewardHandler) Get(c *gin.Context) {
	eventID := c.Param("eventId")

	record, err := h.reward.GetReward(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "no reward computed for event")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, record)
}

// Recompute handles POST /api/rewards/recompute: kicks off a full sweep in
// the background and returns immediately.
func (h *RewardHandler) Recompute(c *gin.Context) {
	go func() {
		if err := h.reward.Sweep(context.Background()); err != nil {
			logger.Errorf("[Reward] Manual sweep failed: %v", err)
		}
	}()

	response.Success(c, gin.H{"triggered": true})
}
