package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/postul/feedback-pipeline/internal/services"
	"github.com/postul/feedback-pipeline/pkg/response"
	"gorm.io/gorm"
)

// StatsHandler serves the pipeline dashboard counters.
type StatsHandler struct {
	stats  *services.StatsService
	syslog *services.SystemLogService
}

func NewStatsHandler(db *gorm.DB) *StatsHandler {
	return &StatsHandler{
		stats:  services.NewStatsService(db),
		syslog: services.NewSystemLogService(db),
	}
}

// Get handles GET /api/stats.
func (h *StatsHandler) Get(c *gin.Context) {
	stats, err := h.stats.Full(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// Logs handles GET /api/system-logs.
func (h *StatsHandler) Logs(c *gin.Context) {
	req := &services.SystemLogListRequest{
		Level:   c.Query("level"),
		Module:  c.Query("module"),
		EventID: c.Query("event_id"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil {
		req.PageSize = pageSize
	}

	logs, total, err := h.syslog.List(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"total": total,
		"items": logs,
	})
}
