package services

import (
	"encoding/json"
	"time"

	"github.com/postul/feedback-pipeline/internal/models"
	"github.com/postul/feedback-pipeline/pkg/logger"
	"gorm.io/gorm"
)

var globalLogDB *gorm.DB

func InitSystemLogger(db *gorm.DB) {
	globalLogDB = db
}

func LogInfo(module, action, message, eventID string, extra interface{}) {
	writeLog("info", module, action, message, eventID, extra)
}

func LogWarning(module, action, message, eventID string, extra interface{}) {
	writeLog("warning", module, action, message, eventID, extra)
}

func LogError(module, action, message, eventID string, extra interface{}) {
	writeLog("error", module, action, message, eventID, extra)
}

func writeLog(level, module, action, message, eventID string, extra interface{}) {
	if globalLogDB == nil {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		EventID:   eventID,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	globalLogDB.Create(entry)
}

// SystemLogService reads and prunes the pipeline audit log.
type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

type SystemLogListRequest struct {
	Page     int
	PageSize int
	Level    string
	Module   string
	EventID  string
}

func (s *SystemLogService) List(req *SystemLogListRequest) ([]models.SystemLog, int64, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := s.db.Model(&models.SystemLog{})
	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.EventID != "" {
		query = query.Where("event_id = ?", req.EventID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.SystemLog
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error
	return logs, total, err
}

// Cleanup deletes log entries older than retentionDays.
func (s *SystemLogService) Cleanup(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		logger.Infof("[SystemLog] Cleanup removed %d entries older than %d days", result.RowsAffected, retentionDays)
	}
	return result.RowsAffected, result.Error
}
