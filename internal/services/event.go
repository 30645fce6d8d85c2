package services

import (
	"context"
	"errors"

	"github.com/postul/feedback-pipeline/internal/models"
	"github.com/postul/feedback-pipeline/internal/pipeline"
	"gorm.io/gorm"
)

// EventService is the dedup-backed store for feedback events. Insertion is
// keyed exclusively by event_id through a unique constraint, so exactly one
// writer wins a race and later duplicates never overwrite the first record.
type EventService struct {
	db *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{db: db}
}

// RecordIfNew inserts the event unless one with the same event_id already
// exists. Returns inserted=false for duplicates; the stored record is left
// untouched regardless of the new payload.
func (s *EventService) RecordIfNew(ctx context.Context, event *models.FeedbackEvent) (bool, error) {
	err := s.db.WithContext(ctx).Create(event).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	return false, pipeline.WrapStore(event.EventID, err)
}

// GetByEventID loads one event by its external id.
func (s *EventService) GetByEventID(ctx context.Context, eventID string) (*models.FeedbackEvent, error) {
	var event models.FeedbackEvent
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, pipeline.WrapStore(eventID, err)
	}
	return &event, nil
}

// GetByEventIDs loads a set of events keyed by external id.
func (s *EventService) GetByEventIDs(ctx context.Context, eventIDs []string) ([]models.FeedbackEvent, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var events []models.FeedbackEvent
	err := s.db.WithContext(ctx).Where("event_id IN ?", eventIDs).Find(&events).Error
	if err != nil {
		return nil, pipeline.WrapStore("", err)
	}
	return events, nil
}

type UnlabeledListRequest struct {
	SampleOnly bool
	Page       int
	PageSize   int
}

// ListUnlabeled returns events that have no human label yet, newest first.
// With SampleOnly it restricts to events selected for expert review, which
// is what the labeling queue consumes.
func (s *EventService) ListUnlabeled(ctx context.Context, req *UnlabeledListRequest) ([]models.FeedbackEvent, int64, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := s.db.WithContext(ctx).Model(&models.FeedbackEvent{}).
		Where("NOT EXISTS (SELECT 1 FROM human_labels WHERE human_labels.event_id = feedback_events.event_id)")
	if req.SampleOnly {
		query = query.Where("sampled = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, pipeline.WrapStore("", err)
	}

	var events []models.FeedbackEvent
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&events).Error
	if err != nil {
		return nil, 0, pipeline.WrapStore("", err)
	}
	return events, total, nil
}

// ListByContextHash returns all events sharing a context, for pair building.
func (s *EventService) ListByContextHash(ctx context.Context, contextHash string) ([]models.FeedbackEvent, error) {
	var events []models.FeedbackEvent
	err := s.db.WithContext(ctx).Where("context_hash = ?", contextHash).Find(&events).Error
	if err != nil {
		return nil, pipeline.WrapStore("", err)
	}
	return events, nil
}
