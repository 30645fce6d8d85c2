package services

import (
	"context"
	"strings"

	"github.com/postul/feedback-pipeline/internal/models"
	"github.com/postul/feedback-pipeline/internal/pipeline"
	"gorm.io/gorm"
)

// LabelService receives completed work from the expert labeling queue:
// scalar labels for single events and pairwise choices from comparison
// batches. Each arrival triggers a reward recomputation for the affected
// events.
type LabelService struct {
	db     *gorm.DB
	events *EventService
	queue  TaskQueue
}

func NewLabelService(db *gorm.DB, queue TaskQueue) *LabelService {
	return &LabelService{
		db:     db,
		events: NewEventService(db),
		queue:  queue,
	}
}

// LabelInput is the labeling-queue response for one event.
type LabelInput struct {
	EventID           string  `json:"event_id" binding:"required"`
	LabelerID         string  `json:"labeler_id" binding:"required"`
	LabelScore        float64 `json:"label_score"`
	Comment           string  `json:"comment"`
	PreferenceBatchID string  `json:"preference_batch_id"`
}

// Attach validates and stores a human label, then schedules recomputation.
func (s *LabelService) Attach(ctx context.Context, in *LabelInput) (*models.HumanLabel, error) {
	if in.LabelScore < 0 || in.LabelScore > 1 {
		return nil, pipeline.E(pipeline.KindOutOfRange, "label_score", "outside [0,1]")
	}
	if strings.TrimSpace(in.EventID) == "" {
		return nil, pipeline.E(pipeline.KindSchemaViolation, "event_id", "required")
	}

	if _, err := s.events.GetByEventID(ctx, in.EventID); err != nil {
		return nil, err
	}

	label := &models.HumanLabel{
		EventID:           in.EventID,
		LabelerID:         in.LabelerID,
		LabelScore:        in.LabelScore,
		Comment:           in.Comment,
		PreferenceBatchID: in.PreferenceBatchID,
	}
	if err := s.db.WithContext(ctx).Create(label).Error; err != nil {
		return nil, pipeline.WrapStore(in.EventID, err)
	}

	LogInfo("Label", "Attached", "human label recorded", in.EventID, map[string]interface{}{
		"labeler_id": in.LabelerID,
		"score":      in.LabelScore,
	})

	if err := s.queue.EnqueueRecompute(&RecomputeTask{EventID: in.EventID}); err != nil {
		LogError("Label", "EnqueueRecompute", err.Error(), in.EventID, nil)
	}

	return label, nil
}

// PreferenceInput is a pairwise choice from a comparison batch.
type PreferenceInput struct {
	BatchID         string `json:"batch_id" binding:"required"`
	LabelerID       string `json:"labeler_id"`
	ChosenEventID   string `json:"chosen_event_id" binding:"required"`
	RejectedEventID string `json:"rejected_event_id" binding:"required"`
	Strength        int    `json:"strength"` // 0 binary, 1-5 graded
}

// RecordPreference stores a pairwise choice after checking both events exist
// and the choice is not a self-pairing. Pair materialization happens in the
// recompute pass; both sides get their rewards refreshed.
func (s *LabelService) RecordPreference(ctx context.Context, in *PreferenceInput) (*models.PreferenceLabel, error) {
	if in.ChosenEventID == in.RejectedEventID {
		return nil, pipeline.EventErr(pipeline.KindInvalidPair, in.ChosenEventID, "self-pairing rejected")
	}
	if in.Strength < 0 || in.Strength > 5 {
		return nil, pipeline.E(pipeline.KindOutOfRange, "strength", "outside [0,5]")
	}

	events, err := s.events.GetByEventIDs(ctx, []string{in.ChosenEventID, in.RejectedEventID})
	if err != nil {
		return nil, err
	}
	if len(events) != 2 {
		return nil, pipeline.EventErr(pipeline.KindInvalidPair, in.ChosenEventID, "both events must be persisted")
	}
	if events[0].ContextHash != events[1].ContextHash {
		return nil, pipeline.EventErr(pipeline.KindInvalidPair, in.ChosenEventID, "events do not share a context")
	}

	label := &models.PreferenceLabel{
		BatchID:         in.BatchID,
		LabelerID:       in.LabelerID,
		ChosenEventID:   in.ChosenEventID,
		RejectedEventID: in.RejectedEventID,
		Strength:        in.Strength,
	}
	if err := s.db.WithContext(ctx).Create(label).Error; err != nil {
		return nil, pipeline.WrapStore(in.ChosenEventID, err)
	}

	LogInfo("Label", "PreferenceRecorded", "pairwise choice recorded", in.ChosenEventID, map[string]interface{}{
		"batch_id": in.BatchID,
		"loser":    in.RejectedEventID,
	})

	for _, eventID := range []string{in.ChosenEventID, in.RejectedEventID} {
		if err := s.queue.EnqueueRecompute(&RecomputeTask{EventID: eventID}); err != nil {
			LogError("Label", "EnqueueRecompute", err.Error(), eventID, nil)
		}
	}

	return label, nil
}

// ListForEvent returns all human labels for an event in arrival order.
func (s *LabelService) ListForEvent(ctx context.Context, eventID string) ([]models.HumanLabel, error) {
	var labels []models.HumanLabel
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC, id ASC").
		Find(&labels).Error
	if err != nil {
		return nil, pipeline.WrapStore(eventID, err)
	}
	return labels, nil
}
