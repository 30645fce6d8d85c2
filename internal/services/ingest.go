package services

import (
	"context"

	"github.com/postul/feedback-pipeline/internal/config"
	"github.com/postul/feedback-pipeline/internal/models"
	"github.com/postul/feedback-pipeline/internal/pipeline"
	"github.com/postul/feedback-pipeline/pkg/logger"
	"gorm.io/gorm"
)

// Ingestion statuses returned to the client.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
	StatusRejected  = "rejected"
)

// IngestResult is the outcome of one ingestion attempt. Duplicates are
// reported as their own status and treated as success by clients.
type IngestResult struct {
	Status  string `json:"status"`
	EventID string `json:"event_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Sampled bool   `json:"sampled,omitempty"`
}

// IngestService is the pipeline orchestrator for the synchronous path:
// validate, scrub, sample, record. Reward aggregation and pair building run
// in a separate re-triggerable pass because labels arrive asynchronously.
type IngestService struct {
	events   *EventService
	scrubber *pipeline.Scrubber
	sampler  *pipeline.Sampler
	queue    TaskQueue
}

func NewIngestService(db *gorm.DB, cfg *config.Config, queue TaskQueue) *IngestService {
	return &IngestService{
		events:   NewEventService(db),
		scrubber: pipeline.NewScrubber(&cfg.Scrubber),
		sampler:  pipeline.NewSampler(&cfg.Sampling),
		queue:    queue,
	}
}

// Ingest processes one submission end to end. Validation failures are
// terminal for this event only and never affect other submissions. Store
// failures surface as retryable; the client resubmits with the same id and
// dedup makes that safe.
func (s *IngestService) Ingest(ctx context.Context, sub *pipeline.EventSubmission) (*IngestResult, error) {
	event, err := pipeline.Validate(sub)
	if err != nil {
		s.logRejection(sub, err)
		return &IngestResult{
			Status: StatusRejected,
			Reason: pipeline.KindOf(err).String(),
		}, err
	}

	s.scrubber.Scrub(event)
	event.Sampled = s.sampler.Select(event)

	inserted, err := s.events.RecordIfNew(ctx, event)
	if err != nil {
		LogError("Ingest", "StoreFailure", err.Error(), event.EventID, nil)
		return &IngestResult{
			Status:  StatusRejected,
			EventID: event.EventID,
			Reason:  pipeline.KindTransientStore.String(),
		}, err
	}

	if !inserted {
		logger.Debug().Str("event_id", event.EventID).Msg("duplicate submission ignored")
		return &IngestResult{
			Status:  StatusDuplicate,
			EventID: event.EventID,
			Reason:  pipeline.KindDuplicateIgnored.String(),
		}, nil
	}

	if event.PolicyFlagged() {
		LogWarning("Ingest", "PolicyFlagged",
			"event retained but excluded from training exports", event.EventID,
			map[string]interface{}{"codes": event.PolicyViolationCodes()})
	}

	s.dispatch(event)

	return &IngestResult{
		Status:  StatusAccepted,
		EventID: event.EventID,
		Sampled: event.Sampled,
	}, nil
}

// dispatch hands the freshly inserted event to the async side: the labeling
// queue when sampled, and an initial reward computation either way. Enqueue
// failures are logged, not returned; the event is already durable and the
// periodic sweep will catch up.
func (s *IngestService) dispatch(event *models.FeedbackEvent) {
	if event.Sampled {
		task := &LabelRequestTask{
			EventID:        event.EventID,
			ProductIdea:    event.ProductIdea,
			TargetAudience: event.TargetAudience,
			Goal:           event.Goal,
			OutputType:     event.OutputType,
			OutputContent:  event.OutputContent,
			SourceModel:    event.SourceModel,
		}
		if err := s.queue.EnqueueLabelRequest(task); err != nil {
			logger.Errorf("[Ingest] Failed to enqueue label request for %s: %v", event.EventID, err)
			LogError("Ingest", "EnqueueLabelRequest", err.Error(), event.EventID, nil)
		}
	}

	if err := s.queue.EnqueueRecompute(&RecomputeTask{EventID: event.EventID}); err != nil {
		logger.Errorf("[Ingest] Failed to enqueue recompute for %s: %v", event.EventID, err)
		LogError("Ingest", "EnqueueRecompute", err.Error(), event.EventID, nil)
	}
}

func (s *IngestService) logRejection(sub *pipeline.EventSubmission, err error) {
	eventID := ""
	if sub != nil {
		eventID = sub.ID
	}
	LogWarning("Ingest", "Rejected", err.Error(), eventID, map[string]interface{}{
		"kind": pipeline.KindOf(err).String(),
	})
}
