package services

import (
	"context"
	"errors"

	"github.com/postul/feedback-pipeline/internal/config"
	"github.com/postul/feedback-pipeline/internal/models"
	"github.com/postul/feedback-pipeline/internal/pipeline"
	"github.com/postul/feedback-pipeline/pkg/logger"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const sweepPageSize = 500

// RewardService runs the asynchronous aggregation side of the pipeline:
// materializing preference pairs from pairwise labels and recomputing reward
// records. Every operation here is idempotent and safe to re-run
// concurrently with ingestion; a recomputation pass reads the labels as they
// are and the next pass corrects anything stale.
type RewardService struct {
	db         *gorm.DB
	events     *EventService
	labels     *LabelService
	aggregator *pipeline.Aggregator
	log        zerolog.Logger
}

func NewRewardService(db *gorm.DB, cfg *config.Config, queue TaskQueue) *RewardService {
	return &RewardService{
		db:         db,
		events:     NewEventService(db),
		labels:     NewLabelService(db, queue),
		aggregator: pipeline.NewAggregator(&cfg.Aggregation),
		log:        logger.With("reward"),
	}
}

// GetReward returns the current reward record for an event.
func (s *RewardService) GetReward(ctx context.Context, eventID string) (*models.RewardRecord, error) {
	var record models.RewardRecord
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, pipeline.WrapStore(eventID, err)
	}
	return &record, nil
}

// RecomputeEvent refreshes pairs for the event's context and recomputes its
// reward record. Called from the worker whenever a new label arrives.
func (s *RewardService) RecomputeEvent(ctx context.Context, task *RecomputeTask) error {
	event, err := s.events.GetByEventID(ctx, task.EventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Nothing to recompute and retrying will not change that
			s.log.Warn().Str("event_id", task.EventID).Msg("recompute requested for unknown event")
			return nil
		}
		return err
	}

	if err := s.materializePairsForContext(ctx, event.ContextHash); err != nil {
		// Pair errors are isolated per label; a store failure here is
		// retryable via the task queue
		return err
	}

	return s.recomputeOne(ctx, event)
}

func (s *RewardService) recomputeOne(ctx context.Context, event *models.FeedbackEvent) error {
	labels, err := s.labels.ListForEvent(ctx, event.EventID)
	if err != nil {
		return err
	}

	stats, err := s.pairStats(ctx, event.EventID)
	if err != nil {
		return err
	}

	record, err := s.aggregator.Aggregate(event, labels, stats)
	if err != nil {
		// MissingBaseSignal: fatal for this event, excluded from
		// aggregation, logged for replay, never retried automatically
		LogError("Reward", "AggregationFailed", err.Error(), event.EventID, map[string]interface{}{
			"stage": "aggregate",
		})
		return nil
	}

	return s.upsertRewards(ctx, []models.RewardRecord{*record})
}

// Sweep recomputes every event's reward and materializes all outstanding
// preference pairs. Triggered periodically and by the manual recompute
// endpoint. Per-item failures are logged and skipped; the pass always covers
// the rest. Cancellation is checked between pages.
func (s *RewardService) Sweep(ctx context.Context) error {
	if err := s.materializeAllPairs(ctx); err != nil {
		s.log.Error().Err(err).Msg("pair materialization failed")
	}

	var lastID uint
	processed := 0
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Int("processed", processed).Msg("sweep cancelled")
			return ctx.Err()
		default:
		}

		var events []models.FeedbackEvent
		err := s.db.WithContext(ctx).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(sweepPageSize).
			Find(&events).Error
		if err != nil {
			return pipeline.WrapStore("", err)
		}
		if len(events) == 0 {
			break
		}

		records := make([]models.RewardRecord, 0, len(events))
		for i := range events {
			event := &events[i]
			labels, lErr := s.labels.ListForEvent(ctx, event.EventID)
			if lErr != nil {
				LogError("Reward", "SweepLoadLabels", lErr.Error(), event.EventID, nil)
				continue
			}
			stats, pErr := s.pairStats(ctx, event.EventID)
			if pErr != nil {
				LogError("Reward", "SweepLoadPairs", pErr.Error(), event.EventID, nil)
				continue
			}
			record, aErr := s.aggregator.Aggregate(event, labels, stats)
			if aErr != nil {
				LogError("Reward", "AggregationFailed", aErr.Error(), event.EventID, map[string]interface{}{
					"stage": "sweep",
				})
				continue
			}
			records = append(records, *record)
		}

		if err := s.upsertRewards(ctx, records); err != nil {
			return err
		}

		processed += len(events)
		lastID = events[len(events)-1].ID
	}

	s.log.Info().Int("processed", processed).Msg("sweep completed")
	return nil
}

// upsertRewards supersedes prior records in place, keyed by event_id.
func (s *RewardService) upsertRewards(ctx context.Context, records []models.RewardRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"scalar_reward", "confidence", "label_count", "source_labels", "computed_at",
		}),
	}).Create(&records).Error
	if err != nil {
		return pipeline.WrapStore("", err)
	}
	return nil
}

// pairStats counts preference-pair wins and losses for one event.
func (s *RewardService) pairStats(ctx context.Context, eventID string) (pipeline.PairStats, error) {
	var stats pipeline.PairStats

	var wins int64
	if err := s.db.WithContext(ctx).Model(&models.PreferencePair{}).
		Where("winner_event_id = ?", eventID).Count(&wins).Error; err != nil {
		return stats, pipeline.WrapStore(eventID, err)
	}
	var losses int64
	if err := s.db.WithContext(ctx).Model(&models.PreferencePair{}).
		Where("loser_event_id = ?", eventID).Count(&losses).Error; err != nil {
		return stats, pipeline.WrapStore(eventID, err)
	}

	stats.Wins = int(wins)
	stats.Losses = int(losses)
	return stats, nil
}

// materializePairsForContext builds pairs for every pairwise label touching
// events in one context group.
func (s *RewardService) materializePairsForContext(ctx context.Context, contextHash string) error {
	events, err := s.events.ListByContextHash(ctx, contextHash)
	if err != nil {
		return err
	}
	if len(events) < 2 {
		return nil
	}

	ids := make([]string, len(events))
	for i := range events {
		ids[i] = events[i].EventID
	}

	var labels []models.PreferenceLabel
	err = s.db.WithContext(ctx).
		Where("chosen_event_id IN ? OR rejected_event_id IN ?", ids, ids).
		Find(&labels).Error
	if err != nil {
		return pipeline.WrapStore("", err)
	}

	return s.insertPairs(ctx, events, labels)
}

// materializeAllPairs rebuilds the pair set from every stored pairwise
// label, one page at a time so the pass stays bounded on a large label
// corpus. Duplicates are no-ops thanks to the composite unique index.
func (s *RewardService) materializeAllPairs(ctx context.Context) error {
	var lastID uint
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var labels []models.PreferenceLabel
		err := s.db.WithContext(ctx).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(sweepPageSize).
			Find(&labels).Error
		if err != nil {
			return pipeline.WrapStore("", err)
		}
		if len(labels) == 0 {
			return nil
		}

		idSet := make(map[string]bool)
		for _, l := range labels {
			idSet[l.ChosenEventID] = true
			idSet[l.RejectedEventID] = true
		}
		ids := make([]string, 0, len(idSet))
		for id := range idSet {
			ids = append(ids, id)
		}

		events, err := s.events.GetByEventIDs(ctx, ids)
		if err != nil {
			return err
		}
		if err := s.insertPairs(ctx, events, labels); err != nil {
			return err
		}

		lastID = labels[len(labels)-1].ID
	}
}

func (s *RewardService) insertPairs(ctx context.Context, events []models.FeedbackEvent, labels []models.PreferenceLabel) error {
	pairs, buildErr := pipeline.BuildPairs(events, labels)
	if buildErr != nil {
		// Per-label rejections: surfaced in the log, the valid pairs proceed
		LogWarning("Reward", "PairRejected", buildErr.Error(), "", nil)
	}
	if len(pairs) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "winner_event_id"}, {Name: "loser_event_id"}, {Name: "batch_id"}},
		DoNothing: true,
	}).Create(&pairs).Error
	if err != nil {
		return pipeline.WrapStore("", err)
	}
	return nil
}
