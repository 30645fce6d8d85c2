package services

import (
	"context"

	"github.com/postul/feedback-pipeline/internal/config"
	"github.com/postul/feedback-pipeline/internal/models"
	"github.com/postul/feedback-pipeline/internal/pipeline"
	"gorm.io/gorm"
)

// TrainingExample is one exported (context, output, reward) record. Text
// fields pass through PII redaction on the way out; the primary store keeps
// the originals.
type TrainingExample struct {
	EventID        string   `json:"event_id"`
	ProductIdea    string   `json:"product_idea"`
	TargetAudience string   `json:"target_audience"`
	Goal           string   `json:"goal"`
	PreviousTests  []string `json:"previous_tests,omitempty"`
	OutputType     string   `json:"output_type"`
	OutputContent  string   `json:"output_content"`
	SourceModel    string   `json:"source_model"`
	ScalarReward   float64  `json:"scalar_reward"`
	Confidence     float64  `json:"confidence"`
}

// ExportService streams training data out of the store page by page, so a
// large corpus is never materialized in memory at once. Policy-flagged
// events are excluded by default; they sit in the expert queue instead.
type ExportService struct {
	db       *gorm.DB
	scrubber *pipeline.Scrubber
	pageSize int
}

func NewExportService(db *gorm.DB, cfg *config.Config) *ExportService {
	pageSize := cfg.Export.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	return &ExportService{
		db:       db,
		scrubber: pipeline.NewScrubber(&cfg.Scrubber),
		pageSize: pageSize,
	}
}

// StreamTrainingSet invokes fn for every exportable reward record with
// confidence >= minConfidence. Cancellation is checked between pages.
func (s *ExportService) StreamTrainingSet(ctx context.Context, minConfidence float64, fn func(*TrainingExample) error) error {
	var lastID uint
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var records []models.RewardRecord
		err := s.db.WithContext(ctx).
			Where("id > ? AND confidence >= ?", lastID, minConfidence).
			Order("id ASC").
			Limit(s.pageSize).
			Find(&records).Error
		if err != nil {
			return pipeline.WrapStore("", err)
		}
		if len(records) == 0 {
			return nil
		}

		ids := make([]string, len(records))
		for i := range records {
			ids[i] = records[i].EventID
		}

		var events []models.FeedbackEvent
		err = s.db.WithContext(ctx).Where("event_id IN ?", ids).Find(&events).Error
		if err != nil {
			return pipeline.WrapStore("", err)
		}
		byID := make(map[string]*models.FeedbackEvent, len(events))
		for i := range events {
			byID[events[i].EventID] = &events[i]
		}

		for i := range records {
			record := &records[i]
			event, ok := byID[record.EventID]
			if !ok || event.PolicyFlagged() {
				continue
			}
			if err := fn(s.example(event, record)); err != nil {
				return err
			}
		}

		lastID = records[len(records)-1].ID
	}
}

// StreamPairs invokes fn for every stored preference pair.
func (s *ExportService) StreamPairs(ctx context.Context, fn func(*models.PreferencePair) error) error {
	var lastID uint
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var pairs []models.PreferencePair
		err := s.db.WithContext(ctx).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(s.pageSize).
			Find(&pairs).Error
		if err != nil {
			return pipeline.WrapStore("", err)
		}
		if len(pairs) == 0 {
			return nil
		}

		for i := range pairs {
			if err := fn(&pairs[i]); err != nil {
				return err
			}
		}

		lastID = pairs[len(pairs)-1].ID
	}
}

func (s *ExportService) example(event *models.FeedbackEvent, record *models.RewardRecord) *TrainingExample {
	tests := event.PreviousTestList()
	for i, t := range tests {
		tests[i] = s.scrubber.Redact(t)
	}
	return &TrainingExample{
		EventID:        event.EventID,
		ProductIdea:    s.scrubber.Redact(event.ProductIdea),
		TargetAudience: s.scrubber.Redact(event.TargetAudience),
		Goal:           s.scrubber.Redact(event.Goal),
		PreviousTests:  tests,
		OutputType:     event.OutputType,
		OutputContent:  s.scrubber.Redact(event.OutputContent),
		SourceModel:    event.SourceModel,
		ScalarReward:   record.ScalarReward,
		Confidence:     record.Confidence,
	}
}
