package services

import (
	"context"

	"github.com/postul/feedback-pipeline/internal/models"
	"github.com/postul/feedback-pipeline/internal/pipeline"
	"gorm.io/gorm"
)

// StatsService produces the pipeline dashboard counters.
type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

type PipelineStats struct {
	TotalEvents     int64   `json:"total_events"`
	SampledEvents   int64   `json:"sampled_events"`
	LabeledEvents   int64   `json:"labeled_events"`
	PolicyFlagged   int64   `json:"policy_flagged"`
	HumanLabels     int64   `json:"human_labels"`
	PreferencePairs int64   `json:"preference_pairs"`
	RewardRecords   int64   `json:"reward_records"`
	AverageReward   float64 `json:"average_reward"`
	AvgConfidence   float64 `json:"avg_confidence"`
}

type SourceModelStats struct {
	SourceModel string  `json:"source_model"`
	EventCount  int64   `json:"event_count"`
	AvgRating   float64 `json:"avg_rating"`
	AvgReward   float64 `json:"avg_reward"`
}

type StatsResponse struct {
	Stats       PipelineStats      `json:"stats"`
	ModelStats  []SourceModelStats `json:"model_stats"`
	OutputTypes []OutputTypeStats  `json:"output_types"`
}

type OutputTypeStats struct {
	OutputType string `json:"output_type"`
	EventCount int64  `json:"event_count"`
}

// Collect gathers the headline pipeline counters.
func (s *StatsService) Collect(ctx context.Context) (*PipelineStats, error) {
	db := s.db.WithContext(ctx)
	var stats PipelineStats

	if err := db.Model(&models.FeedbackEvent{}).Count(&stats.TotalEvents).Error; err != nil {
		return nil, pipeline.WrapStore("", err)
	}
	db.Model(&models.FeedbackEvent{}).Where("sampled = ?", true).Count(&stats.SampledEvents)
	db.Model(&models.FeedbackEvent{}).
		Where("EXISTS (SELECT 1 FROM human_labels WHERE human_labels.event_id = feedback_events.event_id)").
		Count(&stats.LabeledEvents)
	db.Model(&models.FeedbackEvent{}).
		Where("policy_violations <> ''").
		Count(&stats.PolicyFlagged)
	db.Model(&models.HumanLabel{}).Count(&stats.HumanLabels)
	db.Model(&models.PreferencePair{}).Count(&stats.PreferencePairs)
	db.Model(&models.RewardRecord{}).Count(&stats.RewardRecords)

	if stats.RewardRecords > 0 {
		var avg struct {
			Reward     float64
			Confidence float64
		}
		db.Model(&models.RewardRecord{}).
			Select("AVG(scalar_reward) as reward, AVG(confidence) as confidence").
			Scan(&avg)
		stats.AverageReward = avg.Reward
		stats.AvgConfidence = avg.Confidence
	}

	return &stats, nil
}

// Full returns the dashboard payload with per-model and per-type breakdowns.
func (s *StatsService) Full(ctx context.Context) (*StatsResponse, error) {
	stats, err := s.Collect(ctx)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var modelStats []SourceModelStats
	db.Model(&models.FeedbackEvent{}).
		Select("feedback_events.source_model, COUNT(*) as event_count, AVG(feedback_events.rating) as avg_rating, AVG(reward_records.scalar_reward) as avg_reward").
		Joins("LEFT JOIN reward_records ON reward_records.event_id = feedback_events.event_id").
		Group("feedback_events.source_model").
		Order("event_count DESC").
		Scan(&modelStats)

	var typeStats []OutputTypeStats
	db.Model(&models.FeedbackEvent{}).
		Select("output_type, COUNT(*) as event_count").
		Group("output_type").
		Order("event_count DESC").
		Scan(&typeStats)

	return &StatsResponse{
		Stats:       *stats,
		ModelStats:  modelStats,
		OutputTypes: typeStats,
	}, nil
}
