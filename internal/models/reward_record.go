package models

import "time"

// RewardRecord is the aggregated scalar reward for one feedback event.
// Recomputation supersedes the prior row for the same event. ComputedAt is
// derived from the latest contributing label, not wall clock, so recomputing
// with an unchanged label set yields an identical record.
type RewardRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EventID      string    `gorm:"uniqueIndex;size:100;not null" json:"event_id"`
	ScalarReward float64   `gorm:"not null" json:"scalar_reward"` // [0,1]
	Confidence   float64   `gorm:"not null" json:"confidence"`    // [0,1]
	LabelCount   int       `gorm:"not null" json:"label_count"`   // base rating + human labels
	SourceLabels string    `gorm:"size:1000" json:"source_labels"` // JSON provenance summary
	ComputedAt   time.Time `json:"computed_at"`
}

func (RewardRecord) TableName() string { return "reward_records" }
