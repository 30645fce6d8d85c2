package models

import "time"

// HumanLabel is an expert score attached to a feedback event after review.
// Labels accumulate; how disagreeing labels blend into the reward is decided
// by the aggregation conflict policy, not here.
type HumanLabel struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	EventID           string    `gorm:"size:100;index;not null" json:"event_id"`
	LabelerID         string    `gorm:"size:100;not null" json:"labeler_id"`
	LabelScore        float64   `gorm:"not null" json:"label_score"` // [0,1]
	Comment           string    `gorm:"type:text" json:"comment"`
	PreferenceBatchID string    `gorm:"size:100;index" json:"preference_batch_id"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
}

func (HumanLabel) TableName() string { return "human_labels" }

// PreferenceLabel is a raw pairwise-choice input from a labeling batch:
// the labeler saw two outputs for the same context and picked one.
// Strength 0 means a plain binary choice; 1-5 grades how decisive it was.
type PreferenceLabel struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BatchID         string    `gorm:"size:100;index;not null" json:"batch_id"`
	LabelerID       string    `gorm:"size:100" json:"labeler_id"`
	ChosenEventID   string    `gorm:"size:100;index;not null" json:"chosen_event_id"`
	RejectedEventID string    `gorm:"size:100;not null" json:"rejected_event_id"`
	Strength        int       `gorm:"default:0" json:"strength"`
	CreatedAt       time.Time `json:"created_at"`
}

func (PreferenceLabel) TableName() string { return "preference_labels" }
