package models

import "time"

// PreferencePair is a ranked comparison between two outputs for the same
// context, built from preference labels. Immutable once created; the
// composite unique index makes re-running the builder a no-op.
type PreferencePair struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ContextHash      string    `gorm:"size:64;index;not null" json:"context_hash"`
	WinnerEventID    string    `gorm:"size:100;not null;uniqueIndex:idx_pair_identity" json:"winner_event_id"`
	LoserEventID     string    `gorm:"size:100;not null;uniqueIndex:idx_pair_identity" json:"loser_event_id"`
	BatchID          string    `gorm:"size:100;not null;uniqueIndex:idx_pair_identity" json:"batch_id"`
	MarginConfidence float64   `gorm:"not null" json:"margin_confidence"` // [0,1]
	CreatedAt        time.Time `json:"created_at"`
}

func (PreferencePair) TableName() string { return "preference_pairs" }
