package models

import (
	"encoding/json"
	"time"
)

// FeedbackEvent represents one user's structured rating of one generated
// output. Rows are append-only: a second submission with the same EventID is
// ignored, and nothing mutates an event after insert except label attachment
// (stored separately in HumanLabel).
type FeedbackEvent struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	EventID string `gorm:"uniqueIndex;size:100;not null" json:"event_id"` // dedup key
	UserID  string `gorm:"size:100;index;not null" json:"user_id"`        // anonymized author

	OccurredAt time.Time `gorm:"index" json:"occurred_at"`
	AppVersion string    `gorm:"size:50" json:"app_version"`

	// Context: the training input side. Hash is order-independent over the
	// four fields so equivalent contexts group together.
	ProductIdea    string `gorm:"type:text" json:"product_idea"`
	TargetAudience string `gorm:"size:500" json:"target_audience"`
	Goal           string `gorm:"size:500" json:"goal"`
	PreviousTests  string `gorm:"type:text" json:"previous_tests"` // JSON string array
	ContextHash    string `gorm:"size:64;index" json:"context_hash"`

	// Output: the generated artifact being rated.
	OutputType    string `gorm:"size:50;index" json:"output_type"` // validation_plan, survey, interview_script, ...
	OutputContent string `gorm:"type:text" json:"output_content"`
	TokenCount    int    `json:"token_count"`
	SourceModel   string `gorm:"size:100;index" json:"source_model"`

	// Feedback signals. Rating is the only mandatory one; the rest are
	// nullable so "unset" stays distinct from a low score.
	Rating      int    `gorm:"not null" json:"rating"` // 1-5
	Usefulness  *int   `json:"usefulness"`
	Clarity     *int   `json:"clarity"`
	BiasCheck   *bool  `json:"bias_check"`
	WouldFollow *int   `json:"would_follow"`
	FreeText    string `gorm:"type:text" json:"free_text"` // truncated to 2000 runes at validation

	// System annotations, computed by the scrubber. Client-supplied values
	// are advisory only and re-verified server-side.
	ContainsPersonalData     bool   `gorm:"default:false" json:"contains_personal_data"`
	ContainsRecruitmentSteps bool   `gorm:"default:false" json:"contains_recruitment_steps"`
	PolicyViolations         string `gorm:"size:500" json:"policy_violations"` // JSON array of codes

	// PreferenceBatchID marks events submitted as part of a pairwise
	// comparison task; those always go to expert review.
	PreferenceBatchID string `gorm:"size:100;index" json:"preference_batch_id"`

	// Sampled records the labeling-selection decision, fixed at ingest time.
	Sampled   bool      `gorm:"default:false;index" json:"sampled"`
	CreatedAt time.Time `json:"created_at"`
}

func (FeedbackEvent) TableName() string { return "feedback_events" }

// PolicyViolationCodes decodes the stored JSON code list.
func (e *FeedbackEvent) PolicyViolationCodes() []string {
	if e.PolicyViolations == "" {
		return nil
	}
	var codes []string
	if err := json.Unmarshal([]byte(e.PolicyViolations), &codes); err != nil {
		return nil
	}
	return codes
}

// PolicyFlagged reports whether the event carries any policy violation.
// Flagged events stay in the store but are excluded from training exports.
func (e *FeedbackEvent) PolicyFlagged() bool {
	return len(e.PolicyViolationCodes()) > 0
}

// PreviousTestList decodes the stored JSON previous_tests array.
func (e *FeedbackEvent) PreviousTestList() []string {
	if e.PreviousTests == "" {
		return nil
	}
	var tests []string
	if err := json.Unmarshal([]byte(e.PreviousTests), &tests); err != nil {
		return nil
	}
	return tests
}
