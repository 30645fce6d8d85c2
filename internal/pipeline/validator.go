package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/postul/feedback-pipeline/internal/models"
)

// MaxFreeTextRunes is the retained length of feedback free text. Longer text
// is truncated, never rejected.
const MaxFreeTextRunes = 2000

// EventSubmission is the wire shape of one feedback event as submitted by a
// client. Optional fields are pointers so "unset" stays distinct from a zero
// or low value. Validation happens once at this boundary; everything past it
// trusts models.FeedbackEvent.
type EventSubmission struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"userId"`
	Timestamp   json.RawMessage        `json:"timestamp"` // RFC3339 string or epoch seconds
	AppVersion  string                 `json:"appVersion"`
	Context     *SubmissionContext     `json:"context"`
	Output      *SubmissionOutput      `json:"output"`
	SourceModel string                 `json:"sourceModel"`
	Feedback    *SubmissionFeedback    `json:"feedback"`
	Annotations *SubmissionAnnotations `json:"systemAnnotations"` // advisory only, re-verified
	// PreferenceBatchID marks membership in a pairwise comparison task.
	PreferenceBatchID string `json:"preferenceBatchId"`
}

type SubmissionContext struct {
	ProductIdea    string   `json:"productIdea"`
	TargetAudience string   `json:"targetAudience"`
	Goal           string   `json:"goal"`
	PreviousTests  []string `json:"previousTests"`
}

type SubmissionOutput struct {
	Type       string `json:"type"` // open enum: validation_plan, survey, interview_script, ...
	Content    string `json:"content"`
	TokenCount int    `json:"tokenCount"`
}

type SubmissionFeedback struct {
	Rating      *float64 `json:"rating"` // required, 1-5
	Usefulness  *float64 `json:"usefulness"`
	Clarity     *float64 `json:"clarity"`
	BiasCheck   *bool    `json:"biasCheck"`
	WouldFollow *float64 `json:"wouldFollow"`
	FreeText    string   `json:"freeText"`
}

// SubmissionAnnotations are client-reported flags. They are never trusted;
// the scrubber recomputes all of them server-side.
type SubmissionAnnotations struct {
	ContainsPersonalData           bool     `json:"containsPersonalData"`
	ContainsActionableRecruitSteps bool     `json:"containsActionableRecruitmentSteps"`
	PolicyViolations               []string `json:"policyViolations"`
}

// Validate checks an incoming submission and normalizes it into a
// FeedbackEvent. Pure: no store access, no side effects.
func Validate(sub *EventSubmission) (*models.FeedbackEvent, error) {
	if sub == nil {
		return nil, E(KindSchemaViolation, "", "empty submission")
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, E(KindSchemaViolation, "id", "required")
	}
	if strings.TrimSpace(sub.UserID) == "" {
		return nil, E(KindSchemaViolation, "userId", "required")
	}
	if sub.Context == nil {
		return nil, E(KindSchemaViolation, "context", "required")
	}
	if sub.Output == nil {
		return nil, E(KindSchemaViolation, "output", "required")
	}
	if strings.TrimSpace(sub.Output.Type) == "" {
		return nil, E(KindSchemaViolation, "output.type", "required")
	}
	if sub.Output.Content == "" {
		return nil, E(KindSchemaViolation, "output.content", "required")
	}
	if strings.TrimSpace(sub.SourceModel) == "" {
		return nil, E(KindSchemaViolation, "sourceModel", "required")
	}
	if sub.Feedback == nil {
		return nil, E(KindSchemaViolation, "feedback", "required")
	}
	if sub.Feedback.Rating == nil {
		return nil, E(KindSchemaViolation, "feedback.rating", "required")
	}

	occurredAt, err := parseTimestamp(sub.Timestamp)
	if err != nil {
		return nil, err
	}

	rating, err := coerceScale("feedback.rating", sub.Feedback.Rating)
	if err != nil {
		return nil, err
	}
	usefulness, err := coerceOptScale("feedback.usefulness", sub.Feedback.Usefulness)
	if err != nil {
		return nil, err
	}
	clarity, err := coerceOptScale("feedback.clarity", sub.Feedback.Clarity)
	if err != nil {
		return nil, err
	}
	wouldFollow, err := coerceOptScale("feedback.wouldFollow", sub.Feedback.WouldFollow)
	if err != nil {
		return nil, err
	}

	previousTests := ""
	if len(sub.Context.PreviousTests) > 0 {
		b, mErr := json.Marshal(sub.Context.PreviousTests)
		if mErr != nil {
			return nil, E(KindSchemaViolation, "context.previousTests", "not encodable")
		}
		previousTests = string(b)
	}

	event := &models.FeedbackEvent{
		EventID:           strings.TrimSpace(sub.ID),
		UserID:            strings.TrimSpace(sub.UserID),
		OccurredAt:        occurredAt,
		AppVersion:        sub.AppVersion,
		ProductIdea:       sub.Context.ProductIdea,
		TargetAudience:    sub.Context.TargetAudience,
		Goal:              sub.Context.Goal,
		PreviousTests:     previousTests,
		ContextHash:       ContextHash(sub.Context.ProductIdea, sub.Context.TargetAudience, sub.Context.Goal, sub.Context.PreviousTests),
		OutputType:        normalizeOutputType(sub.Output.Type),
		OutputContent:     sub.Output.Content,
		TokenCount:        sub.Output.TokenCount,
		SourceModel:       strings.TrimSpace(sub.SourceModel),
		Rating:            rating,
		Usefulness:        usefulness,
		Clarity:           clarity,
		BiasCheck:         sub.Feedback.BiasCheck,
		WouldFollow:       wouldFollow,
		FreeText:          truncateRunes(sub.Feedback.FreeText, MaxFreeTextRunes),
		PreferenceBatchID: sub.PreferenceBatchID,
	}
	return event, nil
}

// parseTimestamp accepts RFC3339 / RFC3339Nano strings or numeric epoch
// seconds. Anything else is a MalformedTimestamp.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return time.Time{}, E(KindSchemaViolation, "timestamp", "required")
	}

	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, E(KindMalformedTimestamp, "timestamp", "unparsable string")
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, E(KindMalformedTimestamp, "timestamp", fmt.Sprintf("unparsable value %q", s))
	}

	if secs, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if secs <= 0 || secs > 1e12 {
			return time.Time{}, E(KindMalformedTimestamp, "timestamp", "epoch out of range")
		}
		sec, frac := math.Modf(secs)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	}

	return time.Time{}, E(KindMalformedTimestamp, "timestamp", "expected RFC3339 string or epoch seconds")
}

// coerceScale rounds a numeric feedback field to the nearest integer and
// enforces the 1-5 range.
func coerceScale(field string, v *float64) (int, error) {
	n := int(math.Round(*v))
	if math.Abs(*v-math.Round(*v)) > 0.001 {
		return 0, E(KindSchemaViolation, field, "expected an integer scale value")
	}
	if n < 1 || n > 5 {
		return 0, E(KindOutOfRange, field, fmt.Sprintf("value %d outside [1,5]", n))
	}
	return n, nil
}

func coerceOptScale(field string, v *float64) (*int, error) {
	if v == nil {
		return nil, nil
	}
	n, err := coerceScale(field, v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func normalizeOutputType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.ReplaceAll(t, " ", "_")
	t = strings.ReplaceAll(t, "-", "_")
	return t
}
