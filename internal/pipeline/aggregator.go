package pipeline

import (
	"encoding/json"
	"math"
	"time"

	"github.com/postul/feedback-pipeline/internal/config"
	"github.com/postul/feedback-pipeline/internal/models"
)

// PairStats counts an event's preference-pair participations.
type PairStats struct {
	Wins   int
	Losses int
}

// Aggregator computes the scalar reward for one event from its explicit
// rating, any human labels, and preference-pair participation. Pure and
// deterministic: the same event, label set and pair stats always produce an
// identical RewardRecord, which is what makes recomputation idempotent.
type Aggregator struct {
	baseWeight     float64
	labelWeight    float64
	pairBonusStep  float64
	decay          float64
	conflictPolicy string // latest, mean
}

func NewAggregator(cfg *config.AggregationConfig) *Aggregator {
	a := &Aggregator{
		baseWeight:     0.3,
		labelWeight:    0.7,
		pairBonusStep:  0.05,
		decay:          0.5,
		conflictPolicy: "latest",
	}
	if cfg != nil {
		a.baseWeight = cfg.BaseWeight
		a.labelWeight = cfg.LabelWeight
		a.pairBonusStep = cfg.PairBonusStep
		a.decay = cfg.ConfidenceDecay
		if cfg.ConflictPolicy == "mean" {
			a.conflictPolicy = "mean"
		}
	}
	return a
}

// sourceProvenance summarizes which signals fed a reward computation.
type sourceProvenance struct {
	BaseRating     int    `json:"base_rating"`
	HumanLabels    int    `json:"human_labels"`
	PairWins       int    `json:"pair_wins"`
	PairLosses     int    `json:"pair_losses"`
	ConflictPolicy string `json:"conflict_policy,omitempty"`
}

// Aggregate produces the reward record for event. labels must be every known
// human label for the event in arrival order (created_at, then id).
//
// The base signal normalizes rating from [1,5] to [0,1]. A human label
// blends in at labelWeight against baseWeight. Preference-pair wins and
// losses shift the result by pairBonusStep each, and the final reward is
// clamped to [0,1]. Confidence approaches 1 as independent signals
// accumulate: 1 - exp(-decay * labelCount) with labelCount = 1 + len(labels).
func (a *Aggregator) Aggregate(event *models.FeedbackEvent, labels []models.HumanLabel, pairs PairStats) (*models.RewardRecord, error) {
	if event.Rating < 1 || event.Rating > 5 {
		return nil, EventErr(KindMissingBaseSignal, event.EventID, "rating outside [1,5] at aggregation time")
	}

	base := float64(event.Rating-1) / 4.0

	reward := base
	conflictPolicy := ""
	if len(labels) > 0 {
		reward = a.baseWeight*base + a.labelWeight*a.blendLabels(labels)
		if len(labels) > 1 {
			conflictPolicy = a.conflictPolicy
		}
	}

	reward += a.pairBonusStep * float64(pairs.Wins-pairs.Losses)
	reward = clamp01(reward)

	labelCount := 1 + len(labels)
	confidence := 1 - math.Exp(-a.decay*float64(labelCount))

	provenance, _ := json.Marshal(sourceProvenance{
		BaseRating:     event.Rating,
		HumanLabels:    len(labels),
		PairWins:       pairs.Wins,
		PairLosses:     pairs.Losses,
		ConflictPolicy: conflictPolicy,
	})

	return &models.RewardRecord{
		EventID:      event.EventID,
		ScalarReward: reward,
		Confidence:   confidence,
		LabelCount:   labelCount,
		SourceLabels: string(provenance),
		ComputedAt:   computedAt(event, labels),
	}, nil
}

// blendLabels resolves multiple (possibly disagreeing) labels into one
// score. The source design left tie-breaking ambiguous, so the policy is
// configurable: "latest" takes the most recently written label, "mean"
// averages all of them.
func (a *Aggregator) blendLabels(labels []models.HumanLabel) float64 {
	if a.conflictPolicy == "mean" {
		sum := 0.0
		for _, l := range labels {
			sum += clamp01(l.LabelScore)
		}
		return sum / float64(len(labels))
	}

	latest := labels[0]
	for _, l := range labels[1:] {
		if l.CreatedAt.After(latest.CreatedAt) ||
			(l.CreatedAt.Equal(latest.CreatedAt) && l.ID > latest.ID) {
			latest = l
		}
	}
	return clamp01(latest.LabelScore)
}

// computedAt derives the record timestamp from the inputs instead of wall
// clock: the latest contributing label time, or event creation when no
// labels exist. Recomputing with an unchanged label set therefore yields a
// byte-identical record.
func computedAt(event *models.FeedbackEvent, labels []models.HumanLabel) time.Time {
	at := event.CreatedAt.UTC()
	for _, l := range labels {
		if lt := l.CreatedAt.UTC(); lt.After(at) {
			at = lt
		}
	}
	return at.Truncate(time.Microsecond)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
