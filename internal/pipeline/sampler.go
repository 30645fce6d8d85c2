package pipeline

import (
	"hash/fnv"
	"math"

	"github.com/postul/feedback-pipeline/internal/config"
	"github.com/postul/feedback-pipeline/internal/models"
)

// Sampler decides, once at ingestion time, whether an event is routed to the
// expert labeling queue. The decision is a pure function of the event and
// the configuration: retried or reprocessed events always get the same
// answer.
type Sampler struct {
	rate          float64
	salt          string
	maxAutoRating int
}

func NewSampler(cfg *config.SamplingConfig) *Sampler {
	s := &Sampler{rate: 0.05, salt: "postul-feedback-v1", maxAutoRating: 2}
	if cfg != nil {
		s.rate = cfg.Rate
		s.salt = cfg.Salt
		s.maxAutoRating = cfg.MaxAutoRating
	}
	return s
}

// Select applies the sampling policy:
//   - policy-flagged events are always reviewed
//   - strong negative ratings are always reviewed
//   - pairwise-comparison task members are always reviewed
//   - otherwise a seeded hash of the event id decides with probability rate
func (s *Sampler) Select(event *models.FeedbackEvent) bool {
	if event.PolicyFlagged() {
		return true
	}
	if event.Rating >= 1 && event.Rating <= s.maxAutoRating {
		return true
	}
	if event.PreferenceBatchID != "" {
		return true
	}
	return s.fraction(event.EventID) < s.rate
}

// fraction maps an event id to a stable value in [0,1).
func (s *Sampler) fraction(eventID string) float64 {
	h := fnv.New64a()
	h.Write([]byte(s.salt))
	h.Write([]byte{0x1f})
	h.Write([]byte(eventID))
	return float64(h.Sum64()) / math.MaxUint64
}
