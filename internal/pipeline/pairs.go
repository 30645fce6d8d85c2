package pipeline

import (
	"errors"
	"fmt"

	"github.com/postul/feedback-pipeline/internal/models"
)

// BuildPairs turns raw pairwise-choice labels into preference pairs. events
// must contain every persisted event referenced by the labels; labels whose
// events are missing or whose contexts differ produce an InvalidPair error
// for that label without affecting the others.
//
// Margin confidence reflects how decisive the choice was: a binary choice
// (strength 0) is fully confident, a graded choice maps proportionally.
//
// The returned pairs are deduplicated on (winner, loser, batch), matching
// the store's composite unique index, so re-running on the same label set is
// a no-op end to end. The joined error reports every rejected label.
func BuildPairs(events []models.FeedbackEvent, labels []models.PreferenceLabel) ([]models.PreferencePair, error) {
	byID := make(map[string]*models.FeedbackEvent, len(events))
	for i := range events {
		byID[events[i].EventID] = &events[i]
	}

	type pairKey struct {
		winner, loser, batch string
	}
	seen := make(map[pairKey]bool)

	var pairs []models.PreferencePair
	var errs []error

	for _, label := range labels {
		if label.ChosenEventID == label.RejectedEventID {
			errs = append(errs, EventErr(KindInvalidPair, label.ChosenEventID,
				fmt.Sprintf("self-pairing in batch %s", label.BatchID)))
			continue
		}

		winner, ok := byID[label.ChosenEventID]
		if !ok {
			errs = append(errs, EventErr(KindInvalidPair, label.ChosenEventID,
				fmt.Sprintf("chosen event not persisted (batch %s)", label.BatchID)))
			continue
		}
		loser, ok := byID[label.RejectedEventID]
		if !ok {
			errs = append(errs, EventErr(KindInvalidPair, label.RejectedEventID,
				fmt.Sprintf("rejected event not persisted (batch %s)", label.BatchID)))
			continue
		}
		if winner.ContextHash != loser.ContextHash {
			errs = append(errs, EventErr(KindInvalidPair, label.ChosenEventID,
				fmt.Sprintf("context mismatch with %s (batch %s)", label.RejectedEventID, label.BatchID)))
			continue
		}

		key := pairKey{winner: winner.EventID, loser: loser.EventID, batch: label.BatchID}
		if seen[key] {
			continue
		}
		seen[key] = true

		pairs = append(pairs, models.PreferencePair{
			ContextHash:      winner.ContextHash,
			WinnerEventID:    winner.EventID,
			LoserEventID:     loser.EventID,
			BatchID:          label.BatchID,
			MarginConfidence: marginConfidence(label.Strength),
		})
	}

	return pairs, errors.Join(errs...)
}

// marginConfidence maps a choice strength to [0,1]. Strength 0 is a plain
// binary choice; 1-5 grades decisiveness proportionally.
func marginConfidence(strength int) float64 {
	if strength <= 0 {
		return 1.0
	}
	if strength > 5 {
		strength = 5
	}
	return float64(strength) / 5.0
}
