package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/postul/feedback-pipeline/internal/config"
	"github.com/postul/feedback-pipeline/internal/models"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func testEvent(rating int) *models.FeedbackEvent {
	return &models.FeedbackEvent{
		EventID:   "fb_agg",
		Rating:    rating,
		CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestAggregate_RatingOnly(t *testing.T) {
	agg := NewAggregator(nil)

	// (4-1)/4 = 0.75, confidence 1-exp(-0.5*1)
	rec, err := agg.Aggregate(testEvent(4), nil, PairStats{})
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}
	if !almostEqual(rec.ScalarReward, 0.75) {
		t.Errorf("ScalarReward = %v, expected 0.75", rec.ScalarReward)
	}
	if want := 1 - math.Exp(-0.5); !almostEqual(rec.Confidence, want) {
		t.Errorf("Confidence = %v, expected %v", rec.Confidence, want)
	}
	if rec.LabelCount != 1 {
		t.Errorf("LabelCount = %d, expected 1", rec.LabelCount)
	}
}

func TestAggregate_RatingEndpoints(t *testing.T) {
	agg := NewAggregator(nil)

	tests := []struct {
		rating int
		want   float64
	}{
		{1, 0.0},
		{2, 0.25},
		{3, 0.5},
		{5, 1.0},
	}
	for _, tt := range tests {
		rec, err := agg.Aggregate(testEvent(tt.rating), nil, PairStats{})
		if err != nil {
			t.Fatalf("rating %d: %v", tt.rating, err)
		}
		if !almostEqual(rec.ScalarReward, tt.want) {
			t.Errorf("rating %d: ScalarReward = %v, expected %v", tt.rating, rec.ScalarReward, tt.want)
		}
	}
}

func TestAggregate_BlendsHumanLabel(t *testing.T) {
	agg := NewAggregator(nil)
	labels := []models.HumanLabel{
		{ID: 1, EventID: "fb_agg", LabelScore: 0.9, CreatedAt: time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)},
	}

	// 0.3*0.75 + 0.7*0.9 = 0.855, confidence 1-exp(-0.5*2)
	rec, err := agg.Aggregate(testEvent(4), labels, PairStats{})
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}
	if !almostEqual(rec.ScalarReward, 0.855) {
		t.Errorf("ScalarReward = %v, expected 0.855", rec.ScalarReward)
	}
	if want := 1 - math.Exp(-1.0); !almostEqual(rec.Confidence, want) {
		t.Errorf("Confidence = %v, expected %v", rec.Confidence, want)
	}
	if rec.LabelCount != 2 {
		t.Errorf("LabelCount = %d, expected 2", rec.LabelCount)
	}
}

func TestAggregate_ConflictPolicies(t *testing.T) {
	labels := []models.HumanLabel{
		{ID: 1, LabelScore: 0.2, CreatedAt: time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)},
		{ID: 2, LabelScore: 0.8, CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)},
	}

	latest := NewAggregator(&config.AggregationConfig{
		BaseWeight: 0.3, LabelWeight: 0.7, PairBonusStep: 0.05,
		ConfidenceDecay: 0.5, ConflictPolicy: "latest",
	})
	rec, err := latest.Aggregate(testEvent(3), labels, PairStats{})
	if err != nil {
		t.Fatal(err)
	}
	// latest label (0.8) wins: 0.3*0.5 + 0.7*0.8 = 0.71
	if !almostEqual(rec.ScalarReward, 0.71) {
		t.Errorf("latest policy: ScalarReward = %v, expected 0.71", rec.ScalarReward)
	}

	mean := NewAggregator(&config.AggregationConfig{
		BaseWeight: 0.3, LabelWeight: 0.7, PairBonusStep: 0.05,
		ConfidenceDecay: 0.5, ConflictPolicy: "mean",
	})
	rec, err = mean.Aggregate(testEvent(3), labels, PairStats{})
	if err != nil {
		t.Fatal(err)
	}
	// mean label (0.5): 0.3*0.5 + 0.7*0.5 = 0.5
	if !almostEqual(rec.ScalarReward, 0.5) {
		t.Errorf("mean policy: ScalarReward = %v, expected 0.5", rec.ScalarReward)
	}
}

func TestAggregate_LatestTieBreaksOnID(t *testing.T) {
	at := time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)
	labels := []models.HumanLabel{
		{ID: 7, LabelScore: 0.9, CreatedAt: at},
		{ID: 3, LabelScore: 0.1, CreatedAt: at},
	}

	rec, err := NewAggregator(nil).Aggregate(testEvent(3), labels, PairStats{})
	if err != nil {
		t.Fatal(err)
	}
	// same timestamp, higher id wins: 0.3*0.5 + 0.7*0.9 = 0.78
	if !almostEqual(rec.ScalarReward, 0.78) {
		t.Errorf("ScalarReward = %v, expected 0.78", rec.ScalarReward)
	}
}

func TestAggregate_PairBonusAndClamp(t *testing.T) {
	agg := NewAggregator(nil)

	rec, err := agg.Aggregate(testEvent(4), nil, PairStats{Wins: 2, Losses: 1})
	if err != nil {
		t.Fatal(err)
	}
	// 0.75 + 0.05*(2-1) = 0.80
	if !almostEqual(rec.ScalarReward, 0.80) {
		t.Errorf("ScalarReward = %v, expected 0.80", rec.ScalarReward)
	}

	rec, err = agg.Aggregate(testEvent(5), nil, PairStats{Wins: 10})
	if err != nil {
		t.Fatal(err)
	}
	if rec.ScalarReward != 1.0 {
		t.Errorf("ScalarReward = %v, expected clamp at 1.0", rec.ScalarReward)
	}

	rec, err = agg.Aggregate(testEvent(1), nil, PairStats{Losses: 10})
	if err != nil {
		t.Fatal(err)
	}
	if rec.ScalarReward != 0.0 {
		t.Errorf("ScalarReward = %v, expected clamp at 0.0", rec.ScalarReward)
	}
}

func TestAggregate_MissingBaseSignal(t *testing.T) {
	agg := NewAggregator(nil)

	_, err := agg.Aggregate(testEvent(0), nil, PairStats{})
	if KindOf(err) != KindMissingBaseSignal {
		t.Errorf("Kind = %v, expected MissingBaseSignal", KindOf(err))
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	agg := NewAggregator(nil)
	event := testEvent(4)
	labels := []models.HumanLabel{
		{ID: 1, EventID: "fb_agg", LabelScore: 0.6, CreatedAt: time.Date(2026, 8, 1, 11, 30, 0, 0, time.UTC)},
	}

	first, err := agg.Aggregate(event, labels, PairStats{Wins: 1})
	if err != nil {
		t.Fatal(err)
	}
	second, err := agg.Aggregate(event, labels, PairStats{Wins: 1})
	if err != nil {
		t.Fatal(err)
	}

	if *first != *second {
		t.Errorf("recomputation differs:\nfirst  %+v\nsecond %+v", first, second)
	}
	if !first.ComputedAt.Equal(labels[0].CreatedAt) {
		t.Errorf("ComputedAt = %v, expected latest label time %v", first.ComputedAt, labels[0].CreatedAt)
	}
}
