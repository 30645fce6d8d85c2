package pipeline

import (
	"strings"
	"testing"

	"github.com/postul/feedback-pipeline/internal/config"
	"github.com/postul/feedback-pipeline/internal/models"
)

func TestScrub_DetectsPersonalData(t *testing.T) {
	s := NewScrubber(nil)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"email", "contact me at jane.doe@example.com for details", true},
		{"phone", "call +1 (555) 123-4567 tomorrow", true},
		{"social handle", "message @growth_hacker42 on the platform", true},
		{"street address", "drop by 123 Main Street after lunch", true},
		{"clean text", "interview ten potential customers about pricing", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &models.FeedbackEvent{FreeText: tt.text}
			s.Scrub(event)
			if event.ContainsPersonalData != tt.want {
				t.Errorf("ContainsPersonalData = %v, expected %v", event.ContainsPersonalData, tt.want)
			}
		})
	}
}

func TestScrub_PolicyViolations(t *testing.T) {
	s := NewScrubber(nil)

	event := &models.FeedbackEvent{
		OutputContent: "Step 1: cold email every founder you know. Step 2: scrape LinkedIn for emails.",
	}
	s.Scrub(event)

	codes := event.PolicyViolationCodes()
	if len(codes) != 2 {
		t.Fatalf("got codes %v, expected 2", codes)
	}
	// codes are stored sorted for stable comparison
	if codes[0] != "contact_harvesting" || codes[1] != "recruitment_contact" {
		t.Errorf("codes = %v, expected [contact_harvesting recruitment_contact]", codes)
	}
	if !event.ContainsRecruitmentSteps {
		t.Error("recruitment rules must set ContainsRecruitmentSteps")
	}
	if !event.PolicyFlagged() {
		t.Error("PolicyFlagged() should be true")
	}
}

func TestScrub_OverwritesClientAnnotations(t *testing.T) {
	s := NewScrubber(nil)

	event := &models.FeedbackEvent{
		FreeText:                 "perfectly clean feedback",
		ContainsPersonalData:     true,
		ContainsRecruitmentSteps: true,
		PolicyViolations:         `["made_up_code"]`,
	}
	s.Scrub(event)

	if event.ContainsPersonalData || event.ContainsRecruitmentSteps || event.PolicyViolations != "" {
		t.Errorf("client annotations survived the scrub: %+v", event)
	}
}

func TestScrub_ScansAllTextFields(t *testing.T) {
	s := NewScrubber(nil)

	fields := []models.FeedbackEvent{
		{ProductIdea: "newsletter for bob@corp.example"},
		{TargetAudience: "people like bob@corp.example"},
		{Goal: "reach bob@corp.example"},
		{OutputContent: "email bob@corp.example"},
		{FreeText: "ask bob@corp.example"},
		{PreviousTests: `["emailed bob@corp.example"]`},
	}
	for i := range fields {
		s.Scrub(&fields[i])
		if !fields[i].ContainsPersonalData {
			t.Errorf("field set %d: PII in this field was not detected", i)
		}
	}
}

func TestScrub_CustomRules(t *testing.T) {
	s := NewScrubber(&config.ScrubberConfig{
		ExtraPatterns: []string{`\bSSN-\d{4}\b`},
		ExtraKeywords: []string{"fake_testimonial:write fake reviews"},
	})

	event := &models.FeedbackEvent{FreeText: "my id is SSN-1234, then write fake reviews"}
	s.Scrub(event)

	if !event.ContainsPersonalData {
		t.Error("custom pattern did not trigger ContainsPersonalData")
	}
	codes := event.PolicyViolationCodes()
	if len(codes) != 1 || codes[0] != "fake_testimonial" {
		t.Errorf("codes = %v, expected [fake_testimonial]", codes)
	}
}

func TestScrub_BrokenCustomPatternIgnored(t *testing.T) {
	s := NewScrubber(&config.ScrubberConfig{ExtraPatterns: []string{`[unclosed`}})

	event := &models.FeedbackEvent{FreeText: "nothing sensitive here"}
	s.Scrub(event)
	if event.ContainsPersonalData {
		t.Error("broken pattern must be skipped, not match everything")
	}
}

func TestRedact(t *testing.T) {
	s := NewScrubber(nil)

	got := s.Redact("reach me at jane@example.com or @jane_d any time")
	if strings.Contains(got, "jane@example.com") || strings.Contains(got, "@jane_d") {
		t.Errorf("PII survived redaction: %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Errorf("expected redaction token in %q", got)
	}

	if got := s.Redact("plain text stays untouched"); got != "plain text stays untouched" {
		t.Errorf("clean text changed: %q", got)
	}
}

func TestRedact_CustomToken(t *testing.T) {
	s := NewScrubber(&config.ScrubberConfig{RedactionToken: "***"})

	got := s.Redact("mail jane@example.com")
	if !strings.Contains(got, "***") {
		t.Errorf("expected custom token in %q", got)
	}
}
