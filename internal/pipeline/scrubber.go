package pipeline

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/postul/feedback-pipeline/internal/config"
	"github.com/postul/feedback-pipeline/internal/models"
)

// Scrubber detects personally identifiable content and policy violations in
// an event's text fields. It never fails and never blocks ingestion: the
// outcome is always an annotated event. Detected spans are redacted only on
// export paths; the primary store keeps the original text for audit.
type Scrubber struct {
	detectors []detector
	rules     []policyRule
	redaction string
}

type detector struct {
	name string
	re   *regexp.Regexp
}

type policyRule struct {
	code        string
	recruitment bool // contributes to the actionable-recruitment flag
	keywords    []string
}

var builtinDetectors = []detector{
	{name: "email", re: regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{name: "phone", re: regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)},
	{name: "social_handle", re: regexp.MustCompile(`(^|\s)@[A-Za-z0-9_]{2,30}\b`)},
	{name: "street_address", re: regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z][A-Za-z ]*\s(street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr)\b`)},
}

// Placeholder rule set per the feedback-pipeline design: keyword matching is
// pluggable and meant to be replaced by a proper classifier later.
var builtinRules = []policyRule{
	{
		code:        "recruitment_contact",
		recruitment: true,
		keywords:    []string{"cold email", "cold dm", "cold message", "direct message them", "reach out to them personally"},
	},
	{
		code:        "contact_harvesting",
		recruitment: true,
		keywords:    []string{"scrape their contact", "scrape linkedin", "harvest emails", "buy a contact list"},
	},
	{
		code:     "undisclosed_incentive",
		keywords: []string{"pay them to say", "gift card for a positive", "incentivize good reviews"},
	},
}

func NewScrubber(cfg *config.ScrubberConfig) *Scrubber {
	s := &Scrubber{
		detectors: builtinDetectors,
		rules:     builtinRules,
		redaction: "[REDACTED]",
	}
	if cfg == nil {
		return s
	}
	if cfg.RedactionToken != "" {
		s.redaction = cfg.RedactionToken
	}
	for i, pattern := range cfg.ExtraPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue // a broken custom pattern must not take down ingestion
		}
		s.detectors = append(s.detectors, detector{name: "custom_" + strconv.Itoa(i), re: re})
	}
	for _, kw := range cfg.ExtraKeywords {
		// format code:keyword
		code, word, ok := strings.Cut(kw, ":")
		if !ok || word == "" {
			continue
		}
		s.rules = append(s.rules, policyRule{code: code, keywords: []string{word}})
	}
	return s
}

// Scrub annotates the event in place. Client-supplied annotation values were
// already discarded at validation; this is the authoritative pass.
func (s *Scrubber) Scrub(event *models.FeedbackEvent) {
	text := s.scannableText(event)

	event.ContainsPersonalData = false
	for _, d := range s.detectors {
		if d.re.MatchString(text) {
			event.ContainsPersonalData = true
			break
		}
	}

	lower := strings.ToLower(text)
	var codes []string
	event.ContainsRecruitmentSteps = false
	for _, rule := range s.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				codes = append(codes, rule.code)
				if rule.recruitment {
					event.ContainsRecruitmentSteps = true
				}
				break
			}
		}
	}

	event.PolicyViolations = ""
	if len(codes) > 0 {
		sort.Strings(codes)
		if b, err := json.Marshal(codes); err == nil {
			event.PolicyViolations = string(b)
		}
	}
}

// Redact masks every detected PII span in text. Used on export paths only.
func (s *Scrubber) Redact(text string) string {
	for _, d := range s.detectors {
		text = d.re.ReplaceAllStringFunc(text, func(m string) string {
			// keep leading whitespace captured by the handle pattern
			if ws := leadingSpace(m); ws != "" {
				return ws + s.redaction
			}
			return s.redaction
		})
	}
	return text
}

func (s *Scrubber) scannableText(event *models.FeedbackEvent) string {
	parts := []string{
		event.ProductIdea,
		event.TargetAudience,
		event.Goal,
		event.OutputContent,
		event.FreeText,
	}
	parts = append(parts, event.PreviousTestList()...)
	return strings.Join(parts, "\n")
}

func leadingSpace(s string) string {
	for i, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			return s[:i]
		}
	}
	return s
}
