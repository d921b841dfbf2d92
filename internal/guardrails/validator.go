// Package guardrails implements the pure-function safety checks applied to
// every turn: emergency-keyword triage, prohibited-content validation,
// cross-patient privacy scanning, and input sanitization.
//
// All checks are side-effect-free apart from logging and degrade to
// "no match"/"pass" on malformed input; none may panic.
package guardrails

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// MaxInputLength is the hard cap applied by Sanitize.
const MaxInputLength = 5000

var (
	scriptRe = regexp.MustCompile(`(?is)<script.*?</script>`)
	markupRe = regexp.MustCompile(`<[^>]+>`)

	// identifierRe matches patient identifiers anywhere in free text
	// (FirstName###_LastName###_uuid). The anchored form lives in
	// internal/classify; this one scans responses for leaks.
	identifierRe = regexp.MustCompile(`[A-Z][a-z]+\d+_[A-Z][a-z]+\d+_[a-f0-9-]{36}`)
)

// Validator runs the guardrail checks against configured tables.
type Validator struct {
	tables            Tables
	diagnosisPatterns []*regexp.Regexp
	emergencyEnabled  bool
}

// Option configures a Validator.
type Option func(*validatorConfig)

type validatorConfig struct {
	override         *Tables
	emergencyEnabled bool
}

// WithOverrideTables merges operator-supplied tables over the defaults.
func WithOverrideTables(t *Tables) Option {
	return func(c *validatorConfig) { c.override = t }
}

// WithEmergencyDetection toggles emergency triage. Disabled detection
// always reports no emergency; the remaining checks are unaffected.
func WithEmergencyDetection(enabled bool) Option {
	return func(c *validatorConfig) { c.emergencyEnabled = enabled }
}

// NewValidator builds a Validator from the embedded default tables plus
// any options. Fails if a diagnosis pattern does not compile.
func NewValidator(opts ...Option) (*Validator, error) {
	cfg := validatorConfig{emergencyEnabled: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	defaults, err := DefaultTables()
	if err != nil {
		return nil, err
	}
	tables := MergeTables(defaults, cfg.override)

	compiled := make([]*regexp.Regexp, 0, len(tables.DiagnosisPatterns))
	for _, p := range tables.DiagnosisPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling diagnosis pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	return &Validator{
		tables:            *tables,
		diagnosisPatterns: compiled,
		emergencyEnabled:  cfg.emergencyEnabled,
	}, nil
}

// DetectEmergency scans text for emergency keywords. Returns whether any
// matched and every matched "category: phrase" pair, not just the first.
// Matching is case-insensitive substring; categories are reported in
// sorted order so results are deterministic.
func (v *Validator) DetectEmergency(text string) (bool, []string) {
	if !v.emergencyEnabled || text == "" {
		return false, nil
	}

	lower := strings.ToLower(text)
	var matched []string

	categories := make([]string, 0, len(v.tables.EmergencyKeywords))
	for category := range v.tables.EmergencyKeywords {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		for _, phrase := range v.tables.EmergencyKeywords[category] {
			if phrase != "" && strings.Contains(lower, phrase) {
				matched = append(matched, category+": "+phrase)
				log.Warn().Str("category", category).Str("phrase", phrase).Msg("emergency_keyword_detected")
			}
		}
	}

	return len(matched) > 0, matched
}

// ValidateResponse checks a candidate response for prohibited phrases and
// definitive-diagnosis phrasing. A diagnosis-shaped match is excused only
// when the response also contains a hedge word anywhere. Returns validity
// and the list of violations.
func (v *Validator) ValidateResponse(response string) (bool, []string) {
	lower := strings.ToLower(response)
	var violations []string

	for _, phrase := range v.tables.ProhibitedPhrases {
		if phrase != "" && strings.Contains(lower, phrase) {
			violations = append(violations, fmt.Sprintf("prohibited phrase: %q", phrase))
			log.Error().Str("phrase", phrase).Msg("response_contains_prohibited_phrase")
		}
	}

	hedged := false
	for _, hedge := range v.tables.HedgeWords {
		if hedge != "" && strings.Contains(lower, hedge) {
			hedged = true
			break
		}
	}

	for _, re := range v.diagnosisPatterns {
		if re.MatchString(lower) && !hedged {
			violations = append(violations, fmt.Sprintf("unqualified diagnosis phrasing: %q", re.String()))
		}
	}

	return len(violations) == 0, violations
}

// ValidatePrivacy reports whether the response is free of references to
// patients other than ownerID. Any identifier-shaped substring that
// differs from ownerID fails the check.
func (v *Validator) ValidatePrivacy(response, ownerID string) bool {
	for _, found := range identifierRe.FindAllString(response, -1) {
		if found != ownerID {
			log.Error().Str("found_id", found).Msg("cross_patient_identifier_in_response")
			return false
		}
	}
	return true
}

// Sanitize strips script blocks and all markup tags from user input, then
// hard-truncates to MaxInputLength. Idempotent: Sanitize(Sanitize(x)) ==
// Sanitize(x) for every input.
func (v *Validator) Sanitize(text string) string {
	text = scriptRe.ReplaceAllString(text, "")
	text = markupRe.ReplaceAllString(text, "")
	if len(text) > MaxInputLength {
		text = text[:MaxInputLength]
		log.Warn().Int("max_length", MaxInputLength).Msg("input_truncated")
	}
	return strings.TrimSpace(text)
}

// EmergencyResponse builds the deterministic emergency directive returned
// when DetectEmergency flags a turn. The model is never consulted.
func (v *Validator) EmergencyResponse(matched []string) string {
	return "URGENT: Based on your description, this may be a medical emergency.\n\n" +
		"IMMEDIATE ACTIONS:\n" +
		"1. Call emergency services (911) or go to the nearest emergency department immediately\n" +
		"2. Do not drive yourself - call an ambulance or have someone drive you\n" +
		"3. If you are alone and able, call emergency services first before doing anything else\n\n" +
		"Symptoms requiring urgent attention: " + strings.Join(matched, ", ") + "\n\n" +
		"Do not wait or try to self-diagnose. Please seek immediate medical help.\n\n" +
		"If this is not an emergency and you misunderstood my concern, please clarify your symptoms."
}
