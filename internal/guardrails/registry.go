package guardrails

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tehqua/Vitalis/patterns"
)

// Tables holds the keyword and phrase lists the validator matches against.
// The zero value matches nothing; production validators start from
// DefaultTables and optionally merge an operator override file.
type Tables struct {
	// EmergencyKeywords maps a triage category (e.g. "stroke") to the
	// phrases that flag it.
	EmergencyKeywords map[string][]string `yaml:"emergency_keywords"`
	// ProhibitedPhrases must never appear in an outgoing response.
	ProhibitedPhrases []string `yaml:"prohibited_phrases"`
	// DiagnosisPatterns are regexes matching definitive-diagnosis phrasing.
	DiagnosisPatterns []string `yaml:"diagnosis_patterns"`
	// HedgeWords excuse a diagnosis-shaped match when present anywhere
	// in the response.
	HedgeWords []string `yaml:"hedge_words"`
}

// ParseTables parses guardrail table YAML bytes.
func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing guardrail tables YAML: %w", err)
	}
	return &t, nil
}

// LoadTables reads and parses a guardrail table YAML file from disk.
// Returns nil (not an error) if the file does not exist, so callers can
// treat a missing override file as a no-op.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading guardrail tables %s: %w", path, err)
	}
	return ParseTables(data)
}

// DefaultTables parses the embedded default tables. The embedded file is
// validated by tests, so a parse failure here is a build defect.
func DefaultTables() (*Tables, error) {
	return ParseTables(patterns.GuardrailsYAML())
}

// MergeTables overlays later tables onto earlier ones. A non-empty section
// in a later table replaces that section wholesale; empty sections leave
// the earlier value in place. Nil tables are skipped.
func MergeTables(layers ...*Tables) *Tables {
	merged := &Tables{}
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		if len(layer.EmergencyKeywords) > 0 {
			merged.EmergencyKeywords = layer.EmergencyKeywords
		}
		if len(layer.ProhibitedPhrases) > 0 {
			merged.ProhibitedPhrases = layer.ProhibitedPhrases
		}
		if len(layer.DiagnosisPatterns) > 0 {
			merged.DiagnosisPatterns = layer.DiagnosisPatterns
		}
		if len(layer.HedgeWords) > 0 {
			merged.HedgeWords = layer.HedgeWords
		}
	}
	return merged
}
