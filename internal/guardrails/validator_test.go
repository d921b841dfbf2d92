package guardrails

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T, opts ...Option) *Validator {
	t.Helper()
	v, err := NewValidator(opts...)
	require.NoError(t, err)
	return v
}

func TestDetectEmergency(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name      string
		text      string
		emergency bool
		contains  string
	}{
		{"chest pain", "I have severe chest pain and can't breathe", true, "chest pain: severe chest pain"},
		{"breathing also matched", "I have severe chest pain and can't breathe", true, "breathing: can't breathe"},
		{"case insensitive", "SEVERE BLEEDING everywhere", true, "bleeding: severe bleeding"},
		{"stroke phrasing", "my mother has slurred speech and sudden confusion", true, "stroke: slurred speech"},
		{"benign question", "What medications am I currently taking?", false, ""},
		{"empty input", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emergency, matched := v.DetectEmergency(tt.text)
			assert.Equal(t, tt.emergency, emergency)
			if tt.contains != "" {
				assert.Contains(t, matched, tt.contains)
			}
		})
	}
}

func TestDetectEmergencyReturnsAllMatches(t *testing.T) {
	v := newTestValidator(t)

	_, matched := v.DetectEmergency("severe chest pain, can't breathe, and a seizure")
	assert.Len(t, matched, 3)
	// Categories come back sorted, so output is deterministic.
	assert.Equal(t, []string{
		"breathing: can't breathe",
		"chest pain: severe chest pain",
		"seizure: seizure",
	}, matched)
}

func TestDetectEmergencyDisabled(t *testing.T) {
	v := newTestValidator(t, WithEmergencyDetection(false))

	emergency, matched := v.DetectEmergency("severe chest pain")
	assert.False(t, emergency)
	assert.Empty(t, matched)
}

func TestValidateResponse(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name  string
		text  string
		valid bool
	}{
		{"clean response", "Please discuss these symptoms with your doctor.", true},
		{"prohibited phrase", "You definitely have the flu.", false},
		{"unhedged diagnosis", "You have a melanoma.", false},
		{"hedged diagnosis", "You have a rash that may indicate an allergic reaction.", true},
		{"hedge elsewhere in text", "Based on the image, you have a lesion. This could be benign.", true},
		{"diagnosed with, unhedged", "Our records show you were diagnosed with hypertension today.", false},
		{"empty response", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, violations := v.ValidateResponse(tt.text)
			assert.Equal(t, tt.valid, valid)
			if !tt.valid {
				assert.NotEmpty(t, violations)
			}
		})
	}
}

func TestValidatePrivacy(t *testing.T) {
	v := newTestValidator(t)
	owner := "Adam631_Cronin387_aff8f143-2375-416f-901d-b0e4c73e3e58"
	other := "Eve442_Smith020_aff8f143-2375-416f-901d-b0e4c73e3e59"

	assert.True(t, v.ValidatePrivacy("Your last visit was in March.", owner))
	assert.True(t, v.ValidatePrivacy("Records for "+owner+" show two visits.", owner))
	assert.False(t, v.ValidatePrivacy("Records for "+other+" show two visits.", owner))
	assert.False(t, v.ValidatePrivacy("Both "+owner+" and "+other+" were seen.", owner))
}

func TestSanitize(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text unchanged", "hello doctor", "hello doctor"},
		{"script stripped", "before<script>alert(1)</script>after", "beforeafter"},
		{"script case insensitive", "a<SCRIPT src=x>b</SCRIPT>c", "ac"},
		{"markup stripped", "<b>bold</b> and <i>italic</i>", "bold and italic"},
		{"whitespace trimmed", "  padded  ", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Sanitize(tt.in))
		})
	}
}

func TestSanitizeTruncates(t *testing.T) {
	v := newTestValidator(t)

	long := strings.Repeat("a", MaxInputLength+500)
	got := v.Sanitize(long)
	assert.Len(t, got, MaxInputLength)
}

func TestEmergencyResponseContent(t *testing.T) {
	v := newTestValidator(t)

	resp := v.EmergencyResponse([]string{"chest pain: severe chest pain"})
	assert.Contains(t, resp, "Call emergency services (911)")
	assert.Contains(t, resp, "chest pain: severe chest pain")
}

func TestOverrideTables(t *testing.T) {
	override := &Tables{
		EmergencyKeywords: map[string][]string{"custom": {"code blue"}},
	}
	v := newTestValidator(t, WithOverrideTables(override))

	emergency, matched := v.DetectEmergency("we have a code blue")
	assert.True(t, emergency)
	assert.Equal(t, []string{"custom: code blue"}, matched)

	// Default phrases are replaced wholesale by the override section.
	emergency, _ = v.DetectEmergency("severe chest pain")
	assert.False(t, emergency)

	// Untouched sections keep their defaults.
	valid, _ := v.ValidateResponse("You definitely have the flu.")
	assert.False(t, valid)
}
