package guardrails

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

// TestSanitizeIdempotent verifies Sanitize(Sanitize(x)) == Sanitize(x) for
// arbitrary strings, including ones full of markup and oversized input.
func TestSanitizeIdempotent(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("sanitize is idempotent on arbitrary strings", prop.ForAll(
		func(s string) bool {
			once := v.Sanitize(s)
			return v.Sanitize(once) == once
		},
		gen.AnyString(),
	))

	properties.Property("sanitize is idempotent on markup-heavy strings", prop.ForAll(
		func(pre, tag, post string) bool {
			s := pre + "<" + tag + ">" + post + "<script>" + pre + "</script>"
			once := v.Sanitize(s)
			return v.Sanitize(once) == once
		},
		gen.AlphaString(), gen.AlphaString(), gen.AlphaString(),
	))

	properties.Property("sanitized output never exceeds the cap", prop.ForAll(
		func(s string) bool {
			return len(v.Sanitize(s)) <= MaxInputLength
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestDetectEmergencyNeverPanics feeds arbitrary bytes through every check;
// malformed input must degrade to "no match"/"pass", never a panic.
func TestGuardrailsNeverPanic(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("all checks accept arbitrary input", prop.ForAll(
		func(s, owner string) bool {
			v.DetectEmergency(s)
			v.ValidateResponse(s)
			v.ValidatePrivacy(s, owner)
			v.Sanitize(s)
			return true
		},
		gen.AnyString(), gen.AnyString(),
	))

	properties.TestingRun(t)
}
