// Package patterns provides embedded default guardrail table definitions.
// The YAML file in this directory holds the emergency keyword, prohibited
// phrase, diagnosis pattern, and hedge word tables compiled into the
// safety validator at startup.
package patterns

import _ "embed"

//go:embed guardrails.yaml
var guardrailsYAML []byte

// GuardrailsYAML returns the embedded default guardrail tables.
func GuardrailsYAML() []byte { return guardrailsYAML }
