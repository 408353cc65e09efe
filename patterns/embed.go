// Package patterns provides the embedded default PII recognizer definitions
// used by the privacy shield.
package patterns

import _ "embed"

//go:embed pii.yaml
var piiYAML []byte

// PIIYAML returns the embedded default PII recognizer definitions.
func PIIYAML() []byte { return piiYAML }
