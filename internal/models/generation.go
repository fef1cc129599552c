// internal/models/generation.go
package models

// Mode selects the generation backend variant.
type Mode string

const (
	ModeMock Mode = "mock"
	ModeLive Mode = "live"
)

// Valid reports whether the mode is one of the two known variants.
func (m Mode) Valid() bool {
	return m == ModeMock || m == ModeLive
}

// GenerationRequest wraps a composed context for dispatch to a backend.
// Rotation is the template rotation position; it only affects the mock
// variant. MaxChars is the last-resort truncation budget.
type GenerationRequest struct {
	Context  *ComposedContext `json:"context"`
	Mode     Mode             `json:"mode"`
	Rotation int              `json:"rotation"`
	MaxChars int              `json:"max_chars"`
}

// GenerationResult is a successful candidate message plus backend metadata.
// Failures are returned as errors, not encoded here.
type GenerationResult struct {
	Message   string `json:"message"`
	Backend   string `json:"backend"`
	Model     string `json:"model,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Guardrail rule identifiers reported in ValidationOutcome.Violations.
const (
	RuleLength          = "length"
	RuleNumericFidelity = "numeric_fidelity"
	RuleCallToAction    = "call_to_action"
)

// ValidationOutcome aggregates every violated guardrail rule; it never
// short-circuits, so a failing candidate reports complete diagnostics.
type ValidationOutcome struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}
