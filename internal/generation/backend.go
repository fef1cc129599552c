// internal/generation/backend.go
package generation

import (
	"context"
	"errors"

	"sms-composer/internal/models"
)

var (
	ErrBackendUnavailable = errors.New("BACKEND_UNAVAILABLE")
	ErrBackendTimeout     = errors.New("BACKEND_TIMEOUT")
	ErrNoTemplate         = errors.New("NO_TEMPLATE")
)

// Backend produces one candidate message for a composed context. The two
// implementations are interchangeable from the orchestrator's point of view.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResult, error)
}

// truncate cuts the message to maxChars runes. It is a last resort; the
// guardrail length rule normally catches oversize candidates first.
func truncate(message string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		return message, false
	}
	runes := []rune(message)
	if len(runes) <= maxChars {
		return message, false
	}
	return string(runes[:maxChars]), true
}
