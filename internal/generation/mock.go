// internal/generation/mock.go
package generation

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"sms-composer/internal/common/logger"
	"sms-composer/internal/models"
	"sms-composer/pkg/registry"
)

const MockBackendName = "mock"

// MockBackend renders messages from the template registry without any
// network dependency. Given the same context and rotation position it always
// produces the same message.
type MockBackend struct {
	registry *registry.TemplateRegistry
	logger   logger.Logger
}

func NewMockBackend(reg *registry.TemplateRegistry, log logger.Logger) *MockBackend {
	if reg == nil {
		reg = registry.Defaults()
	}
	return &MockBackend{
		registry: reg,
		logger:   log.With(map[string]interface{}{"backend": MockBackendName}),
	}
}

func (b *MockBackend) Name() string {
	return MockBackendName
}

func (b *MockBackend) Generate(_ context.Context, req *models.GenerationRequest) (*models.GenerationResult, error) {
	start := time.Now()
	c := req.Context

	variants, ok := b.registry.Resolve(c.Family, c.Persona, c.SelectorKey())
	if !ok {
		return nil, fmt.Errorf("%w: famille=%s persona=%s selector=%s", ErrNoTemplate, c.Family, c.Persona, c.SelectorKey())
	}

	index := rotationIndex(c.StableKey(), req.Rotation, len(variants))
	message := render(variants[index], c)
	message, truncated := truncate(message, req.MaxChars)

	return &models.GenerationResult{
		Message:   message,
		Backend:   MockBackendName,
		Model:     "registry@" + b.registry.Version,
		LatencyMS: time.Since(start).Milliseconds(),
		Truncated: truncated,
	}, nil
}

// rotationIndex hashes the stable context fields so the same campaign
// situation always starts at the same variant, then advances by the rotation
// position.
func rotationIndex(stableKey string, rotation, variants int) int {
	h := fnv.New32a()
	h.Write([]byte(stableKey))
	return (int(h.Sum32()%uint32(variants)) + rotation) % variants
}

// render substitutes {placeholder} markers with context values. Markers with
// no backing field render as empty so the result never contains a number that
// is absent from the context.
func render(template string, c *models.ComposedContext) string {
	values := map[string]string{
		"persona":    c.Persona,
		"famille":    c.Family,
		"cta":        c.CTA,
		"deadline":   c.Deadline,
		"link":       c.Links.Details,
		"offer_name": "",
		"price":      "",
		"volume":     "",
		"minutes":    "",
		"sms_count":  "",
		"validity":   "",
		"dest":       "",
		"model":      "",
		"capacity":   "",
		"brand":      "",
	}

	if c.Offer != nil {
		values["offer_name"] = c.Offer.Name
		values["volume"] = c.Offer.Volume
		values["minutes"] = c.Offer.Minutes
		values["validity"] = c.Offer.Validity
		values["dest"] = c.Offer.Destinations
		if c.Offer.SMS > 0 {
			values["sms_count"] = strconv.Itoa(c.Offer.SMS)
		}
		if c.Offer.PriceDH != nil {
			values["price"] = models.FormatPriceDH(*c.Offer.PriceDH)
		}
	}
	if c.Handset != nil {
		values["model"] = c.Handset.Model
		values["capacity"] = c.Handset.Capacity
		values["brand"] = c.Handset.Brand
		if values["price"] == "" && c.Handset.PriceDH != nil {
			values["price"] = models.FormatPriceDH(*c.Handset.PriceDH)
		}
	}

	pairs := make([]string, 0, len(values)*2)
	for marker, value := range values {
		pairs = append(pairs, "{"+marker+"}", value)
	}
	message := strings.NewReplacer(pairs...).Replace(template)
	return strings.Join(strings.Fields(message), " ")
}
