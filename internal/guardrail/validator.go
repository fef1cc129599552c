// internal/guardrail/validator.go
package guardrail

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"sms-composer/internal/common/config"
	"sms-composer/internal/common/logger"
	"sms-composer/internal/common/metrics"
	"sms-composer/internal/models"
)

// numberPattern matches numeric tokens with either decimal separator, so
// "49", "1.5" and "1,5" are all single tokens.
var numberPattern = regexp.MustCompile(`[0-9]+(?:[.,][0-9]+)?`)

// Validator checks candidate messages against the business-compliance rules.
// Rules are independent: a candidate is evaluated against all of them and the
// outcome carries every violated rule in stable order.
type Validator struct {
	maxChars  int
	allowList []string
	logger    logger.Logger
}

func New(cfg config.GuardrailConfig, log logger.Logger) *Validator {
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 480
	}
	return &Validator{
		maxChars:  maxChars,
		allowList: cfg.CTAAllowList,
		logger:    log.With(map[string]interface{}{"component": "guardrail"}),
	}
}

// Validate runs every rule against the candidate. The rule order in
// Violations is fixed regardless of input.
func (v *Validator) Validate(candidate string, ctx *models.ComposedContext) models.ValidationOutcome {
	var violations []string

	if utf8.RuneCountInString(candidate) > v.maxChars {
		violations = append(violations, models.RuleLength)
	}
	if !v.numbersTraceable(candidate, ctx) {
		violations = append(violations, models.RuleNumericFidelity)
	}
	if !v.hasCallToAction(candidate, ctx) {
		violations = append(violations, models.RuleCallToAction)
	}

	for _, rule := range violations {
		metrics.GuardrailViolations.WithLabelValues(rule).Inc()
	}

	return models.ValidationOutcome{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

// numbersTraceable checks that every numeric token in the candidate carries a
// value present somewhere in the composed context. Comparison is by numeric
// value, so "49", "49.0" and "49,00" all trace to a 49 DH price.
func (v *Validator) numbersTraceable(candidate string, ctx *models.ComposedContext) bool {
	allowed := contextValues(ctx)
	for _, token := range numberPattern.FindAllString(candidate, -1) {
		value, err := parseToken(token)
		if err != nil {
			return false
		}
		if !allowed[value] {
			return false
		}
	}
	return true
}

func (v *Validator) hasCallToAction(candidate string, ctx *models.ComposedContext) bool {
	lower := strings.ToLower(candidate)

	if ctx.CTA != "" && strings.Contains(lower, strings.ToLower(ctx.CTA)) {
		return true
	}
	if ctx.Links.Details != "" && strings.Contains(lower, strings.ToLower(ctx.Links.Details)) {
		return true
	}
	for _, phrase := range v.allowList {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// contextValues collects every numeric value derivable from the context:
// prices, formatted volumes and durations, the promo price, the deadline day,
// CTA short-code digits and link digits. A number outside this set cannot
// appear in a compliant message.
func contextValues(ctx *models.ComposedContext) map[float64]bool {
	values := make(map[float64]bool)

	addString := func(s string) {
		for _, token := range numberPattern.FindAllString(s, -1) {
			if value, err := parseToken(token); err == nil {
				values[value] = true
			}
		}
	}
	addFloat := func(f *float64) {
		if f != nil {
			values[*f] = true
		}
	}

	addString(ctx.Deadline)
	addString(ctx.CTA)
	addString(ctx.Links.Details)

	if ctx.Offer != nil {
		addString(ctx.Offer.Name)
		addString(ctx.Offer.Volume)
		addString(ctx.Offer.Minutes)
		addString(ctx.Offer.Validity)
		addString(ctx.Offer.Destinations)
		addString(ctx.Offer.Details)
		addFloat(ctx.Offer.PriceDH)
		if ctx.Offer.SMS > 0 {
			values[float64(ctx.Offer.SMS)] = true
		}
	}
	if ctx.Handset != nil {
		addString(ctx.Handset.Model)
		addString(ctx.Handset.Capacity)
		addFloat(ctx.Handset.PriceDH)
	}
	if ctx.Promo != nil {
		values[float64(ctx.Promo.PromoPriceDH)] = true
	}

	return values
}

func parseToken(token string) (float64, error) {
	value, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric token %q: %w", token, err)
	}
	return value, nil
}
