// internal/guardrail/validator_test.go
package guardrail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"sms-composer/internal/common/config"
	"sms-composer/internal/common/logger"
	"sms-composer/internal/models"
)

func testValidator(t *testing.T) *Validator {
	t.Helper()
	return New(config.GuardrailConfig{
		MaxChars:     480,
		CTAAllowList: []string{"Composez", "Cliquez", "iam.ma"},
	}, logger.NewTestLogger(t))
}

func testContext() *models.ComposedContext {
	price := 49.0
	return &models.ComposedContext{
		Persona:  "PROFIL_Internet",
		Family:   "USAGE_Internet",
		CTA:      "*3",
		Deadline: "30 septembre",
		Offer: &models.OfferContext{
			Name:     "Pass Data 5 Go",
			Volume:   "5 Go",
			Validity: "30 jours",
			PriceDH:  &price,
		},
		Promo: &models.PromoContext{PromoPriceDH: 37},
		Links: models.Links{Details: "https://iam.ma/pass"},
	}
}

func TestValidateCompliantMessage(t *testing.T) {
	v := testValidator(t)

	outcome := v.Validate("Pass Data 5 Go : 5 Go pour 49 DH, valable 30 jours. Composez *3.", testContext())
	assert.True(t, outcome.Valid)
	assert.Empty(t, outcome.Violations)
}

func TestValidateExtraneousPriceFails(t *testing.T) {
	v := testValidator(t)

	outcome := v.Validate("Pass Data 5 Go pour seulement 25 DH ! Composez *3.", testContext())
	assert.False(t, outcome.Valid)
	assert.Equal(t, []string{models.RuleNumericFidelity}, outcome.Violations)
}

func TestValidateNumericValueEquivalence(t *testing.T) {
	v := testValidator(t)

	// Same values, different renderings.
	outcome := v.Validate("5 Go a 49,00 DH, promo 37 DH. Composez *3.", testContext())
	assert.True(t, outcome.Valid, "decimal separator and trailing zeros must not break traceability")
}

func TestValidateLength(t *testing.T) {
	v := testValidator(t)

	long := "Composez *3. " + strings.Repeat("a", 480)
	outcome := v.Validate(long, testContext())
	assert.False(t, outcome.Valid)
	assert.Contains(t, outcome.Violations, models.RuleLength)
}

func TestValidateMissingCallToAction(t *testing.T) {
	v := New(config.GuardrailConfig{MaxChars: 480}, logger.NewTestLogger(t))

	outcome := v.Validate("Une offre incroyable vous attend.", testContext())
	assert.False(t, outcome.Valid)
	assert.Equal(t, []string{models.RuleCallToAction}, outcome.Violations)
}

func TestValidateLinkCountsAsCallToAction(t *testing.T) {
	v := New(config.GuardrailConfig{MaxChars: 480}, logger.NewTestLogger(t))

	outcome := v.Validate("Details sur https://iam.ma/pass", testContext())
	assert.True(t, outcome.Valid)
}

func TestValidateAllowListPhrase(t *testing.T) {
	v := testValidator(t)

	ctx := testContext()
	ctx.CTA = ""
	ctx.Links.Details = "https://example.com"

	outcome := v.Validate("Offre Pass Data 5 Go. Cliquez pour en profiter.", ctx)
	assert.True(t, outcome.Valid)
}

func TestValidateAggregatesAllViolationsInOrder(t *testing.T) {
	v := New(config.GuardrailConfig{MaxChars: 40}, logger.NewTestLogger(t))

	// Too long, carries a fabricated number and no call to action.
	candidate := "Offre a 999 DH. " + strings.Repeat("b", 60)
	outcome := v.Validate(candidate, testContext())

	assert.False(t, outcome.Valid)
	assert.Equal(t, []string{
		models.RuleLength,
		models.RuleNumericFidelity,
		models.RuleCallToAction,
	}, outcome.Violations, "violations are reported exhaustively in stable order")
}

func TestValidateDeadlineAndCTADigitsAllowed(t *testing.T) {
	v := testValidator(t)

	outcome := v.Validate("Offre valable jusqu'au 30 septembre. Composez *3.", testContext())
	assert.True(t, outcome.Valid)
}

func TestValidateHandsetContext(t *testing.T) {
	v := testValidator(t)

	price := 9999.0
	ctx := &models.ComposedContext{
		Persona:  "OPPORTUNITE_AchatNouveaute",
		Family:   "OPPORTUNITE_Achat_Equipement",
		Deadline: "31 octobre",
		Handset: &models.HandsetContext{
			Brand:    "APPLE",
			Model:    "iPhone 15",
			Capacity: "128 Go",
			PriceDH:  &price,
		},
		Promo: &models.PromoContext{PromoPriceDH: 7499},
		Links: models.Links{Details: "https://iam.ma/iphone"},
	}

	outcome := v.Validate("L'iPhone 15 128 Go est a 9999 DH, promo 7499 DH jusqu'au 31 octobre. Cliquez : https://iam.ma/iphone", ctx)
	assert.True(t, outcome.Valid)

	outcome = v.Validate("L'iPhone 16 est arrive ! Cliquez : https://iam.ma/iphone", ctx)
	assert.False(t, outcome.Valid)
	assert.Contains(t, outcome.Violations, models.RuleNumericFidelity)
}

func TestValidateMessageWithoutNumbers(t *testing.T) {
	v := testValidator(t)

	outcome := v.Validate("Une offre exclusive vous attend. Composez *3.", testContext())
	assert.True(t, outcome.Valid, "a candidate with no numbers trivially satisfies numeric fidelity")
}
