// internal/composer/contract.go
package composer

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	commonerrors "sms-composer/internal/common/errors"
	"sms-composer/internal/models"
)

// contextSchema is the JSON contract of the generation payload. The live
// model was fine-tuned on exactly this shape, so a payload that drifts from
// it is rejected before dispatch.
const contextSchema = `{
	"type": "object",
	"required": ["persona", "famille", "deadline", "links"],
	"properties": {
		"persona": {"type": "string", "minLength": 1},
		"famille": {"type": "string", "minLength": 1},
		"cta": {"type": "string"},
		"deadline": {"type": "string", "pattern": "^[0-9]{1,2} [a-z]+$"},
		"offer_context": {
			"type": "object",
			"required": ["offre"],
			"properties": {
				"offre": {"type": "string", "minLength": 1},
				"volume": {"type": "string"},
				"minutes": {"type": "string"},
				"sms": {"type": "integer", "minimum": 0},
				"validite": {"type": "string"},
				"prix_dh": {"type": "number", "minimum": 0},
				"destinations": {"type": "string"},
				"details": {"type": "string"}
			}
		},
		"handset_context": {
			"type": "object",
			"properties": {
				"marque": {"type": "string"},
				"modele": {"type": "string"},
				"capacite": {"type": "string"},
				"prix_dh": {"type": "number", "minimum": 0}
			}
		},
		"promo_context": {
			"type": "object",
			"required": ["prix_promo_dh"],
			"properties": {
				"prix_promo_dh": {"type": "integer", "minimum": 1}
			}
		},
		"links": {
			"type": "object",
			"required": ["details"],
			"properties": {
				"details": {"type": "string", "minLength": 1}
			}
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(contextSchema)

// validateContract checks the composed payload against the generation
// contract before it is allowed to reach a backend.
func validateContract(composed *models.ComposedContext) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(composed))
	if err != nil {
		return fmt.Errorf("contract validation error: %w", err)
	}

	if !result.Valid() {
		descs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			descs[i] = desc.String()
		}
		return commonerrors.NewContextContractInvalidError(strings.Join(descs, "; "))
	}

	return nil
}
