// internal/models/context.go
package models

import (
	"fmt"
	"strings"
)

// BrandDirectives are free-form caller overrides merged into the composed
// context. All fields are optional.
type BrandDirectives struct {
	Brand string `json:"brand,omitempty"` // bias handset selection toward a brand
	CTA   string `json:"cta,omitempty"`   // override the record's short code
	Link  string `json:"link,omitempty"`  // override the details link
}

// OfferContext carries the selected offer's display fields. Volume, minutes
// and validity are pre-formatted for message insertion ("10 Go", "120 min",
// "7 jours"); the raw numbers are preserved inside the formatted strings so
// the guardrail validator can trace them.
type OfferContext struct {
	Name         string   `json:"offre"`
	Volume       string   `json:"volume,omitempty"`
	Minutes      string   `json:"minutes,omitempty"`
	SMS          int      `json:"sms,omitempty"`
	Validity     string   `json:"validite,omitempty"`
	PriceDH      *float64 `json:"prix_dh,omitempty"`
	Destinations string   `json:"destinations,omitempty"`
	Details      string   `json:"details,omitempty"`
}

// HandsetContext carries the selected handset's display fields.
type HandsetContext struct {
	Brand    string   `json:"marque,omitempty"`
	Model    string   `json:"modele,omitempty"`
	Capacity string   `json:"capacite,omitempty"`
	PriceDH  *float64 `json:"prix_dh,omitempty"`
}

// PromoContext holds the derived promotional price. It is computed from the
// selected item's catalog price, never invented.
type PromoContext struct {
	PromoPriceDH int `json:"prix_promo_dh"`
}

// Links groups outbound URLs included in the generation payload.
type Links struct {
	Details string `json:"details"`
}

// ComposedContext is the canonical structured generation payload. The JSON
// shape matches the format the live model was fine-tuned on. Invariant: every
// numeric value originates from a SegmentationRecord or CatalogItem field.
type ComposedContext struct {
	Persona  string          `json:"persona"`
	Family   string          `json:"famille"`
	CTA      string          `json:"cta"`
	Deadline string          `json:"deadline"` // e.g. "30 septembre"
	Offer    *OfferContext   `json:"offer_context,omitempty"`
	Handset  *HandsetContext `json:"handset_context,omitempty"`
	Promo    *PromoContext   `json:"promo_context,omitempty"`
	Links    Links           `json:"links"`
}

// StableKey returns the concatenation of the context fields that identify a
// campaign situation. It is the hashing base for deterministic template
// rotation: two contexts with equal stable keys rotate identically.
func (c *ComposedContext) StableKey() string {
	parts := []string{c.Family, c.Persona, c.CTA}
	if c.Offer != nil {
		parts = append(parts, c.Offer.Name)
	}
	if c.Handset != nil {
		parts = append(parts, c.Handset.Brand, c.Handset.Model)
	}
	return strings.Join(parts, "|")
}

// SelectorKey returns the third element of the template lookup triplet: the
// handset brand for equipment campaigns, otherwise the CTA short code.
func (c *ComposedContext) SelectorKey() string {
	if c.Handset != nil && c.Handset.Brand != "" {
		return strings.ToUpper(c.Handset.Brand)
	}
	return c.CTA
}

// FormatPriceDH renders a catalog price for message insertion ("49 DH").
func FormatPriceDH(price float64) string {
	if price == float64(int64(price)) {
		return fmt.Sprintf("%d DH", int64(price))
	}
	return fmt.Sprintf("%.2f DH", price)
}
