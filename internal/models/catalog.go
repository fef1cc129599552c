// internal/models/catalog.go
package models

// Category identifies one of the two catalog record families. The values
// double as collection/index names for the semantic retriever.
type Category string

const (
	CategoryOffers   Category = "offres"
	CategoryHandsets Category = "smartphones"
)

// Offer is a promotional plan row from the offers catalog. Pointer fields are
// absent when the source row left them empty; numbers are never defaulted.
type Offer struct {
	ID             string   `json:"id"`
	CTA            string   `json:"cta"` // USSD short code or keyword, e.g. "*3"
	Family         string   `json:"famille"`
	Label          string   `json:"libelle"`
	VolumeMB       *float64 `json:"volume,omitempty"`
	Minutes        *int     `json:"minutes,omitempty"` // negative means unlimited
	SMS            *int     `json:"sms,omitempty"`
	ValidityDays   *int     `json:"validite_jours,omitempty"`
	PriceDH        *float64 `json:"prix_dh,omitempty"`
	Zone           string   `json:"zone,omitempty"` // roaming destinations
	Link           string   `json:"link,omitempty"`
	CatalogVersion string   `json:"version_catalogue,omitempty"`
}

// Handset is a device row from the smartphones catalog.
type Handset struct {
	ID             string   `json:"id"`
	Brand          string   `json:"marque"`
	Model          string   `json:"modele"`
	Capacity       string   `json:"capacite,omitempty"`
	PriceDH        *float64 `json:"prix_dh,omitempty"`
	Tier           string   `json:"gamme,omitempty"` // "entree", "milieu", "premium"
	Link           string   `json:"link,omitempty"`
	CTA            string   `json:"cta,omitempty"`
	CatalogVersion string   `json:"version_catalogue,omitempty"`
}

// CatalogItem is a tagged variant over the two catalog categories. Exactly one
// of Offer/Handset is set, matching Category.
type CatalogItem struct {
	Category Category `json:"category"`
	Offer    *Offer   `json:"offer,omitempty"`
	Handset  *Handset `json:"handset,omitempty"`
}

// Key returns the identifier that is unique within the item's category.
func (i CatalogItem) Key() string {
	switch {
	case i.Offer != nil:
		return i.Offer.ID
	case i.Handset != nil:
		return i.Handset.ID
	}
	return ""
}

// Price returns the item price in DH, or nil when the source row had none.
func (i CatalogItem) Price() *float64 {
	switch {
	case i.Offer != nil:
		return i.Offer.PriceDH
	case i.Handset != nil:
		return i.Handset.PriceDH
	}
	return nil
}

// ScoredItem pairs a catalog item with its retrieval similarity score.
type ScoredItem struct {
	Item  CatalogItem `json:"item"`
	Score float64     `json:"score"`
}

// RetrievalResult is a ranked sequence of catalog items. An empty result means
// "no relevant match" and is indistinguishable from "retrieval unavailable".
type RetrievalResult []ScoredItem
