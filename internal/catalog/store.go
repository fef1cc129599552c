// internal/catalog/store.go
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	commonerrors "sms-composer/internal/common/errors"
	"sms-composer/internal/models"
)

var (
	ErrItemNotFound    = errors.New("CATALOG_ITEM_NOTFOUND")
	ErrUnknownCategory = errors.New("UNKNOWN_CATALOG_CATEGORY")
)

// Store holds the offer and handset catalogs in memory. It is loaded once at
// startup and never mutated afterwards, so concurrent reads need no locking.
type Store struct {
	offers   []models.Offer
	handsets []models.Handset
	version  string
}

// Lookup returns the item with the given key within a category.
func (s *Store) Lookup(category models.Category, key string) (models.CatalogItem, error) {
	switch category {
	case models.CategoryOffers:
		for i := range s.offers {
			if s.offers[i].ID == key {
				return models.CatalogItem{Category: category, Offer: &s.offers[i]}, nil
			}
		}
	case models.CategoryHandsets:
		for i := range s.handsets {
			if s.handsets[i].ID == key {
				return models.CatalogItem{Category: category, Handset: &s.handsets[i]}, nil
			}
		}
	default:
		return models.CatalogItem{}, ErrUnknownCategory
	}
	return models.CatalogItem{}, fmt.Errorf("%w: %w",
		ErrItemNotFound, commonerrors.NewCatalogItemNotFoundError(string(category), key))
}

// All returns every item of a category in load order.
func (s *Store) All(category models.Category) []models.CatalogItem {
	switch category {
	case models.CategoryOffers:
		items := make([]models.CatalogItem, 0, len(s.offers))
		for i := range s.offers {
			items = append(items, models.CatalogItem{Category: category, Offer: &s.offers[i]})
		}
		return items
	case models.CategoryHandsets:
		items := make([]models.CatalogItem, 0, len(s.handsets))
		for i := range s.handsets {
			items = append(items, models.CatalogItem{Category: category, Handset: &s.handsets[i]})
		}
		return items
	}
	return nil
}

// DefaultOffer is the deterministic rule-based fallback used when semantic
// retrieval is disabled or empty: rows matching family and CTA first, then
// CTA only, then family only; cheapest wins, price ties broken by ID.
func (s *Store) DefaultOffer(family, cta string) (models.CatalogItem, bool) {
	var candidates []*models.Offer
	matches := func(keep func(*models.Offer) bool) []*models.Offer {
		var out []*models.Offer
		for i := range s.offers {
			if keep(&s.offers[i]) {
				out = append(out, &s.offers[i])
			}
		}
		return out
	}

	if cta != "" {
		candidates = matches(func(o *models.Offer) bool { return o.CTA == cta && o.Family == family })
		if len(candidates) == 0 {
			candidates = matches(func(o *models.Offer) bool { return o.CTA == cta })
		}
	}
	if len(candidates) == 0 {
		candidates = matches(func(o *models.Offer) bool { return o.Family == family })
	}
	if len(candidates) == 0 {
		return models.CatalogItem{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := priceOrInf(candidates[i].PriceDH), priceOrInf(candidates[j].PriceDH)
		if pi != pj {
			return pi < pj
		}
		return candidates[i].ID < candidates[j].ID
	})

	return models.CatalogItem{Category: models.CategoryOffers, Offer: candidates[0]}, true
}

// DefaultHandset picks the cheapest handset of the given brand, or the
// cheapest overall when the brand is empty or has no rows.
func (s *Store) DefaultHandset(brand string) (models.CatalogItem, bool) {
	var candidates []*models.Handset
	if brand != "" {
		for i := range s.handsets {
			if strings.EqualFold(s.handsets[i].Brand, brand) {
				candidates = append(candidates, &s.handsets[i])
			}
		}
	}
	if len(candidates) == 0 {
		for i := range s.handsets {
			candidates = append(candidates, &s.handsets[i])
		}
	}
	if len(candidates) == 0 {
		return models.CatalogItem{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := priceOrInf(candidates[i].PriceDH), priceOrInf(candidates[j].PriceDH)
		if pi != pj {
			return pi < pj
		}
		return candidates[i].ID < candidates[j].ID
	})

	return models.CatalogItem{Category: models.CategoryHandsets, Handset: candidates[0]}, true
}

// Version returns the catalog version inherited from the first loaded row,
// surfaced by the health endpoint.
func (s *Store) Version() string {
	return s.version
}

// Counts returns the number of loaded offers and handsets.
func (s *Store) Counts() (offers, handsets int) {
	return len(s.offers), len(s.handsets)
}

func priceOrInf(p *float64) float64 {
	if p == nil {
		return 1e18
	}
	return *p
}

func (s *Store) deriveVersion() {
	if len(s.offers) > 0 && s.offers[0].CatalogVersion != "" {
		s.version = s.offers[0].CatalogVersion
		return
	}
	if len(s.handsets) > 0 {
		s.version = s.handsets[0].CatalogVersion
	}
}
