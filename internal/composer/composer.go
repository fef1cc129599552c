// internal/composer/composer.go
package composer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"sms-composer/internal/catalog"
	"sms-composer/internal/common/config"
	"sms-composer/internal/common/logger"
	"sms-composer/internal/common/metrics"
	"sms-composer/internal/models"
	"sms-composer/internal/retriever"
	"sms-composer/internal/segments"
)

// EquipmentFamily marks segments whose campaign sells a handset instead of a
// usage pass. The value comes from the upstream segmentation taxonomy.
const EquipmentFamily = "OPPORTUNITE_Achat_Equipement"

const (
	defaultOfferLink   = "https://bit.ly/Recharge_IAM"
	defaultHandsetLink = "https://offres.iam.ma/smartphones"
)

var monthsFR = []string{
	"janvier", "fevrier", "mars", "avril", "mai", "juin",
	"juillet", "aout", "septembre", "octobre", "novembre", "decembre",
}

// Composer assembles the structured generation payload from the segmentation
// record, catalog lookups and optional semantic retrieval.
type Composer struct {
	segments  *segments.Store
	catalog   *catalog.Store
	retriever retriever.Retriever
	cfg       config.RetrieverConfig
	logger    logger.Logger

	// now is swapped in tests to pin the deadline.
	now func() time.Time
}

func New(seg *segments.Store, cat *catalog.Store, ret retriever.Retriever, cfg config.RetrieverConfig, log logger.Logger) *Composer {
	return &Composer{
		segments:  seg,
		catalog:   cat,
		retriever: ret,
		cfg:       cfg,
		logger:    log.With(map[string]interface{}{"component": "composer"}),
		now:       time.Now,
	}
}

// Compose resolves the segmentation record and builds the generation context.
// The only hard failure is an unknown segmentation key; retrieval problems
// degrade to the deterministic catalog defaults.
func (c *Composer) Compose(ctx context.Context, segmentationKey string, directives *models.BrandDirectives) (*models.ComposedContext, error) {
	record, err := c.segments.Resolve(segmentationKey)
	if err != nil {
		return nil, err
	}
	if directives == nil {
		directives = &models.BrandDirectives{}
	}

	composed := &models.ComposedContext{
		Persona:  record.Persona,
		Family:   record.Family,
		Deadline: c.deadline(),
	}

	cta := directives.CTA
	if cta == "" {
		cta = record.CTA
	}

	link := ""
	if record.Family == EquipmentFamily {
		handset := c.selectHandset(ctx, record, directives)
		if handset != nil {
			composed.Handset = &models.HandsetContext{
				Brand:    handset.Brand,
				Model:    handset.Model,
				Capacity: handset.Capacity,
				PriceDH:  handset.PriceDH,
			}
			composed.Promo = promoFromPrice(handset.PriceDH)
			if cta == "" {
				cta = handset.CTA
			}
			link = handset.Link
		}
		if link == "" {
			link = defaultHandsetLink
		}
	} else {
		offer := c.selectOffer(ctx, record, cta)
		composed.Offer = offerContext(offer, cta)
		if offer != nil {
			composed.Promo = promoFromPrice(offer.PriceDH)
			link = offer.Link
		}
		if link == "" {
			link = defaultOfferLink
		}
	}

	if directives.Link != "" {
		link = directives.Link
	}
	composed.CTA = cta
	composed.Links = models.Links{Details: link}

	if err := validateContract(composed); err != nil {
		return nil, err
	}

	return composed, nil
}

// selectOffer takes the top-ranked retrieval hit, else the deterministic
// catalog default.
func (c *Composer) selectOffer(ctx context.Context, record *models.SegmentationRecord, cta string) *models.Offer {
	if c.retriever.Available() {
		result := c.retriever.Retrieve(ctx, models.CategoryOffers, c.offerQuery(record), c.cfg.TopK)
		if len(result) > 0 && result[0].Item.Offer != nil {
			return result[0].Item.Offer
		}
		c.logger.Warn("offer retrieval empty, using catalog default", map[string]interface{}{
			"segment": record.Key(),
		})
	}
	metrics.RetrievalFallbacks.WithLabelValues(string(models.CategoryOffers)).Inc()

	item, ok := c.catalog.DefaultOffer(record.Family, cta)
	if !ok {
		return nil
	}
	return item.Offer
}

func (c *Composer) selectHandset(ctx context.Context, record *models.SegmentationRecord, directives *models.BrandDirectives) *models.Handset {
	brand := directives.Brand
	if brand == "" {
		brand = record.HandsetBrand
	}
	brand = normalizeBrand(brand)

	if c.retriever.Available() {
		result := c.retriever.Retrieve(ctx, models.CategoryHandsets, c.handsetQuery(record, brand), c.cfg.TopK)
		if len(result) > 0 && result[0].Item.Handset != nil {
			return result[0].Item.Handset
		}
		c.logger.Warn("handset retrieval empty, using catalog default", map[string]interface{}{
			"segment": record.Key(),
		})
	}
	metrics.RetrievalFallbacks.WithLabelValues(string(models.CategoryHandsets)).Inc()

	item, ok := c.catalog.DefaultHandset(brand)
	if !ok {
		return nil
	}
	return item.Handset
}

// brandAliases maps raw segmentation brand values onto catalog brands.
// Segmentation rows carry commercial names like "IPHONE" that never appear
// as a catalog marque.
var brandAliases = []struct{ raw, canonical string }{
	{"IPHONE", "APPLE"},
	{"APPLE", "APPLE"},
	{"SAMSUNG", "SAMSUNG"},
	{"XIAOMI", "XIAOMI"},
	{"OPPO", "OPPO"},
	{"HONOR", "HONOR"},
	{"TECNO", "TECNO"},
}

// normalizeBrand resolves a raw brand value to its catalog brand by substring
// match. Unrecognized values resolve to empty, which drops the brand filter.
func normalizeBrand(value string) string {
	upper := strings.ToUpper(value)
	for _, alias := range brandAliases {
		if strings.Contains(upper, alias.raw) {
			return alias.canonical
		}
	}
	return ""
}

// offerQuery builds the retrieval text in the same shape the index documents
// were embedded with.
func (c *Composer) offerQuery(record *models.SegmentationRecord) string {
	parts := []string{
		fmt.Sprintf("OFFRE famille %s", record.Family),
		fmt.Sprintf("persona %s", record.Persona),
		fmt.Sprintf("data %d/4", record.DataTier),
		fmt.Sprintf("voix %d/4", record.VoiceTier),
		fmt.Sprintf("sms %d/4", record.SMSTier),
	}
	if record.Roaming {
		parts = append(parts, "roaming international")
	}
	return "query: " + strings.Join(parts, " | ")
}

func (c *Composer) handsetQuery(record *models.SegmentationRecord, brand string) string {
	parts := []string{"SMARTPHONE"}
	if brand != "" {
		parts = append(parts, brand)
	}
	if record.HandsetModel != "" {
		parts = append(parts, record.HandsetModel)
	}
	parts = append(parts, fmt.Sprintf("persona %s", record.Persona))
	return "query: " + strings.Join(parts, " | ")
}

// deadline renders the last day of the current month as a French date,
// "30 septembre" style.
func (c *Composer) deadline() string {
	now := c.now()
	firstOfNext := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
	end := firstOfNext.AddDate(0, 0, -1)
	return fmt.Sprintf("%d %s", end.Day(), monthsFR[end.Month()-1])
}

func offerContext(offer *models.Offer, cta string) *models.OfferContext {
	if offer == nil {
		// Generic pass naming when the catalog has no candidate, same as the
		// upstream composer.
		name := "Pass"
		if cta != "" {
			name = "Pass " + cta
		}
		return &models.OfferContext{Name: name}
	}

	oc := &models.OfferContext{
		Name:         offer.Label,
		PriceDH:      offer.PriceDH,
		Destinations: offer.Zone,
		Details:      offer.Link,
	}
	if offer.VolumeMB != nil {
		oc.Volume = formatVolume(*offer.VolumeMB)
	}
	if offer.Minutes != nil {
		oc.Minutes = formatMinutes(*offer.Minutes)
	}
	if offer.SMS != nil {
		oc.SMS = *offer.SMS
	}
	if offer.ValidityDays != nil {
		oc.Validity = fmt.Sprintf("%d jours", *offer.ValidityDays)
	}
	return oc
}

// formatVolume renders megabytes for message insertion: gigabytes from 1 Go
// up, whole numbers without a decimal.
func formatVolume(mb float64) string {
	if mb >= 1024 {
		gb := mb / 1024
		if math.Abs(gb-math.Round(gb)) < 1e-6 {
			return fmt.Sprintf("%d Go", int(math.Round(gb)))
		}
		return fmt.Sprintf("%.1f Go", gb)
	}
	return fmt.Sprintf("%d Mo", int(mb))
}

// formatMinutes renders voice minutes; negative catalog values mean
// unlimited.
func formatMinutes(minutes int) string {
	if minutes < 0 {
		return "illimite"
	}
	return fmt.Sprintf("%d min", minutes)
}

// promoFromPrice derives the promotional price: 25 percent off, rounded,
// never below 1 DH. Nil price means no promo block at all.
func promoFromPrice(price *float64) *models.PromoContext {
	if price == nil {
		return nil
	}
	promo := int(math.Round(*price * 0.75))
	if promo < 1 {
		promo = 1
	}
	return &models.PromoContext{PromoPriceDH: promo}
}
