// internal/catalog/postgres.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	commonerrors "sms-composer/internal/common/errors"
	"sms-composer/internal/common/logger"
	"sms-composer/internal/models"
)

// NewFromPostgres loads both catalogs from Postgres tables. Rows that fail to
// scan are skipped with a warning, matching the CSV loader's behavior.
func NewFromPostgres(ctx context.Context, db *sql.DB, offersTable, handsetsTable string, log logger.Logger) (*Store, error) {
	s := &Store{}

	// Table names come from config, not user input; identifiers cannot be
	// bound as query parameters.
	offerQuery := fmt.Sprintf(
		`SELECT id, cta, famille, libelle, volume, minutes, sms, validite_jours, prix_dh, zone, link, version_catalogue
		 FROM %s ORDER BY id`, offersTable)

	rows, err := db.QueryContext(ctx, offerQuery)
	if err != nil {
		return nil, commonerrors.NewCatalogLoadFailedError(fmt.Errorf("query offers catalog: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o                           models.Offer
			cta, famille, zone          sql.NullString
			link, version               sql.NullString
			volume, price               sql.NullFloat64
			minutes, smsCount, validity sql.NullInt64
		)
		if err := rows.Scan(&o.ID, &cta, &famille, &o.Label, &volume, &minutes, &smsCount, &validity, &price, &zone, &link, &version); err != nil {
			log.Warn("skipping malformed offer row", map[string]interface{}{"error": err.Error()})
			continue
		}
		o.CTA = cta.String
		o.Family = famille.String
		o.Zone = zone.String
		o.Link = link.String
		o.CatalogVersion = version.String
		o.VolumeMB = nullFloat(volume)
		o.Minutes = nullInt(minutes)
		o.SMS = nullInt(smsCount)
		o.ValidityDays = nullInt(validity)
		o.PriceDH = nullFloat(price)
		s.offers = append(s.offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, commonerrors.NewCatalogLoadFailedError(fmt.Errorf("iterate offers catalog: %w", err))
	}

	handsetQuery := fmt.Sprintf(
		`SELECT id, marque, modele, capacite, prix_dh, gamme, link, cta, version_catalogue
		 FROM %s ORDER BY id`, handsetsTable)

	hrows, err := db.QueryContext(ctx, handsetQuery)
	if err != nil {
		return nil, commonerrors.NewCatalogLoadFailedError(fmt.Errorf("query handsets catalog: %w", err))
	}
	defer hrows.Close()

	for hrows.Next() {
		var (
			h                     models.Handset
			brand, capacity, tier sql.NullString
			link, cta, version    sql.NullString
			price                 sql.NullFloat64
		)
		if err := hrows.Scan(&h.ID, &brand, &h.Model, &capacity, &price, &tier, &link, &cta, &version); err != nil {
			log.Warn("skipping malformed handset row", map[string]interface{}{"error": err.Error()})
			continue
		}
		h.Brand = strings.ToUpper(brand.String)
		h.Capacity = capacity.String
		h.Tier = tier.String
		h.Link = link.String
		h.CTA = cta.String
		h.CatalogVersion = version.String
		h.PriceDH = nullFloat(price)
		s.handsets = append(s.handsets, h)
	}
	if err := hrows.Err(); err != nil {
		return nil, commonerrors.NewCatalogLoadFailedError(fmt.Errorf("iterate handsets catalog: %w", err))
	}

	s.deriveVersion()

	log.Info("catalog loaded", map[string]interface{}{
		"source":   "postgres",
		"offers":   len(s.offers),
		"handsets": len(s.handsets),
		"version":  s.version,
	})

	return s, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
