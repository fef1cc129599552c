// internal/catalog/csv.go
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	commonerrors "sms-composer/internal/common/errors"
	"sms-composer/internal/common/logger"
	"sms-composer/internal/models"
)

const (
	offersFile   = "offres.csv"
	handsetsFile = "smartphones.csv"
)

// NewFromCSV loads both catalogs from a directory holding offres.csv and
// smartphones.csv. A missing file yields an empty category; malformed rows
// are skipped with a warning, never fatal.
func NewFromCSV(dir string, log logger.Logger) (*Store, error) {
	s := &Store{}

	offerRows, err := readCSV(filepath.Join(dir, offersFile))
	if err != nil {
		return nil, commonerrors.NewCatalogLoadFailedError(fmt.Errorf("read offers catalog: %w", err))
	}
	for n, row := range offerRows {
		offer, err := offerFromRow(row)
		if err != nil {
			log.Warn("skipping malformed offer row", map[string]interface{}{
				"row":   n + 2, // header is line 1
				"error": err.Error(),
			})
			continue
		}
		s.offers = append(s.offers, offer)
	}

	handsetRows, err := readCSV(filepath.Join(dir, handsetsFile))
	if err != nil {
		return nil, commonerrors.NewCatalogLoadFailedError(fmt.Errorf("read handsets catalog: %w", err))
	}
	for n, row := range handsetRows {
		handset, err := handsetFromRow(row)
		if err != nil {
			log.Warn("skipping malformed handset row", map[string]interface{}{
				"row":   n + 2,
				"error": err.Error(),
			})
			continue
		}
		s.handsets = append(s.handsets, handset)
	}

	s.deriveVersion()

	log.Info("catalog loaded", map[string]interface{}{
		"offers":   len(s.offers),
		"handsets": len(s.handsets),
		"version":  s.version,
	})

	return s, nil
}

// readCSV reads a file into header-keyed rows. The delimiter is sniffed from
// the first line since exports alternate between comma and semicolon.
func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	sample := make([]byte, 1024)
	n, _ := f.Read(sample)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	reader := csv.NewReader(f)
	reader.Comma = detectDelimiter(string(sample[:n]))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[strings.TrimSpace(col)] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func detectDelimiter(sample string) rune {
	line := sample
	if idx := strings.IndexByte(sample, '\n'); idx >= 0 {
		line = sample[:idx]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

func offerFromRow(row map[string]string) (models.Offer, error) {
	if row["id"] == "" {
		return models.Offer{}, fmt.Errorf("missing id")
	}
	if row["libelle"] == "" {
		return models.Offer{}, fmt.Errorf("missing libelle")
	}

	return models.Offer{
		ID:             row["id"],
		CTA:            row["cta"],
		Family:         row["famille"],
		Label:          row["libelle"],
		VolumeMB:       parseFloat(row["volume"]),
		Minutes:        parseInt(row["minutes"]),
		SMS:            parseInt(row["sms"]),
		ValidityDays:   parseInt(row["validite_jours"]),
		PriceDH:        parseFloat(row["prix_dh"]),
		Zone:           row["zone"],
		Link:           row["link"],
		CatalogVersion: row["version_catalogue"],
	}, nil
}

func handsetFromRow(row map[string]string) (models.Handset, error) {
	if row["id"] == "" {
		return models.Handset{}, fmt.Errorf("missing id")
	}
	if row["modele"] == "" {
		return models.Handset{}, fmt.Errorf("missing modele")
	}

	return models.Handset{
		ID:             row["id"],
		Brand:          strings.ToUpper(row["marque"]),
		Model:          row["modele"],
		Capacity:       row["capacite"],
		PriceDH:        parseFloat(row["prix_dh"]),
		Tier:           row["gamme"],
		Link:           row["link"],
		CTA:            row["cta"],
		CatalogVersion: row["version_catalogue"],
	}, nil
}

// parseFloat accepts both decimal separators; unparsable values become nil
// rather than zero so absent numbers are never fabricated downstream.
func parseFloat(value string) *float64 {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseInt(value string) *int {
	f := parseFloat(value)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}
