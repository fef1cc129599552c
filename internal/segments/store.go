// internal/segments/store.go
package segments

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"sms-composer/internal/common/logger"
	"sms-composer/internal/models"
)

var ErrSegmentNotFound = errors.New("SEGMENT_NOT_FOUND")

// Store holds the segmentation output in memory, keyed by FAMILY:PERSONA.
// Loaded once at startup, read-only afterwards.
type Store struct {
	records map[string]*models.SegmentationRecord
}

// NewFromCSV loads segmentation records from the export produced by the
// upstream segmentation job. Rows missing famille or persona are skipped
// with a warning.
func NewFromCSV(path string, log logger.Logger) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open segmentation export: %w", err)
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

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read segmentation export: %w", err)
	}

	s := &Store{records: make(map[string]*models.SegmentationRecord)}
	if len(rows) < 2 {
		log.Warn("segmentation export is empty", map[string]interface{}{"path": path})
		return s, nil
	}

	header := rows[0]
	for n, raw := range rows[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(raw) {
				row[strings.TrimSpace(col)] = strings.TrimSpace(raw[i])
			}
		}

		record, err := recordFromRow(row)
		if err != nil {
			log.Warn("skipping malformed segmentation row", map[string]interface{}{
				"row":   n + 2,
				"error": err.Error(),
			})
			continue
		}
		s.records[record.Key()] = record
	}

	log.Info("segmentation records loaded", map[string]interface{}{
		"path":    path,
		"records": len(s.records),
	})

	return s, nil
}

// Resolve returns the record for a FAMILY:PERSONA key.
func (s *Store) Resolve(key string) (*models.SegmentationRecord, error) {
	record, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, key)
	}
	return record, nil
}

// Count returns the number of loaded records.
func (s *Store) Count() int {
	return len(s.records)
}

func recordFromRow(row map[string]string) (*models.SegmentationRecord, error) {
	if row["famille"] == "" {
		return nil, fmt.Errorf("missing famille")
	}
	if row["persona"] == "" {
		return nil, fmt.Errorf("missing persona")
	}

	return &models.SegmentationRecord{
		Family:       row["famille"],
		Persona:      row["persona"],
		DataTier:     parseTier(row["data_tier"]),
		VoiceTier:    parseTier(row["voice_tier"]),
		SMSTier:      parseTier(row["sms_tier"]),
		Roaming:      parseBool(row["roaming"]),
		HandsetBrand: strings.ToUpper(row["hset_brand"]),
		HandsetModel: row["hset_model"],
		CTA:          row["cta"],
	}, nil
}

// parseTier clamps usage tiers to the 0-4 scale the segmentation job emits.
func parseTier(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0
	}
	if n > 4 {
		return 4
	}
	return n
}

func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "1", "true", "oui", "yes":
		return true
	}
	return false
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
