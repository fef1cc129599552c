// internal/models/segmentation.go
package models

// SegmentationRecord is one row of the usage-segmentation output, keyed by the
// (family, persona) pair. Records are produced by the external segmentation
// job and are immutable once loaded.
type SegmentationRecord struct {
	Family       string `json:"famille"`
	Persona      string `json:"persona"`
	DataTier     int    `json:"data_tier"`  // 0-4, from monthly data volume
	VoiceTier    int    `json:"voice_tier"` // 0-4, from monthly voice minutes
	SMSTier      int    `json:"sms_tier"`   // 0-4, from monthly SMS count
	Roaming      bool   `json:"roaming"`
	HandsetBrand string `json:"hset_brand,omitempty"`
	HandsetModel string `json:"hset_model,omitempty"`
	CTA          string `json:"cta,omitempty"` // default campaign short code
}

// SegmentKey builds the lookup key used by the composer.
func SegmentKey(family, persona string) string {
	return family + ":" + persona
}

// Key returns the record's (family, persona) lookup key.
func (r *SegmentationRecord) Key() string {
	return SegmentKey(r.Family, r.Persona)
}
