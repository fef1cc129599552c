// internal/segments/store_test.go
package segments

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sms-composer/internal/common/logger"
	"sms-composer/internal/models"
)

const segmentsCSV = `famille;persona;data_tier;voice_tier;sms_tier;roaming;hset_brand;hset_model;cta
GROS_DATA;Streamer;4;1;0;0;samsung;Galaxy A15;*3
RISQUE_Churn;CHURN_Competiteur;2;3;1;0;;;*6
OPPORTUNITE_Achat_Equipement;OPPORTUNITE_AchatSmartphone;3;2;1;0;APPLE;iPhone 12;
VOYAGEUR;Roamer;2;2;0;1;;;*88
`

func writeSegmentsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segments.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewFromCSV(t *testing.T) {
	store, err := NewFromCSV(writeSegmentsFile(t, segmentsCSV), logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 4, store.Count())

	record, err := store.Resolve(models.SegmentKey("GROS_DATA", "Streamer"))
	require.NoError(t, err)
	assert.Equal(t, "GROS_DATA", record.Family)
	assert.Equal(t, "Streamer", record.Persona)
	assert.Equal(t, 4, record.DataTier)
	assert.Equal(t, "SAMSUNG", record.HandsetBrand)
	assert.Equal(t, "*3", record.CTA)
	assert.False(t, record.Roaming)

	record, err = store.Resolve("VOYAGEUR:Roamer")
	require.NoError(t, err)
	assert.True(t, record.Roaming)
}

func TestNewFromCSVSkipsMalformedRows(t *testing.T) {
	content := segmentsCSV +
		";NoFamily;1;1;1;0;;;*3\n" +
		"NoPersona;;1;1;1;0;;;*3\n"

	store, err := NewFromCSV(writeSegmentsFile(t, content), logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 4, store.Count())
}

func TestNewFromCSVTierClamping(t *testing.T) {
	content := "famille,persona,data_tier,voice_tier,sms_tier\nA,B,9,-1,abc\n"

	store, err := NewFromCSV(writeSegmentsFile(t, content), logger.NewTestLogger(t))
	require.NoError(t, err)

	record, err := store.Resolve("A:B")
	require.NoError(t, err)
	assert.Equal(t, 4, record.DataTier)
	assert.Equal(t, 0, record.VoiceTier)
	assert.Equal(t, 0, record.SMSTier)
}

func TestResolveUnknownKey(t *testing.T) {
	store, err := NewFromCSV(writeSegmentsFile(t, segmentsCSV), logger.NewTestLogger(t))
	require.NoError(t, err)

	_, err = store.Resolve("UNKNOWN:Nobody")
	assert.ErrorIs(t, err, ErrSegmentNotFound)
}

func TestNewFromCSVMissingFile(t *testing.T) {
	_, err := NewFromCSV(filepath.Join(t.TempDir(), "absent.csv"), logger.NewTestLogger(t))
	assert.Error(t, err)
}
