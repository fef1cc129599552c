// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `app:
  name: compose-server
  environment: test
catalog:
  source: csv
  path: ./data/catalog
segments:
  path: ./data/segments.csv
generation:
  max_chars: 600
`

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "compose-server", cfg.App.Name)
	assert.Equal(t, "csv", cfg.Catalog.Source)
	assert.Equal(t, "./data/segments.csv", cfg.Segments.Path)

	// Defaults fill what the file leaves out.
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 480, cfg.Guardrails.MaxChars)
	assert.Equal(t, 600, cfg.Generation.MaxChars)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadFromFileRejectsBadCatalogSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  source: ldap\n"), 0o644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog.source")
}
