// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct. It is constructed once
// at process start and threaded explicitly into each component; nothing reads
// ambient global state after Load returns.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Segments   SegmentsConfig   `mapstructure:"segments"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Retriever  RetrieverConfig  `mapstructure:"retriever"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Generation GenerationConfig `mapstructure:"generation"`
	Guardrails GuardrailConfig  `mapstructure:"guardrails"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port        int `mapstructure:"port"`
	MetricsPort int `mapstructure:"metrics_port"`
	Timeout     int `mapstructure:"timeout"` // milliseconds, per-request budget
}

// CatalogConfig selects the tabular catalog source. Source is "csv" or
// "postgres"; Path holds the CSV directory, the table fields the Postgres
// table names.
type CatalogConfig struct {
	Source        string `mapstructure:"source"`
	Path          string `mapstructure:"path"`
	OffersTable   string `mapstructure:"offers_table"`
	HandsetsTable string `mapstructure:"handsets_table"`
}

type SegmentsConfig struct {
	Path string `mapstructure:"path"` // segmentation CSV file
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// Configured reports whether any Elasticsearch endpoint was provided. An
// unconfigured retriever is a valid "disabled" state, not an error.
func (e ElasticsearchConfig) Configured() bool {
	return e.GetURL() != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RetrieverConfig controls the semantic retriever. The collection fields map
// catalog categories to Elasticsearch index names.
type RetrieverConfig struct {
	OffersCollection   string `mapstructure:"offers_collection"`
	HandsetsCollection string `mapstructure:"handsets_collection"`
	TopK               int    `mapstructure:"top_k"`
	Timeout            int    `mapstructure:"timeout"`   // milliseconds
	CacheTTL           int    `mapstructure:"cache_ttl"` // seconds, embedding cache
}

// EmbeddingsConfig points at the external embedding provider.
type EmbeddingsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type GenerationConfig struct {
	MaxChars     int               `mapstructure:"max_chars"` // last-resort truncation budget
	RegistryPath string            `mapstructure:"registry_path"`
	Live         LiveBackendConfig `mapstructure:"live"`
}

type LiveBackendConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
}

// Configured reports whether a live endpoint was provided; live mode is
// rejected up front when it was not.
func (l LiveBackendConfig) Configured() bool {
	return l.BaseURL != ""
}

// GuardrailConfig holds the business-compliance limits for generated messages.
type GuardrailConfig struct {
	MaxChars     int      `mapstructure:"max_chars"`
	CTAAllowList []string `mapstructure:"cta_allow_list"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
