// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like LLM_BASE_URL
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when absent
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or any parent holding
// go.mod, so the binary and the tests resolve the same file.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in yaml values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig maps well-known environment variables onto fields that
// are still empty after yaml merge and placeholder expansion. Credentials are
// normally supplied this way rather than committed to the yaml files.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Generation.Live.BaseURL == "" {
		if val := os.Getenv("LLM_BASE_URL"); val != "" {
			cfg.Generation.Live.BaseURL = val
		}
	}
	if cfg.Generation.Live.APIKey == "" {
		if val := os.Getenv("LLM_API_KEY"); val != "" {
			cfg.Generation.Live.APIKey = val
		}
	}
	if cfg.Embeddings.BaseURL == "" {
		if val := os.Getenv("EMBEDDINGS_BASE_URL"); val != "" {
			cfg.Embeddings.BaseURL = val
		}
	}
	if cfg.Embeddings.APIKey == "" {
		if val := os.Getenv("EMBEDDINGS_API_KEY"); val != "" {
			cfg.Embeddings.APIKey = val
		}
	}
	if cfg.Database.Elasticsearch.URL == "" {
		if val := os.Getenv("ELASTICSEARCH_URL"); val != "" {
			cfg.Database.Elasticsearch.URL = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 60000
	}

	if cfg.Catalog.Source == "" {
		cfg.Catalog.Source = "csv"
	}
	if cfg.Catalog.OffersTable == "" {
		cfg.Catalog.OffersTable = "catalog_offers"
	}
	if cfg.Catalog.HandsetsTable == "" {
		cfg.Catalog.HandsetsTable = "catalog_handsets"
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Retriever.OffersCollection == "" {
		cfg.Retriever.OffersCollection = "offres"
	}
	if cfg.Retriever.HandsetsCollection == "" {
		cfg.Retriever.HandsetsCollection = "smartphones"
	}
	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = 5
	}
	if cfg.Retriever.Timeout == 0 {
		cfg.Retriever.Timeout = 2000
	}
	if cfg.Retriever.CacheTTL == 0 {
		cfg.Retriever.CacheTTL = 3600
	}

	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "intfloat/multilingual-e5-base"
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = 5000
	}

	if cfg.Generation.MaxChars == 0 {
		cfg.Generation.MaxChars = 600
	}
	if cfg.Generation.Live.Temperature == 0 {
		cfg.Generation.Live.Temperature = 0.8
	}
	if cfg.Generation.Live.TopP == 0 {
		cfg.Generation.Live.TopP = 0.9
	}
	if cfg.Generation.Live.MaxTokens == 0 {
		cfg.Generation.Live.MaxTokens = 140
	}
	if cfg.Generation.Live.Timeout == 0 {
		cfg.Generation.Live.Timeout = 45000
	}

	if cfg.Guardrails.MaxChars == 0 {
		cfg.Guardrails.MaxChars = 480
	}
	if len(cfg.Guardrails.CTAAllowList) == 0 {
		cfg.Guardrails.CTAAllowList = []string{
			"*1", "*2", "*3", "*4", "*5", "*6", "*22", "*88",
			"iam.ma", "bit.ly", "Composez", "Cliquez",
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	switch cfg.Catalog.Source {
	case "csv":
		if cfg.Catalog.Path == "" {
			return fmt.Errorf("catalog.path is required for the csv source")
		}
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required for the postgres catalog source")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required for the postgres catalog source")
		}
	default:
		return fmt.Errorf("catalog.source must be csv or postgres, got %q", cfg.Catalog.Source)
	}

	if cfg.Segments.Path == "" {
		return fmt.Errorf("segments.path is required")
	}

	// The retriever and the live backend are both optional; nothing to check
	// unless they are partially configured.
	if cfg.Database.Elasticsearch.Configured() && cfg.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings.base_url is required when elasticsearch is configured")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetSecondsDuration converts seconds from config to time.Duration
func GetSecondsDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
