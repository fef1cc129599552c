// internal/retriever/embeddings.go
package retriever

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"sms-composer/internal/common/config"
	commonhttp "sms-composer/internal/common/http"
	"sms-composer/internal/common/logger"
)

// EmbeddingsClient calls the external embedding provider and memoizes the
// resulting vectors in Redis. The same query text is embedded at most once
// per cache TTL across the whole process fleet.
type EmbeddingsClient struct {
	cfg        config.EmbeddingsConfig
	httpClient *commonhttp.Client
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     logger.Logger
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewEmbeddingsClient builds the client. A nil Redis client disables
// memoization without disabling embedding.
func NewEmbeddingsClient(cfg config.EmbeddingsConfig, cache *redis.Client, cacheTTL time.Duration, log logger.Logger) *EmbeddingsClient {
	return &EmbeddingsClient{
		cfg:        cfg,
		httpClient: commonhttp.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     log,
	}
}

// Embed returns the vector for a query text, from cache when possible.
func (c *EmbeddingsClient) Embed(ctx context.Context, text string) ([]float32, error) {
	cacheKey := c.buildCacheKey(text)

	if c.cache != nil {
		if val, err := c.cache.Get(ctx, cacheKey).Result(); err == nil {
			var vector []float32
			if err := json.Unmarshal([]byte(val), &vector); err == nil && len(vector) > 0 {
				return vector, nil
			}
		}
	}

	vector, err := c.fetch(ctx, text)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if data, err := json.Marshal(vector); err == nil {
			if err := c.cache.Set(ctx, cacheKey, data, c.cacheTTL).Err(); err != nil {
				c.logger.Warn("embedding cache write failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}

	return vector, nil
}

func (c *EmbeddingsClient) fetch(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Model: c.cfg.Model,
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding provider returned status %d", resp.StatusCode)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vector")
	}

	return parsed.Data[0].Embedding, nil
}

// buildCacheKey includes the model so a model switch never serves stale
// vectors.
func (c *EmbeddingsClient) buildCacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.cfg.Model + "|" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}
