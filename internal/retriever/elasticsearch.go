// internal/retriever/elasticsearch.go
package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"sms-composer/internal/catalog"
	"sms-composer/internal/common/config"
	commonerrors "sms-composer/internal/common/errors"
	"sms-composer/internal/common/logger"
	"sms-composer/internal/models"
)

// ESRetriever implements semantic retrieval with an Elasticsearch kNN search
// over per-collection indices. Index documents carry the catalog key; the
// retriever resolves full items against the in-memory catalog so stale index
// entries are silently dropped.
type ESRetriever struct {
	client    *elasticsearch.Client
	embedder  *EmbeddingsClient
	store     *catalog.Store
	cfg       config.RetrieverConfig
	logger    logger.Logger
	available bool
}

type knnSearchBody struct {
	KNN    knnClause `json:"knn"`
	Size   int       `json:"size"`
	Source []string  `json:"_source"`
}

type knnClause struct {
	Field         string    `json:"field"`
	QueryVector   []float32 `json:"query_vector"`
	K             int       `json:"k"`
	NumCandidates int       `json:"num_candidates"`
}

type knnSearchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				Key string `json:"key"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// NewESRetriever builds the retriever and probes the cluster once. A failed
// probe yields an unavailable retriever, not an error: composition degrades
// to the catalog fallback.
func NewESRetriever(client *elasticsearch.Client, embedder *EmbeddingsClient, store *catalog.Store, cfg config.RetrieverConfig, log logger.Logger) *ESRetriever {
	r := &ESRetriever{
		client:   client,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		logger:   log.With(map[string]interface{}{"component": "retriever"}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Timeout)*time.Millisecond)
	defer cancel()

	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		r.logger.Warn("elasticsearch unreachable, retrieval disabled", map[string]interface{}{
			"code":  string(commonerrors.ErrCodeRetrievalUnavailable),
			"error": err.Error(),
		})
		return r
	}
	defer res.Body.Close()

	if res.IsError() {
		r.logger.Warn("elasticsearch ping failed, retrieval disabled", map[string]interface{}{
			"code":   string(commonerrors.ErrCodeRetrievalUnavailable),
			"status": res.StatusCode,
		})
		return r
	}

	r.available = true
	return r
}

func (r *ESRetriever) Available() bool {
	return r.available
}

// Retrieve runs the kNN search for a collection. Every failure path logs a
// warning and returns an empty result; callers never see an error.
func (r *ESRetriever) Retrieve(ctx context.Context, collection models.Category, query string, topK int) models.RetrievalResult {
	if !r.available || topK <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Timeout)*time.Millisecond)
	defer cancel()

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed", map[string]interface{}{
			"collection": string(collection),
			"error":      err.Error(),
		})
		return nil
	}

	body, err := json.Marshal(knnSearchBody{
		KNN: knnClause{
			Field:         "vector",
			QueryVector:   vector,
			K:             topK,
			NumCandidates: topK * 10,
		},
		Size:   topK,
		Source: []string{"key"},
	})
	if err != nil {
		r.logger.Warn("building knn query failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	req := esapi.SearchRequest{
		Index: []string{r.indexFor(collection)},
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		r.logger.Warn("knn search failed", map[string]interface{}{
			"code":       string(commonerrors.ErrCodeRetrievalUnavailable),
			"collection": string(collection),
			"error":      err.Error(),
		})
		return nil
	}
	defer res.Body.Close()

	if res.IsError() {
		r.logger.Warn("knn search returned error status", map[string]interface{}{
			"collection": string(collection),
			"status":     res.StatusCode,
		})
		return nil
	}

	var parsed knnSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		r.logger.Warn("decoding knn response failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	var result models.RetrievalResult
	for _, hit := range parsed.Hits.Hits {
		item, err := r.store.Lookup(collection, hit.Source.Key)
		if err != nil {
			r.logger.Warn("index entry missing from catalog", map[string]interface{}{
				"collection": string(collection),
				"key":        hit.Source.Key,
			})
			continue
		}
		result = append(result, models.ScoredItem{Item: item, Score: hit.Score})
	}

	rank(result)
	return result
}

func (r *ESRetriever) indexFor(collection models.Category) string {
	if collection == models.CategoryHandsets {
		return r.cfg.HandsetsCollection
	}
	return r.cfg.OffersCollection
}

// rank orders score descending, catalog key ascending on ties, so equal-score
// results are stable across calls.
func rank(result models.RetrievalResult) {
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].Item.Key() < result[j].Item.Key()
	})
}
