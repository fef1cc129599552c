// internal/generation/generation_test.go
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sms-composer/internal/common/config"
	"sms-composer/internal/common/logger"
	"sms-composer/internal/models"
)

func dataContext() *models.ComposedContext {
	price := 49.0
	return &models.ComposedContext{
		Persona:  "PROFIL_Internet",
		Family:   "USAGE_Internet",
		CTA:      "*3",
		Deadline: "30 septembre",
		Offer: &models.OfferContext{
			Name:     "Pass Data 5 Go",
			Volume:   "5 Go",
			Validity: "30 jours",
			PriceDH:  &price,
		},
		Promo: &models.PromoContext{PromoPriceDH: 37},
		Links: models.Links{Details: "https://iam.ma/pass"},
	}
}

func handsetContext() *models.ComposedContext {
	price := 9999.0
	return &models.ComposedContext{
		Persona:  "OPPORTUNITE_AchatNouveaute",
		Family:   "OPPORTUNITE_Achat_Equipement",
		Deadline: "30 septembre",
		Handset: &models.HandsetContext{
			Brand:    "APPLE",
			Model:    "iPhone 15",
			Capacity: "128 Go",
			PriceDH:  &price,
		},
		Links: models.Links{Details: "https://iam.ma/iphone"},
	}
}

func TestMockBackendIdempotent(t *testing.T) {
	b := NewMockBackend(nil, logger.NewTestLogger(t))
	req := &models.GenerationRequest{Context: dataContext(), Mode: models.ModeMock, Rotation: 0, MaxChars: 600}

	first, err := b.Generate(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, first.Message)

	for i := 0; i < 5; i++ {
		again, err := b.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first.Message, again.Message, "same context and rotation must render identically")
	}

	assert.Equal(t, MockBackendName, first.Backend)
	assert.False(t, first.Truncated)
}

func TestMockBackendRotationAdvances(t *testing.T) {
	b := NewMockBackend(nil, logger.NewTestLogger(t))

	messages := map[string]bool{}
	for rotation := 0; rotation < 3; rotation++ {
		res, err := b.Generate(context.Background(), &models.GenerationRequest{
			Context: dataContext(), Mode: models.ModeMock, Rotation: rotation, MaxChars: 600,
		})
		require.NoError(t, err)
		messages[res.Message] = true
	}
	assert.Greater(t, len(messages), 1, "advancing rotation must reach other variants")
}

func TestMockBackendFillsContextValues(t *testing.T) {
	b := NewMockBackend(nil, logger.NewTestLogger(t))

	res, err := b.Generate(context.Background(), &models.GenerationRequest{
		Context: dataContext(), Mode: models.ModeMock, Rotation: 0, MaxChars: 600,
	})
	require.NoError(t, err)

	assert.NotContains(t, res.Message, "{", "no unfilled placeholder may survive")
	assert.NotContains(t, res.Message, "}")
}

func TestMockBackendHandsetSelector(t *testing.T) {
	b := NewMockBackend(nil, logger.NewTestLogger(t))

	res, err := b.Generate(context.Background(), &models.GenerationRequest{
		Context: handsetContext(), Mode: models.ModeMock, Rotation: 0, MaxChars: 600,
	})
	require.NoError(t, err)

	assert.Contains(t, res.Message, "iPhone 15")
	assert.NotContains(t, res.Message, "{")
}

func TestMockBackendTruncation(t *testing.T) {
	b := NewMockBackend(nil, logger.NewTestLogger(t))

	res, err := b.Generate(context.Background(), &models.GenerationRequest{
		Context: dataContext(), Mode: models.ModeMock, Rotation: 0, MaxChars: 20,
	})
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.Len(t, []rune(res.Message), 20)
}

func liveConfig(baseURL string) config.LiveBackendConfig {
	return config.LiveBackendConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "iam-sms-writer",
		Temperature: 0.8,
		TopP:        0.9,
		MaxTokens:   140,
		Timeout:     2000,
	}
}

func TestLiveBackendGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "iam-sms-writer", req.Model)
		assert.Equal(t, 0.8, req.Temperature)
		assert.Equal(t, 0.9, req.TopP)
		assert.Equal(t, 140, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, `"famille":"USAGE_Internet"`)

		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  Pass Data 5 Go: 5 Go pour 49 DH. Composez *3.  "}}]}`)
	}))
	defer srv.Close()

	b := NewLiveBackend(liveConfig(srv.URL), logger.NewTestLogger(t))

	res, err := b.Generate(context.Background(), &models.GenerationRequest{
		Context: dataContext(), Mode: models.ModeLive, MaxChars: 600,
	})
	require.NoError(t, err)

	assert.Equal(t, "Pass Data 5 Go: 5 Go pour 49 DH. Composez *3.", res.Message)
	assert.Equal(t, LiveBackendName, res.Backend)
	assert.Equal(t, "iam-sms-writer", res.Model)
	assert.False(t, res.Truncated)
}

func TestLiveBackendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewLiveBackend(liveConfig(srv.URL), logger.NewTestLogger(t))

	_, err := b.Generate(context.Background(), &models.GenerationRequest{Context: dataContext(), Mode: models.ModeLive})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestLiveBackendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := liveConfig(srv.URL)
	cfg.Timeout = 50
	b := NewLiveBackend(cfg, logger.NewTestLogger(t))

	_, err := b.Generate(context.Background(), &models.GenerationRequest{Context: dataContext(), Mode: models.ModeLive})
	assert.ErrorIs(t, err, ErrBackendTimeout)
}

func TestLiveBackendMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"choices":`},
		{"empty choices", `{"choices":[]}`},
		{"blank message", `{"choices":[{"message":{"role":"assistant","content":"   "}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			b := NewLiveBackend(liveConfig(srv.URL), logger.NewTestLogger(t))
			_, err := b.Generate(context.Background(), &models.GenerationRequest{Context: dataContext(), Mode: models.ModeLive})
			assert.ErrorIs(t, err, ErrBackendUnavailable)
		})
	}
}

func TestLiveBackendConnectionRefused(t *testing.T) {
	cfg := liveConfig("http://127.0.0.1:1")
	cfg.Timeout = 200
	b := NewLiveBackend(cfg, logger.NewTestLogger(t))

	_, err := b.Generate(context.Background(), &models.GenerationRequest{Context: dataContext(), Mode: models.ModeLive})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBackendTimeout)
}

func TestLiveBackendCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			fmt.Fprint(w, `{"status":"ok"}`)
		case "/v1/models":
			fmt.Fprint(w, `{"data":[{"id":"iam-sms-writer"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	b := NewLiveBackend(liveConfig(srv.URL), logger.NewTestLogger(t))

	model, err := b.CheckHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "iam-sms-writer", model)
}

func TestLiveBackendCheckHealthRequiresBothProbes(t *testing.T) {
	tests := []struct {
		name         string
		healthStatus int
		modelsBody   string
	}{
		{"health down", http.StatusServiceUnavailable, `{"data":[{"id":"m"}]}`},
		{"no models", http.StatusOK, `{"data":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/health" {
					w.WriteHeader(tt.healthStatus)
					return
				}
				fmt.Fprint(w, tt.modelsBody)
			}))
			defer srv.Close()

			b := NewLiveBackend(liveConfig(srv.URL), logger.NewTestLogger(t))
			_, err := b.CheckHealth(context.Background())
			assert.ErrorIs(t, err, ErrBackendUnavailable)
		})
	}
}

func TestTruncate(t *testing.T) {
	msg, cut := truncate("bonjour", 0)
	assert.Equal(t, "bonjour", msg)
	assert.False(t, cut)

	msg, cut = truncate(strings.Repeat("é", 10), 4)
	assert.True(t, cut)
	assert.Len(t, []rune(msg), 4)
}
