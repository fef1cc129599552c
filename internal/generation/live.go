// internal/generation/live.go
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sms-composer/internal/common/config"
	commonhttp "sms-composer/internal/common/http"
	"sms-composer/internal/common/logger"
	"sms-composer/internal/models"
)

const LiveBackendName = "live"

// systemPrompt is the French compliance instruction the remote model was
// tuned with. It pins the guardrail constraints on the model side too: length
// limit, input numbers only, mandatory call to action.
const systemPrompt = "Tu es un rédacteur sms marketing pour Maroc Telecom (IAM). " +
	"À partir de l'INPUT JSON fourni (persona, famille, offer_context, promo_context, cta, deadline, links), " +
	"écris UN SEUL SMS promotionnel en français en respectant STRICTEMENT : " +
	"1) ≤ 480 caractères ; " +
	"2) n'utiliser QUE les chiffres/prix/volumes/durées/destinations présents dans l'input ; " +
	"3) Termine TOUJOURS par un appel à l'action clair (code USSD, lien) ; " +
	"4) tonalité fluide, naturelle et percutante ; " +
	"5) Le message ne doit contenir AUCUNE NOTE ; " +
	"6) Réponds SEULEMENT en français ; " +
	"7) Ne mentionne pas le nom du persona"

// LiveBackend calls a remote chat-completions service. It never retries and
// never falls back to the mock on its own; failure policy belongs to the
// orchestrator.
type LiveBackend struct {
	cfg        config.LiveBackendConfig
	httpClient *commonhttp.Client
	logger     logger.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func NewLiveBackend(cfg config.LiveBackendConfig, log logger.Logger) *LiveBackend {
	return &LiveBackend{
		cfg:        cfg,
		httpClient: commonhttp.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		logger:     log.With(map[string]interface{}{"backend": LiveBackendName}),
	}
}

func (b *LiveBackend) Name() string {
	return LiveBackendName
}

func (b *LiveBackend) Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResult, error) {
	start := time.Now()

	input, err := json.Marshal(req.Context)
	if err != nil {
		return nil, fmt.Errorf("marshal generation context: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: b.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(input)},
		},
		Temperature: b.cfg.Temperature,
		TopP:        b.cfg.TopP,
		MaxTokens:   b.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(b.cfg.Timeout)*time.Millisecond)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(b.cfg.BaseURL, "/")+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: inference exceeded %dms", ErrBackendTimeout, b.cfg.Timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: inference returned status %d", ErrBackendUnavailable, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed inference response: %v", ErrBackendUnavailable, err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: inference returned no message", ErrBackendUnavailable)
	}

	message := strings.TrimSpace(parsed.Choices[0].Message.Content)
	message, truncated := truncate(message, req.MaxChars)

	return &models.GenerationResult{
		Message:   message,
		Backend:   LiveBackendName,
		Model:     b.cfg.Model,
		LatencyMS: time.Since(start).Milliseconds(),
		Truncated: truncated,
	}, nil
}

// CheckHealth probes the inference service. Both the liveness endpoint and
// the model listing must answer; the listing also tells us which model is
// actually served.
func (b *LiveBackend) CheckHealth(ctx context.Context) (string, error) {
	if err := b.get(ctx, "/health", nil); err != nil {
		return "", fmt.Errorf("%w: health probe: %v", ErrBackendUnavailable, err)
	}

	var list modelList
	if err := b.get(ctx, "/v1/models", &list); err != nil {
		return "", fmt.Errorf("%w: model listing: %v", ErrBackendUnavailable, err)
	}
	if len(list.Data) == 0 {
		return "", fmt.Errorf("%w: no model loaded", ErrBackendUnavailable)
	}

	return list.Data[0].ID, nil
}

func (b *LiveBackend) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(b.cfg.BaseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
