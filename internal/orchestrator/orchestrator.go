// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"sms-composer/internal/common/config"
	commonerrors "sms-composer/internal/common/errors"
	"sms-composer/internal/common/logger"
	"sms-composer/internal/common/metrics"
	"sms-composer/internal/common/observability"
	"sms-composer/internal/composer"
	"sms-composer/internal/generation"
	"sms-composer/internal/guardrail"
	"sms-composer/internal/models"
	"sms-composer/internal/segments"
)

// mock retriable budget: the initial attempt plus one retry at the next
// rotation position. Live inference is never retried automatically.
const mockMaxAttempts = 2

// ProduceResult is the successful outcome of a compose-and-generate call.
type ProduceResult struct {
	RequestID string                  `json:"request_id"`
	Context   *models.ComposedContext `json:"context"`
	Message   string                  `json:"message"`
	Backend   string                  `json:"backend"`
	Model     string                  `json:"model,omitempty"`
	LatencyMS int64                   `json:"latency_ms"`
	Attempts  int                     `json:"attempts"`
	Truncated bool                    `json:"truncated,omitempty"`
}

// Orchestrator drives the pipeline: compose, generate, validate. All failure
// policy lives here, not in the backends.
type Orchestrator struct {
	composer  *composer.Composer
	mock      generation.Backend
	live      *generation.LiveBackend
	validator *guardrail.Validator
	cfg       config.GenerationConfig
	obs       *observability.Observability
	logger    logger.Logger

	// live health probe, run once on first live request.
	liveMu    sync.Mutex
	liveReady bool
	liveModel string
}

func New(
	comp *composer.Composer,
	mock generation.Backend,
	live *generation.LiveBackend,
	validator *guardrail.Validator,
	cfg config.GenerationConfig,
	obs *observability.Observability,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		composer:  comp,
		mock:      mock,
		live:      live,
		validator: validator,
		cfg:       cfg,
		obs:       obs,
		logger:    log.With(map[string]interface{}{"component": "orchestrator"}),
	}
}

// ProduceMessage runs the full pipeline for one segmentation key. A mock
// validation failure is retried once with the rotation advanced; a live
// validation failure and every backend failure surface immediately.
func (o *Orchestrator) ProduceMessage(ctx context.Context, segmentationKey string, mode models.Mode, directives *models.BrandDirectives) (*ProduceResult, error) {
	start := time.Now()
	requestID := uuid.NewString()
	log := o.logger.With(map[string]interface{}{
		"requestId": requestID,
		"segment":   segmentationKey,
		"mode":      string(mode),
	})

	result, err := o.produce(ctx, log, requestID, segmentationKey, mode, directives)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ComposeRequests.WithLabelValues(string(mode), status).Inc()
	if o.obs != nil {
		o.obs.RecordRequest(ctx, string(mode), status)
		o.obs.RecordDuration(ctx, time.Since(start), string(mode))
	}
	return result, err
}

func (o *Orchestrator) produce(ctx context.Context, log logger.Logger, requestID, segmentationKey string, mode models.Mode, directives *models.BrandDirectives) (*ProduceResult, error) {
	if !mode.Valid() {
		return nil, commonerrors.NewInvalidRequestError("mode must be \"mock\" or \"live\"")
	}

	composed, err := o.composer.Compose(ctx, segmentationKey, directives)
	if err != nil {
		if errors.Is(err, segments.ErrSegmentNotFound) {
			return nil, commonerrors.NewSegmentNotFoundError(segmentationKey)
		}
		if se := commonerrors.AsStandard(err); se != nil {
			return nil, se
		}
		return nil, commonerrors.NewContextContractInvalidError(err.Error())
	}

	backend, model, err := o.selectBackend(ctx, mode)
	if err != nil {
		return nil, err
	}

	maxAttempts := 1
	if mode == models.ModeMock {
		maxAttempts = mockMaxAttempts
	}

	rotation := 0
	for attempt := 1; ; attempt++ {
		genStart := time.Now()
		result, err := backend.Generate(ctx, &models.GenerationRequest{
			Context:  composed,
			Mode:     mode,
			Rotation: rotation,
			MaxChars: o.cfg.MaxChars,
		})
		metrics.GenerationDuration.WithLabelValues(backend.Name()).Observe(time.Since(genStart).Seconds())
		if err != nil {
			metrics.GenerationAttempts.WithLabelValues(backend.Name(), "error").Inc()
			log.WithError(err).Error("generation failed", map[string]interface{}{"attempt": attempt})
			if errors.Is(err, generation.ErrBackendTimeout) {
				return nil, commonerrors.NewBackendTimeoutError(backend.Name())
			}
			return nil, commonerrors.NewBackendUnavailableError(err)
		}
		metrics.GenerationAttempts.WithLabelValues(backend.Name(), "success").Inc()

		outcome := o.validator.Validate(result.Message, composed)
		if outcome.Valid {
			log.Info("message produced", map[string]interface{}{
				"attempt":   attempt,
				"backend":   result.Backend,
				"latencyMs": result.LatencyMS,
			})
			if model == "" {
				model = result.Model
			}
			return &ProduceResult{
				RequestID: requestID,
				Context:   composed,
				Message:   result.Message,
				Backend:   result.Backend,
				Model:     model,
				LatencyMS: result.LatencyMS,
				Attempts:  attempt,
				Truncated: result.Truncated,
			}, nil
		}

		log.Warn("candidate rejected by guardrails", map[string]interface{}{
			"attempt":    attempt,
			"violations": outcome.Violations,
		})

		if attempt >= maxAttempts {
			return nil, commonerrors.NewValidationFailedError(outcome.Violations)
		}
		rotation++
	}
}

// selectBackend returns the backend for the mode. Live mode is gated on a
// memoized health probe: once the inference service has answered, later
// requests skip the probe.
func (o *Orchestrator) selectBackend(ctx context.Context, mode models.Mode) (generation.Backend, string, error) {
	if mode == models.ModeMock {
		return o.mock, "", nil
	}

	if o.live == nil || !o.cfg.Live.Configured() {
		return nil, "", commonerrors.NewBackendUnavailableError(errors.New("live backend is not configured"))
	}

	o.liveMu.Lock()
	defer o.liveMu.Unlock()
	if !o.liveReady {
		model, err := o.live.CheckHealth(ctx)
		if err != nil {
			return nil, "", commonerrors.NewBackendUnavailableError(err)
		}
		o.liveReady = true
		o.liveModel = model
		o.logger.Info("live backend ready", map[string]interface{}{"model": model})
	}

	return o.live, o.liveModel, nil
}
