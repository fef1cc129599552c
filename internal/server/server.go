// internal/server/server.go
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sms-composer/internal/catalog"
	commonerrors "sms-composer/internal/common/errors"
	"sms-composer/internal/common/logger"
	"sms-composer/internal/models"
	"sms-composer/internal/orchestrator"
	"sms-composer/internal/retriever"
)

// ComposeRequest is the inbound body of the compose-and-generate call.
type ComposeRequest struct {
	SegmentationKey string                  `json:"segmentation_key" binding:"required"`
	Mode            string                  `json:"mode" binding:"required"`
	BrandDirectives *models.BrandDirectives `json:"brand_directives,omitempty"`
}

// HealthResponse mirrors the operational surface: overall status, retriever
// availability and the loaded catalog version.
type HealthResponse struct {
	Status         string `json:"status"`
	Retriever      string `json:"retriever"`
	CatalogVersion string `json:"catalog_version,omitempty"`
}

// Handler exposes the compose pipeline over HTTP.
type Handler struct {
	orchestrator *orchestrator.Orchestrator
	retriever    retriever.Retriever
	catalog      *catalog.Store
	logger       logger.Logger
}

func NewHandler(orch *orchestrator.Orchestrator, ret retriever.Retriever, cat *catalog.Store, log logger.Logger) *Handler {
	return &Handler{
		orchestrator: orch,
		retriever:    ret,
		catalog:      cat,
		logger:       log.With(map[string]interface{}{"component": "server"}),
	}
}

// SetupRoutes mounts the API on a gin engine.
func SetupRoutes(router *gin.Engine, h *Handler) {
	router.GET("/health", h.Health)
	router.POST("/compose/message", h.ComposeMessage)
}

func (h *Handler) Health(c *gin.Context) {
	state := "disabled"
	if h.retriever.Available() {
		state = "available"
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:         "ok",
		Retriever:      state,
		CatalogVersion: h.catalog.Version(),
	})
}

func (h *Handler) ComposeMessage(c *gin.Context) {
	var req ComposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid request body", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusBadRequest, commonerrors.NewInvalidRequestError(err.Error()))
		return
	}

	result, err := h.orchestrator.ProduceMessage(c.Request.Context(), req.SegmentationKey, models.Mode(req.Mode), req.BrandDirectives)
	if err != nil {
		status, body := mapError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, result)
}

// mapError translates pipeline error codes to HTTP statuses. Anything that is
// not a StandardError is an internal fault.
func mapError(err error) (int, interface{}) {
	se := commonerrors.AsStandard(err)
	if se == nil {
		return http.StatusInternalServerError, commonerrors.NewInvalidRequestError("internal error")
	}

	switch se.Code {
	case commonerrors.ErrCodeInvalidRequest:
		return http.StatusBadRequest, se
	case commonerrors.ErrCodeSegmentNotFound:
		return http.StatusNotFound, se
	case commonerrors.ErrCodeValidationFailed, commonerrors.ErrCodeContextContractInvalid:
		return http.StatusUnprocessableEntity, se
	case commonerrors.ErrCodeBackendTimeout, commonerrors.ErrCodeBackendUnavailable:
		// A timed-out backend is unavailable from the caller's point of view.
		return http.StatusBadGateway, se
	default:
		return http.StatusInternalServerError, se
	}
}
