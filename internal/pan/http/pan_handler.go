// Package http provides HTTP handlers for PAN protection operations.
// Card numbers are encrypted at rest with envelope encryption; decryption is
// restricted, authenticated and audit logged.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/panvault/internal/httputil"
	"github.com/allisson/panvault/internal/pan/http/dto"
	panUseCase "github.com/allisson/panvault/internal/pan/usecase"
	customValidation "github.com/allisson/panvault/internal/validation"
)

// PanHandler handles HTTP requests for PAN protection operations.
type PanHandler struct {
	panUseCase panUseCase.PanUseCase
	logger     *slog.Logger
}

// NewPanHandler creates a new PAN handler with required dependencies.
func NewPanHandler(panUseCase panUseCase.PanUseCase, logger *slog.Logger) *PanHandler {
	return &PanHandler{
		panUseCase: panUseCase,
		logger:     logger,
	}
}

// IngestHandler records a card sighting.
// POST /v1/pans
// Returns 201 Created with the hashed identifier. The plaintext card number
// is never echoed back and never logged.
func (h *PanHandler) IngestHandler(c *gin.Context) {
	var req dto.IngestRequest

	// Parse and bind JSON
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	// Validate request
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.panUseCase.Ingest(c.Request.Context(), req.Hpan, req.Pan, req.SeenAt); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.IngestResponse{Hpan: req.Hpan})
}

// DecryptHandler recovers a card number by its hashed identifier.
// POST /v1/pans/decrypt - Requires bearer token authentication.
// Returns 200 OK with the plaintext card number. Every attempt, successful
// or not, is recorded in the signed audit trail by the use case.
func (h *PanHandler) DecryptHandler(c *gin.Context) {
	var req dto.DecryptRequest

	// Parse and bind JSON
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	// Validate request
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	pan, err := h.panUseCase.DecryptByHpan(c.Request.Context(), req.Hpan, req.RequestedBy, req.Reason)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.DecryptResponse{Pan: pan})
}
