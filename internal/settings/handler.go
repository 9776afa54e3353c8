package settings

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"review-backend/internal/llm"
	"review-backend/internal/shared/server/respond"
)

// Handler exposes settings endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches settings routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/models", h.listModels)
	rg.GET("/settings/model", h.getModel)
	rg.PUT("/settings/model", h.putModel)
	rg.GET("/settings/rate-limit", h.getRateLimit)
	rg.PUT("/settings/rate-limit", h.putRateLimit)
}

func (h *Handler) listModels(c *gin.Context) {
	respond.OK(c, gin.H{"models": llm.Models()})
}

func (h *Handler) getModel(c *gin.Context) {
	s, err := h.Svc.GetModelSettings(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load model settings", nil)
		return
	}
	respond.OK(c, s)
}

func (h *Handler) putModel(c *gin.Context) {
	var req ModelSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid json body", nil)
		return
	}
	s, err := h.Svc.UpdateModelSettings(c.Request.Context(), req)
	if err != nil {
		writeUpdateError(c, err)
		return
	}
	respond.OK(c, s)
}

func (h *Handler) getRateLimit(c *gin.Context) {
	s, err := h.Svc.GetRateLimitSettings(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load rate limit settings", nil)
		return
	}
	respond.OK(c, s)
}

func (h *Handler) putRateLimit(c *gin.Context) {
	var req RateLimitSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid json body", nil)
		return
	}
	s, err := h.Svc.UpdateRateLimitSettings(c.Request.Context(), req)
	if err != nil {
		writeUpdateError(c, err)
		return
	}
	respond.OK(c, s)
}

func writeUpdateError(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidSettings) {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to save settings", nil)
}
