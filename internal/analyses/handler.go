package analyses

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"review-backend/internal/shared/server/respond"
)

// ErrNothingToSummarize is returned by a MistakeSummarizer when the user has
// no analyzed suggestions yet.
var ErrNothingToSummarize = errors.New("no suggestions to summarize")

// MistakeSummarizer produces the common-mistakes summary for a user.
type MistakeSummarizer interface {
	CommonMistakes(ctx context.Context, userID string) (string, error)
}

// Handler exposes the analysis read endpoints.
type Handler struct {
	Svc      *Service
	Mistakes MistakeSummarizer
}

func NewHandler(svc *Service, mistakes MistakeSummarizer) *Handler {
	return &Handler{Svc: svc, Mistakes: mistakes}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/:userId/analyses", h.list)
	rg.GET("/users/:userId/analyses/:fileName", h.get)
	rg.GET("/users/:userId/summary", h.summary)
	rg.GET("/users/:userId/progress/:fileName", h.progress)
	rg.GET("/users/:userId/common-mistakes", h.commonMistakes)
}

func (h *Handler) list(c *gin.Context) {
	recs, err := h.Svc.List(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	respond.OK(c, gin.H{"items": recs})
}

func (h *Handler) get(c *gin.Context) {
	rec, err := h.Svc.Get(c.Request.Context(), c.Param("userId"), c.Param("fileName"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load analysis", nil)
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) summary(c *gin.Context) {
	sum, err := h.Svc.Summary(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to summarize analyses", nil)
		return
	}
	respond.OK(c, sum)
}

func (h *Handler) progress(c *gin.Context) {
	entries, err := h.Svc.Progress(c.Request.Context(), c.Param("userId"), c.Param("fileName"))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load progress", nil)
		return
	}
	respond.OK(c, gin.H{"items": entries})
}

func (h *Handler) commonMistakes(c *gin.Context) {
	if h.Mistakes == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	text, err := h.Mistakes.CommonMistakes(c.Request.Context(), c.Param("userId"))
	if err != nil {
		if errors.Is(err, ErrNothingToSummarize) {
			respond.Error(c, http.StatusNotFound, "not_found", "no analyzed suggestions yet", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to summarize mistakes", nil)
		return
	}
	respond.OK(c, gin.H{"summary": text})
}
