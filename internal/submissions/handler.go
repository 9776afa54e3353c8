package submissions

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"review-backend/internal/documents"
	"review-backend/internal/extract"
	"review-backend/internal/ratelimit"
	"review-backend/internal/shared/server/respond"
)

const maxUploadSize = 10 << 20

var contentTypesByExtension = map[string]string{
	"pdf":  "application/pdf",
	"txt":  "text/plain",
	"py":   "text/x-python",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// StatusSource reports a user's rate-limit state.
type StatusSource interface {
	Status(ctx context.Context, userID string) (ratelimit.Status, error)
}

// Handler exposes the submission endpoints.
type Handler struct {
	Svc    *Service
	Limits StatusSource
}

func NewHandler(svc *Service, limits StatusSource) *Handler {
	return &Handler{Svc: svc, Limits: limits}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/users/:userId/documents", h.submit)
	rg.POST("/users/:userId/documents/:fileName/versions", h.submitVersion)
	rg.POST("/users/:userId/documents/:fileName/reprocess", h.reprocess)
	rg.POST("/users/:userId/documents/:fileName/rollback", h.rollback)
	rg.GET("/users/:userId/rate-limit", h.rateLimit)
}

func (h *Handler) submit(c *gin.Context) {
	up, ok := readUpload(c)
	if !ok {
		return
	}
	receipt, err := h.Svc.SubmitDocument(c.Request.Context(), up)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusAccepted, receipt)
}

func (h *Handler) submitVersion(c *gin.Context) {
	up, ok := readUpload(c)
	if !ok {
		return
	}
	up.FileName = c.Param("fileName")
	receipt, err := h.Svc.SubmitNewVersion(c.Request.Context(), up)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusAccepted, receipt)
}

func (h *Handler) reprocess(c *gin.Context) {
	receipt, err := h.Svc.Reprocess(c.Request.Context(), c.Param("userId"), c.Param("fileName"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusAccepted, receipt)
}

type rollbackRequest struct {
	CurrentVersion int `json:"currentVersion"`
}

func (h *Handler) rollback(c *gin.Context) {
	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid json body", nil)
		return
	}
	receipt, err := h.Svc.Rollback(c.Request.Context(), c.Param("userId"), c.Param("fileName"), req.CurrentVersion)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, receipt)
}

func (h *Handler) rateLimit(c *gin.Context) {
	if h.Limits == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	st, err := h.Limits.Status(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load rate limit", nil)
		return
	}
	respond.OK(c, st)
}

func readUpload(c *gin.Context) (Upload, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return Upload{}, false
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return Upload{}, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return Upload{}, false
	}

	ext := documents.NormalizeExtension(filepath.Ext(fileHeader.Filename))
	return Upload{
		UserID:      c.Param("userId"),
		FileName:    strings.TrimSuffix(filepath.Base(fileHeader.Filename), filepath.Ext(fileHeader.Filename)),
		Extension:   ext,
		CourseID:    c.PostForm("courseId"),
		ContentType: contentTypeFor(fileHeader.Header.Get("Content-Type"), ext),
		Content:     content,
	}, true
}

func contentTypeFor(declared, ext string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ct, ok := contentTypesByExtension[ext]; ok {
		return ct
	}
	return declared
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrRateLimited):
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "submission limit reached, try again later", nil)
	case errors.Is(err, extract.ErrUnsupportedContentType):
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_content_type", err.Error(), nil)
	case errors.Is(err, ErrDocumentExists):
		respond.Error(c, http.StatusConflict, "document_exists", "document already exists, upload a new version instead", nil)
	case errors.Is(err, ErrVersionConflict):
		respond.Error(c, http.StatusConflict, "version_conflict", err.Error(), nil)
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrInvalidUpload), errors.Is(err, ErrNoPreviousVersion), errors.Is(err, extract.ErrEmptyDocument):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "submission failed", nil)
	}
}
