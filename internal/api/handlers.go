package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/example/learncore/internal/apperr"
	"github.com/example/learncore/internal/engine"
	"github.com/example/learncore/internal/logger"
	"github.com/example/learncore/pkg/models"
)

// Handler adapts the engine service to HTTP.
type Handler struct {
	engine *engine.Service
	log    *logger.Logger
}

// NewHandler creates the handler set.
func NewHandler(svc *engine.Service, log *logger.Logger) *Handler {
	return &Handler{engine: svc, log: log.With("component", "api")}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type submitAttemptBody struct {
	ItemID         string  `json:"item_id" binding:"required"`
	Grade          string  `json:"grade" binding:"required"`
	Correctness    float64 `json:"correctness"`
	Confidence     float64 `json:"confidence"`
	IdempotencyKey string  `json:"idempotency_key" binding:"required"`
}

// SubmitAttempt handles POST /api/attempts.
func (h *Handler) SubmitAttempt(c *gin.Context) {
	var body submitAttemptBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.engine.SubmitAttempt(c.Request.Context(), engine.SubmitAttemptRequest{
		UserID:         c.GetString(userIDKey),
		ItemID:         body.ItemID,
		Grade:          body.Grade,
		Correctness:    body.Correctness,
		Confidence:     body.Confidence,
		IdempotencyKey: body.IdempotencyKey,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Recommend handles GET /api/recommendations.
func (h *Handler) Recommend(c *gin.Context) {
	k := 0
	if raw := c.Query("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "k must be an integer"})
			return
		}
		k = parsed
	}
	recs, err := h.engine.RecommendNext(c.Request.Context(), c.GetString(userIDKey), k, c.Query("level"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

type resolveMentionsBody struct {
	Mentions []models.Mention `json:"mentions" binding:"required"`
}

// ResolveMentions handles POST /api/mentions/resolve, called by the
// content-compilation pipeline.
func (h *Handler) ResolveMentions(c *gin.Context) {
	var body resolveMentionsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resolutions, err := h.engine.ResolveMentions(c.Request.Context(), body.Mentions)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolutions": resolutions})
}

// Progress handles GET /api/progress.
func (h *Handler) Progress(c *gin.Context) {
	summary, err := h.engine.Progress(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ItemHistory handles GET /api/items/:id.
func (h *Handler) ItemHistory(c *gin.Context) {
	detail, err := h.engine.ItemHistory(c.Request.Context(), c.GetString(userIDKey), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) renderError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.Validation:
		status = http.StatusBadRequest
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.ConcurrencyConflict:
		status = http.StatusConflict
	case apperr.StorageUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		h.log.Error("request failed", "kind", kind.String(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind.String()})
}
