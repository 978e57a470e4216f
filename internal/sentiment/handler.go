package sentiment

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sentiment-api/internal/shared/server/middleware"
	"sentiment-api/internal/shared/server/respond"
	"sentiment-api/internal/shared/telemetry"
)

const textParam = "text"

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sentiment", h.analyze)
}

func (h *Handler) analyze(c *gin.Context) {
	values, ok := c.GetQueryArray(textParam)
	if !ok {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "missing required query parameter: text", []respond.FieldIssue{
			{Field: textParam, Issue: "required"},
		})
		return
	}
	// A repeated parameter binds as its comma-joined values.
	text := strings.Join(values, ",")

	res, err := h.Svc.Analyze(c.Request.Context(), text)
	if err != nil {
		telemetry.Warn("sentiment.record_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"sentiment":  res.Sentiment,
			"error":      err,
		})
	}
	c.Set(middleware.SentimentKey, string(res.Sentiment))
	respond.OK(c, res)
}
